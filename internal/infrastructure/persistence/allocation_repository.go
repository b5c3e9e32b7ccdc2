package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create persists the allocation header and its lines atomically
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *discount.Allocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(allocation).Error
	})
}

// FindByIDForTenant finds an allocation by ID for a specific tenant,
// lines included
func (r *GormAllocationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*discount.Allocation, error) {
	var allocation discount.Allocation
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&allocation, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &allocation, nil
}

// FindByTransaction lists every allocation referencing a transaction
func (r *GormAllocationRepository) FindByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID, kind discount.TransactionKind) ([]discount.Allocation, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if kind == discount.TransactionKindInvoice {
		query = query.Where("invoice_id = ?", transactionID)
	} else {
		query = query.Where("pos_transaction_id = ?", transactionID)
	}

	var allocations []discount.Allocation
	if err := query.Preload("Lines").
		Order("created_at DESC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// FindByDateRange lists a tenant's allocations created inside [from, to]
func (r *GormAllocationRepository) FindByDateRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]discount.Allocation, error) {
	var allocations []discount.Allocation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND created_at >= ? AND created_at <= ?", tenantID, from, to).
		Preload("Lines").
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// FindByStatusUpTo lists a tenant's allocations in the given status created
// no later than asOf
func (r *GormAllocationRepository) FindByStatusUpTo(ctx context.Context, tenantID uuid.UUID, status discount.AllocationStatus, asOf time.Time) ([]discount.Allocation, error) {
	var allocations []discount.Allocation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND created_at <= ?", tenantID, status, asOf).
		Preload("Lines").
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// SaveWithLock saves with an optimistic version check. A concurrent writer
// that committed first makes this write fail with ErrConcurrencyConflict.
func (r *GormAllocationRepository) SaveWithLock(ctx context.Context, allocation *discount.Allocation) error {
	currentVersion := allocation.Version
	allocation.IncrementVersion()

	result := r.db.WithContext(ctx).
		Model(allocation).
		Where("id = ? AND tenant_id = ? AND version = ?", allocation.ID, allocation.TenantID, currentVersion).
		Select("status", "applied_at", "voided_at", "rejection_reason", "version", "updated_at").
		Updates(allocation)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountForTenantOn counts a tenant's allocations created on the given day
func (r *GormAllocationRepository) CountForTenantOn(ctx context.Context, tenantID uuid.UUID, day time.Time) (int64, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&discount.Allocation{}).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, dayStart, dayEnd).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ discount.AllocationRepository = (*GormAllocationRepository)(nil)
