package persistence

import (
	"context"
	"errors"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormApprovalRepository implements ApprovalRepository using GORM
type GormApprovalRepository struct {
	db *gorm.DB
}

// NewGormApprovalRepository creates a new GormApprovalRepository
func NewGormApprovalRepository(db *gorm.DB) *GormApprovalRepository {
	return &GormApprovalRepository{db: db}
}

// Create persists a new approval request
func (r *GormApprovalRepository) Create(ctx context.Context, request *discount.ApprovalRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// FindByIDForTenant finds an approval request by ID for a specific tenant
func (r *GormApprovalRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*discount.ApprovalRequest, error) {
	var request discount.ApprovalRequest
	if err := r.db.WithContext(ctx).
		First(&request, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// FindPendingForTenant lists the tenant's undecided approval requests,
// oldest first
func (r *GormApprovalRepository) FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]discount.ApprovalRequest, error) {
	var requests []discount.ApprovalRequest
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, discount.ApprovalStatusPending).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// SaveWithLock saves with an optimistic version check so two managers
// deciding the same request concurrently cannot both win
func (r *GormApprovalRepository) SaveWithLock(ctx context.Context, request *discount.ApprovalRequest) error {
	currentVersion := request.Version
	request.IncrementVersion()

	result := r.db.WithContext(ctx).
		Model(request).
		Where("id = ? AND tenant_id = ? AND version = ?", request.ID, request.TenantID, currentVersion).
		Select("status", "decided_by", "decided_at", "decision_note", "version", "updated_at").
		Updates(request)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure GormApprovalRepository implements ApprovalRepository
var _ discount.ApprovalRepository = (*GormApprovalRepository)(nil)
