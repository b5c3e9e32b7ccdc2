package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bizzytrack/backend/internal/domain/finance"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormJournalEntryRepository implements JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

// Create persists the journal entry and its lines atomically
func (r *GormJournalEntryRepository) Create(ctx context.Context, entry *finance.JournalEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
}

// FindByIDForTenant finds a journal entry by ID for a specific tenant,
// lines included
func (r *GormJournalEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.JournalEntry, error) {
	var entry finance.JournalEntry
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&entry, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindByPeriod lists a tenant's journal entries of one source type inside
// [from, to], oldest first
func (r *GormJournalEntryRepository) FindByPeriod(ctx context.Context, tenantID uuid.UUID, sourceType string, from, to time.Time) ([]finance.JournalEntry, error) {
	var entries []finance.JournalEntry
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_type = ? AND entry_date >= ? AND entry_date <= ?", tenantID, sourceType, from, to).
		Preload("Lines").
		Order("entry_date ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindAllocationIDsWithEntries returns the subset of the given allocation
// ids that at least one journal entry references
func (r *GormJournalEntryRepository) FindAllocationIDsWithEntries(ctx context.Context, tenantID uuid.UUID, allocationIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	linked := make(map[uuid.UUID]struct{}, len(allocationIDs))
	if len(allocationIDs) == 0 {
		return linked, nil
	}

	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&finance.JournalEntry{}).
		Where("tenant_id = ? AND allocation_id IN ?", tenantID, allocationIDs).
		Distinct().
		Pluck("allocation_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		linked[id] = struct{}{}
	}
	return linked, nil
}

// SumDebitsByAccounts sums debit journal lines on the given account codes
// over the period
func (r *GormJournalEntryRepository) SumDebitsByAccounts(ctx context.Context, tenantID uuid.UUID, accountCodes []string, from, to time.Time) (decimal.Decimal, error) {
	if len(accountCodes) == 0 {
		return decimal.Zero, nil
	}

	var total decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&finance.JournalLine{}).
		Select("SUM(journal_lines.amount)").
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.entry_id").
		Where("journal_entries.tenant_id = ? AND journal_entries.entry_date >= ? AND journal_entries.entry_date <= ?", tenantID, from, to).
		Where("journal_lines.line_type = ? AND journal_lines.account_code IN ?", finance.LineTypeDebit, accountCodes).
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// CountForTenantOn counts a tenant's journal entries created on the given day
func (r *GormJournalEntryRepository) CountForTenantOn(ctx context.Context, tenantID uuid.UUID, day time.Time) (int64, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&finance.JournalEntry{}).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, dayStart, dayEnd).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormJournalEntryRepository implements JournalEntryRepository
var _ finance.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
