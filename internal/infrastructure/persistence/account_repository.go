package persistence

import (
	"context"
	"errors"

	"github.com/bizzytrack/backend/internal/domain/finance"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormChartOfAccountsRepository implements ChartOfAccountsRepository using GORM
type GormChartOfAccountsRepository struct {
	db *gorm.DB
}

// NewGormChartOfAccountsRepository creates a new GormChartOfAccountsRepository
func NewGormChartOfAccountsRepository(db *gorm.DB) *GormChartOfAccountsRepository {
	return &GormChartOfAccountsRepository{db: db}
}

// FindByCode looks up an active chart-of-accounts row by code. A missing
// row returns nil without an error; callers decide whether that is fatal.
func (r *GormChartOfAccountsRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*finance.Account, error) {
	var account finance.Account
	if err := r.db.WithContext(ctx).
		First(&account, "tenant_id = ? AND code = ? AND active = ?", tenantID, code, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Ensure GormChartOfAccountsRepository implements ChartOfAccountsRepository
var _ finance.ChartOfAccountsRepository = (*GormChartOfAccountsRepository)(nil)
