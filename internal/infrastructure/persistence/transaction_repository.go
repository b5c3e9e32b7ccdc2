package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// posTransactionRow maps the POS ticket header owned by the sales module.
// Only the columns the discount engine reads and the discount total it
// writes back are mapped here.
type posTransactionRow struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Number        string          `gorm:"column:transaction_number"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(18,2)"`
	DiscountTotal decimal.Decimal `gorm:"type:numeric(18,2)"`
	Date          time.Time       `gorm:"column:transaction_date"`
	Lines         []posTransactionLineRow `gorm:"foreignKey:TransactionID"`
	UpdatedAt     time.Time
}

func (posTransactionRow) TableName() string {
	return "pos_transactions"
}

type posTransactionLineRow struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2)"`
	Quantity      decimal.Decimal `gorm:"type:numeric(18,4)"`
}

func (posTransactionLineRow) TableName() string {
	return "pos_transaction_lines"
}

// invoiceRow maps the invoice header owned by the billing module
type invoiceRow struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Number        string          `gorm:"column:invoice_number"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(18,2)"`
	DiscountTotal decimal.Decimal `gorm:"type:numeric(18,2)"`
	Date          time.Time       `gorm:"column:invoice_date"`
	Lines         []invoiceLineRow `gorm:"foreignKey:InvoiceID"`
	UpdatedAt     time.Time
}

func (invoiceRow) TableName() string {
	return "invoices"
}

type invoiceLineRow struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(18,2)"`
	Quantity  decimal.Decimal `gorm:"type:numeric(18,4)"`
}

func (invoiceLineRow) TableName() string {
	return "invoice_lines"
}

// GormTransactionStore reads POS tickets and invoices for the discount
// engine. The tables belong to the sales and billing modules; this store
// only touches the discount_total column when writing.
type GormTransactionStore struct {
	db *gorm.DB
}

// NewGormTransactionStore creates a new GormTransactionStore
func NewGormTransactionStore(db *gorm.DB) *GormTransactionStore {
	return &GormTransactionStore{db: db}
}

// FindHeader loads a transaction header with its lines
func (s *GormTransactionStore) FindHeader(ctx context.Context, tenantID, id uuid.UUID, kind discount.TransactionKind) (*discount.TransactionHeader, error) {
	switch kind {
	case discount.TransactionKindPOS:
		var row posTransactionRow
		if err := s.db.WithContext(ctx).
			Preload("Lines").
			First(&row, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, shared.ErrNotFound
			}
			return nil, err
		}
		header := posHeader(row)
		return &header, nil
	case discount.TransactionKindInvoice:
		var row invoiceRow
		if err := s.db.WithContext(ctx).
			Preload("Lines").
			First(&row, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, shared.ErrNotFound
			}
			return nil, err
		}
		header := invoiceHeader(row)
		return &header, nil
	default:
		return nil, shared.NewDomainError("INVALID_TRANSACTION_KIND", "Unknown transaction kind")
	}
}

// FindDiscountedWithoutAllocation lists transactions carrying a discount
// total without any allocation row, across both transaction kinds
func (s *GormTransactionStore) FindDiscountedWithoutAllocation(ctx context.Context, tenantID uuid.UUID) ([]discount.TransactionHeader, error) {
	headers := make([]discount.TransactionHeader, 0)

	var posRows []posTransactionRow
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND discount_total > 0", tenantID).
		Where("NOT EXISTS (SELECT 1 FROM discount_allocations da WHERE da.pos_transaction_id = pos_transactions.id)").
		Order("transaction_date ASC").
		Find(&posRows).Error; err != nil {
		return nil, err
	}
	for _, row := range posRows {
		headers = append(headers, posHeader(row))
	}

	var invoiceRows []invoiceRow
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND discount_total > 0", tenantID).
		Where("NOT EXISTS (SELECT 1 FROM discount_allocations da WHERE da.invoice_id = invoices.id)").
		Order("invoice_date ASC").
		Find(&invoiceRows).Error; err != nil {
		return nil, err
	}
	for _, row := range invoiceRows {
		headers = append(headers, invoiceHeader(row))
	}
	return headers, nil
}

// UpdateDiscountTotal writes the discount total back to the owning table
func (s *GormTransactionStore) UpdateDiscountTotal(ctx context.Context, tenantID, id uuid.UUID, kind discount.TransactionKind, discountTotal decimal.Decimal) error {
	var model interface{}
	switch kind {
	case discount.TransactionKindPOS:
		model = &posTransactionRow{}
	case discount.TransactionKindInvoice:
		model = &invoiceRow{}
	default:
		return shared.NewDomainError("INVALID_TRANSACTION_KIND", "Unknown transaction kind")
	}

	result := s.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]interface{}{
			"discount_total": discountTotal,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func posHeader(row posTransactionRow) discount.TransactionHeader {
	header := discount.TransactionHeader{
		ID:            row.ID,
		TenantID:      row.TenantID,
		Kind:          discount.TransactionKindPOS,
		Number:        row.Number,
		TotalAmount:   row.TotalAmount,
		DiscountTotal: row.DiscountTotal,
		Date:          row.Date,
		Lines:         make([]discount.TransactionLine, len(row.Lines)),
	}
	for i, line := range row.Lines {
		header.Lines[i] = discount.TransactionLine{
			ID:       line.ID,
			Amount:   line.Amount,
			Quantity: line.Quantity,
		}
	}
	return header
}

func invoiceHeader(row invoiceRow) discount.TransactionHeader {
	header := discount.TransactionHeader{
		ID:            row.ID,
		TenantID:      row.TenantID,
		Kind:          discount.TransactionKindInvoice,
		Number:        row.Number,
		TotalAmount:   row.TotalAmount,
		DiscountTotal: row.DiscountTotal,
		Date:          row.Date,
		Lines:         make([]discount.TransactionLine, len(row.Lines)),
	}
	for i, line := range row.Lines {
		header.Lines[i] = discount.TransactionLine{
			ID:       line.ID,
			Amount:   line.Amount,
			Quantity: line.Quantity,
		}
	}
	return header
}

// Ensure GormTransactionStore implements TransactionStore
var _ discount.TransactionStore = (*GormTransactionStore)(nil)
