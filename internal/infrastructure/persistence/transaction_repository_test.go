package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTransactionTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&posTransactionRow{},
		&posTransactionLineRow{},
		&invoiceRow{},
		&invoiceLineRow{},
		&discount.Allocation{},
		&discount.AllocationLine{},
	)
	require.NoError(t, err)

	return db
}

func seedPOSTransaction(t *testing.T, db *gorm.DB, tenantID uuid.UUID, number string, discountTotal int64) posTransactionRow {
	t.Helper()
	row := posTransactionRow{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Number:        number,
		TotalAmount:   decimal.NewFromInt(600),
		DiscountTotal: decimal.NewFromInt(discountTotal),
		Date:          time.Now(),
		Lines: []posTransactionLineRow{
			{ID: uuid.New(), Amount: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)},
			{ID: uuid.New(), Amount: decimal.NewFromInt(500), Quantity: decimal.NewFromInt(5)},
		},
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestTransactionStore_FindHeader(t *testing.T) {
	db := setupTransactionTestDB(t)
	store := NewGormTransactionStore(db)
	ctx := context.Background()
	tenantID := uuid.New()

	pos := seedPOSTransaction(t, db, tenantID, "POS-0001", 0)

	invoice := invoiceRow{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Number:      "INV-0001",
		TotalAmount: decimal.NewFromInt(250),
		Date:        time.Now(),
		Lines: []invoiceLineRow{
			{ID: uuid.New(), Amount: decimal.NewFromInt(250), Quantity: decimal.NewFromInt(1)},
		},
	}
	require.NoError(t, db.Create(&invoice).Error)

	t.Run("loads a POS ticket with lines", func(t *testing.T) {
		header, err := store.FindHeader(ctx, tenantID, pos.ID, discount.TransactionKindPOS)
		require.NoError(t, err)
		assert.Equal(t, "POS-0001", header.Number)
		assert.Equal(t, discount.TransactionKindPOS, header.Kind)
		require.Len(t, header.Lines, 2)
		assert.True(t, header.TotalAmount.Equal(decimal.NewFromInt(600)))
	})

	t.Run("loads an invoice with lines", func(t *testing.T) {
		header, err := store.FindHeader(ctx, tenantID, invoice.ID, discount.TransactionKindInvoice)
		require.NoError(t, err)
		assert.Equal(t, "INV-0001", header.Number)
		assert.Equal(t, discount.TransactionKindInvoice, header.Kind)
		assert.Len(t, header.Lines, 1)
	})

	t.Run("returns ErrNotFound for the wrong tenant", func(t *testing.T) {
		_, err := store.FindHeader(ctx, uuid.New(), pos.ID, discount.TransactionKindPOS)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("rejects an unknown kind", func(t *testing.T) {
		_, err := store.FindHeader(ctx, tenantID, pos.ID, discount.TransactionKind("voucher"))
		assert.Error(t, err)
	})
}

func TestTransactionStore_UpdateDiscountTotal(t *testing.T) {
	db := setupTransactionTestDB(t)
	store := NewGormTransactionStore(db)
	ctx := context.Background()
	tenantID := uuid.New()

	pos := seedPOSTransaction(t, db, tenantID, "POS-0001", 0)

	t.Run("writes the discount total back", func(t *testing.T) {
		err := store.UpdateDiscountTotal(ctx, tenantID, pos.ID, discount.TransactionKindPOS, decimal.NewFromInt(60))
		require.NoError(t, err)

		header, err := store.FindHeader(ctx, tenantID, pos.ID, discount.TransactionKindPOS)
		require.NoError(t, err)
		assert.True(t, header.DiscountTotal.Equal(decimal.NewFromInt(60)))
	})

	t.Run("missing transaction returns ErrNotFound", func(t *testing.T) {
		err := store.UpdateDiscountTotal(ctx, tenantID, uuid.New(), discount.TransactionKindPOS, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestTransactionStore_FindDiscountedWithoutAllocation(t *testing.T) {
	db := setupTransactionTestDB(t)
	store := NewGormTransactionStore(db)
	ctx := context.Background()
	tenantID := uuid.New()

	// Discounted with no allocation row: should be reported
	orphan := seedPOSTransaction(t, db, tenantID, "POS-0001", 50)

	// Discounted and allocated: should not be reported
	allocated := seedPOSTransaction(t, db, tenantID, "POS-0002", 60)
	ruleID := uuid.New()
	allocation, err := discount.NewAllocation(
		tenantID, "DA-20260115-0001",
		&allocated.ID, nil,
		&ruleID, nil, discount.RuleTypeCategory,
		decimal.NewFromInt(60),
		discount.AllocationMethodLineAmount,
		uuid.New(),
	)
	require.NoError(t, err)
	require.NoError(t, allocation.AttachLines([]discount.AllocatedLine{
		{LineItemID: uuid.New(), OriginalAmount: decimal.NewFromInt(600), AllocatedDiscount: decimal.NewFromInt(60), AllocationPercentage: decimal.NewFromInt(100)},
	}))
	require.NoError(t, NewGormAllocationRepository(db).Create(ctx, allocation))

	// Undiscounted: should not be reported
	seedPOSTransaction(t, db, tenantID, "POS-0003", 0)

	headers, err := store.FindDiscountedWithoutAllocation(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, headers, 1)
	assert.Equal(t, orphan.ID, headers[0].ID)
	assert.True(t, headers[0].DiscountTotal.Equal(decimal.NewFromInt(50)))
}
