package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/bizzytrack/backend/internal/domain/finance"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupJournalTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&finance.JournalEntry{}, &finance.JournalLine{}, &finance.Account{})
	require.NoError(t, err)

	return db
}

func newDiscountEntry(t *testing.T, tenantID uuid.UUID, reference string, entryDate time.Time, amount int64, allocationID uuid.UUID) *finance.JournalEntry {
	t.Helper()
	entry, err := finance.NewJournalEntry(
		tenantID, reference, entryDate, "POS discount",
		[]finance.JournalLine{
			{
				AccountCode:  finance.AccountPromotionalDiscount,
				LineType:     finance.LineTypeDebit,
				Amount:       decimal.NewFromInt(amount),
				AllocationID: &allocationID,
			},
			{
				AccountCode:  finance.AccountSalesRevenue,
				LineType:     finance.LineTypeCredit,
				Amount:       decimal.NewFromInt(amount),
				AllocationID: &allocationID,
			},
		},
		uuid.New(),
	)
	require.NoError(t, err)
	entry.SourceType = "discount_allocation"
	entry.AllocationID = &allocationID
	return entry
}

func TestJournalEntryRepository_CreateAndFind(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewGormJournalEntryRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("creates entry with lines", func(t *testing.T) {
		entry := newDiscountEntry(t, tenantID, "JE-20260115-0001", time.Now(), 5000, uuid.New())

		err := repo.Create(ctx, entry)
		require.NoError(t, err)

		found, err := repo.FindByIDForTenant(ctx, tenantID, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "JE-20260115-0001", found.ReferenceNumber)
		assert.Len(t, found.Lines, 2)
		assert.True(t, found.IsBalanced())
	})

	t.Run("returns ErrNotFound for missing entry", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestJournalEntryRepository_FindByPeriod(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewGormJournalEntryRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	january := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	february := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newDiscountEntry(t, tenantID, "JE-20260115-0001", january, 1000, uuid.New())))
	require.NoError(t, repo.Create(ctx, newDiscountEntry(t, tenantID, "JE-20260215-0001", february, 2000, uuid.New())))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	entries, err := repo.FindByPeriod(ctx, tenantID, "discount_allocation", from, to)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "JE-20260115-0001", entries[0].ReferenceNumber)
	assert.Len(t, entries[0].Lines, 2)
}

func TestJournalEntryRepository_FindAllocationIDsWithEntries(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewGormJournalEntryRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	journaled := uuid.New()
	unjournaled := uuid.New()
	require.NoError(t, repo.Create(ctx, newDiscountEntry(t, tenantID, "JE-20260115-0001", time.Now(), 1000, journaled)))

	linked, err := repo.FindAllocationIDsWithEntries(ctx, tenantID, []uuid.UUID{journaled, unjournaled})
	require.NoError(t, err)
	assert.Contains(t, linked, journaled)
	assert.NotContains(t, linked, unjournaled)

	t.Run("empty input returns empty set", func(t *testing.T) {
		linked, err := repo.FindAllocationIDsWithEntries(ctx, tenantID, nil)
		require.NoError(t, err)
		assert.Empty(t, linked)
	})
}

func TestJournalEntryRepository_SumDebitsByAccounts(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewGormJournalEntryRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	entryDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newDiscountEntry(t, tenantID, "JE-20260115-0001", entryDate, 3000, uuid.New())))
	require.NoError(t, repo.Create(ctx, newDiscountEntry(t, tenantID, "JE-20260115-0002", entryDate, 2000, uuid.New())))

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	t.Run("sums debit lines on discount accounts", func(t *testing.T) {
		codes := make([]string, 0)
		for code := range finance.DiscountAccountCodes() {
			codes = append(codes, code)
		}
		total, err := repo.SumDebitsByAccounts(ctx, tenantID, codes, from, to)
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(5000)), "got %s", total)
	})

	t.Run("credit lines are excluded", func(t *testing.T) {
		total, err := repo.SumDebitsByAccounts(ctx, tenantID, []string{finance.AccountSalesRevenue}, from, to)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})

	t.Run("no account codes sums to zero", func(t *testing.T) {
		total, err := repo.SumDebitsByAccounts(ctx, tenantID, nil, from, to)
		require.NoError(t, err)
		assert.True(t, total.IsZero())
	})
}

func TestChartOfAccountsRepository_FindByCode(t *testing.T) {
	db := setupJournalTestDB(t)
	repo := NewGormChartOfAccountsRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	require.NoError(t, db.Create(&finance.Account{
		ID:       uuid.New(),
		TenantID: tenantID,
		Code:     finance.AccountPromotionalDiscount,
		Name:     "Promotional Discounts",
		Type:     "contra_revenue",
		Active:   true,
	}).Error)
	require.NoError(t, db.Create(&finance.Account{
		ID:       uuid.New(),
		TenantID: tenantID,
		Code:     "9999",
		Name:     "Retired Account",
		Active:   false,
	}).Error)

	t.Run("finds active account by code", func(t *testing.T) {
		account, err := repo.FindByCode(ctx, tenantID, finance.AccountPromotionalDiscount)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, "Promotional Discounts", account.Name)
	})

	t.Run("missing account returns nil without error", func(t *testing.T) {
		account, err := repo.FindByCode(ctx, tenantID, "0000")
		require.NoError(t, err)
		assert.Nil(t, account)
	})

	t.Run("inactive account is treated as missing", func(t *testing.T) {
		account, err := repo.FindByCode(ctx, tenantID, "9999")
		require.NoError(t, err)
		assert.Nil(t, account)
	})
}
