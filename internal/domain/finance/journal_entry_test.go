package finance

import (
	"testing"
	"time"

	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func balancedLines(amount decimal.Decimal) []JournalLine {
	return []JournalLine{
		{AccountCode: AccountPromotionalDiscount, LineType: LineTypeDebit, Amount: amount},
		{AccountCode: AccountSalesRevenue, LineType: LineTypeCredit, Amount: amount},
	}
}

func TestNewJournalEntry(t *testing.T) {
	tenantID := uuid.New()
	entryDate := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	t.Run("creates balanced entry", func(t *testing.T) {
		amount := decimal.NewFromInt(50000)
		entry, err := NewJournalEntry(tenantID, "JE-2026-0001", entryDate,
			"Promotional discount on POS-1001", balancedLines(amount), uuid.New())
		require.NoError(t, err)

		assert.True(t, entry.IsBalanced())
		assert.True(t, entry.TotalDebit.Equal(amount))
		assert.True(t, entry.TotalCredit.Equal(amount))
		require.Len(t, entry.Lines, 2)
		for _, l := range entry.Lines {
			assert.Equal(t, entry.ID, l.EntryID)
			assert.NotEqual(t, uuid.Nil, l.ID)
		}
	})

	t.Run("rejects unbalanced entry before persistence", func(t *testing.T) {
		lines := []JournalLine{
			{AccountCode: AccountVolumeDiscount, LineType: LineTypeDebit, Amount: decimal.NewFromInt(100)},
			{AccountCode: AccountSalesRevenue, LineType: LineTypeCredit, Amount: decimal.NewFromInt(90)},
		}
		_, err := NewJournalEntry(tenantID, "JE-X", entryDate, "", lines, uuid.New())
		assert.ErrorIs(t, err, shared.ErrUnbalancedEntry)
	})

	t.Run("rejects single-line entry", func(t *testing.T) {
		lines := []JournalLine{
			{AccountCode: AccountVolumeDiscount, LineType: LineTypeDebit, Amount: decimal.NewFromInt(100)},
		}
		_, err := NewJournalEntry(tenantID, "JE-X", entryDate, "", lines, uuid.New())
		assert.Error(t, err)
	})

	t.Run("rejects non-positive line amount", func(t *testing.T) {
		lines := []JournalLine{
			{AccountCode: AccountVolumeDiscount, LineType: LineTypeDebit, Amount: decimal.Zero},
			{AccountCode: AccountSalesRevenue, LineType: LineTypeCredit, Amount: decimal.Zero},
		}
		_, err := NewJournalEntry(tenantID, "JE-X", entryDate, "", lines, uuid.New())
		assert.Error(t, err)
	})

	t.Run("rejects unknown line type", func(t *testing.T) {
		lines := []JournalLine{
			{AccountCode: AccountVolumeDiscount, LineType: LineType("sideways"), Amount: decimal.NewFromInt(10)},
			{AccountCode: AccountSalesRevenue, LineType: LineTypeCredit, Amount: decimal.NewFromInt(10)},
		}
		_, err := NewJournalEntry(tenantID, "JE-X", entryDate, "", lines, uuid.New())
		assert.Error(t, err)
	})

	t.Run("rejects empty reference number", func(t *testing.T) {
		_, err := NewJournalEntry(tenantID, "", entryDate, "", balancedLines(decimal.NewFromInt(10)), uuid.New())
		assert.Error(t, err)
	})

	t.Run("multi-line entry balances across accounts", func(t *testing.T) {
		lines := []JournalLine{
			{AccountCode: AccountPromotionalDiscount, LineType: LineTypeDebit, Amount: decimal.NewFromInt(30)},
			{AccountCode: AccountVolumeDiscount, LineType: LineTypeDebit, Amount: decimal.NewFromInt(70)},
			{AccountCode: AccountSalesRevenue, LineType: LineTypeCredit, Amount: decimal.NewFromInt(100)},
		}
		entry, err := NewJournalEntry(tenantID, "JE-2026-0002", entryDate, "Bulk discounts", lines, uuid.New())
		require.NoError(t, err)
		assert.True(t, entry.TotalDebit.Equal(decimal.NewFromInt(100)))
		assert.True(t, entry.TotalCredit.Equal(decimal.NewFromInt(100)))
	})
}

func TestDebitTotalForAccounts(t *testing.T) {
	lines := []JournalLine{
		{AccountCode: AccountPromotionalDiscount, LineType: LineTypeDebit, Amount: decimal.NewFromInt(30)},
		{AccountCode: AccountVolumeDiscount, LineType: LineTypeDebit, Amount: decimal.NewFromInt(70)},
		{AccountCode: AccountSalesRevenue, LineType: LineTypeCredit, Amount: decimal.NewFromInt(100)},
	}
	entry, err := NewJournalEntry(uuid.New(), "JE-1", time.Now(), "", lines, uuid.New())
	require.NoError(t, err)

	got := entry.DebitTotalForAccounts(DiscountAccountCodes())
	assert.True(t, got.Equal(decimal.NewFromInt(100)), "credit lines and foreign accounts are excluded")

	only := map[string]struct{}{AccountVolumeDiscount: {}}
	assert.True(t, entry.DebitTotalForAccounts(only).Equal(decimal.NewFromInt(70)))
}
