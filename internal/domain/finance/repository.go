package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalEntryRepository defines the persistence surface for journal
// entries. Create persists the entry and its lines atomically.
type JournalEntryRepository interface {
	Create(ctx context.Context, entry *JournalEntry) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	FindByPeriod(ctx context.Context, tenantID uuid.UUID, sourceType string, from, to time.Time) ([]JournalEntry, error)
	// FindAllocationIDsWithEntries returns the subset of the given
	// allocation ids that have at least one journal entry referencing them
	FindAllocationIDsWithEntries(ctx context.Context, tenantID uuid.UUID, allocationIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
	// SumDebitsByAccounts sums debit journal lines on the given account
	// codes over the period
	SumDebitsByAccounts(ctx context.Context, tenantID uuid.UUID, accountCodes []string, from, to time.Time) (decimal.Decimal, error)
	CountForTenantOn(ctx context.Context, tenantID uuid.UUID, day time.Time) (int64, error)
}

// ChartOfAccountsRepository looks up chart-of-accounts rows by code
type ChartOfAccountsRepository interface {
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Account, error)
}
