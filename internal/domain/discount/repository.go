package discount

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleFilters carries the scoping attributes a rule store matches against.
// Zero-valued fields are not filtered on.
type RuleFilters struct {
	CustomerID       *uuid.UUID
	CustomerCategory string
	ItemID           *uuid.UUID
	CategoryID       *uuid.UUID
	ServiceID        *uuid.UUID
	Quantity         decimal.Decimal
	Amount           decimal.Decimal
}

// RuleStore is one rule family's query surface. Each of the five families
// has its own store; FindActive returns raw candidates without validity
// filtering, which is centralized in the discovery service.
type RuleStore interface {
	Family() RuleType
	FindActive(ctx context.Context, tenantID uuid.UUID, filters RuleFilters) ([]Rule, error)
}

// PromotionalRuleStore adds promo-code specific lookups to the base store
type PromotionalRuleStore interface {
	RuleStore
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Rule, error)
	CountCustomerUses(ctx context.Context, ruleID, customerID uuid.UUID) (int, error)
	IncrementUsage(ctx context.Context, ruleID uuid.UUID) error
}

// AllocationRepository defines the persistence surface for discount
// allocations. Create persists the header and its lines atomically.
type AllocationRepository interface {
	Create(ctx context.Context, allocation *Allocation) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Allocation, error)
	FindByTransaction(ctx context.Context, tenantID, transactionID uuid.UUID, kind TransactionKind) ([]Allocation, error)
	FindByDateRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]Allocation, error)
	FindByStatusUpTo(ctx context.Context, tenantID uuid.UUID, status AllocationStatus, asOf time.Time) ([]Allocation, error)
	// SaveWithLock saves with an optimistic version check, returning
	// shared.ErrConcurrencyConflict on a stale write
	SaveWithLock(ctx context.Context, allocation *Allocation) error
	CountForTenantOn(ctx context.Context, tenantID uuid.UUID, day time.Time) (int64, error)
}

// ApprovalRepository defines the persistence surface for approval requests
type ApprovalRepository interface {
	Create(ctx context.Context, request *ApprovalRequest) error
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ApprovalRequest, error)
	FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) ([]ApprovalRequest, error)
	SaveWithLock(ctx context.Context, request *ApprovalRequest) error
}

// TransactionStore reads POS tickets and invoices and updates their
// discount totals. The transactions themselves are owned elsewhere.
type TransactionStore interface {
	FindHeader(ctx context.Context, tenantID, id uuid.UUID, kind TransactionKind) (*TransactionHeader, error)
	// FindDiscountedWithoutAllocation lists transactions carrying a
	// non-zero discount total that have no allocation row - the
	// data-integrity sweep behind GetUnallocatedDiscounts
	FindDiscountedWithoutAllocation(ctx context.Context, tenantID uuid.UUID) ([]TransactionHeader, error)
	UpdateDiscountTotal(ctx context.Context, tenantID, id uuid.UUID, kind TransactionKind, discountTotal decimal.Decimal) error
}
