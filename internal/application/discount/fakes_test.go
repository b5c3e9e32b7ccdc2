package discount

import (
	"context"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeRuleStore serves a fixed rule slice for one family
type fakeRuleStore struct {
	family discount.RuleType
	rules  []discount.Rule
	err    error
}

func (s *fakeRuleStore) Family() discount.RuleType { return s.family }

func (s *fakeRuleStore) FindActive(_ context.Context, tenantID uuid.UUID, _ discount.RuleFilters) ([]discount.Rule, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []discount.Rule
	for _, r := range s.rules {
		if r.TenantID == tenantID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakePromoStore adds promo-code lookups and usage counting on top of the
// base fake
type fakePromoStore struct {
	fakeRuleStore
	usesByCustomer map[uuid.UUID]int
	incremented    []uuid.UUID
}

func newFakePromoStore(rules ...discount.Rule) *fakePromoStore {
	return &fakePromoStore{
		fakeRuleStore:  fakeRuleStore{family: discount.RuleTypePromotional, rules: rules},
		usesByCustomer: map[uuid.UUID]int{},
	}
}

func (s *fakePromoStore) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (*discount.Rule, error) {
	for i := range s.rules {
		if s.rules[i].TenantID == tenantID && s.rules[i].Code == code {
			return &s.rules[i], nil
		}
	}
	return nil, nil
}

func (s *fakePromoStore) CountCustomerUses(_ context.Context, _, customerID uuid.UUID) (int, error) {
	return s.usesByCustomer[customerID], nil
}

func (s *fakePromoStore) IncrementUsage(_ context.Context, ruleID uuid.UUID) error {
	s.incremented = append(s.incremented, ruleID)
	return nil
}

// fakeAllocationRepo stores allocations in a map keyed by id
type fakeAllocationRepo struct {
	byID    map[uuid.UUID]*discount.Allocation
	created []*discount.Allocation
}

func newFakeAllocationRepo() *fakeAllocationRepo {
	return &fakeAllocationRepo{byID: map[uuid.UUID]*discount.Allocation{}}
}

func (r *fakeAllocationRepo) Create(_ context.Context, a *discount.Allocation) error {
	clone := *a
	r.byID[a.ID] = &clone
	r.created = append(r.created, a)
	return nil
}

func (r *fakeAllocationRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*discount.Allocation, error) {
	a, ok := r.byID[id]
	if !ok || a.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (r *fakeAllocationRepo) FindByTransaction(_ context.Context, tenantID, transactionID uuid.UUID, kind discount.TransactionKind) ([]discount.Allocation, error) {
	var out []discount.Allocation
	for _, a := range r.byID {
		if a.TenantID != tenantID {
			continue
		}
		id, k := a.TransactionRef()
		if id == transactionID && k == kind {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) FindByDateRange(_ context.Context, tenantID uuid.UUID, from, to time.Time) ([]discount.Allocation, error) {
	var out []discount.Allocation
	for _, a := range r.byID {
		if a.TenantID == tenantID && !a.CreatedAt.Before(from) && !a.CreatedAt.After(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) FindByStatusUpTo(_ context.Context, tenantID uuid.UUID, status discount.AllocationStatus, asOf time.Time) ([]discount.Allocation, error) {
	var out []discount.Allocation
	for _, a := range r.byID {
		if a.TenantID == tenantID && a.Status == status && !a.CreatedAt.After(asOf) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAllocationRepo) SaveWithLock(_ context.Context, a *discount.Allocation) error {
	stored, ok := r.byID[a.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != a.Version {
		return shared.ErrConcurrencyConflict
	}
	a.IncrementVersion()
	clone := *a
	r.byID[a.ID] = &clone
	return nil
}

func (r *fakeAllocationRepo) CountForTenantOn(_ context.Context, tenantID uuid.UUID, _ time.Time) (int64, error) {
	var n int64
	for _, a := range r.byID {
		if a.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// fakeApprovalRepo stores approval requests in memory
type fakeApprovalRepo struct {
	byID map[uuid.UUID]*discount.ApprovalRequest
}

func newFakeApprovalRepo() *fakeApprovalRepo {
	return &fakeApprovalRepo{byID: map[uuid.UUID]*discount.ApprovalRequest{}}
}

func (r *fakeApprovalRepo) Create(_ context.Context, req *discount.ApprovalRequest) error {
	clone := *req
	r.byID[req.ID] = &clone
	return nil
}

func (r *fakeApprovalRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*discount.ApprovalRequest, error) {
	req, ok := r.byID[id]
	if !ok || req.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (r *fakeApprovalRepo) FindPendingForTenant(_ context.Context, tenantID uuid.UUID) ([]discount.ApprovalRequest, error) {
	var out []discount.ApprovalRequest
	for _, req := range r.byID {
		if req.TenantID == tenantID && req.Status == discount.ApprovalStatusPending {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *fakeApprovalRepo) SaveWithLock(_ context.Context, req *discount.ApprovalRequest) error {
	stored, ok := r.byID[req.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != req.Version {
		return shared.ErrConcurrencyConflict
	}
	req.IncrementVersion()
	clone := *req
	r.byID[req.ID] = &clone
	return nil
}

// fakeTransactionStore serves fixed headers and records discount-total writes
type fakeTransactionStore struct {
	headers        map[uuid.UUID]*discount.TransactionHeader
	writtenTotals  map[uuid.UUID]decimal.Decimal
	unallocated    []discount.TransactionHeader
}

func newFakeTransactionStore(headers ...*discount.TransactionHeader) *fakeTransactionStore {
	s := &fakeTransactionStore{
		headers:       map[uuid.UUID]*discount.TransactionHeader{},
		writtenTotals: map[uuid.UUID]decimal.Decimal{},
	}
	for _, h := range headers {
		s.headers[h.ID] = h
	}
	return s
}

func (s *fakeTransactionStore) FindHeader(_ context.Context, tenantID, id uuid.UUID, _ discount.TransactionKind) (*discount.TransactionHeader, error) {
	h, ok := s.headers[id]
	if !ok || h.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return h, nil
}

func (s *fakeTransactionStore) FindDiscountedWithoutAllocation(_ context.Context, tenantID uuid.UUID) ([]discount.TransactionHeader, error) {
	var out []discount.TransactionHeader
	for _, h := range s.unallocated {
		if h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeTransactionStore) UpdateDiscountTotal(_ context.Context, _, id uuid.UUID, _ discount.TransactionKind, total decimal.Decimal) error {
	s.writtenTotals[id] = total
	return nil
}

// memoryCache is a minimal PricingCache for engine tests
type memoryCache struct {
	entries map[string]*PricingResult
	tenants map[string]uuid.UUID
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*PricingResult{}, tenants: map[string]uuid.UUID{}}
}

func (c *memoryCache) Get(key string) (*PricingResult, bool) {
	r, ok := c.entries[key]
	return r, ok
}

func (c *memoryCache) Set(tenantID uuid.UUID, key string, result *PricingResult) {
	c.entries[key] = result
	c.tenants[key] = tenantID
}

func (c *memoryCache) InvalidateTenant(tenantID uuid.UUID) {
	for key, tid := range c.tenants {
		if tid == tenantID {
			delete(c.entries, key)
			delete(c.tenants, key)
		}
	}
}

func emptyStores() (*fakePromoStore, *fakeRuleStore, *fakeRuleStore, *fakeRuleStore, *fakeRuleStore) {
	return newFakePromoStore(),
		&fakeRuleStore{family: discount.RuleTypeVolume},
		&fakeRuleStore{family: discount.RuleTypeEarlyPayment},
		&fakeRuleStore{family: discount.RuleTypeCategory},
		&fakeRuleStore{family: discount.RuleTypePricingRule}
}
