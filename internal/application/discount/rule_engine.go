package discount

import (
	"context"
	"fmt"
	"sort"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PricingCache is the engine's short-lived result cache, keyed by the
// canonical serialization of a pricing context. Implementations are
// injected so tests can substitute an in-memory or no-op cache.
type PricingCache interface {
	Get(key string) (*PricingResult, bool)
	Set(tenantID uuid.UUID, key string, result *PricingResult)
	InvalidateTenant(tenantID uuid.UUID)
}

// NopPricingCache is a PricingCache that caches nothing
type NopPricingCache struct{}

func (NopPricingCache) Get(string) (*PricingResult, bool)     { return nil, false }
func (NopPricingCache) Set(uuid.UUID, string, *PricingResult) {}
func (NopPricingCache) InvalidateTenant(uuid.UUID)            {}

// PricingResult is the engine's primary output
type PricingResult struct {
	Success          bool                       `json:"success"`
	ApprovalRequired bool                       `json:"approval_required"`
	OriginalAmount   decimal.Decimal            `json:"original_amount"`
	FinalAmount      decimal.Decimal            `json:"final_amount"`
	TotalDiscount    decimal.Decimal            `json:"total_discount"`
	TotalPercentage  decimal.Decimal            `json:"total_percentage"`
	AppliedDiscounts []discount.AppliedDiscount `json:"applied_discounts"`
	Allocation       *discount.Allocation       `json:"allocation,omitempty"`
}

// Conflict records one same-family collision in a discount set
type Conflict struct {
	RuleType discount.RuleType `json:"rule_type"`
	Message  string            `json:"message"`
}

// ConflictReport is the result of checking a discount set for conflicts
type ConflictReport struct {
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
}

// ApprovalResult is returned by SubmitForApproval
type ApprovalResult struct {
	Success    bool      `json:"success"`
	ApprovalID uuid.UUID `json:"approval_id"`
	Status     string    `json:"status"`
}

// RuleEngine orchestrates discovery, priority ordering, conflict
// resolution, the approval gate, pricing and optional allocation creation
type RuleEngine struct {
	discovery         *DiscoveryService
	allocations       *AllocationService
	approvals         discount.ApprovalRepository
	cache             PricingCache
	approvalThreshold decimal.Decimal
	defaultMethod     discount.AllocationMethod
	logger            *zap.Logger
}

// RuleEngineOption is a functional option for configuring RuleEngine
type RuleEngineOption func(*RuleEngine)

// WithApprovalThreshold sets the tenant-configured approval threshold
// percentage (default 20)
func WithApprovalThreshold(threshold decimal.Decimal) RuleEngineOption {
	return func(e *RuleEngine) {
		if threshold.IsPositive() {
			e.approvalThreshold = threshold
		}
	}
}

// WithPricingCache injects the result cache implementation
func WithPricingCache(cache PricingCache) RuleEngineOption {
	return func(e *RuleEngine) {
		if cache != nil {
			e.cache = cache
		}
	}
}

// WithDefaultAllocationMethod sets the allocation method used when a
// pricing context does not name one
func WithDefaultAllocationMethod(method discount.AllocationMethod) RuleEngineOption {
	return func(e *RuleEngine) {
		if method.IsValid() {
			e.defaultMethod = method
		}
	}
}

// NewRuleEngine creates a new RuleEngine
func NewRuleEngine(
	discovery *DiscoveryService,
	allocations *AllocationService,
	approvals discount.ApprovalRepository,
	logger *zap.Logger,
	opts ...RuleEngineOption,
) *RuleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &RuleEngine{
		discovery:         discovery,
		allocations:       allocations,
		approvals:         approvals,
		cache:             NopPricingCache{},
		approvalThreshold: discount.DefaultApprovalThreshold,
		defaultMethod:     discount.AllocationMethodLineAmount,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateContext rejects a context missing required fields, naming the
// first missing field
func (e *RuleEngine) ValidateContext(pctx discount.PricingContext) error {
	if pctx.TenantID == uuid.Nil {
		return shared.NewDomainError("MISSING_FIELD", "businessId is required")
	}
	if pctx.Amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("MISSING_FIELD", "amount is required and must be positive")
	}
	return nil
}

// CalculateFinalPrice runs the full pricing path: discovery, priority
// ordering, same-family conflict removal, the approval gate, and pricing.
// If the context requests it, the aggregate discount is allocated across
// the context's line items.
//
// Approval-required is a normal outcome, not an error: the result comes
// back with ApprovalRequired set and no final price committed.
func (e *RuleEngine) CalculateFinalPrice(ctx context.Context, pctx discount.PricingContext) (*PricingResult, error) {
	if err := e.ValidateContext(pctx); err != nil {
		return nil, err
	}

	result, err := e.price(ctx, pctx)
	if err != nil {
		return nil, err
	}
	if result.ApprovalRequired {
		return result, nil
	}

	if pctx.CreateAllocation && result.TotalDiscount.IsPositive() && len(pctx.LineItems) > 0 {
		allocation, err := e.createAllocation(ctx, pctx, result)
		if err != nil {
			return nil, err
		}
		result.Allocation = allocation
	}
	return result, nil
}

// QuickCalculate runs the discovery and pricing path without ever
// persisting an allocation - used for UI previews
func (e *RuleEngine) QuickCalculate(ctx context.Context, pctx discount.PricingContext) (*PricingResult, error) {
	if err := e.ValidateContext(pctx); err != nil {
		return nil, err
	}
	pctx.CreateAllocation = false
	return e.price(ctx, pctx)
}

// PreviewDiscounts is an alias for QuickCalculate kept for API symmetry
func (e *RuleEngine) PreviewDiscounts(ctx context.Context, pctx discount.PricingContext) (*PricingResult, error) {
	return e.QuickCalculate(ctx, pctx)
}

// FindBestCombination returns the highest-total-discount conflict-free
// subset of the discovered candidates. Same-family conflicts make the
// priority-ordered greedy choice optimal under the fixed precedence.
func (e *RuleEngine) FindBestCombination(ctx context.Context, pctx discount.PricingContext) ([]discount.AppliedDiscount, error) {
	if err := e.ValidateContext(pctx); err != nil {
		return nil, err
	}
	candidates, err := e.discovery.DiscoverCandidates(ctx, pctx)
	if err != nil {
		return nil, err
	}
	return resolveApplicable(candidates), nil
}

// CheckConflicts reports one conflict per family with two or more members
func (e *RuleEngine) CheckConflicts(discounts []discount.AppliedDiscount) ConflictReport {
	counts := make(map[discount.RuleType]int)
	for _, d := range discounts {
		counts[d.RuleType]++
	}

	report := ConflictReport{}
	// iterate in priority order for a deterministic conflict list
	for _, rt := range []discount.RuleType{
		discount.RuleTypeEarlyPayment,
		discount.RuleTypeVolume,
		discount.RuleTypeCategory,
		discount.RuleTypePromotional,
		discount.RuleTypePricingRule,
	} {
		if counts[rt] >= 2 {
			report.Conflicts = append(report.Conflicts, Conflict{
				RuleType: rt,
				Message:  fmt.Sprintf("%d discounts from the %s family cannot be combined", counts[rt], rt),
			})
		}
	}
	report.HasConflicts = len(report.Conflicts) > 0
	return report
}

// CheckApprovalRequired sums the effective percentage of the discount set
// against the tenant's configured threshold
func (e *RuleEngine) CheckApprovalRequired(discounts []discount.AppliedDiscount, pctx discount.PricingContext) (bool, decimal.Decimal) {
	total := decimal.Zero
	for _, d := range discounts {
		total = total.Add(d.DiscountAmount)
	}
	pct := discount.EffectivePercentage(total, pctx.Amount)
	return discount.RequiresApproval(pct, e.approvalThreshold), pct
}

// SubmitForApproval creates a pending approval request for the context's
// proposed discounts, referencing the real transaction
func (e *RuleEngine) SubmitForApproval(ctx context.Context, pctx discount.PricingContext, requestedBy uuid.UUID) (*ApprovalResult, error) {
	if err := e.ValidateContext(pctx); err != nil {
		return nil, err
	}
	candidates, err := e.discovery.DiscoverCandidates(ctx, pctx)
	if err != nil {
		return nil, err
	}
	applicable := resolveApplicable(candidates)
	if len(applicable) == 0 {
		return nil, shared.NewDomainError("NO_DISCOUNTS", "No applicable discounts to submit for approval")
	}

	proposed := make([]discount.ProposedDiscount, len(applicable))
	total := decimal.Zero
	for i, d := range applicable {
		proposed[i] = discount.ProposedDiscount{
			RuleID:         d.RuleID,
			RuleType:       d.RuleType,
			Name:           d.Name,
			DiscountAmount: d.DiscountAmount,
			Percentage:     d.Percentage,
		}
		total = total.Add(d.DiscountAmount)
	}

	request, err := discount.NewApprovalRequest(
		pctx.TenantID,
		pctx.POSTransactionID, pctx.InvoiceID,
		proposed,
		total,
		discount.EffectivePercentage(total, pctx.Amount),
		requestedBy,
	)
	if err != nil {
		return nil, err
	}
	if err := e.approvals.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("persisting approval request: %w", err)
	}

	e.logger.Info("discount approval requested",
		zap.String("tenant_id", pctx.TenantID.String()),
		zap.String("approval_id", request.ID.String()),
		zap.String("total_discount", total.String()))

	return &ApprovalResult{
		Success:    true,
		ApprovalID: request.ID,
		Status:     request.Status.String(),
	}, nil
}

// DecideApproval applies an approve/reject decision to a pending request
func (e *RuleEngine) DecideApproval(ctx context.Context, tenantID, approvalID, decidedBy uuid.UUID, approve bool, note string) (*discount.ApprovalRequest, error) {
	request, err := e.approvals.FindByIDForTenant(ctx, tenantID, approvalID)
	if err != nil {
		return nil, err
	}
	if approve {
		err = request.Approve(decidedBy, note)
	} else {
		err = request.Reject(decidedBy, note)
	}
	if err != nil {
		return nil, err
	}
	if err := e.approvals.SaveWithLock(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// ListPendingApprovals returns the tenant's undecided approval requests,
// oldest first
func (e *RuleEngine) ListPendingApprovals(ctx context.Context, tenantID uuid.UUID) ([]discount.ApprovalRequest, error) {
	return e.approvals.FindPendingForTenant(ctx, tenantID)
}

// InvalidateCache drops every cached pricing result for the tenant.
// Called whenever one of the tenant's rules changes.
func (e *RuleEngine) InvalidateCache(tenantID uuid.UUID) {
	e.cache.InvalidateTenant(tenantID)
}

// price is the shared discovery -> resolution -> approval-gate -> pricing
// path behind the public operations. Results are cached per canonical
// context key; contexts requesting persistence bypass the cache.
func (e *RuleEngine) price(ctx context.Context, pctx discount.PricingContext) (*PricingResult, error) {
	cacheable := !pctx.CreateAllocation
	key := pctx.CacheKey()
	if cacheable {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}

	candidates, err := e.discovery.DiscoverCandidates(ctx, pctx)
	if err != nil {
		return nil, err
	}
	applicable := resolveApplicable(candidates)

	totalDiscount := decimal.Zero
	for _, d := range applicable {
		totalDiscount = totalDiscount.Add(d.DiscountAmount)
	}
	totalPct := discount.EffectivePercentage(totalDiscount, pctx.Amount)

	if !pctx.PreApproved && discount.RequiresApproval(totalPct, e.approvalThreshold) {
		return &PricingResult{
			Success:          false,
			ApprovalRequired: true,
			OriginalAmount:   pctx.Amount,
			TotalDiscount:    totalDiscount,
			TotalPercentage:  totalPct,
			AppliedDiscounts: applicable,
		}, nil
	}

	finalAmount := pctx.Amount.Sub(totalDiscount)
	if finalAmount.IsNegative() {
		finalAmount = decimal.Zero
	}

	result := &PricingResult{
		Success:          true,
		OriginalAmount:   pctx.Amount,
		FinalAmount:      finalAmount,
		TotalDiscount:    totalDiscount,
		TotalPercentage:  totalPct,
		AppliedDiscounts: applicable,
	}
	if cacheable {
		e.cache.Set(pctx.TenantID, key, result)
	}
	return result, nil
}

// createAllocation hands the aggregate discount and the context's line
// items to the allocation service
func (e *RuleEngine) createAllocation(ctx context.Context, pctx discount.PricingContext, result *PricingResult) (*discount.Allocation, error) {
	method := pctx.AllocationMethod
	if method == "" {
		method = e.defaultMethod
	}

	// the highest-priority applied discount is recorded as the
	// allocation's discount source
	lead := result.AppliedDiscounts[0]
	req := CreateAllocationRequest{
		POSTransactionID: pctx.POSTransactionID,
		InvoiceID:        pctx.InvoiceID,
		RuleType:         lead.RuleType,
		TotalDiscount:    result.TotalDiscount,
		Method:           method,
		LineItems:        pctx.LineItems,
	}
	if lead.RuleType == discount.RuleTypePromotional {
		req.PromotionalRuleID = &lead.RuleID
	} else {
		req.DiscountRuleID = &lead.RuleID
	}

	userID := uuid.Nil
	if pctx.CustomerID != nil {
		userID = *pctx.CustomerID
	}
	return e.allocations.CreateAllocation(ctx, req, userID, pctx.TenantID)
}

// resolveApplicable orders candidates by family precedence and greedily
// keeps every candidate that can stack with the already selected set.
// Same-family duplicates drop out because same-family discounts never
// stack; the first (highest-priority) family member survives.
func resolveApplicable(candidates []discount.AppliedDiscount) []discount.AppliedDiscount {
	sorted := make([]discount.AppliedDiscount, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		// within a family the larger discount wins the slot
		return sorted[i].DiscountAmount.GreaterThan(sorted[j].DiscountAmount)
	})

	var selected []discount.AppliedDiscount
	for _, c := range sorted {
		if discount.CanStack(selected, c) {
			selected = append(selected, c)
		}
	}
	return selected
}
