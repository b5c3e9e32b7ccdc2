package discount

import (
	"context"
	"fmt"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Promo validation rejection reasons
const (
	PromoReasonNotFound         = "Promo code not found"
	PromoReasonInactive         = "Promo code is not active"
	PromoReasonExpired          = "Promo code is expired or not yet valid"
	PromoReasonBelowMinPurchase = "Purchase amount is below the promo minimum"
	PromoReasonUsageExhausted   = "Promo code usage limit reached"
	PromoReasonCustomerLimit    = "Customer has already used this promo code"
)

// PromoValidation is the structured result of validating a promo code.
// An invalid code is a normal outcome the caller branches on, not an error.
type PromoValidation struct {
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Rule   *discount.Rule `json:"-"`
}

// DiscoveryService aggregates the five rule-family stores and returns the
// unordered candidate set for a pricing context. Validity and
// minimum-purchase filtering are centralized here rather than in the stores.
type DiscoveryService struct {
	promotional  discount.PromotionalRuleStore
	volume       discount.RuleStore
	earlyPayment discount.RuleStore
	category     discount.RuleStore
	pricingRule  discount.RuleStore
	logger       *zap.Logger
}

// NewDiscoveryService creates a new DiscoveryService
func NewDiscoveryService(
	promotional discount.PromotionalRuleStore,
	volume discount.RuleStore,
	earlyPayment discount.RuleStore,
	category discount.RuleStore,
	pricingRule discount.RuleStore,
	logger *zap.Logger,
) *DiscoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryService{
		promotional:  promotional,
		volume:       volume,
		earlyPayment: earlyPayment,
		category:     category,
		pricingRule:  pricingRule,
		logger:       logger,
	}
}

// DiscoverCandidates returns every discount applicable to the context,
// annotated with the computed discount amount. The set is unordered;
// prioritization and conflict resolution belong to the rule engine.
func (s *DiscoveryService) DiscoverCandidates(ctx context.Context, pctx discount.PricingContext) ([]discount.AppliedDiscount, error) {
	filters := filtersFromContext(pctx)
	var candidates []discount.AppliedDiscount

	// Promotional rules are code-gated and never auto-apply: they enter
	// only through the validated promo-code path below, which is the one
	// place the usage caps are checked.
	for _, store := range []discount.RuleStore{s.earlyPayment, s.volume, s.category, s.pricingRule} {
		rules, err := store.FindActive(ctx, pctx.TenantID, filters)
		if err != nil {
			return nil, fmt.Errorf("discovering %s rules: %w", store.Family(), err)
		}
		applicable := s.filterApplicable(rules, pctx)
		if store.Family() == discount.RuleTypeVolume {
			applicable = bestVolumeTier(applicable, pctx)
		}
		for _, r := range applicable {
			candidates = append(candidates, toAppliedDiscount(r, pctx.Amount))
		}
	}

	// A promo code names exactly one promotional rule; invalid codes are
	// silently skipped here and reported through ValidatePromoCode on the
	// explicit path.
	if pctx.PromoCode != "" {
		validation, err := s.ValidatePromoCode(ctx, pctx)
		if err != nil {
			return nil, err
		}
		if validation.Valid {
			candidates = append(candidates, toAppliedDiscount(*validation.Rule, pctx.Amount))
		} else {
			s.logger.Debug("promo code rejected",
				zap.String("code", pctx.PromoCode),
				zap.String("reason", validation.Reason))
		}
	}

	return candidates, nil
}

// ValidatePromoCode checks a promo code against validity, minimum purchase
// and usage caps, returning a structured result rather than an error for
// business rejections.
func (s *DiscoveryService) ValidatePromoCode(ctx context.Context, pctx discount.PricingContext) (PromoValidation, error) {
	rule, err := s.promotional.FindByCode(ctx, pctx.TenantID, pctx.PromoCode)
	if err != nil {
		return PromoValidation{}, fmt.Errorf("looking up promo code: %w", err)
	}
	if rule == nil {
		return PromoValidation{Valid: false, Reason: PromoReasonNotFound}, nil
	}
	if !rule.Active {
		return PromoValidation{Valid: false, Reason: PromoReasonInactive}, nil
	}
	if !rule.IsValidOn(pctx.TransactionDate) {
		return PromoValidation{Valid: false, Reason: PromoReasonExpired}, nil
	}
	if !rule.MeetsMinPurchase(pctx.Amount) {
		return PromoValidation{Valid: false, Reason: PromoReasonBelowMinPurchase}, nil
	}
	if rule.Promo != nil {
		if rule.Promo.MaxUses != nil && rule.Promo.UsedCount >= *rule.Promo.MaxUses {
			return PromoValidation{Valid: false, Reason: PromoReasonUsageExhausted}, nil
		}
		if rule.Promo.PerCustomerLimit != nil && pctx.CustomerID != nil {
			uses, err := s.promotional.CountCustomerUses(ctx, rule.ID, *pctx.CustomerID)
			if err != nil {
				return PromoValidation{}, fmt.Errorf("counting customer promo uses: %w", err)
			}
			if uses >= *rule.Promo.PerCustomerLimit {
				return PromoValidation{Valid: false, Reason: PromoReasonCustomerLimit}, nil
			}
		}
	}
	return PromoValidation{Valid: true, Rule: rule}, nil
}

// RecordPromoUse bumps the usage counter after a priced transaction commits.
// Counting is eventual; concurrent uses may briefly overshoot the cap.
func (s *DiscoveryService) RecordPromoUse(ctx context.Context, ruleID uuid.UUID) error {
	return s.promotional.IncrementUsage(ctx, ruleID)
}

// filterApplicable applies the centralized validity and minimum-purchase
// filters to raw store candidates
func (s *DiscoveryService) filterApplicable(rules []discount.Rule, pctx discount.PricingContext) []discount.Rule {
	var out []discount.Rule
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if !r.IsValidOn(pctx.TransactionDate) {
			continue
		}
		if !r.MeetsMinPurchase(pctx.Amount) {
			continue
		}
		if r.Type == discount.RuleTypeVolume && r.Volume != nil {
			if r.Volume.MinQuantity.IsPositive() && pctx.Quantity.LessThan(r.Volume.MinQuantity) {
				continue
			}
			if r.Volume.MinAmount.IsPositive() && pctx.Amount.LessThan(r.Volume.MinAmount) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// bestVolumeTier keeps only the single best-qualifying volume tier:
// the one granting the highest discount for this context
func bestVolumeTier(rules []discount.Rule, pctx discount.PricingContext) []discount.Rule {
	if len(rules) <= 1 {
		return rules
	}
	best := rules[0]
	bestAmount := discount.CalculateDiscount(pctx.Amount, best.DiscountType, best.DiscountValue)
	for _, r := range rules[1:] {
		amount := discount.CalculateDiscount(pctx.Amount, r.DiscountType, r.DiscountValue)
		if amount.GreaterThan(bestAmount) {
			best = r
			bestAmount = amount
		}
	}
	return []discount.Rule{best}
}

func toAppliedDiscount(r discount.Rule, amount decimal.Decimal) discount.AppliedDiscount {
	discountAmount := discount.CalculateDiscount(amount, r.DiscountType, r.DiscountValue)
	return discount.AppliedDiscount{
		RuleID:         r.ID,
		RuleType:       r.Type,
		Code:           r.Code,
		Name:           r.Name,
		DiscountType:   r.DiscountType,
		DiscountValue:  r.DiscountValue,
		DiscountAmount: discountAmount,
		Percentage:     discount.EffectivePercentage(discountAmount, amount),
		Stackable:      r.Stackable,
		Priority:       r.Type.Priority(),
	}
}

func filtersFromContext(pctx discount.PricingContext) discount.RuleFilters {
	return discount.RuleFilters{
		CustomerID:       pctx.CustomerID,
		CustomerCategory: pctx.CustomerCategory,
		ItemID:           pctx.ItemID,
		CategoryID:       pctx.CategoryID,
		ServiceID:        pctx.ServiceID,
		Quantity:         pctx.Quantity,
		Amount:           pctx.Amount,
	}
}
