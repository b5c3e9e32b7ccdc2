package discount

import (
	"time"

	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType identifies the discount rule family a rule belongs to.
// The set of families is closed: every rule in the system is exactly one of these.
type RuleType string

const (
	RuleTypePromotional  RuleType = "PROMOTIONAL"
	RuleTypeVolume       RuleType = "VOLUME"
	RuleTypeEarlyPayment RuleType = "EARLY_PAYMENT"
	RuleTypeCategory     RuleType = "CATEGORY"
	RuleTypePricingRule  RuleType = "PRICING_RULE"
)

// IsValid checks if the rule type is one of the known families
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypePromotional, RuleTypeVolume, RuleTypeEarlyPayment, RuleTypeCategory, RuleTypePricingRule:
		return true
	}
	return false
}

// String returns the string representation of the rule type
func (t RuleType) String() string {
	return string(t)
}

// Priority returns the fixed precedence rank of the family.
// Lower rank wins: EARLY_PAYMENT > VOLUME > CATEGORY > PROMOTIONAL > PRICING_RULE.
func (t RuleType) Priority() int {
	switch t {
	case RuleTypeEarlyPayment:
		return 1
	case RuleTypeVolume:
		return 2
	case RuleTypeCategory:
		return 3
	case RuleTypePromotional:
		return 4
	case RuleTypePricingRule:
		return 5
	}
	return 99
}

// DiscountType determines how a rule's value is interpreted
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

// IsValid checks if the discount type is valid
func (t DiscountType) IsValid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

// VolumeTier carries the volume-family attributes of a rule.
// A rule qualifies when the context meets MinQuantity and/or MinAmount.
type VolumeTier struct {
	MinQuantity decimal.Decimal
	MinAmount   decimal.Decimal
	AppliesTo   string // "all", "item" or "category"
}

// EarlyPaymentTerms carries the early-payment-family attributes of a rule,
// e.g. 2/10 net 30: DiscountDays=10, NetDays=30.
type EarlyPaymentTerms struct {
	DiscountDays int
	NetDays      int
}

// CategoryScope carries the category-family attributes of a rule
type CategoryScope struct {
	TargetCategoryID uuid.UUID
}

// PromoTerms carries the promotional-family attributes of a rule
type PromoTerms struct {
	MaxUses          *int
	PerCustomerLimit *int
	UsedCount        int
}

// PricingRuleScope carries the pricing-rule-family attributes of a rule
type PricingRuleScope struct {
	ItemID           *uuid.UUID
	ServiceID        *uuid.UUID
	CustomerCategory string
}

// Rule is a discount rule drawn from one of the five families.
// The family-specific attributes live in exactly one of the variant
// pointers matching Type; the family constructors below enforce this.
type Rule struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Code          string
	Name          string
	Type          RuleType
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	ValidFrom     *time.Time
	ValidTo       *time.Time
	MinPurchase   *decimal.Decimal
	Stackable     bool
	Active        bool

	Volume       *VolumeTier
	EarlyPayment *EarlyPaymentTerms
	Category     *CategoryScope
	Promo        *PromoTerms
	PricingRule  *PricingRuleScope
}

// newRule builds the common rule header shared by all family constructors
func newRule(tenantID uuid.UUID, code, name string, ruleType RuleType, discountType DiscountType, value decimal.Decimal) (Rule, error) {
	if tenantID == uuid.Nil {
		return Rule{}, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !discountType.IsValid() {
		return Rule{}, shared.NewDomainError("INVALID_DISCOUNT_TYPE", "Discount type must be PERCENTAGE or FIXED")
	}
	if value.IsNegative() {
		return Rule{}, shared.NewDomainError("INVALID_DISCOUNT_VALUE", "Discount value cannot be negative")
	}
	return Rule{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Code:          code,
		Name:          name,
		Type:          ruleType,
		DiscountType:  discountType,
		DiscountValue: value,
		Active:        true,
	}, nil
}

// NewPromotionalRule creates a promotional-family rule
func NewPromotionalRule(tenantID uuid.UUID, code, name string, discountType DiscountType, value decimal.Decimal, terms PromoTerms) (Rule, error) {
	r, err := newRule(tenantID, code, name, RuleTypePromotional, discountType, value)
	if err != nil {
		return Rule{}, err
	}
	r.Promo = &terms
	return r, nil
}

// NewVolumeRule creates a volume-family rule
func NewVolumeRule(tenantID uuid.UUID, name string, discountType DiscountType, value decimal.Decimal, tier VolumeTier) (Rule, error) {
	r, err := newRule(tenantID, "", name, RuleTypeVolume, discountType, value)
	if err != nil {
		return Rule{}, err
	}
	r.Volume = &tier
	return r, nil
}

// NewEarlyPaymentRule creates an early-payment-family rule
func NewEarlyPaymentRule(tenantID uuid.UUID, name string, discountType DiscountType, value decimal.Decimal, terms EarlyPaymentTerms) (Rule, error) {
	r, err := newRule(tenantID, "", name, RuleTypeEarlyPayment, discountType, value)
	if err != nil {
		return Rule{}, err
	}
	if terms.DiscountDays <= 0 || terms.NetDays < terms.DiscountDays {
		return Rule{}, shared.NewDomainError("INVALID_PAYMENT_TERMS", "Discount days must be positive and not exceed net days")
	}
	r.EarlyPayment = &terms
	return r, nil
}

// NewCategoryRule creates a category-family rule
func NewCategoryRule(tenantID uuid.UUID, name string, discountType DiscountType, value decimal.Decimal, scope CategoryScope) (Rule, error) {
	r, err := newRule(tenantID, "", name, RuleTypeCategory, discountType, value)
	if err != nil {
		return Rule{}, err
	}
	if scope.TargetCategoryID == uuid.Nil {
		return Rule{}, shared.NewDomainError("INVALID_CATEGORY", "Target category cannot be empty")
	}
	r.Category = &scope
	return r, nil
}

// NewPricingRule creates a pricing-rule-family rule
func NewPricingRule(tenantID uuid.UUID, name string, discountType DiscountType, value decimal.Decimal, scope PricingRuleScope) (Rule, error) {
	r, err := newRule(tenantID, "", name, RuleTypePricingRule, discountType, value)
	if err != nil {
		return Rule{}, err
	}
	r.PricingRule = &scope
	return r, nil
}

// SetValidity sets the validity window of the rule.
// Nil bounds are unbounded on that side.
func (r *Rule) SetValidity(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return shared.NewDomainError("INVALID_VALIDITY", "valid_to cannot be before valid_from")
	}
	r.ValidFrom = from
	r.ValidTo = to
	return nil
}

// SetMinPurchase sets the minimum purchase amount required by the rule
func (r *Rule) SetMinPurchase(min decimal.Decimal) error {
	if min.IsNegative() {
		return shared.NewDomainError("INVALID_MIN_PURCHASE", "Minimum purchase cannot be negative")
	}
	r.MinPurchase = &min
	return nil
}

// IsValidOn reports whether the rule's validity window covers the given date
func (r *Rule) IsValidOn(at time.Time) bool {
	return IsValidOn(r.ValidFrom, r.ValidTo, at)
}

// MeetsMinPurchase reports whether the context amount satisfies the rule's
// minimum purchase, if one is set
func (r *Rule) MeetsMinPurchase(amount decimal.Decimal) bool {
	if r.MinPurchase == nil {
		return true
	}
	return amount.GreaterThanOrEqual(*r.MinPurchase)
}

// AppliedDiscount is one discount the engine decided to apply.
// A list of these is the engine's primary output; it is never persisted
// directly - persistence happens through an Allocation.
type AppliedDiscount struct {
	RuleID         uuid.UUID       `json:"rule_id"`
	RuleType       RuleType        `json:"rule_type"`
	Code           string          `json:"code,omitempty"`
	Name           string          `json:"name"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Percentage     decimal.Decimal `json:"percentage"`
	Stackable      bool            `json:"stackable"`
	Priority       int             `json:"priority"`
}
