package discount

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultApprovalThreshold is the approval threshold percentage used when a
// tenant has not configured one.
var DefaultApprovalThreshold = decimal.NewFromInt(20)

// CalculateDiscount computes the discount amount for the given base amount.
// PERCENTAGE discounts take value as a percentage of amount; FIXED discounts
// are capped at the amount so the final price never goes below zero.
func CalculateDiscount(amount decimal.Decimal, discountType DiscountType, value decimal.Decimal) decimal.Decimal {
	if amount.LessThanOrEqual(decimal.Zero) || value.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	switch discountType {
	case DiscountTypePercentage:
		return amount.Mul(value).Div(decimal.NewFromInt(100))
	case DiscountTypeFixed:
		if value.GreaterThan(amount) {
			return amount
		}
		return value
	}
	return decimal.Zero
}

// DateOnly normalizes a timestamp to UTC midnight. All discount validity
// comparisons operate on date-only granularity.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IsValidOn reports whether a validity window covers at.
// Nil bounds are unbounded; comparisons are date-only.
func IsValidOn(validFrom, validTo *time.Time, at time.Time) bool {
	day := DateOnly(at)
	if validFrom != nil && day.Before(DateOnly(*validFrom)) {
		return false
	}
	if validTo != nil && day.After(DateOnly(*validTo)) {
		return false
	}
	return true
}

// RequiresApproval reports whether the effective discount percentage exceeds
// the tenant's approval threshold
func RequiresApproval(discountPercentage, thresholdPercentage decimal.Decimal) bool {
	return discountPercentage.GreaterThan(thresholdPercentage)
}

// CanStack reports whether candidate may be combined with the already
// selected discounts. Two discounts from the same family never combine,
// regardless of their stackable flags. Across families, the candidate and
// every existing discount must be marked stackable.
func CanStack(existing []AppliedDiscount, candidate AppliedDiscount) bool {
	if len(existing) == 0 {
		return true
	}
	for _, d := range existing {
		if d.RuleType == candidate.RuleType {
			return false
		}
	}
	if !candidate.Stackable {
		return false
	}
	for _, d := range existing {
		if !d.Stackable {
			return false
		}
	}
	return true
}

// FormatCurrency renders an amount as "{CODE} {amount}" with two decimals
func FormatCurrency(amount decimal.Decimal, currencyCode string) string {
	return fmt.Sprintf("%s %s", currencyCode, amount.StringFixed(2))
}

// FormatPercentage renders a percentage value as "{value}%"
func FormatPercentage(value decimal.Decimal) string {
	return fmt.Sprintf("%s%%", value.String())
}

// EffectivePercentage converts a discount amount into a percentage of the
// base amount, rounded to two decimals. Zero base yields zero.
func EffectivePercentage(discountAmount, baseAmount decimal.Decimal) decimal.Decimal {
	if baseAmount.IsZero() {
		return decimal.Zero
	}
	return discountAmount.Div(baseAmount).Mul(decimal.NewFromInt(100)).Round(2)
}
