package finance

import (
	"testing"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDiscountAccountForRuleType(t *testing.T) {
	assert.Equal(t, "4113", DiscountAccountForRuleType(discount.RuleTypePromotional))
	assert.Equal(t, "4111", DiscountAccountForRuleType(discount.RuleTypeVolume))
	assert.Equal(t, "4112", DiscountAccountForRuleType(discount.RuleTypeEarlyPayment))
	assert.Equal(t, "4110", DiscountAccountForRuleType(discount.RuleTypeCategory))
	assert.Equal(t, "4110", DiscountAccountForRuleType(discount.RuleTypePricingRule))
	assert.Equal(t, "4110", DiscountAccountForRuleType(discount.RuleType("UNKNOWN")), "unrecognized types fall back to the default account")
}

func TestCalculateTaxImpact(t *testing.T) {
	t.Run("standard rate", func(t *testing.T) {
		got := CalculateTaxImpact(decimal.NewFromInt(100000), decimal.NewFromInt(18))
		assert.True(t, got.Equal(decimal.NewFromInt(18000)))
	})

	t.Run("zero discount yields zero impact", func(t *testing.T) {
		assert.True(t, CalculateTaxImpact(decimal.Zero, decimal.NewFromInt(18)).IsZero())
	})

	t.Run("zero rate yields zero impact", func(t *testing.T) {
		assert.True(t, CalculateTaxImpact(decimal.NewFromInt(100), decimal.Zero).IsZero())
	})
}
