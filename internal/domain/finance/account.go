package finance

import (
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Discount contra-revenue account codes, one per rule family
const (
	AccountCategoryDiscount     = "4110"
	AccountVolumeDiscount       = "4111"
	AccountEarlyPaymentDiscount = "4112"
	AccountPromotionalDiscount  = "4113"

	// AccountSalesRevenue is the credit side of a discount entry
	AccountSalesRevenue = "4000"
)

// DefaultDiscountAccount is used for any rule type without a dedicated
// account
const DefaultDiscountAccount = AccountCategoryDiscount

// DiscountAccountForRuleType maps a discount rule family to its ledger
// account code
func DiscountAccountForRuleType(ruleType discount.RuleType) string {
	switch ruleType {
	case discount.RuleTypePromotional:
		return AccountPromotionalDiscount
	case discount.RuleTypeVolume:
		return AccountVolumeDiscount
	case discount.RuleTypeEarlyPayment:
		return AccountEarlyPaymentDiscount
	case discount.RuleTypeCategory, discount.RuleTypePricingRule:
		return AccountCategoryDiscount
	}
	return DefaultDiscountAccount
}

// DiscountAccountCodes returns the set of all discount account codes,
// used to select the discount side of journal lines during reconciliation
func DiscountAccountCodes() map[string]struct{} {
	return map[string]struct{}{
		AccountCategoryDiscount:     {},
		AccountVolumeDiscount:       {},
		AccountEarlyPaymentDiscount: {},
		AccountPromotionalDiscount:  {},
	}
}

// CalculateTaxImpact computes the downstream tax effect of a discount:
// the tax no longer owed on the discounted amount
func CalculateTaxImpact(discountAmount, taxRatePercent decimal.Decimal) decimal.Decimal {
	if discountAmount.IsZero() || taxRatePercent.IsZero() {
		return decimal.Zero
	}
	return discountAmount.Mul(taxRatePercent).Div(decimal.NewFromInt(100))
}

// Account is a chart-of-accounts row
type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_account_tenant_code"`
	Code      string    `gorm:"not null;uniqueIndex:idx_account_tenant_code"`
	Name      string    `gorm:"not null"`
	Type      string    // asset, liability, equity, revenue, expense, contra_revenue
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "chart_of_accounts"
}
