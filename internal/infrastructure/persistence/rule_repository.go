package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ruleColumns is the header shared by every rule family row
type ruleColumns struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	Name          string           `gorm:"not null"`
	DiscountType  string           `gorm:"not null"`
	DiscountValue decimal.Decimal  `gorm:"type:numeric(18,4);not null"`
	ValidFrom     *time.Time
	ValidTo       *time.Time
	MinPurchase   *decimal.Decimal `gorm:"type:numeric(18,2)"`
	Stackable     bool             `gorm:"not null;default:false"`
	Active        bool             `gorm:"not null;default:true;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c ruleColumns) toRule(ruleType discount.RuleType) discount.Rule {
	return discount.Rule{
		ID:            c.ID,
		TenantID:      c.TenantID,
		Name:          c.Name,
		Type:          ruleType,
		DiscountType:  discount.DiscountType(c.DiscountType),
		DiscountValue: c.DiscountValue,
		ValidFrom:     c.ValidFrom,
		ValidTo:       c.ValidTo,
		MinPurchase:   c.MinPurchase,
		Stackable:     c.Stackable,
		Active:        c.Active,
	}
}

type promotionalDiscountRow struct {
	ruleColumns
	Code             string `gorm:"not null;uniqueIndex:idx_promo_tenant_code,composite:tenant_id"`
	MaxUses          *int
	PerCustomerLimit *int
	UsedCount        int `gorm:"not null;default:0"`
}

func (promotionalDiscountRow) TableName() string { return "promotional_discounts" }

func (r promotionalDiscountRow) toRule() discount.Rule {
	rule := r.ruleColumns.toRule(discount.RuleTypePromotional)
	rule.Code = r.Code
	rule.Promo = &discount.PromoTerms{
		MaxUses:          r.MaxUses,
		PerCustomerLimit: r.PerCustomerLimit,
		UsedCount:        r.UsedCount,
	}
	return rule
}

type promoCodeUsageRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	RuleID     uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	UsedAt     time.Time `gorm:"not null"`
}

func (promoCodeUsageRow) TableName() string { return "promo_code_usages" }

type volumeDiscountRow struct {
	ruleColumns
	MinQuantity decimal.Decimal `gorm:"type:numeric(14,4)"`
	MinAmount   decimal.Decimal `gorm:"type:numeric(18,2)"`
	AppliesTo   string          `gorm:"not null;default:'all'"`
}

func (volumeDiscountRow) TableName() string { return "volume_discount_rules" }

func (r volumeDiscountRow) toRule() discount.Rule {
	rule := r.ruleColumns.toRule(discount.RuleTypeVolume)
	rule.Volume = &discount.VolumeTier{
		MinQuantity: r.MinQuantity,
		MinAmount:   r.MinAmount,
		AppliesTo:   r.AppliesTo,
	}
	return rule
}

type earlyPaymentTermRow struct {
	ruleColumns
	DiscountDays int `gorm:"not null"`
	NetDays      int `gorm:"not null"`
}

func (earlyPaymentTermRow) TableName() string { return "early_payment_terms" }

func (r earlyPaymentTermRow) toRule() discount.Rule {
	rule := r.ruleColumns.toRule(discount.RuleTypeEarlyPayment)
	rule.EarlyPayment = &discount.EarlyPaymentTerms{
		DiscountDays: r.DiscountDays,
		NetDays:      r.NetDays,
	}
	return rule
}

type categoryDiscountRow struct {
	ruleColumns
	TargetCategoryID uuid.UUID `gorm:"type:uuid;not null;index"`
}

func (categoryDiscountRow) TableName() string { return "category_discount_rules" }

func (r categoryDiscountRow) toRule() discount.Rule {
	rule := r.ruleColumns.toRule(discount.RuleTypeCategory)
	rule.Category = &discount.CategoryScope{TargetCategoryID: r.TargetCategoryID}
	return rule
}

type pricingRuleRow struct {
	ruleColumns
	ItemID           *uuid.UUID `gorm:"type:uuid;index"`
	ServiceID        *uuid.UUID `gorm:"type:uuid;index"`
	CustomerCategory string
}

func (pricingRuleRow) TableName() string { return "pricing_rules" }

func (r pricingRuleRow) toRule() discount.Rule {
	rule := r.ruleColumns.toRule(discount.RuleTypePricingRule)
	rule.PricingRule = &discount.PricingRuleScope{
		ItemID:           r.ItemID,
		ServiceID:        r.ServiceID,
		CustomerCategory: r.CustomerCategory,
	}
	return rule
}

// GormPromotionalRuleStore implements PromotionalRuleStore using GORM
type GormPromotionalRuleStore struct {
	db *gorm.DB
}

// NewGormPromotionalRuleStore creates a new GormPromotionalRuleStore
func NewGormPromotionalRuleStore(db *gorm.DB) *GormPromotionalRuleStore {
	return &GormPromotionalRuleStore{db: db}
}

// Family identifies the promotional rule family
func (s *GormPromotionalRuleStore) Family() discount.RuleType {
	return discount.RuleTypePromotional
}

// FindActive returns the tenant's active promotional discounts
func (s *GormPromotionalRuleStore) FindActive(ctx context.Context, tenantID uuid.UUID, _ discount.RuleFilters) ([]discount.Rule, error) {
	var rows []promotionalDiscountRow
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]discount.Rule, len(rows))
	for i, row := range rows {
		rules[i] = row.toRule()
	}
	return rules, nil
}

// FindByCode looks up a promotional discount by its promo code
func (s *GormPromotionalRuleStore) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*discount.Rule, error) {
	var row promotionalDiscountRow
	if err := s.db.WithContext(ctx).
		First(&row, "tenant_id = ? AND code = ?", tenantID, code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rule := row.toRule()
	return &rule, nil
}

// CountCustomerUses counts how many times one customer used a promo code
func (s *GormPromotionalRuleStore) CountCustomerUses(ctx context.Context, ruleID, customerID uuid.UUID) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&promoCodeUsageRow{}).
		Where("rule_id = ? AND customer_id = ?", ruleID, customerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// IncrementUsage bumps the global usage counter on the promotion
func (s *GormPromotionalRuleStore) IncrementUsage(ctx context.Context, ruleID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&promotionalDiscountRow{}).
		Where("id = ?", ruleID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
}

// RecordCustomerUse records one customer's use of a promo code
func (s *GormPromotionalRuleStore) RecordCustomerUse(ctx context.Context, ruleID, customerID uuid.UUID) error {
	return s.db.WithContext(ctx).Create(&promoCodeUsageRow{
		ID:         uuid.New(),
		RuleID:     ruleID,
		CustomerID: customerID,
		UsedAt:     time.Now(),
	}).Error
}

// GormVolumeRuleStore implements RuleStore for volume tiers using GORM
type GormVolumeRuleStore struct {
	db *gorm.DB
}

// NewGormVolumeRuleStore creates a new GormVolumeRuleStore
func NewGormVolumeRuleStore(db *gorm.DB) *GormVolumeRuleStore {
	return &GormVolumeRuleStore{db: db}
}

// Family identifies the volume rule family
func (s *GormVolumeRuleStore) Family() discount.RuleType {
	return discount.RuleTypeVolume
}

// FindActive returns the tenant's active volume tiers. Quantity and amount
// qualification happens in the discovery service, not here: the store only
// narrows by tenant and activity.
func (s *GormVolumeRuleStore) FindActive(ctx context.Context, tenantID uuid.UUID, _ discount.RuleFilters) ([]discount.Rule, error) {
	var rows []volumeDiscountRow
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]discount.Rule, len(rows))
	for i, row := range rows {
		rules[i] = row.toRule()
	}
	return rules, nil
}

// GormEarlyPaymentRuleStore implements RuleStore for early payment terms
type GormEarlyPaymentRuleStore struct {
	db *gorm.DB
}

// NewGormEarlyPaymentRuleStore creates a new GormEarlyPaymentRuleStore
func NewGormEarlyPaymentRuleStore(db *gorm.DB) *GormEarlyPaymentRuleStore {
	return &GormEarlyPaymentRuleStore{db: db}
}

// Family identifies the early payment rule family
func (s *GormEarlyPaymentRuleStore) Family() discount.RuleType {
	return discount.RuleTypeEarlyPayment
}

// FindActive returns the tenant's active early payment terms
func (s *GormEarlyPaymentRuleStore) FindActive(ctx context.Context, tenantID uuid.UUID, _ discount.RuleFilters) ([]discount.Rule, error) {
	var rows []earlyPaymentTermRow
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]discount.Rule, len(rows))
	for i, row := range rows {
		rules[i] = row.toRule()
	}
	return rules, nil
}

// GormCategoryRuleStore implements RuleStore for category discounts
type GormCategoryRuleStore struct {
	db *gorm.DB
}

// NewGormCategoryRuleStore creates a new GormCategoryRuleStore
func NewGormCategoryRuleStore(db *gorm.DB) *GormCategoryRuleStore {
	return &GormCategoryRuleStore{db: db}
}

// Family identifies the category rule family
func (s *GormCategoryRuleStore) Family() discount.RuleType {
	return discount.RuleTypeCategory
}

// FindActive returns the tenant's active category discounts scoped to the
// context's category when one is given
func (s *GormCategoryRuleStore) FindActive(ctx context.Context, tenantID uuid.UUID, filters discount.RuleFilters) ([]discount.Rule, error) {
	query := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true)
	if filters.CategoryID != nil {
		query = query.Where("target_category_id = ?", *filters.CategoryID)
	}

	var rows []categoryDiscountRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]discount.Rule, len(rows))
	for i, row := range rows {
		rules[i] = row.toRule()
	}
	return rules, nil
}

// GormPricingRuleStore implements RuleStore for pricing rules
type GormPricingRuleStore struct {
	db *gorm.DB
}

// NewGormPricingRuleStore creates a new GormPricingRuleStore
func NewGormPricingRuleStore(db *gorm.DB) *GormPricingRuleStore {
	return &GormPricingRuleStore{db: db}
}

// Family identifies the pricing rule family
func (s *GormPricingRuleStore) Family() discount.RuleType {
	return discount.RuleTypePricingRule
}

// FindActive returns the tenant's active pricing rules matching the
// context's item, service and customer category. A rule with no scope value
// on a dimension matches any context on that dimension.
func (s *GormPricingRuleStore) FindActive(ctx context.Context, tenantID uuid.UUID, filters discount.RuleFilters) ([]discount.Rule, error) {
	query := s.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true)

	if filters.ItemID != nil {
		query = query.Where("item_id IS NULL OR item_id = ?", *filters.ItemID)
	} else {
		query = query.Where("item_id IS NULL")
	}
	if filters.ServiceID != nil {
		query = query.Where("service_id IS NULL OR service_id = ?", *filters.ServiceID)
	} else {
		query = query.Where("service_id IS NULL")
	}
	if filters.CustomerCategory != "" {
		query = query.Where("customer_category = '' OR customer_category = ?", filters.CustomerCategory)
	} else {
		query = query.Where("customer_category = ''")
	}

	var rows []pricingRuleRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]discount.Rule, len(rows))
	for i, row := range rows {
		rules[i] = row.toRule()
	}
	return rules, nil
}

// Ensure the stores satisfy the domain interfaces
var (
	_ discount.PromotionalRuleStore = (*GormPromotionalRuleStore)(nil)
	_ discount.RuleStore            = (*GormVolumeRuleStore)(nil)
	_ discount.RuleStore            = (*GormEarlyPaymentRuleStore)(nil)
	_ discount.RuleStore            = (*GormCategoryRuleStore)(nil)
	_ discount.RuleStore            = (*GormPricingRuleStore)(nil)
)
