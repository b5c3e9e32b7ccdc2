package discount

import (
	"context"
	"testing"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiscovery(promo *fakePromoStore, volume, early, category, pricing *fakeRuleStore) *DiscoveryService {
	return NewDiscoveryService(promo, volume, early, category, pricing, nil)
}

func TestDiscoveryServiceDiscoverCandidates(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	baseContext := discount.PricingContext{
		TenantID:        tenantID,
		Amount:          decimal.NewFromInt(1000),
		Quantity:        decimal.NewFromInt(5),
		TransactionDate: now,
	}

	t.Run("collects candidates across families", func(t *testing.T) {
		promo, volume, early, category, pricing := emptyStores()
		category.rules = []discount.Rule{mustCategoryRule(t, tenantID, "Electronics 10%", decimal.NewFromInt(10), false)}
		volumeRule, err := discount.NewVolumeRule(tenantID, "Bulk 5+", discount.DiscountTypePercentage, decimal.NewFromInt(5), discount.VolumeTier{MinQuantity: decimal.NewFromInt(5)})
		require.NoError(t, err)
		volume.rules = []discount.Rule{volumeRule}
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		assert.Len(t, candidates, 2)
	})

	t.Run("computes the discount amount per candidate", func(t *testing.T) {
		promo, volume, early, category, pricing := emptyStores()
		category.rules = []discount.Rule{mustCategoryRule(t, tenantID, "Electronics 10%", decimal.NewFromInt(10), false)}
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.True(t, candidates[0].DiscountAmount.Equal(decimal.NewFromInt(100)))
		assert.True(t, candidates[0].Percentage.Equal(decimal.NewFromInt(10)))
	})

	t.Run("expired rules are filtered", func(t *testing.T) {
		promo, volume, early, category, pricing := emptyStores()
		rule := mustCategoryRule(t, tenantID, "Past promo", decimal.NewFromInt(10), false)
		from := now.AddDate(0, -2, 0)
		to := now.AddDate(0, -1, 0)
		require.NoError(t, rule.SetValidity(&from, &to))
		category.rules = []discount.Rule{rule}
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("minimum purchase is enforced", func(t *testing.T) {
		promo, volume, early, category, pricing := emptyStores()
		rule := mustCategoryRule(t, tenantID, "Big spender", decimal.NewFromInt(10), false)
		require.NoError(t, rule.SetMinPurchase(decimal.NewFromInt(5000)))
		category.rules = []discount.Rule{rule}
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("volume tier below quantity does not qualify", func(t *testing.T) {
		promo, volume, early, category, pricing := emptyStores()
		volumeRule, err := discount.NewVolumeRule(tenantID, "Bulk 10+", discount.DiscountTypePercentage, decimal.NewFromInt(5), discount.VolumeTier{MinQuantity: decimal.NewFromInt(10)})
		require.NoError(t, err)
		volume.rules = []discount.Rule{volumeRule}
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("only the best qualifying volume tier survives", func(t *testing.T) {
		promo, volume, early, category, pricing := emptyStores()
		small, err := discount.NewVolumeRule(tenantID, "Bulk 3+", discount.DiscountTypePercentage, decimal.NewFromInt(3), discount.VolumeTier{MinQuantity: decimal.NewFromInt(3)})
		require.NoError(t, err)
		big, err := discount.NewVolumeRule(tenantID, "Bulk 5+", discount.DiscountTypePercentage, decimal.NewFromInt(7), discount.VolumeTier{MinQuantity: decimal.NewFromInt(5)})
		require.NoError(t, err)
		volume.rules = []discount.Rule{small, big}
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Bulk 5+", candidates[0].Name)
	})

	t.Run("valid promo code joins the candidate set", func(t *testing.T) {
		promoRule, err := discount.NewPromotionalRule(tenantID, "SAVE15", "Save 15", discount.DiscountTypePercentage, decimal.NewFromInt(15), discount.PromoTerms{})
		require.NoError(t, err)
		promo := newFakePromoStore(promoRule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		pctx := baseContext
		pctx.PromoCode = "SAVE15"
		candidates, err := svc.DiscoverCandidates(context.Background(), pctx)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "SAVE15", candidates[0].Code)
	})

	t.Run("promotional rules never apply without their code", func(t *testing.T) {
		promoRule, err := discount.NewPromotionalRule(tenantID, "SAVE15", "Save 15", discount.DiscountTypePercentage, decimal.NewFromInt(15), discount.PromoTerms{})
		require.NoError(t, err)
		promo := newFakePromoStore(promoRule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("exhausted promo grants nothing on any path", func(t *testing.T) {
		maxUses := 1
		promoRule, err := discount.NewPromotionalRule(tenantID, "WELCOME10", "Welcome", discount.DiscountTypePercentage, decimal.NewFromInt(10), discount.PromoTerms{MaxUses: &maxUses, UsedCount: 1})
		require.NoError(t, err)
		promo := newFakePromoStore(promoRule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		candidates, err := svc.DiscoverCandidates(context.Background(), baseContext)
		require.NoError(t, err)
		assert.Empty(t, candidates)

		pctx := baseContext
		pctx.PromoCode = "WELCOME10"
		candidates, err = svc.DiscoverCandidates(context.Background(), pctx)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}

func TestDiscoveryServiceValidatePromoCode(t *testing.T) {
	tenantID := uuid.New()
	customerID := uuid.New()
	now := time.Now()

	newContext := func(code string) discount.PricingContext {
		return discount.PricingContext{
			TenantID:        tenantID,
			CustomerID:      &customerID,
			Amount:          decimal.NewFromInt(1000),
			TransactionDate: now,
			PromoCode:       code,
		}
	}

	t.Run("unknown code", func(t *testing.T) {
		promo, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		v, err := svc.ValidatePromoCode(context.Background(), newContext("NOPE"))
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, PromoReasonNotFound, v.Reason)
	})

	t.Run("inactive code", func(t *testing.T) {
		rule, err := discount.NewPromotionalRule(tenantID, "OLD", "Old promo", discount.DiscountTypePercentage, decimal.NewFromInt(10), discount.PromoTerms{})
		require.NoError(t, err)
		rule.Active = false
		promo := newFakePromoStore(rule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		v, err := svc.ValidatePromoCode(context.Background(), newContext("OLD"))
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, PromoReasonInactive, v.Reason)
	})

	t.Run("expired code", func(t *testing.T) {
		rule, err := discount.NewPromotionalRule(tenantID, "XMAS", "Christmas", discount.DiscountTypePercentage, decimal.NewFromInt(10), discount.PromoTerms{})
		require.NoError(t, err)
		from := now.AddDate(0, -2, 0)
		to := now.AddDate(0, -1, 0)
		require.NoError(t, rule.SetValidity(&from, &to))
		promo := newFakePromoStore(rule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		v, err := svc.ValidatePromoCode(context.Background(), newContext("XMAS"))
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, PromoReasonExpired, v.Reason)
	})

	t.Run("below minimum purchase", func(t *testing.T) {
		rule, err := discount.NewPromotionalRule(tenantID, "BIG", "Big orders", discount.DiscountTypePercentage, decimal.NewFromInt(10), discount.PromoTerms{})
		require.NoError(t, err)
		require.NoError(t, rule.SetMinPurchase(decimal.NewFromInt(5000)))
		promo := newFakePromoStore(rule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		v, err := svc.ValidatePromoCode(context.Background(), newContext("BIG"))
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, PromoReasonBelowMinPurchase, v.Reason)
	})

	t.Run("usage cap exhausted", func(t *testing.T) {
		maxUses := 100
		rule, err := discount.NewPromotionalRule(tenantID, "CAPPED", "Capped", discount.DiscountTypePercentage, decimal.NewFromInt(10), discount.PromoTerms{MaxUses: &maxUses, UsedCount: 100})
		require.NoError(t, err)
		promo := newFakePromoStore(rule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		v, err := svc.ValidatePromoCode(context.Background(), newContext("CAPPED"))
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, PromoReasonUsageExhausted, v.Reason)
	})

	t.Run("per customer limit reached", func(t *testing.T) {
		limit := 1
		rule, err := discount.NewPromotionalRule(tenantID, "ONCE", "Once each", discount.DiscountTypePercentage, decimal.NewFromInt(10), discount.PromoTerms{PerCustomerLimit: &limit})
		require.NoError(t, err)
		promo := newFakePromoStore(rule)
		promo.usesByCustomer[customerID] = 1
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		v, err := svc.ValidatePromoCode(context.Background(), newContext("ONCE"))
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, PromoReasonCustomerLimit, v.Reason)
	})

	t.Run("clean code validates", func(t *testing.T) {
		rule, err := discount.NewPromotionalRule(tenantID, "SAVE15", "Save 15", discount.DiscountTypePercentage, decimal.NewFromInt(15), discount.PromoTerms{})
		require.NoError(t, err)
		promo := newFakePromoStore(rule)
		_, volume, early, category, pricing := emptyStores()
		svc := newTestDiscovery(promo, volume, early, category, pricing)

		v, err := svc.ValidatePromoCode(context.Background(), newContext("SAVE15"))
		require.NoError(t, err)
		assert.True(t, v.Valid)
		require.NotNil(t, v.Rule)
		assert.Equal(t, "SAVE15", v.Rule.Code)
	})
}

func TestDiscoveryServiceRecordPromoUse(t *testing.T) {
	tenantID := uuid.New()
	rule, err := discount.NewPromotionalRule(tenantID, "SAVE15", "Save 15", discount.DiscountTypePercentage, decimal.NewFromInt(15), discount.PromoTerms{})
	require.NoError(t, err)
	promo := newFakePromoStore(rule)
	_, volume, early, category, pricing := emptyStores()
	svc := newTestDiscovery(promo, volume, early, category, pricing)

	require.NoError(t, svc.RecordPromoUse(context.Background(), rule.ID))
	require.Len(t, promo.incremented, 1)
	assert.Equal(t, rule.ID, promo.incremented[0])
}
