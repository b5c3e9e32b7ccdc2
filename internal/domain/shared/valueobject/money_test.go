package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromInt(100), UGX)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.NewFromInt(100)))
		assert.Equal(t, UGX, m.Currency())
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
	})

	t.Run("from string", func(t *testing.T) {
		m, err := NewMoneyFromString("99.99", USD)
		require.NoError(t, err)
		assert.Equal(t, "99.99", m.StringFixed(2))

		_, err = NewMoneyFromString("not-a-number", USD)
		assert.Error(t, err)
	})
}

func TestMoneyArithmetic(t *testing.T) {
	a := NewMoneyDefault(decimal.NewFromInt(100))
	b := NewMoneyDefault(decimal.NewFromInt(40))
	foreign, _ := NewMoney(decimal.NewFromInt(40), USD)

	t.Run("add", func(t *testing.T) {
		sum, err := a.Add(b)
		require.NoError(t, err)
		assert.True(t, sum.Amount().Equal(decimal.NewFromInt(140)))
	})

	t.Run("subtract", func(t *testing.T) {
		diff, err := a.Subtract(b)
		require.NoError(t, err)
		assert.True(t, diff.Amount().Equal(decimal.NewFromInt(60)))
	})

	t.Run("currency mismatch is an error", func(t *testing.T) {
		_, err := a.Add(foreign)
		assert.Error(t, err)
		_, err = a.Subtract(foreign)
		assert.Error(t, err)
		_, err = a.LessThan(foreign)
		assert.Error(t, err)
	})

	t.Run("multiply", func(t *testing.T) {
		assert.True(t, a.Multiply(decimal.NewFromFloat(1.5)).Amount().Equal(decimal.NewFromInt(150)))
	})

	t.Run("comparisons", func(t *testing.T) {
		lt, err := b.LessThan(a)
		require.NoError(t, err)
		assert.True(t, lt)

		gt, err := a.GreaterThan(b)
		require.NoError(t, err)
		assert.True(t, gt)
	})
}

func TestMoneyDiscountHelpers(t *testing.T) {
	m := NewMoneyDefault(decimal.NewFromInt(500000))

	t.Run("percentage of amount", func(t *testing.T) {
		pct := m.CalculatePercentage(decimal.NewFromInt(10))
		assert.True(t, pct.Amount().Equal(decimal.NewFromInt(50000)))
	})

	t.Run("apply discount", func(t *testing.T) {
		discounted := m.ApplyDiscount(decimal.NewFromInt(10))
		assert.True(t, discounted.Amount().Equal(decimal.NewFromInt(450000)))
	})
}

func TestMoneyAllocate(t *testing.T) {
	t.Run("splits pro-rata with exact sum", func(t *testing.T) {
		m := NewMoneyDefault(decimal.NewFromInt(100))
		weights := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(1), decimal.NewFromInt(1)}

		shares, err := m.Allocate(weights)
		require.NoError(t, err)
		require.Len(t, shares, 3)

		sum := decimal.Zero
		for _, s := range shares {
			sum = sum.Add(s.Amount())
			assert.Equal(t, m.Currency(), s.Currency())
		}
		assert.True(t, sum.Equal(m.Amount()))
		// thirds cannot round evenly; the last share absorbs the residual
		assert.True(t, shares[0].Amount().Equal(decimal.NewFromFloat(33.33)))
		assert.True(t, shares[2].Amount().Equal(decimal.NewFromFloat(33.34)))
	})

	t.Run("normalizes arbitrary weights", func(t *testing.T) {
		m := NewMoneyDefault(decimal.NewFromInt(200))
		shares, err := m.Allocate([]decimal.Decimal{decimal.NewFromInt(30), decimal.NewFromInt(10)})
		require.NoError(t, err)
		assert.True(t, shares[0].Amount().Equal(decimal.NewFromInt(150)))
		assert.True(t, shares[1].Amount().Equal(decimal.NewFromInt(50)))
	})

	t.Run("rejects bad weights", func(t *testing.T) {
		m := NewMoneyDefault(decimal.NewFromInt(10))
		_, err := m.Allocate(nil)
		assert.Error(t, err)
		_, err = m.Allocate([]decimal.Decimal{decimal.Zero})
		assert.Error(t, err)
		_, err = m.Allocate([]decimal.Decimal{decimal.NewFromInt(-1), decimal.NewFromInt(2)})
		assert.Error(t, err)
	})
}

func TestMoneyString(t *testing.T) {
	m := NewMoneyDefault(decimal.NewFromFloat(4500.5))
	assert.Equal(t, "UGX 4500.50", m.String())
}

func TestMoneyJSON(t *testing.T) {
	m := NewMoneyDefault(decimal.NewFromFloat(12.34))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, m.Equals(back))
}

func TestMoneyScan(t *testing.T) {
	t.Run("scans string value", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan("12.50"))
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(12.5)))
		assert.Equal(t, DefaultCurrency, m.Currency())
	})

	t.Run("nil scans to zero", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan(nil))
		assert.True(t, m.IsZero())
	})

	t.Run("rejects unsupported type", func(t *testing.T) {
		var m Money
		assert.Error(t, m.Scan(42))
	})
}
