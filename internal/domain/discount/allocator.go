package discount

import (
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/bizzytrack/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocatedLine is the computed share of one line item before persistence
type AllocatedLine struct {
	LineItemID           uuid.UUID
	OriginalAmount       decimal.Decimal
	AllocatedDiscount    decimal.Decimal
	AllocationPercentage decimal.Decimal
	Quantity             decimal.Decimal
	DiscountPerUnit      decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// AllocateByLineAmount splits totalDiscount across lines pro-rata by each
// line's share of the total amount. All lines but the last are rounded to
// two decimals; the last line absorbs the rounding residual so the sum
// matches totalDiscount exactly.
func AllocateByLineAmount(items []ContextLineItem, totalDiscount decimal.Decimal) ([]AllocatedLine, error) {
	if err := validateAllocationInput(items, totalDiscount); err != nil {
		return nil, err
	}
	totalAmount := decimal.Zero
	weights := make([]decimal.Decimal, len(items))
	for i, it := range items {
		totalAmount = totalAmount.Add(it.Amount)
		weights[i] = it.Amount
	}
	if totalAmount.IsZero() {
		return nil, shared.NewDomainError("ZERO_TOTAL_AMOUNT", "Line items sum to a zero amount")
	}
	if totalDiscount.GreaterThan(totalAmount) {
		return nil, shared.NewDomainError("DISCOUNT_EXCEEDS_TOTAL", "Total discount exceeds the sum of line amounts")
	}
	return prorate(items, weights, totalWeightOf(weights), totalDiscount)
}

// AllocateByQuantity splits totalDiscount pro-rata by each line's share of
// the total quantity, recording the per-unit discount. The last line absorbs
// the rounding residual.
func AllocateByQuantity(items []ContextLineItem, totalDiscount decimal.Decimal) ([]AllocatedLine, error) {
	if err := validateAllocationInput(items, totalDiscount); err != nil {
		return nil, err
	}
	totalQuantity := decimal.Zero
	totalAmount := decimal.Zero
	weights := make([]decimal.Decimal, len(items))
	for i, it := range items {
		totalQuantity = totalQuantity.Add(it.Quantity)
		totalAmount = totalAmount.Add(it.Amount)
		weights[i] = it.Quantity
	}
	if totalQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("ZERO_TOTAL_QUANTITY", "Line items sum to a zero quantity")
	}
	if totalDiscount.GreaterThan(totalAmount) {
		return nil, shared.NewDomainError("DISCOUNT_EXCEEDS_TOTAL", "Total discount exceeds the sum of line amounts")
	}

	lines, err := prorate(items, weights, totalQuantity, totalDiscount)
	if err != nil {
		return nil, err
	}
	recomputePerUnit(lines)
	return lines, nil
}

// AllocateByCustomWeights splits totalDiscount pro-rata by caller-supplied
// weights. Weights need not sum to one; they are normalized internally.
func AllocateByCustomWeights(items []ContextLineItem, weights []decimal.Decimal, totalDiscount decimal.Decimal) ([]AllocatedLine, error) {
	if err := validateAllocationInput(items, totalDiscount); err != nil {
		return nil, err
	}
	if len(weights) != len(items) {
		return nil, shared.NewDomainError("WEIGHT_COUNT_MISMATCH", "One weight is required per line item")
	}
	totalWeight := decimal.Zero
	for _, w := range weights {
		if w.IsNegative() {
			return nil, shared.NewDomainError("NEGATIVE_WEIGHT", "Weights cannot be negative")
		}
		totalWeight = totalWeight.Add(w)
	}
	if totalWeight.IsZero() {
		return nil, shared.NewDomainError("ZERO_TOTAL_WEIGHT", "Weights sum to zero")
	}
	return prorate(items, weights, totalWeight, totalDiscount)
}

// AllocateByPercentage applies the same percentage discount to every line.
// The percentage, not a fixed total, drives this mode, so no redistribution
// is needed.
func AllocateByPercentage(items []ContextLineItem, percentage decimal.Decimal) ([]AllocatedLine, error) {
	if len(items) == 0 {
		return nil, shared.NewDomainError("NO_LINE_ITEMS", "At least one line item is required")
	}
	if percentage.LessThanOrEqual(decimal.Zero) || percentage.GreaterThan(oneHundred) {
		return nil, shared.NewDomainError("INVALID_PERCENTAGE", "Percentage must be between 0 and 100")
	}

	lines := make([]AllocatedLine, len(items))
	for i, it := range items {
		amount := it.Amount.Mul(percentage).Div(oneHundred).Round(2)
		line := AllocatedLine{
			LineItemID:           it.ID,
			OriginalAmount:       it.Amount,
			AllocatedDiscount:    amount,
			AllocationPercentage: percentage,
			Quantity:             it.Quantity,
		}
		if it.Quantity.IsPositive() {
			line.DiscountPerUnit = amount.Div(it.Quantity).Round(4)
		}
		lines[i] = line
	}
	return lines, nil
}

// AllocationValidation is the result of checking an allocation's sum
type AllocationValidation struct {
	Valid      bool            `json:"valid"`
	Actual     decimal.Decimal `json:"actual"`
	Expected   decimal.Decimal `json:"expected"`
	Difference decimal.Decimal `json:"difference"`
}

// ValidateAllocationTotal checks that the allocated lines sum to the
// expected total within one minor currency unit
func ValidateAllocationTotal(lines []AllocatedLine, expectedTotal decimal.Decimal) AllocationValidation {
	actual := decimal.Zero
	for _, l := range lines {
		actual = actual.Add(l.AllocatedDiscount)
	}
	diff := actual.Sub(expectedTotal)
	return AllocationValidation{
		Valid:      diff.Abs().LessThan(decimal.NewFromFloat(0.01)),
		Actual:     actual,
		Expected:   expectedTotal,
		Difference: diff,
	}
}

func validateAllocationInput(items []ContextLineItem, totalDiscount decimal.Decimal) error {
	if len(items) == 0 {
		return shared.NewDomainError("NO_LINE_ITEMS", "At least one line item is required")
	}
	if totalDiscount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_DISCOUNT_AMOUNT", "Total discount must be positive")
	}
	for _, it := range items {
		if it.Amount.IsNegative() {
			return shared.NewDomainError("NEGATIVE_LINE_AMOUNT", "Line amounts cannot be negative")
		}
	}
	return nil
}

// prorate is the shared pro-rata core: the exact-sum money split by weight,
// then the per-line cap enforced by spillExcess
func prorate(items []ContextLineItem, weights []decimal.Decimal, totalWeight, totalDiscount decimal.Decimal) ([]AllocatedLine, error) {
	shares, err := valueobject.NewMoneyDefault(totalDiscount).Allocate(weights)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_WEIGHTS", err.Error())
	}
	lines := make([]AllocatedLine, len(items))
	for i, it := range items {
		lines[i] = AllocatedLine{
			LineItemID:           it.ID,
			OriginalAmount:       it.Amount,
			AllocatedDiscount:    shares[i].Amount(),
			AllocationPercentage: weights[i].Div(totalWeight).Mul(oneHundred).Round(4),
			Quantity:             it.Quantity,
		}
	}
	spillExcess(lines)
	return lines, nil
}

func totalWeightOf(weights []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	return total
}

// spillExcess clamps every line's discount to its original amount and moves
// the clipped overflow onto lines with remaining capacity, preserving the
// sum. Excess no line can absorb stays unallocated for the sum check to
// reject.
func spillExcess(lines []AllocatedLine) {
	excess := decimal.Zero
	for i := range lines {
		over := lines[i].AllocatedDiscount.Sub(lines[i].OriginalAmount)
		if over.IsPositive() {
			lines[i].AllocatedDiscount = lines[i].OriginalAmount
			excess = excess.Add(over)
		}
	}
	for i := len(lines) - 1; i >= 0 && excess.IsPositive(); i-- {
		capacity := lines[i].OriginalAmount.Sub(lines[i].AllocatedDiscount)
		if capacity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := decimal.Min(capacity, excess)
		lines[i].AllocatedDiscount = lines[i].AllocatedDiscount.Add(take)
		excess = excess.Sub(take)
	}
}

// recomputePerUnit refreshes per-unit discounts after any redistribution
func recomputePerUnit(lines []AllocatedLine) {
	for i := range lines {
		if lines[i].Quantity.IsPositive() {
			lines[i].DiscountPerUnit = lines[i].AllocatedDiscount.Div(lines[i].Quantity).Round(4)
		}
	}
}
