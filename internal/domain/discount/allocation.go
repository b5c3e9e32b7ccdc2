package discount

import (
	"fmt"
	"time"

	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStatus represents the lifecycle state of a discount allocation
type AllocationStatus string

const (
	AllocationStatusPending AllocationStatus = "PENDING"
	AllocationStatusApplied AllocationStatus = "APPLIED"
	AllocationStatusVoid    AllocationStatus = "VOID"
)

// IsValid checks if the status is a valid AllocationStatus
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusPending, AllocationStatusApplied, AllocationStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s AllocationStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s AllocationStatus) CanTransitionTo(target AllocationStatus) bool {
	switch s {
	case AllocationStatusPending:
		return target == AllocationStatusApplied || target == AllocationStatusVoid
	case AllocationStatusApplied:
		return target == AllocationStatusVoid
	case AllocationStatusVoid:
		return false // terminal
	}
	return false
}

// AllocationMethod identifies the algorithm used to split a discount
type AllocationMethod string

const (
	AllocationMethodLineAmount    AllocationMethod = "LINE_AMOUNT"
	AllocationMethodQuantity      AllocationMethod = "QUANTITY"
	AllocationMethodCustomWeights AllocationMethod = "CUSTOM_WEIGHTS"
	AllocationMethodPercentage    AllocationMethod = "PERCENTAGE"
)

// IsValid checks if the allocation method is valid
func (m AllocationMethod) IsValid() bool {
	switch m {
	case AllocationMethodLineAmount, AllocationMethodQuantity, AllocationMethodCustomWeights, AllocationMethodPercentage:
		return true
	}
	return false
}

// AllocationLine is one line item's share of an allocated discount.
// Owned exclusively by its Allocation.
type AllocationLine struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AllocationID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineItemID           uuid.UUID       `gorm:"type:uuid;not null"`
	OriginalAmount       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	AllocatedDiscount    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	AllocationPercentage decimal.Decimal `gorm:"type:numeric(8,4);not null"`
	Quantity             decimal.Decimal `gorm:"type:numeric(14,4)"`
	DiscountPerUnit      decimal.Decimal `gorm:"type:numeric(18,4)"`
	CreatedAt            time.Time
}

// TableName specifies the table name for AllocationLine
func (AllocationLine) TableName() string {
	return "discount_allocation_lines"
}

// Allocation distributes one aggregate discount across the line items of a
// POS transaction or invoice. It exclusively owns its lines.
type Allocation struct {
	shared.TenantEntity
	AllocationNumber    string           `gorm:"not null;uniqueIndex:idx_alloc_tenant_number,composite:tenant_id"`
	POSTransactionID    *uuid.UUID       `gorm:"type:uuid;index"`
	InvoiceID           *uuid.UUID       `gorm:"type:uuid;index"`
	DiscountRuleID      *uuid.UUID       `gorm:"type:uuid;index"`
	PromotionalRuleID   *uuid.UUID       `gorm:"type:uuid;index"`
	RuleType            RuleType         `gorm:"column:rule_type"`
	TotalDiscountAmount decimal.Decimal  `gorm:"type:numeric(18,2);not null"`
	Method              AllocationMethod `gorm:"column:allocation_method;not null"`
	Status              AllocationStatus `gorm:"not null;default:'PENDING'"`
	AppliedAt           *time.Time
	VoidedAt            *time.Time
	RejectionReason     string
	CreatedBy           *uuid.UUID       `gorm:"type:uuid"`
	Lines               []AllocationLine `gorm:"foreignKey:AllocationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Allocation
func (Allocation) TableName() string {
	return "discount_allocations"
}

// AllocationSumEpsilon is the tolerance, in minor currency units, allowed
// between the sum of line discounts and the allocation total
var AllocationSumEpsilon = decimal.NewFromFloat(0.01)

// NewAllocation creates a discount allocation for a transaction.
// Exactly one transaction reference and exactly one discount source
// reference must be set.
func NewAllocation(
	tenantID uuid.UUID,
	number string,
	posTransactionID, invoiceID *uuid.UUID,
	discountRuleID, promotionalRuleID *uuid.UUID,
	ruleType RuleType,
	totalDiscount decimal.Decimal,
	method AllocationMethod,
	createdBy uuid.UUID,
) (*Allocation, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if number == "" {
		return nil, shared.NewDomainError("INVALID_ALLOCATION_NUMBER", "Allocation number cannot be empty")
	}
	if (posTransactionID == nil) == (invoiceID == nil) {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_REF", "Exactly one of POS transaction or invoice must be referenced")
	}
	if (discountRuleID == nil) == (promotionalRuleID == nil) {
		return nil, shared.NewDomainError("INVALID_DISCOUNT_REF", "Exactly one of discount rule or promotional discount must be referenced")
	}
	if totalDiscount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_DISCOUNT_AMOUNT", "Total discount amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_ALLOCATION_METHOD", fmt.Sprintf("Unknown allocation method: %s", method))
	}
	// the ledger routes debits by family, so the family is recorded on the
	// allocation itself rather than re-resolved from the rule reference
	if ruleType == "" && promotionalRuleID != nil {
		ruleType = RuleTypePromotional
	}
	if ruleType != "" && !ruleType.IsValid() {
		return nil, shared.NewDomainError("INVALID_RULE_TYPE", fmt.Sprintf("Unknown rule type: %s", ruleType))
	}

	return &Allocation{
		TenantEntity:        shared.NewTenantEntity(tenantID),
		AllocationNumber:    number,
		POSTransactionID:    posTransactionID,
		InvoiceID:           invoiceID,
		DiscountRuleID:      discountRuleID,
		PromotionalRuleID:   promotionalRuleID,
		RuleType:            ruleType,
		TotalDiscountAmount: totalDiscount,
		Method:              method,
		Status:              AllocationStatusPending,
		CreatedBy:           &createdBy,
	}, nil
}

// AttachLines sets the allocation's lines after checking the exact-sum
// invariant and the per-line cap
func (a *Allocation) AttachLines(lines []AllocatedLine) error {
	if len(lines) == 0 {
		return shared.NewDomainError("NO_LINES", "Allocation must have at least one line")
	}
	sum := decimal.Zero
	for _, l := range lines {
		if l.AllocatedDiscount.GreaterThan(l.OriginalAmount) {
			return shared.NewDomainError("LINE_OVER_ALLOCATED",
				fmt.Sprintf("Line %s allocated %s exceeds original amount %s", l.LineItemID, l.AllocatedDiscount, l.OriginalAmount))
		}
		sum = sum.Add(l.AllocatedDiscount)
	}
	if sum.Sub(a.TotalDiscountAmount).Abs().GreaterThan(AllocationSumEpsilon) {
		return shared.NewDomainError("ALLOCATION_SUM_MISMATCH",
			fmt.Sprintf("Line discounts sum to %s, expected %s", sum, a.TotalDiscountAmount))
	}

	a.Lines = make([]AllocationLine, len(lines))
	for i, l := range lines {
		a.Lines[i] = AllocationLine{
			ID:                   uuid.New(),
			AllocationID:         a.ID,
			LineItemID:           l.LineItemID,
			OriginalAmount:       l.OriginalAmount,
			AllocatedDiscount:    l.AllocatedDiscount,
			AllocationPercentage: l.AllocationPercentage,
			Quantity:             l.Quantity,
			DiscountPerUnit:      l.DiscountPerUnit,
			CreatedAt:            time.Now(),
		}
	}
	a.UpdatedAt = time.Now()
	return nil
}

// Apply transitions the allocation to APPLIED
func (a *Allocation) Apply() error {
	if !a.Status.CanTransitionTo(AllocationStatusApplied) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot apply allocation in %s status", a.Status))
	}
	now := time.Now()
	a.Status = AllocationStatusApplied
	a.AppliedAt = &now
	a.UpdatedAt = now
	return nil
}

// Void transitions the allocation to VOID, recording the reason.
// Void is terminal; voiding twice is an error, not a silent no-op.
func (a *Allocation) Void(reason string) error {
	if a.Status == AllocationStatusVoid {
		return shared.NewDomainError("ALREADY_VOID", "Allocation is already void")
	}
	if !a.Status.CanTransitionTo(AllocationStatusVoid) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot void allocation in %s status", a.Status))
	}
	if reason == "" {
		return shared.NewDomainError("MISSING_REASON", "Void reason cannot be empty")
	}
	now := time.Now()
	a.Status = AllocationStatusVoid
	a.VoidedAt = &now
	a.RejectionReason = reason
	a.UpdatedAt = now
	return nil
}

// LinesTotal returns the sum of allocated discounts across all lines
func (a *Allocation) LinesTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range a.Lines {
		sum = sum.Add(l.AllocatedDiscount)
	}
	return sum
}

// TransactionRef returns the referenced transaction id and kind
func (a *Allocation) TransactionRef() (uuid.UUID, TransactionKind) {
	if a.POSTransactionID != nil {
		return *a.POSTransactionID, TransactionKindPOS
	}
	if a.InvoiceID != nil {
		return *a.InvoiceID, TransactionKindInvoice
	}
	return uuid.Nil, ""
}
