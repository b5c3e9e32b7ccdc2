package discount

import (
	"fmt"
	"time"

	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApprovalStatus represents the state of a discount approval request
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// IsValid checks if the status is a valid ApprovalStatus
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of the status
func (s ApprovalStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// A request transitions exactly once and is never reopened.
func (s ApprovalStatus) CanTransitionTo(target ApprovalStatus) bool {
	if s != ApprovalStatusPending {
		return false
	}
	return target == ApprovalStatusApproved || target == ApprovalStatusRejected
}

// ProposedDiscount is one discount captured on an approval request
type ProposedDiscount struct {
	RuleID         uuid.UUID       `json:"rule_id"`
	RuleType       RuleType        `json:"rule_type"`
	Name           string          `json:"name"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Percentage     decimal.Decimal `json:"percentage"`
}

// ApprovalRequest tracks a manager-approval workflow for a discount that
// exceeded the tenant's threshold
type ApprovalRequest struct {
	shared.TenantEntity
	POSTransactionID  *uuid.UUID         `gorm:"type:uuid;index"`
	InvoiceID         *uuid.UUID         `gorm:"type:uuid;index"`
	ProposedDiscounts []ProposedDiscount `gorm:"serializer:json"`
	TotalDiscount     decimal.Decimal    `gorm:"type:numeric(18,2);not null"`
	TotalPercentage   decimal.Decimal    `gorm:"type:numeric(8,4);not null"`
	Status            ApprovalStatus     `gorm:"not null;default:'pending'"`
	RequestedBy       uuid.UUID          `gorm:"type:uuid;not null"`
	DecidedBy         *uuid.UUID         `gorm:"type:uuid"`
	DecidedAt         *time.Time
	DecisionNote      string
}

// TableName specifies the table name for ApprovalRequest
func (ApprovalRequest) TableName() string {
	return "discount_approval_requests"
}

// NewApprovalRequest creates a pending approval request referencing a real
// transaction
func NewApprovalRequest(
	tenantID uuid.UUID,
	posTransactionID, invoiceID *uuid.UUID,
	proposed []ProposedDiscount,
	totalDiscount, totalPercentage decimal.Decimal,
	requestedBy uuid.UUID,
) (*ApprovalRequest, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if posTransactionID == nil && invoiceID == nil {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_REF", "Approval request must reference a transaction")
	}
	if len(proposed) == 0 {
		return nil, shared.NewDomainError("NO_DISCOUNTS", "Approval request must carry at least one proposed discount")
	}
	if requestedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_REQUESTER", "Requesting user cannot be empty")
	}

	return &ApprovalRequest{
		TenantEntity:      shared.NewTenantEntity(tenantID),
		POSTransactionID:  posTransactionID,
		InvoiceID:         invoiceID,
		ProposedDiscounts: proposed,
		TotalDiscount:     totalDiscount,
		TotalPercentage:   totalPercentage,
		Status:            ApprovalStatusPending,
		RequestedBy:       requestedBy,
	}, nil
}

// Approve transitions the request to approved
func (r *ApprovalRequest) Approve(decidedBy uuid.UUID, note string) error {
	return r.decide(ApprovalStatusApproved, decidedBy, note)
}

// Reject transitions the request to rejected
func (r *ApprovalRequest) Reject(decidedBy uuid.UUID, note string) error {
	return r.decide(ApprovalStatusRejected, decidedBy, note)
}

func (r *ApprovalRequest) decide(target ApprovalStatus, decidedBy uuid.UUID, note string) error {
	if decidedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_DECIDER", "Deciding user cannot be empty")
	}
	if !r.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot transition approval request from %s to %s", r.Status, target))
	}
	now := time.Now()
	r.Status = target
	r.DecidedBy = &decidedBy
	r.DecidedAt = &now
	r.DecisionNote = note
	r.UpdatedAt = now
	return nil
}
