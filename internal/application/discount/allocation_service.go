package discount

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAllocationRequest carries everything needed to allocate one
// aggregate discount across transaction lines
type CreateAllocationRequest struct {
	POSTransactionID  *uuid.UUID                 `json:"pos_transaction_id"`
	InvoiceID         *uuid.UUID                 `json:"invoice_id"`
	DiscountRuleID    *uuid.UUID                 `json:"discount_rule_id"`
	PromotionalRuleID *uuid.UUID                 `json:"promotional_rule_id"`
	RuleType          discount.RuleType          `json:"rule_type,omitempty"`
	TotalDiscount     decimal.Decimal            `json:"total_discount"`
	Percentage        decimal.Decimal            `json:"percentage"`
	Method            discount.AllocationMethod  `json:"allocation_method"`
	Weights           []decimal.Decimal          `json:"weights,omitempty"`
	LineItems         []discount.ContextLineItem `json:"line_items"`
	AutoApply         bool                       `json:"auto_apply"`
}

// AllocationReport summarizes a tenant's allocations over a period
type AllocationReport struct {
	From               time.Time             `json:"from"`
	To                 time.Time             `json:"to"`
	AppliedCount       int                   `json:"applied_count"`
	PendingCount       int                   `json:"pending_count"`
	VoidCount          int                   `json:"void_count"`
	GrandTotalDiscount decimal.Decimal       `json:"grand_total_discount"`
	Allocations        []discount.Allocation `json:"allocations"`
}

// AllocationService owns the allocation lifecycle: computing the split,
// persisting header and lines atomically, applying and voiding
type AllocationService struct {
	allocations  discount.AllocationRepository
	transactions discount.TransactionStore
	logger       *zap.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	allocations discount.AllocationRepository,
	transactions discount.TransactionStore,
	logger *zap.Logger,
) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationService{
		allocations:  allocations,
		transactions: transactions,
		logger:       logger,
	}
}

// CreateAllocation computes the line split with the requested method,
// validates the distribution invariants, persists the allocation and
// writes the discount total back onto the referenced transaction
func (s *AllocationService) CreateAllocation(ctx context.Context, req CreateAllocationRequest, userID, tenantID uuid.UUID) (*discount.Allocation, error) {
	if len(req.LineItems) == 0 {
		items, err := s.resolveLineItems(ctx, tenantID, req)
		if err != nil {
			return nil, err
		}
		req.LineItems = items
	}

	lines, total, err := s.computeLines(req)
	if err != nil {
		return nil, err
	}

	number, err := s.nextAllocationNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	allocation, err := discount.NewAllocation(
		tenantID,
		number,
		req.POSTransactionID, req.InvoiceID,
		req.DiscountRuleID, req.PromotionalRuleID,
		req.RuleType,
		total,
		req.Method,
		userID,
	)
	if err != nil {
		return nil, err
	}
	if err := allocation.AttachLines(lines); err != nil {
		return nil, err
	}
	if req.AutoApply {
		if err := allocation.Apply(); err != nil {
			return nil, err
		}
	}

	if err := s.allocations.Create(ctx, allocation); err != nil {
		return nil, fmt.Errorf("persisting allocation: %w", err)
	}

	txnID, kind := allocation.TransactionRef()
	if err := s.transactions.UpdateDiscountTotal(ctx, tenantID, txnID, kind, total); err != nil {
		s.logger.Warn("failed to write discount total back to transaction",
			zap.String("allocation_number", allocation.AllocationNumber),
			zap.String("transaction_id", txnID.String()),
			zap.Error(err))
	}

	s.logger.Info("discount allocation created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("allocation_number", allocation.AllocationNumber),
		zap.String("method", string(allocation.Method)),
		zap.String("total_discount", total.String()),
		zap.Int("line_count", len(allocation.Lines)))
	return allocation, nil
}

// GetAllocationWithLines loads one allocation, lines included
func (s *AllocationService) GetAllocationWithLines(ctx context.Context, tenantID, id uuid.UUID) (*discount.Allocation, error) {
	return s.allocations.FindByIDForTenant(ctx, tenantID, id)
}

// GetTransactionAllocations lists every allocation referencing a transaction
func (s *AllocationService) GetTransactionAllocations(ctx context.Context, tenantID, transactionID uuid.UUID, kind discount.TransactionKind) ([]discount.Allocation, error) {
	return s.allocations.FindByTransaction(ctx, tenantID, transactionID, kind)
}

// ApplyAllocation transitions a pending allocation to APPLIED
func (s *AllocationService) ApplyAllocation(ctx context.Context, tenantID, id uuid.UUID) (*discount.Allocation, error) {
	allocation, err := s.allocations.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := allocation.Apply(); err != nil {
		return nil, err
	}
	if err := s.allocations.SaveWithLock(ctx, allocation); err != nil {
		return nil, err
	}
	return allocation, nil
}

// CanVoidAllocation reports whether the allocation may still be voided
func (s *AllocationService) CanVoidAllocation(ctx context.Context, tenantID, id uuid.UUID) (bool, error) {
	allocation, err := s.allocations.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return false, err
	}
	return allocation.Status.CanTransitionTo(discount.AllocationStatusVoid), nil
}

// VoidAllocation voids an allocation and zeroes the discount total on the
// referenced transaction. The optimistic version check makes a concurrent
// double-void fail rather than silently succeed.
func (s *AllocationService) VoidAllocation(ctx context.Context, tenantID, id uuid.UUID, reason string) (*discount.Allocation, error) {
	allocation, err := s.allocations.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := allocation.Void(reason); err != nil {
		return nil, err
	}
	if err := s.allocations.SaveWithLock(ctx, allocation); err != nil {
		return nil, err
	}

	txnID, kind := allocation.TransactionRef()
	if err := s.transactions.UpdateDiscountTotal(ctx, tenantID, txnID, kind, decimal.Zero); err != nil {
		s.logger.Warn("failed to clear discount total on transaction",
			zap.String("allocation_number", allocation.AllocationNumber),
			zap.Error(err))
	}

	s.logger.Info("discount allocation voided",
		zap.String("tenant_id", tenantID.String()),
		zap.String("allocation_number", allocation.AllocationNumber),
		zap.String("reason", reason))
	return allocation, nil
}

// GetUnallocatedDiscounts runs the data-integrity sweep: transactions
// carrying a discount total with no allocation row behind it
func (s *AllocationService) GetUnallocatedDiscounts(ctx context.Context, tenantID uuid.UUID) ([]discount.TransactionHeader, error) {
	return s.transactions.FindDiscountedWithoutAllocation(ctx, tenantID)
}

// GetAllocationReport summarizes the tenant's allocations in a period.
// Only APPLIED allocations contribute to the grand total.
func (s *AllocationService) GetAllocationReport(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*AllocationReport, error) {
	allocations, err := s.allocations.FindByDateRange(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	report := &AllocationReport{
		From:               from,
		To:                 to,
		GrandTotalDiscount: decimal.Zero,
		Allocations:        allocations,
	}
	for _, a := range allocations {
		switch a.Status {
		case discount.AllocationStatusApplied:
			report.AppliedCount++
			report.GrandTotalDiscount = report.GrandTotalDiscount.Add(a.TotalDiscountAmount)
		case discount.AllocationStatusPending:
			report.PendingCount++
		case discount.AllocationStatusVoid:
			report.VoidCount++
		}
	}
	return report, nil
}

// ExportAllocationsCSV renders the period's allocations as CSV
func (s *AllocationService) ExportAllocationsCSV(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]byte, error) {
	allocations, err := s.allocations.FindByDateRange(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Allocation Number", "Date", "Transaction Type", "Method", "Status", "Line Count", "Total Discount"}); err != nil {
		return nil, err
	}
	for _, a := range allocations {
		_, kind := a.TransactionRef()
		record := []string{
			a.AllocationNumber,
			a.CreatedAt.Format("2006-01-02"),
			string(kind),
			string(a.Method),
			a.Status.String(),
			fmt.Sprintf("%d", len(a.Lines)),
			a.TotalDiscountAmount.StringFixed(2),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resolveLineItems loads the referenced transaction's lines when the
// caller did not supply them
func (s *AllocationService) resolveLineItems(ctx context.Context, tenantID uuid.UUID, req CreateAllocationRequest) ([]discount.ContextLineItem, error) {
	var txnID uuid.UUID
	var kind discount.TransactionKind
	switch {
	case req.POSTransactionID != nil:
		txnID, kind = *req.POSTransactionID, discount.TransactionKindPOS
	case req.InvoiceID != nil:
		txnID, kind = *req.InvoiceID, discount.TransactionKindInvoice
	default:
		return nil, shared.NewDomainError("INVALID_TRANSACTION_REF", "Allocation must reference a POS transaction or an invoice")
	}

	header, err := s.transactions.FindHeader(ctx, tenantID, txnID, kind)
	if err != nil {
		return nil, err
	}
	items := make([]discount.ContextLineItem, len(header.Lines))
	for i, l := range header.Lines {
		items[i] = discount.ContextLineItem{ID: l.ID, Amount: l.Amount, Quantity: l.Quantity}
	}
	return items, nil
}

// computeLines dispatches to the allocation algorithm named by the request
// and validates the distribution it produced
func (s *AllocationService) computeLines(req CreateAllocationRequest) ([]discount.AllocatedLine, decimal.Decimal, error) {
	var (
		lines []discount.AllocatedLine
		err   error
	)
	switch req.Method {
	case discount.AllocationMethodLineAmount:
		lines, err = discount.AllocateByLineAmount(req.LineItems, req.TotalDiscount)
	case discount.AllocationMethodQuantity:
		lines, err = discount.AllocateByQuantity(req.LineItems, req.TotalDiscount)
	case discount.AllocationMethodCustomWeights:
		lines, err = discount.AllocateByCustomWeights(req.LineItems, req.Weights, req.TotalDiscount)
	case discount.AllocationMethodPercentage:
		lines, err = discount.AllocateByPercentage(req.LineItems, req.Percentage)
	default:
		return nil, decimal.Zero, shared.NewDomainError("INVALID_ALLOCATION_METHOD",
			fmt.Sprintf("Unknown allocation method: %s", req.Method))
	}
	if err != nil {
		return nil, decimal.Zero, err
	}

	// the percentage method derives its own total from the lines
	total := req.TotalDiscount
	if req.Method == discount.AllocationMethodPercentage {
		total = decimal.Zero
		for _, l := range lines {
			total = total.Add(l.AllocatedDiscount)
		}
	}

	validation := discount.ValidateAllocationTotal(lines, total)
	if !validation.Valid {
		return nil, decimal.Zero, shared.NewDomainError("ALLOCATION_SUM_MISMATCH",
			fmt.Sprintf("Line discounts sum to %s, expected %s", validation.Actual, validation.Expected))
	}
	return lines, total, nil
}

// nextAllocationNumber builds a per-tenant, per-day sequential number like
// DA-20260831-0001
func (s *AllocationService) nextAllocationNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	today := time.Now().UTC()
	count, err := s.allocations.CountForTenantOn(ctx, tenantID, today)
	if err != nil {
		return "", fmt.Errorf("counting allocations: %w", err)
	}
	return fmt.Sprintf("DA-%s-%04d", today.Format("20060102"), count+1), nil
}
