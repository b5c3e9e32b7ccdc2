package finance

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/domain/finance"
	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SourceTypeDiscountAllocation tags journal entries generated from a
// discount allocation
const SourceTypeDiscountAllocation = "discount_allocation"

// DiscountEntryRequest asks for one journal entry recording one applied
// allocation
type DiscountEntryRequest struct {
	AllocationID uuid.UUID         `json:"allocation_id"`
	RuleType     discount.RuleType `json:"rule_type,omitempty"`
	EntryDate    time.Time         `json:"entry_date"`
	Description  string            `json:"description,omitempty"`
}

// BulkEntryResult summarizes a period-close bulk journal entry
type BulkEntryResult struct {
	ReferenceNumber string                     `json:"reference_number"`
	TotalDiscount   decimal.Decimal            `json:"total_discount"`
	DiscountCount   int                        `json:"discount_count"`
	Accounts        map[string]decimal.Decimal `json:"accounts"`
	Entry           *finance.JournalEntry      `json:"entry"`
}

// ReconciliationSummary compares applied allocations against the journal
// over a period
type ReconciliationSummary struct {
	From                time.Time       `json:"from"`
	To                  time.Time       `json:"to"`
	TotalAllocated      decimal.Decimal `json:"total_allocated"`
	TotalJournaled      decimal.Decimal `json:"total_journaled"`
	Difference          decimal.Decimal `json:"difference"`
	LinkedAllocations   int             `json:"linked_allocations"`
	UnlinkedAllocations int             `json:"unlinked_allocations"`
	IsReconciled        bool            `json:"is_reconciled"`
}

// ReconciliationReport is the full reconciliation output: the summary plus
// the allocations still missing a journal entry
type ReconciliationReport struct {
	Summary     ReconciliationSummary `json:"summary"`
	Unaccounted []discount.Allocation `json:"unaccounted"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// DiscountAccountingService turns applied discount allocations into
// balanced journal entries and reconciles the two sides
type DiscountAccountingService struct {
	entries     finance.JournalEntryRepository
	accounts    finance.ChartOfAccountsRepository
	allocations discount.AllocationRepository
	logger      *zap.Logger
}

// NewDiscountAccountingService creates a new DiscountAccountingService
func NewDiscountAccountingService(
	entries finance.JournalEntryRepository,
	accounts finance.ChartOfAccountsRepository,
	allocations discount.AllocationRepository,
	logger *zap.Logger,
) *DiscountAccountingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountAccountingService{
		entries:     entries,
		accounts:    accounts,
		allocations: allocations,
		logger:      logger,
	}
}

// CreateDiscountJournalEntry records one applied allocation in the ledger:
// debit the family's contra-revenue account, credit sales revenue
func (s *DiscountAccountingService) CreateDiscountJournalEntry(ctx context.Context, tenantID uuid.UUID, req DiscountEntryRequest, createdBy uuid.UUID) (*finance.JournalEntry, error) {
	allocation, err := s.allocations.FindByIDForTenant(ctx, tenantID, req.AllocationID)
	if err != nil {
		return nil, err
	}
	if allocation.Status != discount.AllocationStatusApplied {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot journal an allocation in %s status", allocation.Status))
	}

	ruleType := allocation.RuleType
	if req.RuleType != "" {
		ruleType = req.RuleType
	}
	debitAccount := finance.DiscountAccountForRuleType(ruleType)
	if err := s.requireAccounts(ctx, tenantID, debitAccount, finance.AccountSalesRevenue); err != nil {
		return nil, err
	}

	entryDate := req.EntryDate
	if entryDate.IsZero() {
		entryDate = time.Now().UTC()
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Discount allocation %s", allocation.AllocationNumber)
	}

	reference, err := s.nextReferenceNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	amount := allocation.TotalDiscountAmount
	lines := []finance.JournalLine{
		{
			AccountCode:  debitAccount,
			LineType:     finance.LineTypeDebit,
			Amount:       amount,
			Description:  description,
			AllocationID: &allocation.ID,
		},
		{
			AccountCode:  finance.AccountSalesRevenue,
			LineType:     finance.LineTypeCredit,
			Amount:       amount,
			Description:  description,
			AllocationID: &allocation.ID,
		},
	}

	entry, err := finance.NewJournalEntry(tenantID, reference, entryDate, description, lines, createdBy)
	if err != nil {
		return nil, err
	}
	entry.SourceType = SourceTypeDiscountAllocation
	entry.AllocationID = &allocation.ID

	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting journal entry: %w", err)
	}

	s.logger.Info("discount journal entry created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("reference_number", entry.ReferenceNumber),
		zap.String("allocation_number", allocation.AllocationNumber),
		zap.String("debit_account", debitAccount),
		zap.String("amount", amount.String()))
	return entry, nil
}

// CreateBulkDiscountJournalEntries closes a period: it aggregates every
// applied-but-unjournaled allocation in the range into a single balanced
// entry with one debit per distinct discount account and one balancing
// credit to sales revenue
func (s *DiscountAccountingService) CreateBulkDiscountJournalEntries(ctx context.Context, tenantID uuid.UUID, from, to time.Time, createdBy uuid.UUID) (*BulkEntryResult, error) {
	unaccounted, err := s.FindUnaccountedDiscounts(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	if len(unaccounted) == 0 {
		return nil, shared.NewDomainError("NOTHING_TO_JOURNAL", "No unaccounted discount allocations in the period")
	}

	perAccount := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, a := range unaccounted {
		account := finance.DiscountAccountForRuleType(a.RuleType)
		perAccount[account] = perAccount[account].Add(a.TotalDiscountAmount)
		total = total.Add(a.TotalDiscountAmount)
	}

	accountCodes := make([]string, 0, len(perAccount)+1)
	for code := range perAccount {
		accountCodes = append(accountCodes, code)
	}
	accountCodes = append(accountCodes, finance.AccountSalesRevenue)
	if err := s.requireAccounts(ctx, tenantID, accountCodes...); err != nil {
		return nil, err
	}

	reference, err := s.nextReferenceNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	description := fmt.Sprintf("Discount allocations %s to %s",
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	lines := make([]finance.JournalLine, 0, len(perAccount)+1)
	for code, amount := range perAccount {
		lines = append(lines, finance.JournalLine{
			AccountCode: code,
			LineType:    finance.LineTypeDebit,
			Amount:      amount,
			Description: description,
		})
	}
	lines = append(lines, finance.JournalLine{
		AccountCode: finance.AccountSalesRevenue,
		LineType:    finance.LineTypeCredit,
		Amount:      total,
		Description: description,
	})

	entry, err := finance.NewJournalEntry(tenantID, reference, time.Now().UTC(), description, lines, createdBy)
	if err != nil {
		return nil, err
	}
	entry.SourceType = SourceTypeDiscountAllocation

	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("persisting bulk journal entry: %w", err)
	}

	s.logger.Info("bulk discount journal entry created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("reference_number", entry.ReferenceNumber),
		zap.Int("discount_count", len(unaccounted)),
		zap.String("total_discount", total.String()))

	return &BulkEntryResult{
		ReferenceNumber: entry.ReferenceNumber,
		TotalDiscount:   total,
		DiscountCount:   len(unaccounted),
		Accounts:        perAccount,
		Entry:           entry,
	}, nil
}

// ReconcileDiscounts compares the applied-allocation total against the
// journaled discount debits over a period
func (s *DiscountAccountingService) ReconcileDiscounts(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*ReconciliationSummary, error) {
	applied, err := s.appliedAllocations(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	totalAllocated := decimal.Zero
	ids := make([]uuid.UUID, len(applied))
	for i, a := range applied {
		totalAllocated = totalAllocated.Add(a.TotalDiscountAmount)
		ids[i] = a.ID
	}

	linked, err := s.entries.FindAllocationIDsWithEntries(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, 4)
	for code := range finance.DiscountAccountCodes() {
		codes = append(codes, code)
	}
	totalJournaled, err := s.entries.SumDebitsByAccounts(ctx, tenantID, codes, from, to)
	if err != nil {
		return nil, err
	}

	difference := totalAllocated.Sub(totalJournaled)
	summary := &ReconciliationSummary{
		From:                from,
		To:                  to,
		TotalAllocated:      totalAllocated,
		TotalJournaled:      totalJournaled,
		Difference:          difference,
		LinkedAllocations:   len(linked),
		UnlinkedAllocations: len(applied) - len(linked),
		IsReconciled:        difference.Abs().LessThanOrEqual(discount.AllocationSumEpsilon) && len(applied) == len(linked),
	}
	return summary, nil
}

// FindUnaccountedDiscounts lists applied allocations in the period that no
// journal entry references
func (s *DiscountAccountingService) FindUnaccountedDiscounts(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]discount.Allocation, error) {
	applied, err := s.appliedAllocations(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(applied))
	for i, a := range applied {
		ids[i] = a.ID
	}
	linked, err := s.entries.FindAllocationIDsWithEntries(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	var unaccounted []discount.Allocation
	for _, a := range applied {
		if _, ok := linked[a.ID]; !ok {
			unaccounted = append(unaccounted, a)
		}
	}
	return unaccounted, nil
}

// GenerateReconciliationReport bundles the summary with the unaccounted
// allocation list
func (s *DiscountAccountingService) GenerateReconciliationReport(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*ReconciliationReport, error) {
	summary, err := s.ReconcileDiscounts(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	unaccounted, err := s.FindUnaccountedDiscounts(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	return &ReconciliationReport{
		Summary:     *summary,
		Unaccounted: unaccounted,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// GetDiscountJournalEntries lists the period's discount-sourced journal
// entries
func (s *DiscountAccountingService) GetDiscountJournalEntries(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]finance.JournalEntry, error) {
	return s.entries.FindByPeriod(ctx, tenantID, SourceTypeDiscountAllocation, from, to)
}

// ExportDiscountJournalEntriesCSV renders the period's discount journal
// entries as CSV
func (s *DiscountAccountingService) ExportDiscountJournalEntriesCSV(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]byte, error) {
	entries, err := s.GetDiscountJournalEntries(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Reference Number", "Entry Date", "Description", "Line Count", "Total Debit"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			e.ReferenceNumber,
			e.EntryDate.Format("2006-01-02"),
			e.Description,
			fmt.Sprintf("%d", len(e.Lines)),
			e.TotalDebit.StringFixed(2),
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

// EstimateTaxImpact reports the tax no longer owed on the period's applied
// discounts at the given rate
func (s *DiscountAccountingService) EstimateTaxImpact(ctx context.Context, tenantID uuid.UUID, from, to time.Time, taxRatePercent decimal.Decimal) (decimal.Decimal, error) {
	applied, err := s.appliedAllocations(ctx, tenantID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range applied {
		total = total.Add(a.TotalDiscountAmount)
	}
	return finance.CalculateTaxImpact(total, taxRatePercent), nil
}

func (s *DiscountAccountingService) appliedAllocations(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]discount.Allocation, error) {
	all, err := s.allocations.FindByDateRange(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	applied := make([]discount.Allocation, 0, len(all))
	for _, a := range all {
		if a.Status == discount.AllocationStatusApplied {
			applied = append(applied, a)
		}
	}
	return applied, nil
}

// requireAccounts verifies every code has a chart-of-accounts row
func (s *DiscountAccountingService) requireAccounts(ctx context.Context, tenantID uuid.UUID, codes ...string) error {
	for _, code := range codes {
		account, err := s.accounts.FindByCode(ctx, tenantID, code)
		if err != nil {
			return err
		}
		if account == nil {
			return shared.ErrMissingAccount
		}
	}
	return nil
}

// nextReferenceNumber builds a per-tenant, per-day sequential reference
// like JE-20260831-0001
func (s *DiscountAccountingService) nextReferenceNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	today := time.Now().UTC()
	count, err := s.entries.CountForTenantOn(ctx, tenantID, today)
	if err != nil {
		return "", fmt.Errorf("counting journal entries: %w", err)
	}
	return fmt.Sprintf("JE-%s-%04d", today.Format("20060102"), count+1), nil
}
