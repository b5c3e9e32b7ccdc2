package finance

import (
	"fmt"
	"time"

	"github.com/bizzytrack/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineType distinguishes debit and credit journal lines
type LineType string

const (
	LineTypeDebit  LineType = "debit"
	LineTypeCredit LineType = "credit"
)

// IsValid checks if the line type is valid
func (t LineType) IsValid() bool {
	return t == LineTypeDebit || t == LineTypeCredit
}

// JournalLine is one debit or credit line of a journal entry.
// Owned exclusively by its JournalEntry.
type JournalLine struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EntryID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountCode  string          `gorm:"not null;index"`
	LineType     LineType        `gorm:"not null"`
	Amount       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Description  string
	AllocationID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt    time.Time
}

// TableName specifies the table name for JournalLine
func (JournalLine) TableName() string {
	return "journal_lines"
}

// JournalEntry is a balanced double-entry bookkeeping record. Entries are
// never mutated after creation, only superseded by a new entry if corrected.
// An allocation id on the entry is a weak back-reference used for
// reconciliation lookups, not ownership.
type JournalEntry struct {
	shared.TenantEntity
	ReferenceNumber string          `gorm:"not null;uniqueIndex:idx_journal_tenant_ref,composite:tenant_id"`
	EntryDate       time.Time       `gorm:"not null;index"`
	Description     string
	SourceType      string          `gorm:"index"` // e.g. "discount_allocation"
	AllocationID    *uuid.UUID      `gorm:"type:uuid;index"`
	TotalDebit      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	TotalCredit     decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	CreatedBy       *uuid.UUID      `gorm:"type:uuid"`
	Lines           []JournalLine   `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for JournalEntry
func (JournalEntry) TableName() string {
	return "journal_entries"
}

// NewJournalEntry creates a balanced journal entry. An unbalanced line set
// (total debits != total credits) is rejected before any persistence.
func NewJournalEntry(
	tenantID uuid.UUID,
	referenceNumber string,
	entryDate time.Time,
	description string,
	lines []JournalLine,
	createdBy uuid.UUID,
) (*JournalEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if referenceNumber == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Reference number cannot be empty")
	}
	if len(lines) < 2 {
		return nil, shared.NewDomainError("TOO_FEW_LINES", "Journal entry requires at least one debit and one credit line")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		if !l.LineType.IsValid() {
			return nil, shared.NewDomainError("INVALID_LINE_TYPE", fmt.Sprintf("Unknown line type: %s", l.LineType))
		}
		if l.AccountCode == "" {
			return nil, shared.NewDomainError("INVALID_ACCOUNT_CODE", "Journal line account code cannot be empty")
		}
		if l.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewDomainError("INVALID_LINE_AMOUNT", "Journal line amount must be positive")
		}
		switch l.LineType {
		case LineTypeDebit:
			totalDebit = totalDebit.Add(l.Amount)
		case LineTypeCredit:
			totalCredit = totalCredit.Add(l.Amount)
		}
	}
	if !totalDebit.Equal(totalCredit) {
		return nil, shared.ErrUnbalancedEntry
	}

	entry := &JournalEntry{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		ReferenceNumber: referenceNumber,
		EntryDate:       entryDate,
		Description:     description,
		TotalDebit:      totalDebit,
		TotalCredit:     totalCredit,
		CreatedBy:       &createdBy,
	}
	entry.Lines = make([]JournalLine, len(lines))
	for i, l := range lines {
		l.ID = uuid.New()
		l.EntryID = entry.ID
		l.CreatedAt = entry.CreatedAt
		entry.Lines[i] = l
	}
	return entry, nil
}

// IsBalanced reports whether the entry's debits equal its credits
func (e *JournalEntry) IsBalanced() bool {
	return e.TotalDebit.Equal(e.TotalCredit)
}

// DebitTotalForAccounts sums the entry's debit lines on the given accounts
func (e *JournalEntry) DebitTotalForAccounts(codes map[string]struct{}) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range e.Lines {
		if l.LineType != LineTypeDebit {
			continue
		}
		if _, ok := codes[l.AccountCode]; ok {
			sum = sum.Add(l.Amount)
		}
	}
	return sum
}
