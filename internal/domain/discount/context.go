package discount

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContextLineItem is one line of the transaction being priced
type ContextLineItem struct {
	ID       uuid.UUID       `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PricingContext carries everything the rule engine needs to price one
// transaction. It is ephemeral: constructed per call, never persisted.
type PricingContext struct {
	TenantID         uuid.UUID
	CustomerID       *uuid.UUID
	CustomerCategory string
	ItemID           *uuid.UUID
	CategoryID       *uuid.UUID
	ServiceID        *uuid.UUID
	Amount           decimal.Decimal
	Quantity         decimal.Decimal
	TransactionDate  time.Time
	PromoCode        string
	LineItems        []ContextLineItem

	// Transaction reference for allocation / approval persistence.
	// Exactly one of POSTransactionID or InvoiceID is set when persisting.
	POSTransactionID *uuid.UUID
	InvoiceID        *uuid.UUID

	PreApproved      bool
	CreateAllocation bool
	AllocationMethod AllocationMethod
}

// CacheKey returns a canonical serialization of the context used as the
// pricing-cache key. Field order is fixed and line items are sorted by ID so
// equivalent contexts produce identical keys.
func (c PricingContext) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "t=%s", c.TenantID)
	if c.CustomerID != nil {
		fmt.Fprintf(&b, "|cust=%s", c.CustomerID)
	}
	if c.CustomerCategory != "" {
		fmt.Fprintf(&b, "|ccat=%s", c.CustomerCategory)
	}
	if c.ItemID != nil {
		fmt.Fprintf(&b, "|item=%s", c.ItemID)
	}
	if c.CategoryID != nil {
		fmt.Fprintf(&b, "|cat=%s", c.CategoryID)
	}
	if c.ServiceID != nil {
		fmt.Fprintf(&b, "|svc=%s", c.ServiceID)
	}
	fmt.Fprintf(&b, "|amt=%s|qty=%s|date=%s", c.Amount, c.Quantity, DateOnly(c.TransactionDate).Format("2006-01-02"))
	if c.PromoCode != "" {
		fmt.Fprintf(&b, "|promo=%s", c.PromoCode)
	}
	if len(c.LineItems) > 0 {
		items := make([]ContextLineItem, len(c.LineItems))
		copy(items, c.LineItems)
		sort.Slice(items, func(i, j int) bool {
			return items[i].ID.String() < items[j].ID.String()
		})
		for _, it := range items {
			fmt.Fprintf(&b, "|li=%s:%s:%s", it.ID, it.Amount, it.Quantity)
		}
	}
	return b.String()
}

// TransactionKind distinguishes the two transaction sources an allocation
// or pricing context can reference
type TransactionKind string

const (
	TransactionKindPOS     TransactionKind = "pos"
	TransactionKindInvoice TransactionKind = "invoice"
)

// IsValid checks if the transaction kind is valid
func (k TransactionKind) IsValid() bool {
	return k == TransactionKindPOS || k == TransactionKindInvoice
}

// TransactionLine is a line item read from the transaction store
type TransactionLine struct {
	ID       uuid.UUID
	Amount   decimal.Decimal
	Quantity decimal.Decimal
}

// TransactionHeader is the slice of a POS ticket or invoice this engine
// reads from the transaction store
type TransactionHeader struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Kind          TransactionKind
	Number        string
	TotalAmount   decimal.Decimal
	DiscountTotal decimal.Decimal
	Date          time.Time
	Lines         []TransactionLine
}
