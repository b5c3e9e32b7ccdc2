package handler

import (
	"time"

	appdiscount "github.com/bizzytrack/backend/internal/application/discount"
	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/interfaces/http/dto"
	"github.com/bizzytrack/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingHandler handles discount pricing HTTP requests
type PricingHandler struct {
	BaseHandler
	engine    *appdiscount.RuleEngine
	discovery *appdiscount.DiscoveryService
}

// NewPricingHandler creates a new pricing handler
func NewPricingHandler(engine *appdiscount.RuleEngine, discovery *appdiscount.DiscoveryService) *PricingHandler {
	return &PricingHandler{
		engine:    engine,
		discovery: discovery,
	}
}

// LineItemRequest represents one transaction line in a pricing request
type LineItemRequest struct {
	ID       string          `json:"id" binding:"required,uuid"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PricingContextRequest represents the pricing input for a transaction
type PricingContextRequest struct {
	CustomerID       *uuid.UUID        `json:"customer_id"`
	CustomerCategory string            `json:"customer_category"`
	ItemID           *uuid.UUID        `json:"item_id"`
	CategoryID       *uuid.UUID        `json:"category_id"`
	ServiceID        *uuid.UUID        `json:"service_id"`
	Amount           decimal.Decimal   `json:"amount" binding:"required"`
	Quantity         decimal.Decimal   `json:"quantity"`
	TransactionDate  *time.Time        `json:"transaction_date"`
	PromoCode        string            `json:"promo_code"`
	LineItems        []LineItemRequest `json:"line_items" binding:"omitempty,dive"`
	POSTransactionID *uuid.UUID        `json:"pos_transaction_id"`
	InvoiceID        *uuid.UUID        `json:"invoice_id"`
	PreApproved      bool              `json:"pre_approved"`
	CreateAllocation bool              `json:"create_allocation"`
	AllocationMethod string            `json:"allocation_method" binding:"omitempty,oneof=LINE_AMOUNT QUANTITY CUSTOM_WEIGHTS PERCENTAGE"`
}

func (r PricingContextRequest) toContext(tenantID uuid.UUID) discount.PricingContext {
	pctx := discount.PricingContext{
		TenantID:         tenantID,
		CustomerID:       r.CustomerID,
		CustomerCategory: r.CustomerCategory,
		ItemID:           r.ItemID,
		CategoryID:       r.CategoryID,
		ServiceID:        r.ServiceID,
		Amount:           r.Amount,
		Quantity:         r.Quantity,
		TransactionDate:  time.Now(),
		PromoCode:        r.PromoCode,
		POSTransactionID: r.POSTransactionID,
		InvoiceID:        r.InvoiceID,
		PreApproved:      r.PreApproved,
		CreateAllocation: r.CreateAllocation,
		AllocationMethod: discount.AllocationMethod(r.AllocationMethod),
	}
	if r.TransactionDate != nil {
		pctx.TransactionDate = *r.TransactionDate
	}
	for _, li := range r.LineItems {
		id, err := uuid.Parse(li.ID)
		if err != nil {
			continue
		}
		pctx.LineItems = append(pctx.LineItems, discount.ContextLineItem{
			ID:       id,
			Amount:   li.Amount,
			Quantity: li.Quantity,
		})
	}
	return pctx
}

// ConflictCheckRequest represents a set of discounts to check for conflicts
type ConflictCheckRequest struct {
	Discounts []discount.AppliedDiscount `json:"discounts" binding:"required"`
}

// ApprovalDecisionRequest represents a manager's decision on a request
type ApprovalDecisionRequest struct {
	Note string `json:"note"`
}

// PromoValidationResponse represents the outcome of a promo code check
type PromoValidationResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// CalculateFinalPrice computes the final price for a transaction, applying
// every applicable discount
func (h *PricingHandler) CalculateFinalPrice(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req PricingContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.engine.CalculateFinalPrice(c.Request.Context(), req.toContext(tenantID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// QuickCalculate computes the discounted total without line-level detail
func (h *PricingHandler) QuickCalculate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req PricingContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.engine.QuickCalculate(c.Request.Context(), req.toContext(tenantID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// PreviewDiscounts lists applicable discounts without persisting anything
func (h *PricingHandler) PreviewDiscounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req PricingContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.engine.PreviewDiscounts(c.Request.Context(), req.toContext(tenantID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// FindBestCombination returns the stackable discount set that maximizes
// the customer's savings
func (h *PricingHandler) FindBestCombination(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req PricingContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	discounts, err := h.engine.FindBestCombination(c.Request.Context(), req.toContext(tenantID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"discounts": discounts})
}

// CheckConflicts reports same-family and stacking collisions in a
// discount set
func (h *PricingHandler) CheckConflicts(c *gin.Context) {
	var req ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	h.Success(c, h.engine.CheckConflicts(req.Discounts))
}

// ValidatePromoCode checks a promo code against its validity window, usage
// caps and minimum purchase
func (h *PricingHandler) ValidatePromoCode(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req PricingContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if req.PromoCode == "" {
		h.BadRequest(c, "promo_code is required")
		return
	}

	validation, err := h.discovery.ValidatePromoCode(c.Request.Context(), req.toContext(tenantID))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, PromoValidationResponse{Valid: validation.Valid, Reason: validation.Reason})
}

// SubmitForApproval creates a pending approval request for a discount that
// exceeds the tenant's threshold
func (h *PricingHandler) SubmitForApproval(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user")
		return
	}

	var req PricingContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.engine.SubmitForApproval(c.Request.Context(), req.toContext(tenantID), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// ListPendingApprovals lists the tenant's undecided approval requests
func (h *PricingHandler) ListPendingApprovals(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	requests, err := h.engine.ListPendingApprovals(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"requests": requests})
}

// ApproveRequest approves a pending discount approval request
func (h *PricingHandler) ApproveRequest(c *gin.Context) {
	h.decideApproval(c, true)
}

// RejectRequest rejects a pending discount approval request
func (h *PricingHandler) RejectRequest(c *gin.Context) {
	h.decideApproval(c, false)
}

func (h *PricingHandler) decideApproval(c *gin.Context, approve bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid user")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	approvalID, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid approval ID")
		return
	}

	var req ApprovalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		middleware.HandleValidationError(c, err)
		return
	}

	request, err := h.engine.DecideApproval(c.Request.Context(), tenantID, approvalID, userID, approve, req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, request)
}

// InvalidateCache drops every cached pricing result for the tenant
func (h *PricingHandler) InvalidateCache(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	h.engine.InvalidateCache(tenantID)
	h.NoContent(c)
}
