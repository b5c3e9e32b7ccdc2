package handler

import (
	"net/http"

	appfinance "github.com/bizzytrack/backend/internal/application/finance"
	"github.com/bizzytrack/backend/internal/interfaces/http/dto"
	"github.com/bizzytrack/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AccountingHandler handles discount accounting HTTP requests
type AccountingHandler struct {
	BaseHandler
	service *appfinance.DiscountAccountingService
}

// NewAccountingHandler creates a new accounting handler
func NewAccountingHandler(service *appfinance.DiscountAccountingService) *AccountingHandler {
	return &AccountingHandler{service: service}
}

// TaxImpactRequest represents a tax impact estimation request
type TaxImpactRequest struct {
	dto.PeriodRequest
	TaxRate decimal.Decimal `form:"tax_rate" binding:"required"`
}

// CreateJournalEntry posts one applied allocation to the ledger
func (h *AccountingHandler) CreateJournalEntry(c *gin.Context) {
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

	var req appfinance.DiscountEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	entry, err := h.service.CreateDiscountJournalEntry(c.Request.Context(), tenantID, req, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, entry)
}

// CreateBulkJournalEntries posts every unaccounted applied allocation in
// the period as one balanced entry
func (h *AccountingHandler) CreateBulkJournalEntries(c *gin.Context) {
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

	var period dto.PeriodRequest
	if err := c.ShouldBindQuery(&period); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.service.CreateBulkDiscountJournalEntries(c.Request.Context(), tenantID, period.From, period.To, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Reconcile compares applied allocations against the journal over a period
func (h *AccountingHandler) Reconcile(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var period dto.PeriodRequest
	if err := c.ShouldBindQuery(&period); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	summary, err := h.service.ReconcileDiscounts(c.Request.Context(), tenantID, period.From, period.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// GetReconciliationReport returns the reconciliation summary plus the
// allocations still missing a journal entry
func (h *AccountingHandler) GetReconciliationReport(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var period dto.PeriodRequest
	if err := c.ShouldBindQuery(&period); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.service.GenerateReconciliationReport(c.Request.Context(), tenantID, period.From, period.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// GetUnaccountedDiscounts lists applied allocations without journal entries
func (h *AccountingHandler) GetUnaccountedDiscounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var period dto.PeriodRequest
	if err := c.ShouldBindQuery(&period); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	allocations, err := h.service.FindUnaccountedDiscounts(c.Request.Context(), tenantID, period.From, period.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"allocations": allocations})
}

// ListJournalEntries lists the period's discount journal entries
func (h *AccountingHandler) ListJournalEntries(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var period dto.PeriodRequest
	if err := c.ShouldBindQuery(&period); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	entries, err := h.service.GetDiscountJournalEntries(c.Request.Context(), tenantID, period.From, period.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"entries": entries})
}

// ExportJournalEntriesCSV streams the period's discount journal entries
// as CSV
func (h *AccountingHandler) ExportJournalEntriesCSV(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var period dto.PeriodRequest
	if err := c.ShouldBindQuery(&period); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	data, err := h.service.ExportDiscountJournalEntriesCSV(c.Request.Context(), tenantID, period.From, period.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="discount-journal-entries.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// EstimateTaxImpact computes the downstream tax effect of the period's
// applied discounts
func (h *AccountingHandler) EstimateTaxImpact(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var req TaxImpactRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	impact, err := h.service.EstimateTaxImpact(c.Request.Context(), tenantID, req.From, req.To, req.TaxRate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"tax_impact": impact, "tax_rate": req.TaxRate})
}
