package handler

import (
	"net/http"

	appdiscount "github.com/bizzytrack/backend/internal/application/discount"
	"github.com/bizzytrack/backend/internal/domain/discount"
	"github.com/bizzytrack/backend/internal/interfaces/http/dto"
	"github.com/bizzytrack/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AllocationHandler handles discount allocation HTTP requests
type AllocationHandler struct {
	BaseHandler
	service *appdiscount.AllocationService
}

// NewAllocationHandler creates a new allocation handler
func NewAllocationHandler(service *appdiscount.AllocationService) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// VoidAllocationRequest represents a request to void an allocation
type VoidAllocationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// TransactionAllocationsRequest represents the path and query parameters
// for listing a transaction's allocations
type TransactionAllocationsRequest struct {
	Kind string `form:"kind" binding:"required,oneof=pos invoice"`
}

// Create creates a discount allocation, splitting the total across the
// transaction's line items
func (h *AllocationHandler) Create(c *gin.Context) {
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

	var req appdiscount.CreateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	allocation, err := h.service.CreateAllocation(c.Request.Context(), req, userID, tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, allocation)
}

// GetByID returns an allocation with its lines
func (h *AllocationHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	id, ok := h.allocationID(c)
	if !ok {
		return
	}

	allocation, err := h.service.GetAllocationWithLines(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, allocation)
}

// GetByTransaction lists every allocation referencing a transaction
func (h *AllocationHandler) GetByTransaction(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	transactionID, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	var query TransactionAllocationsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	allocations, err := h.service.GetTransactionAllocations(
		c.Request.Context(), tenantID, transactionID, discount.TransactionKind(query.Kind))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"allocations": allocations})
}

// Apply transitions a pending allocation to applied
func (h *AllocationHandler) Apply(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	id, ok := h.allocationID(c)
	if !ok {
		return
	}

	allocation, err := h.service.ApplyAllocation(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, allocation)
}

// Void voids an allocation and zeroes the transaction's discount total
func (h *AllocationHandler) Void(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	id, ok := h.allocationID(c)
	if !ok {
		return
	}

	var req VoidAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	allocation, err := h.service.VoidAllocation(c.Request.Context(), tenantID, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, allocation)
}

// CanVoid reports whether an allocation can still be voided
func (h *AllocationHandler) CanVoid(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	id, ok := h.allocationID(c)
	if !ok {
		return
	}

	canVoid, err := h.service.CanVoidAllocation(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"can_void": canVoid})
}

// GetUnallocatedDiscounts lists transactions carrying a discount total
// without an allocation row
func (h *AllocationHandler) GetUnallocatedDiscounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid tenant")
		return
	}

	headers, err := h.service.GetUnallocatedDiscounts(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"transactions": headers})
}

// GetReport summarizes a tenant's allocations over a period
func (h *AllocationHandler) GetReport(c *gin.Context) {
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

	report, err := h.service.GetAllocationReport(c.Request.Context(), tenantID, period.From, period.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// ExportCSV streams the period's allocations as CSV
func (h *AllocationHandler) ExportCSV(c *gin.Context) {
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

	data, err := h.service.ExportAllocationsCSV(c.Request.Context(), tenantID, period.From, period.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="discount-allocations.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

func (h *AllocationHandler) allocationID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid allocation ID")
		return uuid.Nil, false
	}
	return id, true
}
