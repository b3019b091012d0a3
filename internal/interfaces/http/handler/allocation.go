package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	settlementapp "github.com/openledger/settlement/internal/application/settlement"
	"github.com/shopspring/decimal"
)

// AllocationHandler handles payment allocation endpoints
type AllocationHandler struct {
	BaseHandler
	allocations *settlementapp.AllocationService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(allocations *settlementapp.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocations: allocations}
}

// RegisterRoutes registers the allocation routes
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/:id/allocations", h.Allocate)
	rg.GET("/payments/:id/allocations", h.ListAllocations)
	rg.DELETE("/payments/:id/allocations", h.ClearAllocations)
	rg.GET("/allocations/:id", h.GetAllocation)
	rg.PUT("/allocations/:id", h.UpdateAllocation)
	rg.DELETE("/allocations/:id", h.RemoveAllocation)
	rg.GET("/invoices/:id/summary", h.GetPaymentSummary)
}

// AllocateRequest is the request body for applying a payment to an invoice
type AllocateRequest struct {
	InvoiceID string          `json:"invoice_id" binding:"required,uuid"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// UpdateAllocationRequest is the request body for resizing an allocation
type UpdateAllocationRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// ClearAllocationsResponse reports how many allocations were removed
type ClearAllocationsResponse struct {
	Cleared int `json:"cleared"`
}

// Allocate applies part of a payment to an invoice
func (h *AllocationHandler) Allocate(c *gin.Context) {
	paymentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid payment ID")
		return
	}

	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		h.BadRequest(c, "invalid invoice ID")
		return
	}

	allocation, err := h.allocations.Allocate(c.Request.Context(), paymentID, invoiceID, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, allocation)
}

// ListAllocations lists a payment's allocations
func (h *AllocationHandler) ListAllocations(c *gin.Context) {
	paymentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid payment ID")
		return
	}

	allocations, err := h.allocations.ListAllocations(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, allocations)
}

// ClearAllocations removes every allocation of a payment
func (h *AllocationHandler) ClearAllocations(c *gin.Context) {
	paymentID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid payment ID")
		return
	}

	cleared, err := h.allocations.ClearAllocations(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ClearAllocationsResponse{Cleared: cleared})
}

// GetAllocation returns a single allocation
func (h *AllocationHandler) GetAllocation(c *gin.Context) {
	allocationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid allocation ID")
		return
	}

	allocation, err := h.allocations.GetAllocation(c.Request.Context(), allocationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, allocation)
}

// UpdateAllocation resizes an allocation to a new absolute amount
func (h *AllocationHandler) UpdateAllocation(c *gin.Context) {
	allocationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid allocation ID")
		return
	}

	var req UpdateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	allocation, err := h.allocations.UpdateAllocation(c.Request.Context(), allocationID, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, allocation)
}

// RemoveAllocation deletes an allocation and refunds the invoice
func (h *AllocationHandler) RemoveAllocation(c *gin.Context) {
	allocationID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid allocation ID")
		return
	}

	if err := h.allocations.RemoveAllocation(c.Request.Context(), allocationID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// GetPaymentSummary reports how an invoice has been settled so far
func (h *AllocationHandler) GetPaymentSummary(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid invoice ID")
		return
	}

	summary, err := h.allocations.GetPaymentSummary(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}
