package handler

import (
	"github.com/gin-gonic/gin"
	settlementapp "github.com/openledger/settlement/internal/application/settlement"
)

// AuditHandler handles paid-amount audit endpoints
type AuditHandler struct {
	BaseHandler
	audit *settlementapp.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *settlementapp.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// RegisterRoutes registers the audit routes
func (h *AuditHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/invoices/:id/recalculate", h.Recalculate)
	rg.GET("/invoices/:id/validate", h.Validate)
}

// Recalculate re-sums an invoice's allocations and repairs its paid amount
func (h *AuditHandler) Recalculate(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid invoice ID")
		return
	}

	result, err := h.audit.RecalculatePaidAmount(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Validate checks an invoice's paid amount against its allocations without
// modifying anything
func (h *AuditHandler) Validate(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid invoice ID")
		return
	}

	result, err := h.audit.ValidatePaidAmount(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
