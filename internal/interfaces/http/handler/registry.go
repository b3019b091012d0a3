package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	settlementapp "github.com/openledger/settlement/internal/application/settlement"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RegistryHandler handles invoice and payment registration endpoints
type RegistryHandler struct {
	BaseHandler
	registry *settlementapp.RegistryService
}

// NewRegistryHandler creates a new RegistryHandler
func NewRegistryHandler(registry *settlementapp.RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// RegisterRoutes registers the registry routes
func (h *RegistryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/invoices", h.CreateInvoice)
	rg.GET("/invoices/:id", h.GetInvoice)
	rg.POST("/payments", h.CreatePayment)
	rg.GET("/payments/:id", h.GetPayment)
}

// CreateInvoiceRequest is the request body for creating an invoice
type CreateInvoiceRequest struct {
	InvoiceNumber     string          `json:"invoice_number" binding:"required,max=50"`
	Direction         string          `json:"direction" binding:"required,oneof=AR AP"`
	BusinessPartnerID string          `json:"business_partner_id" binding:"required,uuid"`
	Currency          string          `json:"currency" binding:"required,len=3"`
	Total             decimal.Decimal `json:"total" binding:"required"`
	Date              time.Time       `json:"date" binding:"required"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                string          `json:"id"`
	InvoiceNumber     string          `json:"invoice_number"`
	Direction         string          `json:"direction"`
	BusinessPartnerID string          `json:"business_partner_id"`
	Currency          string          `json:"currency"`
	Date              time.Time       `json:"date"`
	Total             decimal.Decimal `json:"total"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PaymentStatus     string          `json:"payment_status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

func toInvoiceResponse(inv *settlement.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                inv.ID.String(),
		InvoiceNumber:     inv.InvoiceNumber,
		Direction:         string(inv.Direction),
		BusinessPartnerID: inv.BusinessPartnerID.String(),
		Currency:          string(inv.Currency),
		Date:              inv.Date,
		Total:             inv.Total,
		PaidAmount:        inv.PaidAmount,
		PaymentStatus:     string(inv.PaymentStatus),
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
		Version:           inv.Version,
	}
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                string          `json:"id"`
	PaymentNumber     string          `json:"payment_number"`
	Direction         string          `json:"direction"`
	BusinessPartnerID string          `json:"business_partner_id"`
	Currency          string          `json:"currency"`
	Amount            decimal.Decimal `json:"amount"`
	Date              time.Time       `json:"date"`
	Reference         string          `json:"reference,omitempty"`
	Memo              string          `json:"memo,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

func toPaymentResponse(p *settlement.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID.String(),
		PaymentNumber:     p.PaymentNumber,
		Direction:         string(p.Direction),
		BusinessPartnerID: p.BusinessPartnerID.String(),
		Currency:          string(p.Currency),
		Amount:            p.Amount,
		Date:              p.Date,
		Reference:         p.Reference,
		Memo:              p.Memo,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
}

// CreateInvoice posts a new invoice
func (h *RegistryHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	partnerID, err := uuid.Parse(req.BusinessPartnerID)
	if err != nil {
		h.BadRequest(c, "invalid business partner ID")
		return
	}

	total, err := valueobject.NewMoney(req.Total, valueobject.Currency(req.Currency))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	invoice, err := h.registry.CreateInvoice(c.Request.Context(), settlementapp.CreateInvoiceRequest{
		InvoiceNumber:     req.InvoiceNumber,
		Direction:         settlement.Direction(req.Direction),
		BusinessPartnerID: partnerID,
		Total:             total,
		Date:              req.Date,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toInvoiceResponse(invoice))
}

// GetInvoice returns a single invoice
func (h *RegistryHandler) GetInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid invoice ID")
		return
	}

	invoice, err := h.registry.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(invoice))
}

// CreatePaymentRequest is the request body for registering a payment
type CreatePaymentRequest struct {
	PaymentNumber     string          `json:"payment_number" binding:"required,max=50"`
	Direction         string          `json:"direction" binding:"required,oneof=AR AP"`
	BusinessPartnerID string          `json:"business_partner_id" binding:"required,uuid"`
	Currency          string          `json:"currency" binding:"required,len=3"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Date              time.Time       `json:"date" binding:"required"`
	Reference         string          `json:"reference" binding:"omitempty,max=100"`
	Memo              string          `json:"memo"`
}

// CreatePayment registers a received or issued payment
func (h *RegistryHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	partnerID, err := uuid.Parse(req.BusinessPartnerID)
	if err != nil {
		h.BadRequest(c, "invalid business partner ID")
		return
	}

	amount, err := valueobject.NewMoney(req.Amount, valueobject.Currency(req.Currency))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	payment, err := h.registry.CreatePayment(c.Request.Context(), settlementapp.CreatePaymentRequest{
		PaymentNumber:     req.PaymentNumber,
		Direction:         settlement.Direction(req.Direction),
		BusinessPartnerID: partnerID,
		Amount:            amount,
		Date:              req.Date,
		Reference:         req.Reference,
		Memo:              req.Memo,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toPaymentResponse(payment))
}

// GetPayment returns a single payment
func (h *RegistryHandler) GetPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid payment ID")
		return
	}

	payment, err := h.registry.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentResponse(payment))
}
