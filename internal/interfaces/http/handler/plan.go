package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	settlementapp "github.com/openledger/settlement/internal/application/settlement"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PlanHandler handles payment plan endpoints
type PlanHandler struct {
	BaseHandler
	plans *settlementapp.PlanService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(plans *settlementapp.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// RegisterRoutes registers the payment plan routes
func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/invoices/:id/payment-plans", h.CreatePlan)
	rg.GET("/invoices/:id/payment-plans", h.ListPlans)
	rg.POST("/payment-plans/suggest-schedule", h.SuggestSchedule)
	rg.GET("/plans/:id", h.GetPlan)
	rg.POST("/plans/:id/process-payment", h.ProcessPayment)
	rg.POST("/plans/:id/cancel", h.CancelPlan)
	rg.POST("/plans/:id/refresh-overdue", h.RefreshOverdue)
	rg.POST("/plans/:id/installments", h.AddInstallment)
	rg.PATCH("/plans/:id/installments/:installmentId", h.UpdateInstallment)
	rg.GET("/installments/overdue", h.OverdueInstallments)
}

// InstallmentInputRequest describes one installment when creating a plan
type InstallmentInputRequest struct {
	InstallmentNumber int             `json:"installment_number" binding:"required,min=1"`
	DueDate           time.Time       `json:"due_date" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Description       string          `json:"description"`
}

// CreatePlanRequest is the request body for creating a payment plan
type CreatePlanRequest struct {
	Total        decimal.Decimal           `json:"total" binding:"required"`
	Currency     string                    `json:"currency" binding:"required,len=3"`
	Description  string                    `json:"description"`
	Installments []InstallmentInputRequest `json:"installments" binding:"required,min=1,dive"`
}

// ProcessPaymentRequest is the request body for paying into a plan
type ProcessPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// SuggestScheduleRequest is the request body for generating a schedule proposal
type SuggestScheduleRequest struct {
	Total     decimal.Decimal `json:"total" binding:"required"`
	Currency  string          `json:"currency" binding:"required,len=3"`
	Count     int             `json:"count" binding:"required,min=1,max=100"`
	StartDate time.Time       `json:"start_date" binding:"required"`
	Frequency string          `json:"frequency" binding:"required,oneof=weekly monthly quarterly"`
}

// AddInstallmentRequest is the request body for appending an installment
type AddInstallmentRequest struct {
	InstallmentNumber int             `json:"installment_number" binding:"required,min=1"`
	DueDate           time.Time       `json:"due_date" binding:"required"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Description       string          `json:"description"`
}

// UpdateInstallmentRequest is the request body for modifying an installment.
// Omitted fields are left unchanged.
type UpdateInstallmentRequest struct {
	DueDate     *time.Time       `json:"due_date"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
}

// InstallmentResponse represents an installment in API responses
type InstallmentResponse struct {
	ID                string          `json:"id"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Status            string          `json:"status"`
	Description       string          `json:"description,omitempty"`
}

// PlanResponse represents a payment plan in API responses
type PlanResponse struct {
	ID           string                `json:"id"`
	InvoiceID    string                `json:"invoice_id"`
	TotalAmount  decimal.Decimal       `json:"total_amount"`
	Status       string                `json:"status"`
	Description  string                `json:"description,omitempty"`
	Installments []InstallmentResponse `json:"installments"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Version      int                   `json:"version"`
}

func toInstallmentResponse(inst *settlement.Installment) InstallmentResponse {
	return InstallmentResponse{
		ID:                inst.ID.String(),
		InstallmentNumber: inst.InstallmentNumber,
		DueDate:           inst.DueDate,
		Amount:            inst.Amount,
		PaidAmount:        inst.PaidAmount,
		Status:            string(inst.Status),
		Description:       inst.Description,
	}
}

func toPlanResponse(plan *settlement.PaymentPlan) PlanResponse {
	installments := make([]InstallmentResponse, len(plan.Installments))
	for i := range plan.Installments {
		installments[i] = toInstallmentResponse(&plan.Installments[i])
	}
	return PlanResponse{
		ID:           plan.ID.String(),
		InvoiceID:    plan.InvoiceID.String(),
		TotalAmount:  plan.TotalAmount,
		Status:       string(plan.Status),
		Description:  plan.Description,
		Installments: installments,
		CreatedAt:    plan.CreatedAt,
		UpdatedAt:    plan.UpdatedAt,
		Version:      plan.Version,
	}
}

// CreatePlan creates a payment plan for an invoice
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid invoice ID")
		return
	}

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	total, err := valueobject.NewMoney(req.Total, valueobject.Currency(req.Currency))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	inputs := make([]settlement.InstallmentInput, len(req.Installments))
	for i, in := range req.Installments {
		inputs[i] = settlement.InstallmentInput{
			InstallmentNumber: in.InstallmentNumber,
			DueDate:           in.DueDate,
			Amount:            in.Amount,
			Description:       in.Description,
		}
	}

	plan, err := h.plans.CreatePlan(c.Request.Context(), settlementapp.CreatePlanRequest{
		InvoiceID:    invoiceID,
		Total:        total,
		Description:  req.Description,
		Installments: inputs,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toPlanResponse(plan))
}

// ListPlans lists an invoice's payment plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	invoiceID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid invoice ID")
		return
	}

	plans, err := h.plans.ListPlansByInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]PlanResponse, len(plans))
	for i := range plans {
		responses[i] = toPlanResponse(&plans[i])
	}
	h.Success(c, responses)
}

// GetPlan returns a single payment plan
func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid plan ID")
		return
	}

	plan, err := h.plans.GetPlan(c.Request.Context(), planID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPlanResponse(plan))
}

// ProcessPayment distributes a lump payment across a plan's installments
func (h *PlanHandler) ProcessPayment(c *gin.Context) {
	planID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid plan ID")
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.plans.ProcessPayment(c.Request.Context(), planID, req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// CancelPlan cancels a payment plan
func (h *PlanHandler) CancelPlan(c *gin.Context) {
	planID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid plan ID")
		return
	}

	if err := h.plans.CancelPlan(c.Request.Context(), planID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// RefreshOverdue re-evaluates a plan's overdue installments
func (h *PlanHandler) RefreshOverdue(c *gin.Context) {
	planID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid plan ID")
		return
	}

	if err := h.plans.RefreshOverdue(c.Request.Context(), planID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// SuggestSchedule generates an equal-split schedule proposal
func (h *PlanHandler) SuggestSchedule(c *gin.Context) {
	var req SuggestScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	total, err := valueobject.NewMoney(req.Total, valueobject.Currency(req.Currency))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	schedule, err := h.plans.SuggestSchedule(
		c.Request.Context(),
		total,
		req.Count,
		req.StartDate,
		settlement.Frequency(req.Frequency),
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, schedule)
}

// AddInstallment appends an installment to an active plan
func (h *PlanHandler) AddInstallment(c *gin.Context) {
	planID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid plan ID")
		return
	}

	var req AddInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	inst, err := h.plans.AddInstallment(c.Request.Context(), planID, req.InstallmentNumber, req.DueDate, req.Amount, req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toInstallmentResponse(inst))
}

// UpdateInstallment modifies an installment that has no payments yet
func (h *PlanHandler) UpdateInstallment(c *gin.Context) {
	planID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "invalid plan ID")
		return
	}
	installmentID, ok := parseIDParam(c, "installmentId")
	if !ok {
		h.BadRequest(c, "invalid installment ID")
		return
	}

	var req UpdateInstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	err := h.plans.UpdateInstallment(c.Request.Context(), planID, installmentID, settlementapp.UpdateInstallmentRequest{
		DueDate:     req.DueDate,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// OverdueInstallments lists unpaid installments past due as of a date.
// The as_of query parameter defaults to today.
func (h *PlanHandler) OverdueInstallments(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.BadRequest(c, "as_of must be formatted as YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	installments, err := h.plans.OverdueInstallments(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]InstallmentResponse, len(installments))
	for i := range installments {
		responses[i] = toInstallmentResponse(&installments[i])
	}
	h.Success(c, responses)
}
