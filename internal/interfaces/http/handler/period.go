package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	periodapp "github.com/openledger/settlement/internal/application/period"
	"github.com/openledger/settlement/internal/domain/period"
)

// PeriodHandler handles accounting period endpoints
type PeriodHandler struct {
	BaseHandler
	gate *periodapp.GateService
}

// NewPeriodHandler creates a new PeriodHandler
func NewPeriodHandler(gate *periodapp.GateService) *PeriodHandler {
	return &PeriodHandler{gate: gate}
}

// RegisterRoutes registers the period routes
func (h *PeriodHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/periods/status", h.Status)
	rg.POST("/periods/close", h.Close)
	rg.POST("/periods/reopen", h.Reopen)
}

// PeriodActionRequest identifies a period by ledger and name
type PeriodActionRequest struct {
	Ledger string `json:"ledger" binding:"required,oneof=AR AP GL"`
	Name   string `json:"name" binding:"required,max=50"`
}

// PeriodStatusResponse reports whether a date falls in an open period
type PeriodStatusResponse struct {
	Ledger string `json:"ledger"`
	Date   string `json:"date"`
	Open   bool   `json:"open"`
}

// Status reports whether postings are allowed on a date
func (h *PeriodHandler) Status(c *gin.Context) {
	ledger := c.Query("ledger")
	if ledger != "AR" && ledger != "AP" && ledger != "GL" {
		h.BadRequest(c, "ledger must be AR, AP or GL")
		return
	}

	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.BadRequest(c, "date must be formatted as YYYY-MM-DD")
			return
		}
		date = parsed
	}

	open, err := h.gate.IsDateOpen(c.Request.Context(), period.LedgerType(ledger), date)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, PeriodStatusResponse{
		Ledger: ledger,
		Date:   date.Format("2006-01-02"),
		Open:   open,
	})
}

// Close closes a period, blocking further postings inside it
func (h *PeriodHandler) Close(c *gin.Context) {
	var req PeriodActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.gate.ClosePeriod(c.Request.Context(), period.LedgerType(req.Ledger), req.Name); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Reopen reopens a closed period
func (h *PeriodHandler) Reopen(c *gin.Context) {
	var req PeriodActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.gate.ReopenPeriod(c.Request.Context(), period.LedgerType(req.Ledger), req.Name); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
