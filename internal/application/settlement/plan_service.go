package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/openledger/settlement/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlanService manages payment plans and distributes lump payments across
// their installments, oldest due date first.
type PlanService struct {
	uow    settlement.UnitOfWork
	reader settlement.Repositories
	logger *zap.Logger
	now    func() time.Time
}

// NewPlanService creates a new PlanService
func NewPlanService(uow settlement.UnitOfWork, reader settlement.Repositories, logger *zap.Logger) *PlanService {
	return &PlanService{
		uow:    uow,
		reader: reader,
		logger: logger,
		now:    time.Now,
	}
}

// CreatePlanRequest describes a new payment plan
type CreatePlanRequest struct {
	InvoiceID    uuid.UUID
	Total        valueobject.Money
	Description  string
	Installments []settlement.InstallmentInput
}

// CreatePlan creates a payment plan for an invoice. An invoice can have at
// most one active plan at a time.
func (s *PlanService) CreatePlan(ctx context.Context, req CreatePlanRequest) (*settlement.PaymentPlan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_plan", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
		telemetry.SpanAttrAmount, req.Total.Amount().String(),
	)

	var plan *settlement.PaymentPlan
	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		if _, err := repos.Invoices.FindByID(ctx, req.InvoiceID); err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}

		existing, err := repos.Plans.FindActiveByInvoice(ctx, req.InvoiceID)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("failed to check existing plans: %w", err)
		}
		if existing != nil {
			return shared.NewDomainError("PLAN_ALREADY_EXISTS",
				"Invoice already has an active payment plan")
		}

		plan, err = settlement.NewPaymentPlan(req.InvoiceID, req.Total, req.Description, req.Installments)
		if err != nil {
			return err
		}
		return repos.Plans.Create(ctx, plan)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("invoice_id", req.InvoiceID.String()),
		zap.Int("installments", len(plan.Installments)),
	)
	return plan, nil
}

// GetPlan loads a plan with its installments in waterfall order
func (s *PlanService) GetPlan(ctx context.Context, planID uuid.UUID) (*settlement.PaymentPlan, error) {
	return s.reader.Plans.FindByID(ctx, planID)
}

// ListPlansByInvoice returns every plan ever created for an invoice
func (s *PlanService) ListPlansByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]settlement.PaymentPlan, error) {
	return s.reader.Plans.FindByInvoice(ctx, invoiceID)
}

// ProcessPayment distributes a payment across a plan's installments
// inside one transaction with the plan row locked. Overpayment beyond the
// outstanding balance is reported in the result, never rejected.
func (s *PlanService) ProcessPayment(ctx context.Context, planID uuid.UUID, amount decimal.Decimal) (*settlement.PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_plan", "process_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPlanID, planID.String(),
		telemetry.SpanAttrAmount, amount.String(),
	)

	var result *settlement.PaymentResult
	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		plan, err := repos.Plans.FindByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to lock payment plan: %w", err)
		}

		result, err = plan.ProcessPayment(amount, s.now())
		if err != nil {
			return err
		}
		return repos.Plans.Save(ctx, plan)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment plan payment processed",
		zap.String("plan_id", planID.String()),
		zap.String("applied", result.PaymentApplied.String()),
		zap.String("remaining", result.RemainingPayment.String()),
		zap.String("status", string(result.PaymentPlanStatus)),
	)
	if result.RemainingPayment.GreaterThan(decimal.Zero) {
		s.logger.Warn("payment exceeds plan outstanding balance",
			zap.String("plan_id", planID.String()),
			zap.String("unapplied", result.RemainingPayment.String()),
		)
	}
	return result, nil
}

// CancelPlan cancels a plan. Cancellation is the only manual status
// change; every other status is derived from the installments.
func (s *PlanService) CancelPlan(ctx context.Context, planID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_plan", "cancel")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPlanID, planID.String())

	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		plan, err := repos.Plans.FindByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to lock payment plan: %w", err)
		}
		if err := plan.Cancel(); err != nil {
			return err
		}
		return repos.Plans.Save(ctx, plan)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("payment plan cancelled", zap.String("plan_id", planID.String()))
	return nil
}

// SuggestSchedule generates an equal-split schedule proposal. Nothing is
// persisted; the caller may feed the rows back into CreatePlan.
func (s *PlanService) SuggestSchedule(
	ctx context.Context,
	total valueobject.Money,
	count int,
	startDate time.Time,
	frequency settlement.Frequency,
) ([]settlement.SuggestedInstallment, error) {
	_, span := telemetry.StartServiceSpan(ctx, "payment_plan", "suggest_schedule")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, total.Amount().String(),
		"installment_count", count,
		"frequency", string(frequency),
	)

	schedule, err := settlement.SuggestSchedule(total, count, startDate, frequency)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return schedule, nil
}

// AddInstallment appends an installment to an active plan
func (s *PlanService) AddInstallment(ctx context.Context, planID uuid.UUID, number int, dueDate time.Time, amount decimal.Decimal, description string) (*settlement.Installment, error) {
	var inst *settlement.Installment
	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		plan, err := repos.Plans.FindByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to lock payment plan: %w", err)
		}
		inst, err = plan.AddInstallment(number, dueDate, amount, description)
		if err != nil {
			return err
		}
		return repos.Plans.Save(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// UpdateInstallmentRequest carries the optional fields of an installment
// update; nil means unchanged.
type UpdateInstallmentRequest struct {
	DueDate     *time.Time
	Amount      *decimal.Decimal
	Description *string
}

// UpdateInstallment modifies an installment that has no payments yet
func (s *PlanService) UpdateInstallment(ctx context.Context, planID, installmentID uuid.UUID, req UpdateInstallmentRequest) error {
	return s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		plan, err := repos.Plans.FindByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to lock payment plan: %w", err)
		}
		if err := plan.UpdateInstallment(installmentID, req.DueDate, req.Amount, req.Description); err != nil {
			return err
		}
		return repos.Plans.Save(ctx, plan)
	})
}

// OverdueInstallments lists installments past due with a balance
// remaining across all active plans.
func (s *PlanService) OverdueInstallments(ctx context.Context, asOf time.Time) ([]settlement.Installment, error) {
	return s.reader.Plans.FindOverdueInstallments(ctx, asOf)
}

// RefreshOverdue re-derives installment and plan statuses for one plan as
// of today. Intended to be called by a periodic sweep.
func (s *PlanService) RefreshOverdue(ctx context.Context, planID uuid.UUID) error {
	return s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		plan, err := repos.Plans.FindByIDForUpdate(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to lock payment plan: %w", err)
		}
		before := plan.Status
		plan.RefreshOverdue(s.now())
		if plan.Status != before {
			s.logger.Info("payment plan status refreshed",
				zap.String("plan_id", planID.String()),
				zap.String("from", string(before)),
				zap.String("to", string(plan.Status)),
			)
		}
		return repos.Plans.Save(ctx, plan)
	})
}
