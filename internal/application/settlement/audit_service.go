package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuditService detects and repairs drift between an invoice's stored paid
// amount and the live sum of its allocation records. Drift cannot occur
// through this engine's own writes; the audit path exists for external
// writers and operator verification.
type AuditService struct {
	uow    settlement.UnitOfWork
	reader settlement.Repositories
	logger *zap.Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(uow settlement.UnitOfWork, reader settlement.Repositories, logger *zap.Logger) *AuditService {
	return &AuditService{
		uow:    uow,
		reader: reader,
		logger: logger,
	}
}

// RecalculationResult reports a paid-amount recalculation
type RecalculationResult struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Old       decimal.Decimal `json:"old"`
	New       decimal.Decimal `json:"new"`
	Changed   bool            `json:"changed"`
}

// ValidationResult reports a read-only paid-amount check
type ValidationResult struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	IsValid   bool            `json:"is_valid"`
	Expected  decimal.Decimal `json:"expected"`
	Actual    decimal.Decimal `json:"actual"`
	Diff      decimal.Decimal `json:"diff"`
}

// RecalculatePaidAmount re-sums the invoice's allocations inside one
// transaction with the invoice row locked and overwrites the stored paid
// amount when they differ. The payment status follows the new value.
func (s *AuditService) RecalculatePaidAmount(ctx context.Context, invoiceID uuid.UUID) (*RecalculationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "audit", "recalculate_paid_amount")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	var result *RecalculationResult
	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		invoice, err := repos.Invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to lock invoice: %w", err)
		}

		sum, err := repos.Allocations.SumByInvoice(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to sum allocations: %w", err)
		}

		result = &RecalculationResult{
			InvoiceID: invoiceID,
			Old:       invoice.PaidAmount,
			New:       sum,
		}
		result.Changed = invoice.ApplyRecalculatedPaidAmount(sum)
		if !result.Changed {
			return nil
		}
		return repos.Invoices.Save(ctx, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.Changed {
		s.logger.Warn("invoice paid amount drift repaired",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("old", result.Old.String()),
			zap.String("new", result.New.String()),
		)
	}
	return result, nil
}

// ValidatePaidAmount compares the stored paid amount against the live
// allocation sum without writing anything.
func (s *AuditService) ValidatePaidAmount(ctx context.Context, invoiceID uuid.UUID) (*ValidationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "audit", "validate_paid_amount")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.reader.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	expected, err := s.reader.Allocations.SumByInvoice(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ValidationResult{
		InvoiceID: invoiceID,
		Expected:  expected,
		Actual:    invoice.PaidAmount,
		Diff:      invoice.PaidAmount.Sub(expected),
		IsValid:   invoice.PaidAmount.Equal(expected),
	}
	if !result.IsValid {
		s.logger.Warn("invoice paid amount drift detected",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("expected", expected.String()),
			zap.String("actual", invoice.PaidAmount.String()),
		)
	}
	return result, nil
}
