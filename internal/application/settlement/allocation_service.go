package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AllocationService manages the allocation records linking payments to
// invoices. Every mutation runs inside one unit of work with the invoice
// row locked, so the invoice paid amount and its allocation records can
// never drift apart within a committed transaction.
type AllocationService struct {
	uow    settlement.UnitOfWork
	reader settlement.Repositories
	logger *zap.Logger
}

// NewAllocationService creates a new AllocationService. reader serves
// lock-free queries; mutations always go through the unit of work.
func NewAllocationService(uow settlement.UnitOfWork, reader settlement.Repositories, logger *zap.Logger) *AllocationService {
	return &AllocationService{
		uow:    uow,
		reader: reader,
		logger: logger,
	}
}

// AllocationDTO is the external view of one allocation record
type AllocationDTO struct {
	ID              uuid.UUID       `json:"id"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	AmountAllocated decimal.Decimal `json:"amount_allocated"`
}

func toAllocationDTO(a *settlement.Allocation) *AllocationDTO {
	return &AllocationDTO{
		ID:              a.ID,
		PaymentID:       a.PaymentID,
		InvoiceID:       a.InvoiceID,
		AmountAllocated: a.AmountAllocated,
	}
}

// PaymentSummary describes how an invoice has been settled so far
type PaymentSummary struct {
	InvoiceID      uuid.UUID                `json:"invoice_id"`
	InvoiceNumber  string                   `json:"invoice_number"`
	Total          decimal.Decimal          `json:"total"`
	PaidAmount     decimal.Decimal          `json:"paid_amount"`
	Remaining      decimal.Decimal          `json:"remaining"`
	PaymentStatus  settlement.PaymentStatus `json:"payment_status"`
	Allocations    []AllocationDTO          `json:"allocations"`
	AllocationsSum decimal.Decimal          `json:"allocations_sum"`
}

// Allocate applies part of a payment to an invoice. When the pair already
// has an allocation record the amounts are merged into it; two records for
// the same (payment, invoice) pair never exist.
func (s *AllocationService) Allocate(ctx context.Context, paymentID, invoiceID uuid.UUID, amount decimal.Decimal) (*AllocationDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, paymentID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrAmount, amount.String(),
	)

	if amount.LessThanOrEqual(decimal.Zero) {
		err := shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be greater than zero")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var dto *AllocationDTO
	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		payment, err := repos.Payments.FindByID(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}

		invoice, err := repos.Invoices.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to lock invoice: %w", err)
		}

		if err := checkCompatibility(payment, invoice); err != nil {
			return err
		}

		paymentSum, err := sumPaymentAllocations(ctx, repos, paymentID)
		if err != nil {
			return err
		}
		if paymentSum.Add(amount).GreaterThan(payment.Amount) {
			return shared.NewDomainError("EXCEEDS_UNALLOCATED_AMOUNT",
				fmt.Sprintf("allocation exceeds the payment's unallocated amount of %s",
					payment.UnallocatedAmount(paymentSum).StringFixed(2)))
		}

		existing, err := repos.Allocations.FindByPaymentAndInvoice(ctx, paymentID, invoiceID)
		switch {
		case err == nil:
			// Merge into the existing pair record via the update path.
			merged, mergeErr := s.applyUpdate(ctx, repos, existing, invoice, existing.AmountAllocated.Add(amount))
			if mergeErr != nil {
				return mergeErr
			}
			dto = merged
			return nil
		case isNotFound(err):
			// fall through to create
		default:
			return fmt.Errorf("failed to look up allocation pair: %w", err)
		}

		if ok, reason := invoice.CanPay(amount); !ok {
			return shared.NewDomainError("EXCEEDS_REMAINING_BALANCE", reason)
		}

		allocation, err := settlement.NewAllocation(paymentID, invoiceID, amount)
		if err != nil {
			return err
		}
		if err := repos.Allocations.Create(ctx, allocation); err != nil {
			return fmt.Errorf("failed to create allocation: %w", err)
		}
		if err := invoice.Pay(amount); err != nil {
			return err
		}
		if err := repos.Invoices.Save(ctx, invoice); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		dto = toAllocationDTO(allocation)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment allocated",
		zap.String("payment_id", paymentID.String()),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("amount", amount.String()),
	)
	return dto, nil
}

// UpdateAllocation replaces an allocation's amount. The new amount is
// validated against the invoice's remaining balance with this
// allocation's old contribution subtracted out, then the delta is applied
// to the invoice paid amount.
func (s *AllocationService) UpdateAllocation(ctx context.Context, allocationID uuid.UUID, newAmount decimal.Decimal) (*AllocationDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "update")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAllocationID, allocationID.String(),
		telemetry.SpanAttrAmount, newAmount.String(),
	)

	if newAmount.LessThanOrEqual(decimal.Zero) {
		err := shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be greater than zero")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var dto *AllocationDTO
	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		allocation, err := repos.Allocations.FindByID(ctx, allocationID)
		if err != nil {
			return fmt.Errorf("failed to load allocation: %w", err)
		}

		invoice, err := repos.Invoices.FindByIDForUpdate(ctx, allocation.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to lock invoice: %w", err)
		}

		dto, err = s.applyUpdate(ctx, repos, allocation, invoice, newAmount)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return dto, nil
}

// applyUpdate performs the delta-based amount change against an invoice
// already locked by the caller's transaction.
func (s *AllocationService) applyUpdate(
	ctx context.Context,
	repos settlement.Repositories,
	allocation *settlement.Allocation,
	invoice *settlement.Invoice,
	newAmount decimal.Decimal,
) (*AllocationDTO, error) {
	oldAmount := allocation.AmountAllocated
	delta := newAmount.Sub(oldAmount)
	if delta.IsZero() {
		return toAllocationDTO(allocation), nil
	}

	// Remaining balance as if this allocation did not exist yet.
	remaining := invoice.Total.Sub(invoice.PaidAmount.Sub(oldAmount))
	if newAmount.GreaterThan(remaining) {
		return nil, shared.NewDomainError("EXCEEDS_REMAINING_BALANCE",
			fmt.Sprintf("payment amount exceeds remaining balance of %s", remaining.StringFixed(2)))
	}

	if err := allocation.SetAmount(newAmount); err != nil {
		return nil, err
	}
	if err := repos.Allocations.Update(ctx, allocation); err != nil {
		return nil, fmt.Errorf("failed to update allocation: %w", err)
	}

	if delta.IsPositive() {
		if err := invoice.Pay(delta); err != nil {
			return nil, err
		}
	} else {
		if err := invoice.Refund(delta.Neg()); err != nil {
			return nil, err
		}
	}
	if err := repos.Invoices.Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	s.logger.Info("allocation updated",
		zap.String("allocation_id", allocation.ID.String()),
		zap.String("old_amount", oldAmount.String()),
		zap.String("new_amount", newAmount.String()),
	)
	return toAllocationDTO(allocation), nil
}

// RemoveAllocation deletes an allocation and refunds its amount against
// the invoice. The amount refunded is the one re-read inside the
// transaction, not a caller-supplied value.
func (s *AllocationService) RemoveAllocation(ctx context.Context, allocationID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "remove")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrAllocationID, allocationID.String())

	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		return s.removeOne(ctx, repos, allocationID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// removeOne deletes one allocation inside the caller's transaction
func (s *AllocationService) removeOne(ctx context.Context, repos settlement.Repositories, allocationID uuid.UUID) error {
	allocation, err := repos.Allocations.FindByID(ctx, allocationID)
	if err != nil {
		return fmt.Errorf("failed to load allocation: %w", err)
	}

	invoice, err := repos.Invoices.FindByIDForUpdate(ctx, allocation.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to lock invoice: %w", err)
	}

	if err := repos.Allocations.Delete(ctx, allocation.ID); err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	if err := invoice.Refund(allocation.AmountAllocated); err != nil {
		return err
	}
	if err := repos.Invoices.Save(ctx, invoice); err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}

	s.logger.Info("allocation removed",
		zap.String("allocation_id", allocation.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("amount", allocation.AmountAllocated.String()),
	)
	return nil
}

// ClearAllocations removes every allocation of a payment, refunding each
// invoice in turn. Each record goes through the same per-record delete
// path; the whole clear is still one transaction.
func (s *AllocationService) ClearAllocations(ctx context.Context, paymentID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "clear")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentID, paymentID.String())

	cleared := 0
	err := s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		if _, err := repos.Payments.FindByID(ctx, paymentID); err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}

		allocations, err := repos.Allocations.FindByPayment(ctx, paymentID)
		if err != nil {
			return fmt.Errorf("failed to list allocations: %w", err)
		}

		for i := range allocations {
			if err := s.removeOne(ctx, repos, allocations[i].ID); err != nil {
				return err
			}
			cleared++
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	s.logger.Info("payment allocations cleared",
		zap.String("payment_id", paymentID.String()),
		zap.Int("count", cleared),
	)
	return cleared, nil
}

// GetAllocation returns one allocation record
func (s *AllocationService) GetAllocation(ctx context.Context, allocationID uuid.UUID) (*AllocationDTO, error) {
	allocation, err := s.reader.Allocations.FindByID(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	return toAllocationDTO(allocation), nil
}

// ListAllocations returns all allocation records of a payment
func (s *AllocationService) ListAllocations(ctx context.Context, paymentID uuid.UUID) ([]AllocationDTO, error) {
	allocations, err := s.reader.Allocations.FindByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	dtos := make([]AllocationDTO, 0, len(allocations))
	for i := range allocations {
		dtos = append(dtos, *toAllocationDTO(&allocations[i]))
	}
	return dtos, nil
}

// GetPaymentSummary returns the invoice-side settlement view: totals,
// status and every allocation applied to the invoice.
func (s *AllocationService) GetPaymentSummary(ctx context.Context, invoiceID uuid.UUID) (*PaymentSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "payment_summary")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	invoice, err := s.reader.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	allocations, err := s.reader.Allocations.FindByInvoice(ctx, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	summary := &PaymentSummary{
		InvoiceID:      invoice.ID,
		InvoiceNumber:  invoice.InvoiceNumber,
		Total:          invoice.Total,
		PaidAmount:     invoice.PaidAmount,
		Remaining:      invoice.RemainingAmount(),
		PaymentStatus:  invoice.PaymentStatus,
		Allocations:    make([]AllocationDTO, 0, len(allocations)),
		AllocationsSum: decimal.Zero,
	}
	for i := range allocations {
		summary.Allocations = append(summary.Allocations, *toAllocationDTO(&allocations[i]))
		summary.AllocationsSum = summary.AllocationsSum.Add(allocations[i].AmountAllocated)
	}
	return summary, nil
}

// checkCompatibility validates that a payment may settle an invoice at all
func checkCompatibility(payment *settlement.Payment, invoice *settlement.Invoice) error {
	if payment.Currency != invoice.Currency {
		return shared.NewDomainError("CURRENCY_MISMATCH",
			fmt.Sprintf("payment currency %s does not match invoice currency %s", payment.Currency, invoice.Currency))
	}
	if payment.BusinessPartnerID != invoice.BusinessPartnerID {
		return shared.NewDomainError("PARTNER_MISMATCH", "Payment and invoice belong to different business partners")
	}
	if payment.Direction != invoice.Direction {
		return shared.NewDomainError("DIRECTION_MISMATCH",
			fmt.Sprintf("a %s payment cannot settle a %s invoice", payment.Direction, invoice.Direction))
	}
	return nil
}

// sumPaymentAllocations totals the amounts already allocated from a payment
func sumPaymentAllocations(ctx context.Context, repos settlement.Repositories, paymentID uuid.UUID) (decimal.Decimal, error) {
	allocations, err := repos.Allocations.FindByPayment(ctx, paymentID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list payment allocations: %w", err)
	}
	sum := decimal.Zero
	for i := range allocations {
		sum = sum.Add(allocations[i].AmountAllocated)
	}
	return sum, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == shared.ErrNotFound.Code
	}
	return false
}
