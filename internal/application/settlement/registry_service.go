package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/period"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/openledger/settlement/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PeriodGate is the accounting-period check consulted before any invoice
// or payment enters the ledger.
type PeriodGate interface {
	AssertOpen(ctx context.Context, ledger period.LedgerType, date time.Time) error
}

// RegistryService posts invoices and payments into the settlement ledger.
// Every posting date must fall inside an open accounting period of the
// matching subledger.
type RegistryService struct {
	uow    settlement.UnitOfWork
	reader settlement.Repositories
	gate   PeriodGate
	logger *zap.Logger
}

// NewRegistryService creates a new RegistryService
func NewRegistryService(uow settlement.UnitOfWork, reader settlement.Repositories, gate PeriodGate, logger *zap.Logger) *RegistryService {
	return &RegistryService{
		uow:    uow,
		reader: reader,
		gate:   gate,
		logger: logger,
	}
}

func ledgerFor(direction settlement.Direction) period.LedgerType {
	if direction == settlement.DirectionPayable {
		return period.LedgerAP
	}
	return period.LedgerAR
}

// CreateInvoiceRequest describes an invoice to post
type CreateInvoiceRequest struct {
	InvoiceNumber     string
	Direction         settlement.Direction
	BusinessPartnerID uuid.UUID
	Total             valueobject.Money
	Date              time.Time
}

// CreateInvoice posts a new invoice with nothing paid
func (s *RegistryService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*settlement.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "registry", "create_invoice")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, req.Total.Amount().String(),
		telemetry.SpanAttrCurrency, string(req.Total.Currency()),
	)

	if err := s.gate.AssertOpen(ctx, ledgerFor(req.Direction), req.Date); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	invoice, err := settlement.NewInvoice(req.InvoiceNumber, req.Direction, req.BusinessPartnerID, req.Total, req.Date)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		return repos.Invoices.Save(ctx, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	s.logger.Info("invoice posted",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("direction", string(invoice.Direction)),
	)
	return invoice, nil
}

// CreatePaymentRequest describes a payment to post
type CreatePaymentRequest struct {
	PaymentNumber     string
	Direction         settlement.Direction
	BusinessPartnerID uuid.UUID
	Amount            valueobject.Money
	Date              time.Time
	Reference         string
	Memo              string
}

// CreatePayment posts a new payment with no allocations
func (s *RegistryService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*settlement.Payment, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "registry", "create_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, req.Amount.Amount().String(),
		telemetry.SpanAttrCurrency, string(req.Amount.Currency()),
	)

	if err := s.gate.AssertOpen(ctx, ledgerFor(req.Direction), req.Date); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := settlement.NewPayment(req.PaymentNumber, req.Direction, req.BusinessPartnerID, req.Amount, req.Date)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	payment.Reference = req.Reference
	payment.Memo = req.Memo

	err = s.uow.Execute(ctx, func(repos settlement.Repositories) error {
		return repos.Payments.Save(ctx, payment)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	s.logger.Info("payment posted",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("direction", string(payment.Direction)),
	)
	return payment, nil
}

// GetInvoice loads one invoice
func (s *RegistryService) GetInvoice(ctx context.Context, id uuid.UUID) (*settlement.Invoice, error) {
	return s.reader.Invoices.FindByID(ctx, id)
}

// GetPayment loads one payment
func (s *RegistryService) GetPayment(ctx context.Context, id uuid.UUID) (*settlement.Payment, error) {
	return s.reader.Payments.FindByID(ctx, id)
}
