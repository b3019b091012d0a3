package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceRepository persists invoice settlement state
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate locks the invoice row for the remainder of the
	// surrounding transaction. All settlement mutations go through this.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Save(ctx context.Context, invoice *Invoice) error
}

// AllocationRepository persists allocation records
type AllocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)
	// FindByPaymentAndInvoice returns shared.ErrNotFound when the pair has
	// no allocation yet.
	FindByPaymentAndInvoice(ctx context.Context, paymentID, invoiceID uuid.UUID) (*Allocation, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]Allocation, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Allocation, error)
	// SumByInvoice recomputes the live allocation total for an invoice.
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	Create(ctx context.Context, allocation *Allocation) error
	Update(ctx context.Context, allocation *Allocation) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository persists payment records
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
}

// PaymentPlanRepository persists payment plans with their installments
type PaymentPlanRepository interface {
	// FindByID loads the plan with installments in waterfall order.
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentPlan, error)
	// FindByIDForUpdate additionally locks the plan row.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PaymentPlan, error)
	// FindActiveByInvoice returns the invoice's pending/partial/overdue
	// plan, or shared.ErrNotFound.
	FindActiveByInvoice(ctx context.Context, invoiceID uuid.UUID) (*PaymentPlan, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PaymentPlan, error)
	Create(ctx context.Context, plan *PaymentPlan) error
	Save(ctx context.Context, plan *PaymentPlan) error
	// FindOverdueInstallments lists installments past due with a balance
	// remaining, across all active plans.
	FindOverdueInstallments(ctx context.Context, asOf time.Time) ([]Installment, error)
}

// Repositories bundles the repositories participating in one transaction
type Repositories struct {
	Invoices    InvoiceRepository
	Allocations AllocationRepository
	Payments    PaymentRepository
	Plans       PaymentPlanRepository
}

// UnitOfWork runs a function against transaction-bound repositories.
// The function either commits as a whole or leaves no observable side
// effects; a partial commit (allocation written, invoice not updated)
// must be impossible.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}
