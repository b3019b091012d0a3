package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Allocation links an amount from one payment to one invoice. At most one
// allocation exists per (payment, invoice) pair; re-allocating the same
// pair grows the existing record instead of creating a duplicate.
type Allocation struct {
	shared.BaseEntity
	PaymentID       uuid.UUID
	InvoiceID       uuid.UUID
	AmountAllocated decimal.Decimal
}

// NewAllocation creates an allocation record
func NewAllocation(paymentID, invoiceID uuid.UUID, amount decimal.Decimal) (*Allocation, error) {
	if paymentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be greater than zero")
	}

	return &Allocation{
		BaseEntity:      shared.NewBaseEntity(),
		PaymentID:       paymentID,
		InvoiceID:       invoiceID,
		AmountAllocated: amount,
	}, nil
}

// SetAmount replaces the allocated amount. The invoice-side validation
// (remaining balance with the old contribution subtracted out) happens in
// the allocation service; the entity only guards positivity.
func (a *Allocation) SetAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be greater than zero")
	}
	a.AmountAllocated = amount
	a.UpdatedAt = time.Now()
	return nil
}
