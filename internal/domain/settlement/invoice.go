package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the settlement state of an invoice
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"         // Nothing paid
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID" // 0 < paid < total
	PaymentStatusPaid          PaymentStatus = "PAID"           // paid == total
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartiallyPaid, PaymentStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// Direction distinguishes receivable invoices from payable ones
type Direction string

const (
	DirectionReceivable Direction = "AR" // Customer owes us
	DirectionPayable    Direction = "AP" // We owe a supplier
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionReceivable || d == DirectionPayable
}

// Invoice is the settlement ledger for a single posted invoice.
// Total is immutable once posted; PaidAmount is written exclusively by the
// allocation service and always equals the sum of the invoice's
// allocations after a committed transaction.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber     string
	Direction         Direction
	BusinessPartnerID uuid.UUID
	Currency          valueobject.Currency
	Date              time.Time
	Total             decimal.Decimal
	PaidAmount        decimal.Decimal
	PaymentStatus     PaymentStatus
}

// NewInvoice creates a posted invoice with nothing paid yet
func NewInvoice(
	invoiceNumber string,
	direction Direction,
	businessPartnerID uuid.UUID,
	total valueobject.Money,
	date time.Time,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Invoice direction must be AR or AP")
	}
	if businessPartnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Business partner ID cannot be empty")
	}
	if total.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Invoice total must be positive")
	}

	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		Direction:         direction,
		BusinessPartnerID: businessPartnerID,
		Currency:          total.Currency(),
		Date:              date,
		Total:             total.Amount(),
		PaidAmount:        decimal.Zero,
		PaymentStatus:     PaymentStatusUnpaid,
	}, nil
}

// RemainingAmount returns the unpaid portion of the total
func (inv *Invoice) RemainingAmount() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount)
}

// RemainingMoney returns the unpaid portion as Money
func (inv *Invoice) RemainingMoney() valueobject.Money {
	return valueobject.MustMoney(inv.RemainingAmount(), inv.Currency)
}

// IsPaid returns true if the invoice is fully settled
func (inv *Invoice) IsPaid() bool {
	return inv.PaidAmount.GreaterThanOrEqual(inv.Total)
}

// IsPartiallyPaid returns true if some but not all of the total is paid
func (inv *Invoice) IsPartiallyPaid() bool {
	return inv.PaidAmount.GreaterThan(decimal.Zero) && inv.PaidAmount.LessThan(inv.Total)
}

// CanPay validates a prospective payment amount against the remaining
// balance. Returns false with a reason rather than an error so callers can
// distinguish validation from failure.
func (inv *Invoice) CanPay(amount decimal.Decimal) (bool, string) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, "payment amount must be greater than zero"
	}
	if inv.PaidAmount.Add(amount).GreaterThan(inv.Total) {
		return false, fmt.Sprintf("payment amount exceeds remaining balance of %s", inv.RemainingAmount().StringFixed(valueobject.CurrencyScale))
	}
	return true, ""
}

// Pay adds amount to the paid total and recomputes the payment status
func (inv *Invoice) Pay(amount decimal.Decimal) error {
	if ok, reason := inv.CanPay(amount); !ok {
		return shared.NewDomainError("EXCEEDS_REMAINING_BALANCE", reason)
	}

	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.UpdatePaymentStatus()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// Refund subtracts amount from the paid total and recomputes the status.
// Fails if it would drive the paid amount below zero.
func (inv *Invoice) Refund(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_AMOUNT", "Refund amount must be greater than zero")
	}
	if amount.GreaterThan(inv.PaidAmount) {
		return shared.NewDomainError("EXCEEDS_PAID_AMOUNT",
			fmt.Sprintf("refund amount %s exceeds paid amount %s",
				amount.StringFixed(valueobject.CurrencyScale),
				inv.PaidAmount.StringFixed(valueobject.CurrencyScale)))
	}

	inv.PaidAmount = inv.PaidAmount.Sub(amount)
	inv.UpdatePaymentStatus()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return nil
}

// UpdatePaymentStatus derives the payment status from paid vs total.
// The status is always a pure function of that relation.
func (inv *Invoice) UpdatePaymentStatus() {
	switch {
	case inv.IsPaid():
		inv.PaymentStatus = PaymentStatusPaid
	case inv.IsPartiallyPaid():
		inv.PaymentStatus = PaymentStatusPartiallyPaid
	default:
		inv.PaymentStatus = PaymentStatusUnpaid
	}
}

// ApplyRecalculatedPaidAmount overwrites the stored paid amount with a
// freshly computed allocation sum. Used only by the consistency audit
// path; normal mutations go through Pay and Refund.
func (inv *Invoice) ApplyRecalculatedPaidAmount(sum decimal.Decimal) (changed bool) {
	if inv.PaidAmount.Equal(sum) {
		return false
	}
	inv.PaidAmount = sum
	inv.UpdatePaymentStatus()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return true
}
