package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Payment is a received (AR) or issued (AP) payment. It owns zero or more
// allocation records distributing its amount across invoices.
type Payment struct {
	shared.BaseAggregateRoot
	PaymentNumber     string
	Direction         Direction
	BusinessPartnerID uuid.UUID
	Currency          valueobject.Currency
	Amount            decimal.Decimal
	Date              time.Time
	Reference         string
	Memo              string
}

// NewPayment creates a payment record
func NewPayment(
	paymentNumber string,
	direction Direction,
	businessPartnerID uuid.UUID,
	amount valueobject.Money,
	date time.Time,
) (*Payment, error) {
	if paymentNumber == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT_NUMBER", "Payment number cannot be empty")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError("INVALID_DIRECTION", "Payment direction must be AR or AP")
	}
	if businessPartnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Business partner ID cannot be empty")
	}
	if amount.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentNumber:     paymentNumber,
		Direction:         direction,
		BusinessPartnerID: businessPartnerID,
		Currency:          amount.Currency(),
		Amount:            amount.Amount(),
		Date:              date,
	}, nil
}

// UnallocatedAmount returns the payment amount not yet applied to any
// invoice, given the current allocation sum.
func (p *Payment) UnallocatedAmount(totalAllocated decimal.Decimal) decimal.Decimal {
	return p.Amount.Sub(totalAllocated)
}

// IsFullyAllocated reports whether the whole payment amount has been
// applied to invoices.
func (p *Payment) IsFullyAllocated(totalAllocated decimal.Decimal) bool {
	return p.UnallocatedAmount(totalAllocated).LessThanOrEqual(decimal.Zero)
}
