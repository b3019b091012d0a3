package settlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PlanStatus represents the state of a payment plan
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"   // No money applied yet
	PlanStatusPartial   PlanStatus = "partial"   // Some money applied, not all installments paid
	PlanStatusPaid      PlanStatus = "paid"      // Every installment fully paid
	PlanStatusOverdue   PlanStatus = "overdue"   // An unpaid installment is past due
	PlanStatusCancelled PlanStatus = "cancelled" // Manually cancelled; sticky
)

// IsValid checks if the status is a valid PlanStatus
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusPending, PlanStatusPartial, PlanStatusPaid, PlanStatusOverdue, PlanStatusCancelled:
		return true
	}
	return false
}

// IsActive returns true if the plan can still receive payments
func (s PlanStatus) IsActive() bool {
	return s == PlanStatusPending || s == PlanStatusPartial || s == PlanStatusOverdue
}

// InstallmentStatus represents the state of a single installment
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPartial InstallmentStatus = "partial"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
)

// IsValid checks if the status is a valid InstallmentStatus
func (s InstallmentStatus) IsValid() bool {
	switch s {
	case InstallmentStatusPending, InstallmentStatusPartial, InstallmentStatusPaid, InstallmentStatusOverdue:
		return true
	}
	return false
}

// Installment is one dated slice of a payment plan's total.
// paid_amount never exceeds amount.
type Installment struct {
	shared.BaseEntity
	PaymentPlanID     uuid.UUID
	InstallmentNumber int
	DueDate           time.Time
	Amount            decimal.Decimal
	PaidAmount        decimal.Decimal
	Status            InstallmentStatus
	Description       string
}

// NewInstallment creates a pending installment
func NewInstallment(planID uuid.UUID, number int, dueDate time.Time, amount decimal.Decimal, description string) (*Installment, error) {
	if number < 1 {
		return nil, shared.NewDomainError("INVALID_INSTALLMENT_NUMBER", "Installment number must be at least 1")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Installment amount must be positive")
	}

	return &Installment{
		BaseEntity:        shared.NewBaseEntity(),
		PaymentPlanID:     planID,
		InstallmentNumber: number,
		DueDate:           dueDate,
		Amount:            amount,
		PaidAmount:        decimal.Zero,
		Status:            InstallmentStatusPending,
		Description:       description,
	}, nil
}

// RemainingBalance returns the unpaid portion of this installment
func (i *Installment) RemainingBalance() decimal.Decimal {
	return i.Amount.Sub(i.PaidAmount)
}

// IsFullyPaid returns true when the installment is completely covered
func (i *Installment) IsFullyPaid() bool {
	return i.PaidAmount.GreaterThanOrEqual(i.Amount)
}

// IsOverdue returns true when the due date has passed and a balance remains
func (i *Installment) IsOverdue(today time.Time) bool {
	return i.DueDate.Before(today) && !i.IsFullyPaid()
}

// applyPayment fills the installment up to its remaining balance and
// returns the amount actually applied.
func (i *Installment) applyPayment(available decimal.Decimal) decimal.Decimal {
	remaining := i.RemainingBalance()
	if remaining.LessThanOrEqual(decimal.Zero) || available.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	applied := decimal.Min(remaining, available)
	i.PaidAmount = i.PaidAmount.Add(applied)
	if i.IsFullyPaid() {
		i.Status = InstallmentStatusPaid
	} else {
		i.Status = InstallmentStatusPartial
	}
	i.UpdatedAt = time.Now()
	return applied
}

// RefreshStatus re-derives the status from paid amount and due date.
// Paid installments never regress to overdue.
func (i *Installment) RefreshStatus(today time.Time) {
	switch {
	case i.IsFullyPaid():
		i.Status = InstallmentStatusPaid
	case i.IsOverdue(today):
		i.Status = InstallmentStatusOverdue
	case i.PaidAmount.GreaterThan(decimal.Zero):
		i.Status = InstallmentStatusPartial
	default:
		i.Status = InstallmentStatusPending
	}
}

// PaymentPlan splits one invoice's total into dated installments.
// TotalAmount always equals the sum of installment amounts.
type PaymentPlan struct {
	shared.BaseAggregateRoot
	InvoiceID    uuid.UUID
	TotalAmount  decimal.Decimal
	Status       PlanStatus
	Description  string
	Installments []Installment
}

// InstallmentInput describes one installment when creating a plan
type InstallmentInput struct {
	InstallmentNumber int
	DueDate           time.Time
	Amount            decimal.Decimal
	Description       string
}

// NewPaymentPlan creates a payment plan with its installments.
// Installment numbers must be sequential starting at 1 and the amounts
// must sum exactly to the plan total.
func NewPaymentPlan(invoiceID uuid.UUID, total valueobject.Money, description string, inputs []InstallmentInput) (*PaymentPlan, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if total.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Plan total must be positive")
	}
	if len(inputs) == 0 {
		return nil, shared.NewDomainError("INVALID_INSTALLMENTS", "At least one installment is required")
	}

	seen := make(map[int]bool, len(inputs))
	sum := decimal.Zero
	for _, in := range inputs {
		if seen[in.InstallmentNumber] {
			return nil, shared.NewDomainError("DUPLICATE_INSTALLMENT",
				fmt.Sprintf("duplicate installment number %d", in.InstallmentNumber))
		}
		seen[in.InstallmentNumber] = true
		sum = sum.Add(in.Amount)
	}
	for n := 1; n <= len(inputs); n++ {
		if !seen[n] {
			return nil, shared.NewDomainError("INVALID_INSTALLMENT_NUMBER",
				fmt.Sprintf("installment numbers must be sequential starting from 1; missing %d", n))
		}
	}
	if !sum.Equal(total.Amount()) {
		return nil, shared.NewDomainError("INSTALLMENT_SUM_MISMATCH",
			fmt.Sprintf("sum of installment amounts (%s) must equal plan total (%s)",
				sum.StringFixed(valueobject.CurrencyScale), total.Amount().StringFixed(valueobject.CurrencyScale)))
	}

	plan := &PaymentPlan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceID:         invoiceID,
		TotalAmount:       total.Amount(),
		Status:            PlanStatusPending,
		Description:       description,
	}

	plan.Installments = make([]Installment, 0, len(inputs))
	for _, in := range inputs {
		inst, err := NewInstallment(plan.ID, in.InstallmentNumber, in.DueDate, in.Amount, in.Description)
		if err != nil {
			return nil, err
		}
		plan.Installments = append(plan.Installments, *inst)
	}
	plan.sortInstallments()

	return plan, nil
}

// sortInstallments orders by due date ascending, installment number as the
// tiebreak. This is the waterfall order.
func (p *PaymentPlan) sortInstallments() {
	sort.SliceStable(p.Installments, func(a, b int) bool {
		if p.Installments[a].DueDate.Equal(p.Installments[b].DueDate) {
			return p.Installments[a].InstallmentNumber < p.Installments[b].InstallmentNumber
		}
		return p.Installments[a].DueDate.Before(p.Installments[b].DueDate)
	})
}

// TotalPaid returns the sum of installment paid amounts
func (p *PaymentPlan) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for i := range p.Installments {
		total = total.Add(p.Installments[i].PaidAmount)
	}
	return total
}

// RemainingBalance returns the plan total minus everything paid
func (p *PaymentPlan) RemainingBalance() decimal.Decimal {
	return p.TotalAmount.Sub(p.TotalPaid())
}

// IsFullyPaid returns true when every installment is fully paid
func (p *PaymentPlan) IsFullyPaid() bool {
	for i := range p.Installments {
		if !p.Installments[i].IsFullyPaid() {
			return false
		}
	}
	return len(p.Installments) > 0
}

// HasOverdueInstallments returns true if any unpaid installment is past due
func (p *PaymentPlan) HasOverdueInstallments(today time.Time) bool {
	for i := range p.Installments {
		if p.Installments[i].IsOverdue(today) {
			return true
		}
	}
	return false
}

// NextDueInstallment returns the first not-fully-paid installment in
// waterfall order, or nil when everything is paid.
func (p *PaymentPlan) NextDueInstallment() *Installment {
	for i := range p.Installments {
		if !p.Installments[i].IsFullyPaid() {
			return &p.Installments[i]
		}
	}
	return nil
}

// InstallmentChange records one installment touched by a waterfall run
type InstallmentChange struct {
	InstallmentID     uuid.UUID         `json:"installment_id"`
	InstallmentNumber int               `json:"installment_number"`
	DueDate           time.Time         `json:"due_date"`
	AppliedAmount     decimal.Decimal   `json:"applied_amount"`
	PaidAmount        decimal.Decimal   `json:"paid_amount"`
	Status            InstallmentStatus `json:"status"`
}

// PaymentResult is the outcome of distributing one payment across a plan
type PaymentResult struct {
	PaymentApplied      decimal.Decimal     `json:"payment_applied"`
	RemainingPayment    decimal.Decimal     `json:"remaining_payment"`
	UpdatedInstallments []InstallmentChange `json:"updated_installments"`
	PaymentPlanStatus   PlanStatus          `json:"payment_plan_status"`
}

// ProcessPayment distributes a lump payment across the installments,
// oldest due date first, filling each to its remaining balance. Leftover
// beyond the total outstanding balance is reported in RemainingPayment,
// never silently absorbed or rejected.
func (p *PaymentPlan) ProcessPayment(amount decimal.Decimal, today time.Time) (*PaymentResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be greater than zero")
	}
	if !p.Status.IsActive() {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("cannot process payment on a %s payment plan", p.Status))
	}

	p.sortInstallments()

	result := &PaymentResult{
		PaymentApplied:      decimal.Zero,
		RemainingPayment:    amount,
		UpdatedInstallments: []InstallmentChange{},
	}

	for i := range p.Installments {
		if result.RemainingPayment.LessThanOrEqual(decimal.Zero) {
			break
		}
		inst := &p.Installments[i]
		applied := inst.applyPayment(result.RemainingPayment)
		if applied.IsZero() {
			continue
		}
		result.PaymentApplied = result.PaymentApplied.Add(applied)
		result.RemainingPayment = result.RemainingPayment.Sub(applied)
		result.UpdatedInstallments = append(result.UpdatedInstallments, InstallmentChange{
			InstallmentID:     inst.ID,
			InstallmentNumber: inst.InstallmentNumber,
			DueDate:           inst.DueDate,
			AppliedAmount:     applied,
			PaidAmount:        inst.PaidAmount,
			Status:            inst.Status,
		})
	}

	p.RecomputeStatus(today)
	result.PaymentPlanStatus = p.Status

	return result, nil
}

// RecomputeStatus re-derives the plan status from its installments.
// Cancelled is sticky and never overwritten.
func (p *PaymentPlan) RecomputeStatus(today time.Time) {
	if p.Status == PlanStatusCancelled {
		return
	}

	switch {
	case p.IsFullyPaid():
		p.Status = PlanStatusPaid
	case p.HasOverdueInstallments(today):
		p.Status = PlanStatusOverdue
	case p.TotalPaid().GreaterThan(decimal.Zero):
		p.Status = PlanStatusPartial
	default:
		p.Status = PlanStatusPending
	}
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// RefreshOverdue re-derives every installment status as of the given day
// and then the plan status. Used by the periodic overdue sweep.
func (p *PaymentPlan) RefreshOverdue(today time.Time) {
	for i := range p.Installments {
		p.Installments[i].RefreshStatus(today)
	}
	p.RecomputeStatus(today)
}

// Cancel marks the plan cancelled. Only active plans can be cancelled;
// the status is sticky afterwards.
func (p *PaymentPlan) Cancel() error {
	if p.Status == PlanStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Payment plan is already cancelled")
	}
	if p.Status == PlanStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a fully paid payment plan")
	}
	p.Status = PlanStatusCancelled
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}

// AddInstallment appends a new installment and grows the plan total to
// keep it equal to the installment sum.
func (p *PaymentPlan) AddInstallment(number int, dueDate time.Time, amount decimal.Decimal, description string) (*Installment, error) {
	if !p.Status.IsActive() {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("cannot add installments to a %s payment plan", p.Status))
	}
	for i := range p.Installments {
		if p.Installments[i].InstallmentNumber == number {
			return nil, shared.NewDomainError("DUPLICATE_INSTALLMENT",
				fmt.Sprintf("installment number %d already exists in this plan", number))
		}
	}

	inst, err := NewInstallment(p.ID, number, dueDate, amount, description)
	if err != nil {
		return nil, err
	}
	p.Installments = append(p.Installments, *inst)
	p.sortInstallments()
	p.TotalAmount = p.TotalAmount.Add(amount)
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return inst, nil
}

// UpdateInstallment changes the due date and/or amount of an installment
// that has not received any payment yet. The plan total follows any
// amount change.
func (p *PaymentPlan) UpdateInstallment(installmentID uuid.UUID, dueDate *time.Time, amount *decimal.Decimal, description *string) error {
	var inst *Installment
	for i := range p.Installments {
		if p.Installments[i].ID == installmentID {
			inst = &p.Installments[i]
			break
		}
	}
	if inst == nil {
		return shared.ErrNotFound
	}
	if inst.PaidAmount.GreaterThan(decimal.Zero) {
		return shared.NewDomainError("INSTALLMENT_HAS_PAYMENTS",
			"Cannot modify an installment that has received payments")
	}

	if amount != nil {
		if amount.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError("INVALID_AMOUNT", "Installment amount must be positive")
		}
		p.TotalAmount = p.TotalAmount.Sub(inst.Amount).Add(*amount)
		inst.Amount = *amount
	}
	if dueDate != nil {
		inst.DueDate = *dueDate
	}
	if description != nil {
		inst.Description = *description
	}
	inst.UpdatedAt = time.Now()
	p.sortInstallments()
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	return nil
}
