package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/openledger/settlement/internal/domain/settlement"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber     string                   `gorm:"type:varchar(50);not null;uniqueIndex"`
	Direction         settlement.Direction     `gorm:"type:varchar(2);not null;index"`
	BusinessPartnerID uuid.UUID                `gorm:"type:uuid;not null;index"`
	Currency          valueobject.Currency     `gorm:"type:varchar(3);not null"`
	Date              time.Time                `gorm:"not null;index"`
	Total             decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	PaidAmount        decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	PaymentStatus     settlement.PaymentStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *settlement.Invoice {
	return &settlement.Invoice{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		Direction:         m.Direction,
		BusinessPartnerID: m.BusinessPartnerID,
		Currency:          m.Currency,
		Date:              m.Date,
		Total:             m.Total,
		PaidAmount:        m.PaidAmount,
		PaymentStatus:     m.PaymentStatus,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *settlement.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.Direction = inv.Direction
	m.BusinessPartnerID = inv.BusinessPartnerID
	m.Currency = inv.Currency
	m.Date = inv.Date
	m.Total = inv.Total
	m.PaidAmount = inv.PaidAmount
	m.PaymentStatus = inv.PaymentStatus
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AggregateModel
	PaymentNumber     string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	Direction         settlement.Direction `gorm:"type:varchar(2);not null;index"`
	BusinessPartnerID uuid.UUID            `gorm:"type:uuid;not null;index"`
	Currency          valueobject.Currency `gorm:"type:varchar(3);not null"`
	Amount            decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Date              time.Time            `gorm:"not null;index"`
	Reference         string               `gorm:"type:varchar(100)"`
	Memo              string               `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *settlement.Payment {
	return &settlement.Payment{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PaymentNumber:     m.PaymentNumber,
		Direction:         m.Direction,
		BusinessPartnerID: m.BusinessPartnerID,
		Currency:          m.Currency,
		Amount:            m.Amount,
		Date:              m.Date,
		Reference:         m.Reference,
		Memo:              m.Memo,
	}
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *settlement.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.PaymentNumber = p.PaymentNumber
	m.Direction = p.Direction
	m.BusinessPartnerID = p.BusinessPartnerID
	m.Currency = p.Currency
	m.Amount = p.Amount
	m.Date = p.Date
	m.Reference = p.Reference
	m.Memo = p.Memo
}

// AllocationModel is the persistence model for allocation records.
// The unique index enforces at most one record per (payment, invoice).
type AllocationModel struct {
	BaseModel
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:1;index"`
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:2;index"`
	AmountAllocated decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain Allocation.
func (m *AllocationModel) ToDomain() *settlement.Allocation {
	return &settlement.Allocation{
		BaseEntity:      m.BaseModel.ToDomain(),
		PaymentID:       m.PaymentID,
		InvoiceID:       m.InvoiceID,
		AmountAllocated: m.AmountAllocated,
	}
}

// FromDomain populates the persistence model from a domain Allocation.
func (m *AllocationModel) FromDomain(a *settlement.Allocation) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.AmountAllocated = a.AmountAllocated
}

// PaymentPlanModel is the persistence model for the PaymentPlan aggregate
// root. Installments load with the plan, ordered for the waterfall.
type PaymentPlanModel struct {
	AggregateModel
	InvoiceID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	TotalAmount  decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Status       settlement.PlanStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Description  string                `gorm:"type:text"`
	Installments []InstallmentModel    `gorm:"foreignKey:PaymentPlanID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PaymentPlanModel) TableName() string {
	return "payment_plans"
}

// ToDomain converts the persistence model to a domain PaymentPlan.
func (m *PaymentPlanModel) ToDomain() *settlement.PaymentPlan {
	plan := &settlement.PaymentPlan{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		InvoiceID:         m.InvoiceID,
		TotalAmount:       m.TotalAmount,
		Status:            m.Status,
		Description:       m.Description,
	}
	plan.Installments = make([]settlement.Installment, len(m.Installments))
	for i := range m.Installments {
		plan.Installments[i] = *m.Installments[i].ToDomain()
	}
	return plan
}

// FromDomain populates the persistence model from a domain PaymentPlan.
func (m *PaymentPlanModel) FromDomain(p *settlement.PaymentPlan) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.InvoiceID = p.InvoiceID
	m.TotalAmount = p.TotalAmount
	m.Status = p.Status
	m.Description = p.Description
	m.Installments = make([]InstallmentModel, len(p.Installments))
	for i := range p.Installments {
		m.Installments[i].FromDomain(&p.Installments[i])
	}
}

// InstallmentModel is the persistence model for plan installments.
// The unique index enforces one installment number per plan.
type InstallmentModel struct {
	BaseModel
	PaymentPlanID     uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex:idx_installment_number,priority:1;index"`
	InstallmentNumber int                          `gorm:"not null;uniqueIndex:idx_installment_number,priority:2"`
	DueDate           time.Time                    `gorm:"not null;index"`
	Amount            decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	PaidAmount        decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	Status            settlement.InstallmentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Description       string                       `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (InstallmentModel) TableName() string {
	return "payment_plan_installments"
}

// ToDomain converts the persistence model to a domain Installment.
func (m *InstallmentModel) ToDomain() *settlement.Installment {
	return &settlement.Installment{
		BaseEntity:        m.BaseModel.ToDomain(),
		PaymentPlanID:     m.PaymentPlanID,
		InstallmentNumber: m.InstallmentNumber,
		DueDate:           m.DueDate,
		Amount:            m.Amount,
		PaidAmount:        m.PaidAmount,
		Status:            m.Status,
		Description:       m.Description,
	}
}

// FromDomain populates the persistence model from a domain Installment.
func (m *InstallmentModel) FromDomain(i *settlement.Installment) {
	m.FromDomainBaseEntity(i.BaseEntity)
	m.PaymentPlanID = i.PaymentPlanID
	m.InstallmentNumber = i.InstallmentNumber
	m.DueDate = i.DueDate
	m.Amount = i.Amount
	m.PaidAmount = i.PaidAmount
	m.Status = i.Status
	m.Description = i.Description
}
