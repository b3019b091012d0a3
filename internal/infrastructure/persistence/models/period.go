package models

import (
	"time"

	"github.com/openledger/settlement/internal/domain/period"
)

// PeriodModel is the persistence model for accounting periods.
type PeriodModel struct {
	BaseModel
	Name      string            `gorm:"type:varchar(50);not null;uniqueIndex:idx_period_ledger_name,priority:2"`
	Ledger    period.LedgerType `gorm:"type:varchar(2);not null;uniqueIndex:idx_period_ledger_name,priority:1;index"`
	StartDate time.Time         `gorm:"not null;index"`
	EndDate   time.Time         `gorm:"not null;index"`
	Status    period.Status     `gorm:"type:varchar(10);not null;default:'open'"`
}

// TableName returns the table name for GORM
func (PeriodModel) TableName() string {
	return "accounting_periods"
}

// ToDomain converts the persistence model to a domain Period.
func (m *PeriodModel) ToDomain() *period.Period {
	return &period.Period{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		Ledger:     m.Ledger,
		StartDate:  m.StartDate,
		EndDate:    m.EndDate,
		Status:     m.Status,
	}
}

// FromDomain populates the persistence model from a domain Period.
func (m *PeriodModel) FromDomain(p *period.Period) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Name = p.Name
	m.Ledger = p.Ledger
	m.StartDate = p.StartDate
	m.EndDate = p.EndDate
	m.Status = p.Status
}
