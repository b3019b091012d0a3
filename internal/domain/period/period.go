package period

import (
	"context"
	"fmt"
	"time"

	"github.com/openledger/settlement/internal/domain/shared"
)

// LedgerType identifies which subledger a period applies to
type LedgerType string

const (
	LedgerAR LedgerType = "AR" // accounts receivable
	LedgerAP LedgerType = "AP" // accounts payable
	LedgerGL LedgerType = "GL" // general ledger
)

// IsValid checks if the ledger type is supported
func (l LedgerType) IsValid() bool {
	return l == LedgerAR || l == LedgerAP || l == LedgerGL
}

// Status represents the state of an accounting period
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Period is an accounting period for one ledger. Settlement postings
// are only accepted while the period covering their date is open.
type Period struct {
	shared.BaseEntity
	Name      string
	Ledger    LedgerType
	StartDate time.Time
	EndDate   time.Time
	Status    Status
}

// NewPeriod creates an open accounting period
func NewPeriod(name string, ledger LedgerType, start, end time.Time) (*Period, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period name cannot be empty")
	}
	if !ledger.IsValid() {
		return nil, shared.NewDomainError("INVALID_LEDGER", fmt.Sprintf("unknown ledger type %q", ledger))
	}
	if !end.After(start) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period end date must be after start date")
	}

	return &Period{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Ledger:     ledger,
		StartDate:  start,
		EndDate:    end,
		Status:     StatusOpen,
	}, nil
}

// Contains reports whether the date falls inside the period, inclusive
// on both ends.
func (p *Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// IsOpen returns true when the period still accepts postings
func (p *Period) IsOpen() bool {
	return p.Status == StatusOpen
}

// Close marks the period closed. Closed periods reject further postings.
func (p *Period) Close() error {
	if p.Status == StatusClosed {
		return shared.NewDomainError("INVALID_STATE", "Period is already closed")
	}
	p.Status = StatusClosed
	p.UpdatedAt = time.Now()
	return nil
}

// Reopen makes a closed period accept postings again
func (p *Period) Reopen() error {
	if p.Status == StatusOpen {
		return shared.NewDomainError("INVALID_STATE", "Period is already open")
	}
	p.Status = StatusOpen
	p.UpdatedAt = time.Now()
	return nil
}

// Repository provides access to accounting periods
type Repository interface {
	FindByDate(ctx context.Context, ledger LedgerType, date time.Time) (*Period, error)
	FindByName(ctx context.Context, ledger LedgerType, name string) (*Period, error)
	Save(ctx context.Context, p *Period) error
}
