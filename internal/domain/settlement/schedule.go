package settlement

import (
	"time"

	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Frequency is the spacing between suggested installments
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// IsValid checks if the frequency is supported
func (f Frequency) IsValid() bool {
	return f == FrequencyWeekly || f == FrequencyMonthly || f == FrequencyQuarterly
}

// MaxSuggestedInstallments bounds schedule generation
const MaxSuggestedInstallments = 100

// SuggestedInstallment is one row of a generated schedule. It is a
// proposal only; nothing is persisted until a plan is created from it.
type SuggestedInstallment struct {
	InstallmentNumber int               `json:"installment_number"`
	DueDate           time.Time         `json:"due_date"`
	Amount            decimal.Decimal   `json:"amount"`
	PaidAmount        decimal.Decimal   `json:"paid_amount"`
	Status            InstallmentStatus `json:"status"`
}

// SuggestSchedule divides a total into count equal installments spaced by
// the given frequency from startDate. The division rounds to currency
// precision and assigns the integer remainder entirely to the last
// installment, so the generated amounts always sum exactly to the total.
func SuggestSchedule(total valueobject.Money, count int, startDate time.Time, frequency Frequency) ([]SuggestedInstallment, error) {
	if total.Amount().LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Schedule total must be positive")
	}
	if count < 1 || count > MaxSuggestedInstallments {
		return nil, shared.NewDomainError("INVALID_INSTALLMENT_COUNT", "Installment count must be between 1 and 100")
	}
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", "Frequency must be weekly, monthly or quarterly")
	}

	parts, err := total.SplitEvenly(count)
	if err != nil {
		return nil, err
	}

	schedule := make([]SuggestedInstallment, count)
	due := startDate
	for i := range count {
		schedule[i] = SuggestedInstallment{
			InstallmentNumber: i + 1,
			DueDate:           due,
			Amount:            parts[i].Amount(),
			PaidAmount:        decimal.Zero,
			Status:            InstallmentStatusPending,
		}
		due = nextDueDate(due, frequency)
	}

	return schedule, nil
}

func nextDueDate(from time.Time, frequency Frequency) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyQuarterly:
		return from.AddDate(0, 3, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}
