package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestSchedule(t *testing.T) {
	start := date(2025, 1, 15)

	t.Run("remainder goes to the last installment", func(t *testing.T) {
		schedule, err := SuggestSchedule(usd(t, "1000.00"), 3, start, FrequencyMonthly)
		require.NoError(t, err)
		require.Len(t, schedule, 3)

		assert.Equal(t, "333.33", schedule[0].Amount.StringFixed(2))
		assert.Equal(t, "333.33", schedule[1].Amount.StringFixed(2))
		assert.Equal(t, "333.34", schedule[2].Amount.StringFixed(2))

		sum := schedule[0].Amount.Add(schedule[1].Amount).Add(schedule[2].Amount)
		assert.True(t, sum.Equal(dec("1000.00")))
	})

	t.Run("numbers are sequential from 1 and rows start pending", func(t *testing.T) {
		schedule, err := SuggestSchedule(usd(t, "400.00"), 4, start, FrequencyMonthly)
		require.NoError(t, err)
		for i, row := range schedule {
			assert.Equal(t, i+1, row.InstallmentNumber)
			assert.Equal(t, InstallmentStatusPending, row.Status)
			assert.True(t, row.PaidAmount.IsZero())
		}
	})

	t.Run("monthly spacing", func(t *testing.T) {
		schedule, err := SuggestSchedule(usd(t, "300.00"), 3, start, FrequencyMonthly)
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 15), schedule[0].DueDate)
		assert.Equal(t, date(2025, 2, 15), schedule[1].DueDate)
		assert.Equal(t, date(2025, 3, 15), schedule[2].DueDate)
	})

	t.Run("weekly spacing", func(t *testing.T) {
		schedule, err := SuggestSchedule(usd(t, "300.00"), 3, start, FrequencyWeekly)
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 15), schedule[0].DueDate)
		assert.Equal(t, date(2025, 1, 22), schedule[1].DueDate)
		assert.Equal(t, date(2025, 1, 29), schedule[2].DueDate)
	})

	t.Run("quarterly spacing", func(t *testing.T) {
		schedule, err := SuggestSchedule(usd(t, "300.00"), 3, start, FrequencyQuarterly)
		require.NoError(t, err)
		assert.Equal(t, date(2025, 1, 15), schedule[0].DueDate)
		assert.Equal(t, date(2025, 4, 15), schedule[1].DueDate)
		assert.Equal(t, date(2025, 7, 15), schedule[2].DueDate)
	})

	t.Run("single installment carries the full total", func(t *testing.T) {
		schedule, err := SuggestSchedule(usd(t, "999.99"), 1, start, FrequencyMonthly)
		require.NoError(t, err)
		require.Len(t, schedule, 1)
		assert.Equal(t, "999.99", schedule[0].Amount.StringFixed(2))
	})

	t.Run("rejects invalid inputs", func(t *testing.T) {
		tests := []struct {
			name      string
			total     string
			count     int
			frequency Frequency
		}{
			{"zero total", "0.00", 3, FrequencyMonthly},
			{"zero count", "100.00", 0, FrequencyMonthly},
			{"count over limit", "100.00", MaxSuggestedInstallments + 1, FrequencyMonthly},
			{"unknown frequency", "100.00", 3, Frequency("daily")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := SuggestSchedule(usd(t, tt.total), tt.count, start, tt.frequency)
				assert.Error(t, err)
			})
		}
	})

	t.Run("schedule feeds plan creation cleanly", func(t *testing.T) {
		schedule, err := SuggestSchedule(usd(t, "1000.00"), 3, start, FrequencyMonthly)
		require.NoError(t, err)

		inputs := make([]InstallmentInput, len(schedule))
		for i, row := range schedule {
			inputs[i] = InstallmentInput{
				InstallmentNumber: row.InstallmentNumber,
				DueDate:           row.DueDate,
				Amount:            row.Amount,
			}
		}
		_, err = NewPaymentPlan(uuid.New(), usd(t, "1000.00"), "", inputs)
		assert.NoError(t, err)
	})
}
