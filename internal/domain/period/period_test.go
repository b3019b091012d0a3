package period

import (
	"testing"
	"time"

	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jan2026() (time.Time, time.Time) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	return start, end
}

func TestNewPeriod(t *testing.T) {
	start, end := jan2026()

	t.Run("creates an open period", func(t *testing.T) {
		p, err := NewPeriod("2026-01", LedgerAR, start, end)
		require.NoError(t, err)

		assert.Equal(t, "2026-01", p.Name)
		assert.Equal(t, LedgerAR, p.Ledger)
		assert.Equal(t, StatusOpen, p.Status)
		assert.True(t, p.IsOpen())
		assert.NotEqual(t, "", p.ID.String())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := NewPeriod("", LedgerAR, start, end)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_PERIOD", domainErr.Code)
	})

	t.Run("rejects unknown ledger", func(t *testing.T) {
		_, err := NewPeriod("2026-01", LedgerType("XX"), start, end)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_LEDGER", domainErr.Code)
	})

	t.Run("rejects end before start", func(t *testing.T) {
		_, err := NewPeriod("2026-01", LedgerAP, end, start)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_PERIOD", domainErr.Code)
	})

	t.Run("rejects zero-length period", func(t *testing.T) {
		_, err := NewPeriod("2026-01", LedgerGL, start, start)
		require.Error(t, err)
	})
}

func TestLedgerType_IsValid(t *testing.T) {
	assert.True(t, LedgerAR.IsValid())
	assert.True(t, LedgerAP.IsValid())
	assert.True(t, LedgerGL.IsValid())
	assert.False(t, LedgerType("").IsValid())
	assert.False(t, LedgerType("ar").IsValid())
}

func TestPeriod_Contains(t *testing.T) {
	start, end := jan2026()
	p, err := NewPeriod("2026-01", LedgerAR, start, end)
	require.NoError(t, err)

	assert.True(t, p.Contains(start), "start date is inclusive")
	assert.True(t, p.Contains(end), "end date is inclusive")
	assert.True(t, p.Contains(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(start.Add(-time.Second)))
	assert.False(t, p.Contains(end.Add(time.Second)))
}

func TestPeriod_CloseAndReopen(t *testing.T) {
	start, end := jan2026()

	t.Run("close then reopen", func(t *testing.T) {
		p, err := NewPeriod("2026-01", LedgerAR, start, end)
		require.NoError(t, err)

		require.NoError(t, p.Close())
		assert.Equal(t, StatusClosed, p.Status)
		assert.False(t, p.IsOpen())

		require.NoError(t, p.Reopen())
		assert.True(t, p.IsOpen())
	})

	t.Run("double close fails", func(t *testing.T) {
		p, err := NewPeriod("2026-01", LedgerAR, start, end)
		require.NoError(t, err)
		require.NoError(t, p.Close())

		err = p.Close()
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})

	t.Run("reopening an open period fails", func(t *testing.T) {
		p, err := NewPeriod("2026-01", LedgerAR, start, end)
		require.NoError(t, err)

		err = p.Reopen()
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_STATE", domainErr.Code)
	})
}
