// Package period implements the accounting-period gate. Settlement
// postings are only accepted while the period covering their date is
// open; the answer is cached because the gate sits on the hot path.
package period

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openledger/settlement/internal/domain/period"
	"github.com/openledger/settlement/internal/domain/shared"
	"github.com/openledger/settlement/internal/infrastructure/cache"
	"github.com/openledger/settlement/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultCacheTTL bounds how long a stale gate answer can survive after a
// period is closed administratively out-of-band.
const DefaultCacheTTL = 5 * time.Minute

// GateService answers whether a posting date falls into an open period
type GateService struct {
	periods  period.Repository
	cache    cache.PeriodStatusCache
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewGateService creates a new GateService
func NewGateService(periods period.Repository, statusCache cache.PeriodStatusCache, logger *zap.Logger) *GateService {
	return &GateService{
		periods:  periods,
		cache:    statusCache,
		logger:   logger,
		cacheTTL: DefaultCacheTTL,
	}
}

func cacheKey(ledger period.LedgerType, date time.Time) string {
	return fmt.Sprintf("%s:%s", ledger, date.Format("2006-01-02"))
}

// IsDateOpen reports whether the date falls inside an open period for the
// ledger. A date covered by no period at all is closed.
func (s *GateService) IsDateOpen(ctx context.Context, ledger period.LedgerType, date time.Time) (bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "period", "is_date_open")
	defer span.End()
	telemetry.SetAttributes(span, "ledger", string(ledger), "date", date.Format("2006-01-02"))

	key := cacheKey(ledger, date)
	if status, err := s.cache.Get(ctx, key); err != nil {
		// Cache failures degrade to a repository lookup.
		s.logger.Warn("period cache read failed", zap.String("key", key), zap.Error(err))
	} else if status != "" {
		return status == cache.PeriodOpen, nil
	}

	open, err := s.lookupOpen(ctx, ledger, date)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}

	status := cache.PeriodClosed
	if open {
		status = cache.PeriodOpen
	}
	if err := s.cache.Set(ctx, key, status, s.cacheTTL); err != nil {
		s.logger.Warn("period cache write failed", zap.String("key", key), zap.Error(err))
	}
	return open, nil
}

func (s *GateService) lookupOpen(ctx context.Context, ledger period.LedgerType, date time.Time) (bool, error) {
	p, err := s.periods.FindByDate(ctx, ledger, date)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up period: %w", err)
	}
	return p.IsOpen(), nil
}

// AssertOpen returns a domain error when the date is not postable
func (s *GateService) AssertOpen(ctx context.Context, ledger period.LedgerType, date time.Time) error {
	open, err := s.IsDateOpen(ctx, ledger, date)
	if err != nil {
		return err
	}
	if !open {
		return shared.NewDomainError("PERIOD_CLOSED",
			fmt.Sprintf("no open %s period covers %s", ledger, date.Format("2006-01-02")))
	}
	return nil
}

// ClosePeriod closes a named period and invalidates its cached days
func (s *GateService) ClosePeriod(ctx context.Context, ledger period.LedgerType, name string) error {
	p, err := s.periods.FindByName(ctx, ledger, name)
	if err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return err
	}
	if err := s.periods.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save period: %w", err)
	}
	s.invalidateRange(ctx, ledger, p.StartDate, p.EndDate)
	s.logger.Info("accounting period closed",
		zap.String("ledger", string(ledger)),
		zap.String("period", name),
	)
	return nil
}

// ReopenPeriod reopens a named period and invalidates its cached days
func (s *GateService) ReopenPeriod(ctx context.Context, ledger period.LedgerType, name string) error {
	p, err := s.periods.FindByName(ctx, ledger, name)
	if err != nil {
		return err
	}
	if err := p.Reopen(); err != nil {
		return err
	}
	if err := s.periods.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save period: %w", err)
	}
	s.invalidateRange(ctx, ledger, p.StartDate, p.EndDate)
	s.logger.Info("accounting period reopened",
		zap.String("ledger", string(ledger)),
		zap.String("period", name),
	)
	return nil
}

func (s *GateService) invalidateRange(ctx context.Context, ledger period.LedgerType, start, end time.Time) {
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := s.cache.Invalidate(ctx, cacheKey(ledger, d)); err != nil {
			s.logger.Warn("period cache invalidation failed",
				zap.String("ledger", string(ledger)),
				zap.String("date", d.Format("2006-01-02")),
				zap.Error(err),
			)
		}
	}
}
