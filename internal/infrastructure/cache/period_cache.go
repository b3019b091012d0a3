// Package cache provides read-through caching for accounting period
// lookups. The period gate sits on the hot path of every allocation, so
// open/closed answers are cached with a short TTL.
package cache

import (
	"context"
	"time"
)

// PeriodStatus is a cached open/closed answer for one ledger and date
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// PeriodStatusCache caches period gate decisions. A cache miss returns
// ("", nil); errors are reserved for backend failures.
type PeriodStatusCache interface {
	Get(ctx context.Context, key string) (PeriodStatus, error)
	Set(ctx context.Context, key string, status PeriodStatus, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
