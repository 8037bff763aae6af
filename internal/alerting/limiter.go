package alerting

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"marketpulse/internal/domain"
)

// RateLimitedNotifier wraps a notifier and suppresses repeated alerts for
// the same (symbol, type) pair within the configured minimum interval. The
// first alert of each pair always passes.
type RateLimitedNotifier struct {
	next     Notifier
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	limit    rate.Limit

	// OnSuppress, when set, is called for every suppressed alert.
	OnSuppress func(rec *domain.AnomalyRecord)
}

var _ Notifier = (*RateLimitedNotifier)(nil)

// NewRateLimitedNotifier creates a limiter allowing one alert per minInterval
// for each (symbol, type) pair. A non-positive interval disables limiting.
func NewRateLimitedNotifier(next Notifier, minInterval time.Duration) *RateLimitedNotifier {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &RateLimitedNotifier{
		next:     next,
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

func (n *RateLimitedNotifier) Notify(ctx context.Context, rec *domain.AnomalyRecord) error {
	if !n.allow(rec.Symbol + "|" + rec.Type) {
		if n.OnSuppress != nil {
			n.OnSuppress(rec)
		}
		return nil
	}
	return n.next.Notify(ctx, rec)
}

func (n *RateLimitedNotifier) allow(key string) bool {
	n.mu.Lock()
	lim, ok := n.limiters[key]
	if !ok {
		lim = rate.NewLimiter(n.limit, 1)
		n.limiters[key] = lim
	}
	n.mu.Unlock()

	return lim.Allow()
}
