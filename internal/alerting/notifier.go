// Package alerting delivers anomaly alerts to downstream channels.
package alerting

import (
	"context"

	"marketpulse/internal/domain"
)

// Notifier delivers one anomaly alert.
type Notifier interface {
	Notify(ctx context.Context, rec *domain.AnomalyRecord) error
}

// MultiNotifier fans one alert out to several notifiers. Delivery failures
// do not stop the remaining notifiers; the first error is returned.
type MultiNotifier []Notifier

var _ Notifier = (MultiNotifier)(nil)

func (m MultiNotifier) Notify(ctx context.Context, rec *domain.AnomalyRecord) error {
	var firstErr error
	for _, n := range m {
		if err := n.Notify(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
