package alerting

import (
	"context"

	"github.com/rs/zerolog"

	"marketpulse/internal/domain"
)

// LogNotifier writes alerts to the structured log. It always succeeds and
// is useful as a fallback when no external channel is configured.
type LogNotifier struct {
	log zerolog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, rec *domain.AnomalyRecord) error {
	n.log.Warn().
		Str("anomaly_id", rec.ID).
		Str("type", rec.Type).
		Str("symbol", rec.Symbol).
		Str("severity", rec.Severity).
		Int64("timestamp_ms", rec.TimestampMs).
		Msg(Subject(rec))
	return nil
}
