package alerting

import (
	"fmt"
	"strings"
	"time"

	"marketpulse/internal/domain"
)

// Subject returns a short alert subject line, e.g.
// "MarketPulse Alert: Price Movement".
func Subject(rec *domain.AnomalyRecord) string {
	words := strings.Split(rec.Type, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return "MarketPulse Alert: " + strings.Join(words, " ")
}

// FormatAlert renders a human readable alert message for the record.
func FormatAlert(rec *domain.AnomalyRecord) string {
	ts := time.UnixMilli(rec.TimestampMs).UTC().Format(time.RFC3339)

	switch rec.Type {
	case domain.AnomalyPriceMovement:
		return fmt.Sprintf(`PRICE MOVEMENT ALERT
Symbol: %s
Price Change: %.2f%%
Current Price: $%.2f
Previous Price: $%.2f
Threshold: %g%%
Severity: %s
Time: %s`,
			rec.Symbol, rec.PriceChangePct, rec.CurrentPrice, rec.PreviousPrice,
			rec.Threshold, strings.ToUpper(rec.Severity), ts)

	case domain.AnomalyVolumeSpike:
		return fmt.Sprintf(`VOLUME SPIKE ALERT
Symbol: %s
Volume Ratio: %.2fx
Current Volume: %.2f
Average Volume: %.2f
Threshold: %gx
Severity: %s
Time: %s`,
			rec.Symbol, rec.VolumeRatio, rec.CurrentVolume, rec.AverageVolume,
			rec.Threshold, strings.ToUpper(rec.Severity), ts)

	case domain.AnomalySMADivergence:
		return fmt.Sprintf(`SMA DIVERGENCE ALERT
Symbol: %s
Divergence: %.2f%%
Current Price: $%.2f
Short SMA: $%.2f
Long SMA: $%.2f
Threshold: %g%%
Severity: %s
Time: %s`,
			rec.Symbol, rec.DivergencePct, rec.CurrentPrice, rec.ShortSMA,
			rec.LongSMA, rec.Threshold, strings.ToUpper(rec.Severity), ts)

	default:
		return fmt.Sprintf("Unknown anomaly type: %s", rec.Type)
	}
}
