package anomaly

import (
	"math"

	"marketpulse/internal/domain"
)

// Rule warm-up requirements, in candles.
const (
	priceRuleMinCandles  = 2
	volumeRuleMinCandles = 10
	smaRuleMinCandles    = 25

	shortSMAPeriod = 10
	longSMAPeriod  = 20
)

// Config holds detection thresholds. All are injected; defaults match the
// production alerting profile.
type Config struct {
	PriceThresholdPct float64 // absolute close-to-close change, percent
	VolumeThreshold   float64 // current volume over trailing average, ratio
	SMAThresholdPct   float64 // short SMA vs long SMA divergence, percent
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		PriceThresholdPct: 5.0,
		VolumeThreshold:   3.0,
		SMAThresholdPct:   2.0,
	}
}

// Detector evaluates a candle history against three independent rules.
// It is stateless and reentrant: Detect never mutates the history and
// repeated calls over an unchanged history return identical records.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given thresholds. Non-positive
// thresholds fall back to defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.PriceThresholdPct <= 0 {
		cfg.PriceThresholdPct = def.PriceThresholdPct
	}
	if cfg.VolumeThreshold <= 0 {
		cfg.VolumeThreshold = def.VolumeThreshold
	}
	if cfg.SMAThresholdPct <= 0 {
		cfg.SMAThresholdPct = def.SMAThresholdPct
	}
	return &Detector{cfg: cfg}
}

// Detect runs all rules over a most-recent-first candle history and collects
// every firing. Multiple rules may fire for the same candle. A history
// shorter than a rule's warm-up requirement makes that rule abstain; it is
// never an error.
func (d *Detector) Detect(history []domain.Candle) []domain.AnomalyRecord {
	var records []domain.AnomalyRecord

	if r := d.detectPriceMovement(history); r != nil {
		records = append(records, *r)
	}
	if r := d.detectVolumeSpike(history); r != nil {
		records = append(records, *r)
	}
	if r := d.detectSMADivergence(history); r != nil {
		records = append(records, *r)
	}

	return records
}

// detectPriceMovement fires when the close-to-close change between the two
// most recent candles exceeds the price threshold.
func (d *Detector) detectPriceMovement(history []domain.Candle) *domain.AnomalyRecord {
	if len(history) < priceRuleMinCandles {
		return nil
	}

	current, previous := history[0], history[1]
	if previous.Close == 0 {
		return nil
	}

	changePct := (current.Close - previous.Close) / previous.Close * 100
	if math.Abs(changePct) <= d.cfg.PriceThresholdPct {
		return nil
	}

	return &domain.AnomalyRecord{
		Type:           domain.AnomalyPriceMovement,
		Symbol:         current.Symbol,
		Severity:       severity(math.Abs(changePct), d.cfg.PriceThresholdPct),
		Threshold:      d.cfg.PriceThresholdPct,
		TimestampMs:    current.IntervalStart,
		CurrentPrice:   current.Close,
		PreviousPrice:  previous.Close,
		PriceChangePct: changePct,
	}
}

// detectVolumeSpike fires when the current candle's volume exceeds the
// trailing nine-candle average by more than the volume threshold. A zero
// average defines the ratio as 0, so the rule never fires on dead volume.
func (d *Detector) detectVolumeSpike(history []domain.Candle) *domain.AnomalyRecord {
	if len(history) < volumeRuleMinCandles {
		return nil
	}

	current := history[0]

	var sum float64
	for _, c := range history[1:volumeRuleMinCandles] {
		sum += c.Volume
	}
	avgVolume := sum / float64(volumeRuleMinCandles-1)

	ratio := 0.0
	if avgVolume > 0 {
		ratio = current.Volume / avgVolume
	}
	if ratio <= d.cfg.VolumeThreshold {
		return nil
	}

	return &domain.AnomalyRecord{
		Type:          domain.AnomalyVolumeSpike,
		Symbol:        current.Symbol,
		Severity:      severity(ratio, d.cfg.VolumeThreshold),
		Threshold:     d.cfg.VolumeThreshold,
		TimestampMs:   current.IntervalStart,
		CurrentVolume: current.Volume,
		AverageVolume: avgVolume,
		VolumeRatio:   ratio,
	}
}

// detectSMADivergence fires when the 10-candle SMA of closes diverges from
// the 20-candle SMA by more than the SMA threshold. Requires 25 candles so
// both SMAs are computed over a settled window.
func (d *Detector) detectSMADivergence(history []domain.Candle) *domain.AnomalyRecord {
	if len(history) < smaRuleMinCandles {
		return nil
	}

	shortSMA := sma(history, shortSMAPeriod)
	longSMA := sma(history, longSMAPeriod)
	if longSMA == 0 {
		return nil
	}

	divergencePct := (shortSMA - longSMA) / longSMA * 100
	if math.Abs(divergencePct) <= d.cfg.SMAThresholdPct {
		return nil
	}

	current := history[0]
	return &domain.AnomalyRecord{
		Type:          domain.AnomalySMADivergence,
		Symbol:        current.Symbol,
		Severity:      severity(math.Abs(divergencePct), d.cfg.SMAThresholdPct),
		Threshold:     d.cfg.SMAThresholdPct,
		TimestampMs:   current.IntervalStart,
		CurrentPrice:  current.Close,
		ShortSMA:      shortSMA,
		LongSMA:       longSMA,
		DivergencePct: divergencePct,
	}
}

// sma computes the simple moving average of closes over the most recent
// period candles. Callers guarantee len(history) >= period.
func sma(history []domain.Candle, period int) float64 {
	var sum float64
	for _, c := range history[:period] {
		sum += c.Close
	}
	return sum / float64(period)
}

// severity classifies a firing: high above twice the threshold, else medium.
func severity(measured, threshold float64) string {
	if measured > threshold*2 {
		return domain.SeverityHigh
	}
	return domain.SeverityMedium
}
