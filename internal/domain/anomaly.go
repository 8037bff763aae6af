package domain

// Anomaly type constants.
const (
	AnomalyPriceMovement = "price_movement"
	AnomalyVolumeSpike   = "volume_spike"
	AnomalySMADivergence = "sma_divergence"
)

// Anomaly severity constants. High means the measured value exceeded
// twice the configured threshold.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AnomalyRecord is one detection rule firing against a symbol's candle history.
// TimestampMs is the IntervalStart of the candle that triggered the rule.
// Only the measured fields relevant to Type are populated.
type AnomalyRecord struct {
	ID          string // assigned at the persistence boundary
	Type        string // price_movement | volume_spike | sma_divergence
	Symbol      string
	Severity    string  // medium | high
	Threshold   float64 // configured threshold that was exceeded
	TimestampMs int64

	// price_movement
	CurrentPrice   float64
	PreviousPrice  float64
	PriceChangePct float64

	// volume_spike
	CurrentVolume float64
	AverageVolume float64
	VolumeRatio   float64

	// sma_divergence
	ShortSMA      float64
	LongSMA       float64
	DivergencePct float64
}
