package domain

// Candle is the OHLCV summary of one closed interval for one symbol.
// Immutable once emitted by the aggregator.
// Invariant: Low <= Open, Close <= High; TradeCount >= 1.
type Candle struct {
	Symbol        string  // trading pair
	IntervalStart int64   // interval-aligned start timestamp (Unix ms)
	Open          float64 // first trade price in interval
	High          float64 // highest trade price in interval
	Low           float64 // lowest trade price in interval
	Close         float64 // last trade price in interval
	Volume        float64 // sum of traded quantities
	TradeCount    int     // number of trades folded into the candle
}
