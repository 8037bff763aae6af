package domain

// TradeEvent represents a single observed trade for a symbol.
// Produced by the ingestion layer, consumed exactly once by the aggregator.
type TradeEvent struct {
	Symbol          string  // trading pair, e.g. "BTCUSDT"
	Price           float64 // execution price
	Quantity        float64 // traded quantity
	EventTimeMillis int64   // authoritative trade time (Unix ms)
}
