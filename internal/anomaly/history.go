package anomaly

import "marketpulse/internal/domain"

// MinHistorySize is the smallest usable history bound: the SMA divergence
// rule needs 25 candles.
const MinHistorySize = 25

// DefaultHistorySize is the default history bound.
const DefaultHistorySize = 30

// History is a bounded, most-recent-first window of closed candles for one
// symbol. Appending past the bound evicts the oldest candle.
//
// Not safe for concurrent use. The pipeline serializes Append and Candles
// per symbol, same as aggregator access.
type History struct {
	capacity int
	candles  []domain.Candle // index 0 is the most recent
}

// NewHistory creates a history bounded to capacity candles. Capacities below
// MinHistorySize are raised to DefaultHistorySize so every rule can warm up.
func NewHistory(capacity int) *History {
	if capacity < MinHistorySize {
		capacity = DefaultHistorySize
	}
	return &History{
		capacity: capacity,
		candles:  make([]domain.Candle, 0, capacity),
	}
}

// Append adds a newly closed candle as the most recent entry, evicting the
// oldest once the bound is exceeded.
func (h *History) Append(c domain.Candle) {
	if len(h.candles) < h.capacity {
		h.candles = append(h.candles, domain.Candle{})
	}
	copy(h.candles[1:], h.candles)
	h.candles[0] = c
}

// Candles returns a copy of the window, most-recent-first. The copy keeps
// detection reads independent of subsequent appends.
func (h *History) Candles() []domain.Candle {
	out := make([]domain.Candle, len(h.candles))
	copy(out, h.candles)
	return out
}

// Len returns the number of candles currently held.
func (h *History) Len() int {
	return len(h.candles)
}
