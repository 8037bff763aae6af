package aggregation

import "time"

// DefaultInterval is the default candle granularity.
const DefaultInterval = time.Minute

// IntervalKey floors a millisecond timestamp to the start of its interval
// bucket. The key identifies which candle a trade belongs to.
func IntervalKey(tsMillis int64, interval time.Duration) int64 {
	intervalMs := interval.Milliseconds()
	return (tsMillis / intervalMs) * intervalMs
}
