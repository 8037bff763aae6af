package aggregation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"marketpulse/internal/domain"
)

var (
	// ErrMalformedTrade is returned when a trade event fails validation.
	// The open interval is left untouched.
	ErrMalformedTrade = errors.New("malformed trade event")

	// ErrLateTrade is returned when a trade's interval key precedes the
	// currently open interval. Late trades are rejected rather than folded
	// so an out-of-order arrival cannot close an interval early or corrupt
	// a closed one.
	ErrLateTrade = errors.New("late trade: interval key precedes open interval")
)

// Aggregator folds one symbol's trade stream into fixed-width OHLCV candles.
// A candle is emitted exactly once, on the first trade observed in a later
// interval, or on Flush.
//
// Not safe for concurrent use. Callers must serialize trades per symbol.
type Aggregator struct {
	symbol   string
	interval time.Duration

	// in-progress interval; tradeCount == 0 means no interval is open
	intervalStart int64
	open          float64
	high          float64
	low           float64
	closePrice    float64
	volume        float64
	tradeCount    int
}

// NewAggregator creates an aggregator for a single symbol. A non-positive
// interval falls back to DefaultInterval.
func NewAggregator(symbol string, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{
		symbol:   symbol,
		interval: interval,
	}
}

// Symbol returns the symbol this aggregator owns.
func (a *Aggregator) Symbol() string {
	return a.symbol
}

// ProcessTrade folds a trade into the open interval. It returns a closed
// candle only when the trade's interval key is strictly greater than the
// open interval's key; the returned candle covers the previous interval and
// the trade seeds the new one.
//
// Rejected trades (ErrMalformedTrade, ErrLateTrade) never mutate state.
func (a *Aggregator) ProcessTrade(ev domain.TradeEvent) (*domain.Candle, error) {
	if err := validate(ev, a.symbol); err != nil {
		return nil, err
	}

	key := IntervalKey(ev.EventTimeMillis, a.interval)

	// First trade ever, or first trade after a flush.
	if a.tradeCount == 0 {
		a.seed(key, ev)
		return nil, nil
	}

	switch {
	case key == a.intervalStart:
		a.fold(ev)
		return nil, nil

	case key < a.intervalStart:
		return nil, fmt.Errorf("%w: key %d < open %d for %s",
			ErrLateTrade, key, a.intervalStart, a.symbol)

	default:
		closed := a.materialize()
		a.seed(key, ev)
		return closed, nil
	}
}

// Flush materializes and returns the open interval without opening a new
// one, so a paused or terminated stream does not lose its partial candle.
// Returns nil when no interval is open. The next ProcessTrade call starts
// a fresh interval.
func (a *Aggregator) Flush() *domain.Candle {
	if a.tradeCount == 0 {
		return nil
	}
	closed := a.materialize()
	a.reset()
	return closed
}

// seed opens a new interval from the first trade in it.
func (a *Aggregator) seed(key int64, ev domain.TradeEvent) {
	a.intervalStart = key
	a.open = ev.Price
	a.high = ev.Price
	a.low = ev.Price
	a.closePrice = ev.Price
	a.volume = ev.Quantity
	a.tradeCount = 1
}

// fold accumulates a trade into the open interval.
func (a *Aggregator) fold(ev domain.TradeEvent) {
	if ev.Price > a.high {
		a.high = ev.Price
	}
	if ev.Price < a.low {
		a.low = ev.Price
	}
	a.closePrice = ev.Price
	a.volume += ev.Quantity
	a.tradeCount++
}

func (a *Aggregator) materialize() *domain.Candle {
	return &domain.Candle{
		Symbol:        a.symbol,
		IntervalStart: a.intervalStart,
		Open:          a.open,
		High:          a.high,
		Low:           a.low,
		Close:         a.closePrice,
		Volume:        a.volume,
		TradeCount:    a.tradeCount,
	}
}

func (a *Aggregator) reset() {
	a.intervalStart = 0
	a.open = 0
	a.high = 0
	a.low = 0
	a.closePrice = 0
	a.volume = 0
	a.tradeCount = 0
}

// validate rejects trades that must not reach interval state.
func validate(ev domain.TradeEvent, symbol string) error {
	if ev.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrMalformedTrade)
	}
	if symbol != "" && ev.Symbol != symbol {
		return fmt.Errorf("%w: symbol %q routed to aggregator for %q",
			ErrMalformedTrade, ev.Symbol, symbol)
	}
	if ev.EventTimeMillis <= 0 {
		return fmt.Errorf("%w: missing event time", ErrMalformedTrade)
	}
	if ev.Price < 0 || math.IsNaN(ev.Price) || math.IsInf(ev.Price, 0) {
		return fmt.Errorf("%w: price %v", ErrMalformedTrade, ev.Price)
	}
	if ev.Quantity < 0 || math.IsNaN(ev.Quantity) || math.IsInf(ev.Quantity, 0) {
		return fmt.Errorf("%w: quantity %v", ErrMalformedTrade, ev.Quantity)
	}
	return nil
}
