// Package pipeline wires trade ingestion, candle aggregation, anomaly
// detection, persistence and alerting together. Each symbol is handled by
// its own worker goroutine so that per-symbol processing stays ordered.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketpulse/internal/aggregation"
	"marketpulse/internal/alerting"
	"marketpulse/internal/anomaly"
	"marketpulse/internal/domain"
	"marketpulse/internal/observability"
	"marketpulse/internal/storage"
)

const opTimeout = 10 * time.Second

// Config holds pipeline tunables.
type Config struct {
	// Interval is the candle interval.
	Interval time.Duration
	// HistorySize is the per-symbol candle history capacity.
	HistorySize int
	// WorkerBuffer is the per-symbol event channel capacity.
	WorkerBuffer int
}

// DefaultConfig returns default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     aggregation.DefaultInterval,
		HistorySize:  anomaly.DefaultHistorySize,
		WorkerBuffer: 1024,
	}
}

// Pipeline routes trade events through aggregation and detection. The
// archive and notifier dependencies are optional.
type Pipeline struct {
	cfg      Config
	detector *anomaly.Detector

	candles   storage.CandleStore
	anomalies storage.AnomalyStore
	archiver  *Archiver
	notifier  alerting.Notifier

	workers map[string]*worker
	mu      sync.Mutex
	wg      sync.WaitGroup
	closed  bool

	log     zerolog.Logger
	metrics *observability.Metrics
}

type worker struct {
	agg     *aggregation.Aggregator
	history *anomaly.History
	events  chan domain.TradeEvent
}

// New creates a pipeline. detector, candles and anomalies are required;
// archiver, notifier and metrics may be nil.
func New(cfg Config, detector *anomaly.Detector, candles storage.CandleStore, anomalies storage.AnomalyStore, archiver *Archiver, notifier alerting.Notifier, log zerolog.Logger, metrics *observability.Metrics) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = aggregation.DefaultInterval
	}
	if cfg.WorkerBuffer <= 0 {
		cfg.WorkerBuffer = 1024
	}

	return &Pipeline{
		cfg:       cfg,
		detector:  detector,
		candles:   candles,
		anomalies: anomalies,
		archiver:  archiver,
		notifier:  notifier,
		workers:   make(map[string]*worker),
		log:       log,
		metrics:   metrics,
	}
}

// Process routes one trade event to its symbol worker. Trades with an empty
// symbol are rejected up front; everything else is validated by the worker's
// aggregator.
func (p *Pipeline) Process(ctx context.Context, ev domain.TradeEvent) error {
	if ev.Symbol == "" {
		p.countRejected("malformed")
		return aggregation.ErrMalformedTrade
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("pipeline closed")
	}
	w, ok := p.workers[ev.Symbol]
	if !ok {
		w = &worker{
			agg:     aggregation.NewAggregator(ev.Symbol, p.cfg.Interval),
			history: anomaly.NewHistory(p.cfg.HistorySize),
			events:  make(chan domain.TradeEvent, p.cfg.WorkerBuffer),
		}
		p.workers[ev.Symbol] = w
		p.wg.Add(1)
		go p.runWorker(w)

		if p.metrics != nil {
			p.metrics.SymbolsTracked.Inc()
		}
	}
	p.mu.Unlock()

	if p.archiver != nil {
		p.archiver.Add(ev)
	}

	select {
	case w.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runWorker drains one symbol's event channel.
func (p *Pipeline) runWorker(w *worker) {
	defer p.wg.Done()

	for ev := range w.events {
		p.handleTrade(w, ev)
	}

	// Channel closed: flush the open interval so its trades are not lost.
	if candle := w.agg.Flush(); candle != nil {
		p.onCandleClosed(w, candle)
	}
}

// handleTrade folds one trade into the symbol's aggregator and runs
// detection when a candle closes.
func (p *Pipeline) handleTrade(w *worker, ev domain.TradeEvent) {
	start := time.Now()

	candle, err := w.agg.ProcessTrade(ev)
	if err != nil {
		switch {
		case errors.Is(err, aggregation.ErrLateTrade):
			p.countRejected("late")
		default:
			p.countRejected("malformed")
		}
		p.log.Debug().Err(err).Str("symbol", ev.Symbol).Msg("trade rejected")
		return
	}

	if p.metrics != nil {
		p.metrics.TradesConsumed.Inc()
	}

	if candle != nil {
		p.onCandleClosed(w, candle)
	}

	if p.metrics != nil {
		p.metrics.TradeProcessingLatency.Observe(time.Since(start).Seconds())
	}
}

// onCandleClosed persists a closed candle, extends the history and runs the
// anomaly rules over it.
func (p *Pipeline) onCandleClosed(w *worker, candle *domain.Candle) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if p.metrics != nil {
		p.metrics.CandlesEmitted.Inc()
	}

	if err := p.candles.Insert(ctx, candle); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Replay after restart; the candle is already persisted.
			p.log.Warn().Str("symbol", candle.Symbol).Int64("interval_start", candle.IntervalStart).
				Msg("candle already stored, skipping insert")
		} else {
			p.countDBError("postgres", "insert_candle")
			p.log.Error().Err(err).Str("symbol", candle.Symbol).Msg("candle insert failed")
		}
	} else if p.metrics != nil {
		p.metrics.CandlesStored.Inc()
	}

	w.history.Append(*candle)

	for _, rec := range p.detector.Detect(w.history.Candles()) {
		p.emitAnomaly(ctx, rec)
	}
}

// emitAnomaly assigns an ID, persists the record and notifies.
func (p *Pipeline) emitAnomaly(ctx context.Context, rec domain.AnomalyRecord) {
	rec.ID = uuid.NewString()

	if p.metrics != nil {
		p.metrics.AnomaliesDetected.WithLabelValues(rec.Type, rec.Severity).Inc()
	}

	if err := p.anomalies.Insert(ctx, &rec); err != nil {
		p.countDBError("postgres", "insert_anomaly")
		p.log.Error().Err(err).Str("type", rec.Type).Str("symbol", rec.Symbol).
			Msg("anomaly insert failed")
	}

	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, &rec); err != nil {
		p.log.Error().Err(err).Str("anomaly_id", rec.ID).Msg("alert delivery failed")
		return
	}
	if p.metrics != nil {
		p.metrics.AlertsPublished.Inc()
	}
}

// Close stops all workers, flushes open intervals and the archive buffer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, w := range p.workers {
		close(w.events)
	}
	p.mu.Unlock()

	p.wg.Wait()

	if p.archiver != nil {
		return p.archiver.Close()
	}
	return nil
}

func (p *Pipeline) countRejected(reason string) {
	if p.metrics != nil {
		p.metrics.TradesRejected.WithLabelValues(reason).Inc()
	}
}

func (p *Pipeline) countDBError(db, op string) {
	if p.metrics != nil {
		p.metrics.DBQueryErrors.WithLabelValues(db, op).Inc()
	}
}
