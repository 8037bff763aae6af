package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"marketpulse/internal/domain"
	"marketpulse/internal/observability"
	"marketpulse/internal/storage"
)

// Archiver batches raw trade events and writes them to the trade archive in
// bulk. Events are buffered in memory and flushed when the batch fills or
// the flush interval elapses.
type Archiver struct {
	archive storage.TradeArchive

	batchSize     int
	flushInterval time.Duration

	events chan domain.TradeEvent
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	log     zerolog.Logger
	metrics *observability.Metrics
}

// NewArchiver starts the background flush loop. metrics may be nil.
func NewArchiver(archive storage.TradeArchive, batchSize int, flushInterval time.Duration, log zerolog.Logger, metrics *observability.Metrics) *Archiver {
	if batchSize <= 0 {
		batchSize = 500
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	a := &Archiver{
		archive:       archive,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		events:        make(chan domain.TradeEvent, batchSize*4),
		done:          make(chan struct{}),
		log:           log,
		metrics:       metrics,
	}

	a.wg.Add(1)
	go a.run()

	return a
}

// Add queues one trade for archival. When the buffer is full the trade is
// dropped rather than blocking the hot path.
func (a *Archiver) Add(ev domain.TradeEvent) {
	select {
	case a.events <- ev:
	default:
		a.log.Warn().Str("symbol", ev.Symbol).Msg("archive buffer full, dropping trade")
	}
}

// Close flushes the remaining buffer and stops the loop.
func (a *Archiver) Close() error {
	a.once.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
	return nil
}

func (a *Archiver) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	batch := make([]*domain.TradeEvent, 0, a.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		err := a.archive.InsertBulk(ctx, batch)
		cancel()

		if err != nil {
			if a.metrics != nil {
				a.metrics.DBQueryErrors.WithLabelValues("clickhouse", "insert_trades").Inc()
			}
			a.log.Error().Err(err).Int("batch", len(batch)).Msg("trade archive flush failed")
		} else if a.metrics != nil {
			a.metrics.TradesArchived.Add(float64(len(batch)))
		}

		batch = batch[:0]
	}

	for {
		select {
		case ev := <-a.events:
			e := ev
			batch = append(batch, &e)
			if len(batch) >= a.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-a.done:
			// Drain whatever is still queued, then flush once more.
			for {
				select {
				case ev := <-a.events:
					e := ev
					batch = append(batch, &e)
					if len(batch) >= a.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
