package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"marketpulse/internal/alerting"
	"marketpulse/internal/anomaly"
	"marketpulse/internal/domain"
	"marketpulse/internal/storage/memory"
)

type captureNotifier struct {
	ch chan domain.AnomalyRecord
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{ch: make(chan domain.AnomalyRecord, 64)}
}

func (c *captureNotifier) Notify(_ context.Context, rec *domain.AnomalyRecord) error {
	c.ch <- *rec
	return nil
}

var _ alerting.Notifier = (*captureNotifier)(nil)

func testPipeline(notifier alerting.Notifier) (*Pipeline, *memory.CandleStore, *memory.AnomalyStore) {
	candles := memory.NewCandleStore()
	anomalies := memory.NewAnomalyStore()
	detector := anomaly.NewDetector(anomaly.DefaultConfig())
	p := New(DefaultConfig(), detector, candles, anomalies, nil, notifier, zerolog.Nop(), nil)
	return p, candles, anomalies
}

func trade(symbol string, ts int64, price, qty float64) domain.TradeEvent {
	return domain.TradeEvent{Symbol: symbol, Price: price, Quantity: qty, EventTimeMillis: ts}
}

var baseTS = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()

func TestPipeline_EmitsCandleOnRollover(t *testing.T) {
	p, candles, _ := testPipeline(nil)
	ctx := context.Background()

	if err := p.Process(ctx, trade("BTCUSDT", baseTS, 100, 1)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := p.Process(ctx, trade("BTCUSDT", baseTS+5_000, 101, 2)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// Rollover into the next minute closes the first candle.
	if err := p.Process(ctx, trade("BTCUSDT", baseTS+60_000, 102, 1)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stored, err := candles.GetBySymbol(ctx, "BTCUSDT", 0)
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	// Two candles: the rolled-over one plus the open interval flushed on Close.
	if len(stored) != 2 {
		t.Fatalf("stored %d candles, want 2", len(stored))
	}

	first := stored[1]
	if first.IntervalStart != baseTS {
		t.Errorf("IntervalStart = %d, want %d", first.IntervalStart, baseTS)
	}
	if first.Open != 100 || first.Close != 101 || first.Volume != 3 || first.TradeCount != 2 {
		t.Errorf("candle = %+v", first)
	}
}

func TestPipeline_SymbolsAreIndependent(t *testing.T) {
	p, candles, _ := testPipeline(nil)
	ctx := context.Background()

	p.Process(ctx, trade("BTCUSDT", baseTS, 100, 1))
	p.Process(ctx, trade("ETHUSDT", baseTS, 2000, 1))
	p.Process(ctx, trade("BTCUSDT", baseTS+60_000, 101, 1))

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	btc, _ := candles.GetBySymbol(ctx, "BTCUSDT", 0)
	eth, _ := candles.GetBySymbol(ctx, "ETHUSDT", 0)

	if len(btc) != 2 {
		t.Errorf("BTCUSDT candles = %d, want 2", len(btc))
	}
	if len(eth) != 1 {
		t.Errorf("ETHUSDT candles = %d, want 1", len(eth))
	}
}

func TestPipeline_DetectsPriceAnomalyAndNotifies(t *testing.T) {
	notifier := newCaptureNotifier()
	p, _, anomalyStore := testPipeline(notifier)
	ctx := context.Background()

	// Two closed candles with a 10% jump between their closes.
	p.Process(ctx, trade("BTCUSDT", baseTS, 100, 1))
	p.Process(ctx, trade("BTCUSDT", baseTS+60_000, 110, 1))
	p.Process(ctx, trade("BTCUSDT", baseTS+120_000, 110, 1))

	var rec domain.AnomalyRecord
	select {
	case rec = <-notifier.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for alert")
	}

	if rec.Type != domain.AnomalyPriceMovement {
		t.Errorf("Type = %q, want price_movement", rec.Type)
	}
	if rec.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q", rec.Symbol)
	}
	if rec.Severity != domain.SeverityMedium {
		t.Errorf("Severity = %q, want medium", rec.Severity)
	}
	if rec.ID == "" {
		t.Error("ID not assigned")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stored, err := anomalyStore.GetRecent(ctx, 0)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(stored) == 0 {
		t.Fatal("anomaly not persisted")
	}
	if stored[0].ID != rec.ID {
		t.Errorf("stored ID = %q, want %q", stored[0].ID, rec.ID)
	}
}

func TestPipeline_RejectsBadTrades(t *testing.T) {
	p, candles, _ := testPipeline(nil)
	ctx := context.Background()

	if err := p.Process(ctx, trade("", baseTS, 100, 1)); err == nil {
		t.Error("expected error for empty symbol")
	}

	// Negative price is dropped inside the worker without closing a candle.
	p.Process(ctx, trade("BTCUSDT", baseTS, -5, 1))
	p.Process(ctx, trade("BTCUSDT", baseTS, 100, 1))

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stored, _ := candles.GetBySymbol(ctx, "BTCUSDT", 0)
	if len(stored) != 1 {
		t.Fatalf("stored %d candles, want 1", len(stored))
	}
	if stored[0].Open != 100 || stored[0].TradeCount != 1 {
		t.Errorf("candle = %+v, bad trade leaked into aggregation", stored[0])
	}
}

func TestPipeline_ProcessAfterClose(t *testing.T) {
	p, _, _ := testPipeline(nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := p.Process(context.Background(), trade("BTCUSDT", baseTS, 100, 1)); err == nil {
		t.Error("expected error processing after close")
	}

	// Double close is safe.
	if err := p.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestArchiver_BatchesAndFlushesOnClose(t *testing.T) {
	archive := memory.NewTradeArchive()
	a := NewArchiver(archive, 100, time.Hour, zerolog.Nop(), nil)

	for i := int64(0); i < 10; i++ {
		a.Add(trade("BTCUSDT", baseTS+i, 100, 1))
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stored, err := archive.GetByTimeRange(context.Background(), "BTCUSDT", baseTS, baseTS+100)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(stored) != 10 {
		t.Errorf("archived %d trades, want 10", len(stored))
	}
}
