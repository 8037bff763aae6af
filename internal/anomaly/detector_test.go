package anomaly

import (
	"math"
	"testing"

	"marketpulse/internal/domain"
)

// flatHistory builds n candles, most-recent-first, all with the given close
// and volume.
func flatHistory(n int, close, volume float64) []domain.Candle {
	history := make([]domain.Candle, n)
	for i := range history {
		history[i] = domain.Candle{
			Symbol:        "BTCUSDT",
			IntervalStart: int64(n-i) * 60_000,
			Open:          close,
			High:          close,
			Low:           close,
			Close:         close,
			Volume:        volume,
			TradeCount:    1,
		}
	}
	return history
}

func TestPriceRule_FiresMediumOnWorkedExample(t *testing.T) {
	// Closes [100, 110] most-recent-first: change = (100-110)/110*100 = -9.09%.
	// Exceeds default 5.0 but not 10.0, so medium.
	d := NewDetector(DefaultConfig())
	history := []domain.Candle{
		{Symbol: "BTCUSDT", IntervalStart: 120_000, Close: 100},
		{Symbol: "BTCUSDT", IntervalStart: 60_000, Close: 110},
	}

	records := d.Detect(history)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Type != domain.AnomalyPriceMovement {
		t.Errorf("expected price_movement, got %s", r.Type)
	}
	if r.Severity != domain.SeverityMedium {
		t.Errorf("expected medium severity, got %s", r.Severity)
	}
	if math.Abs(r.PriceChangePct-(-9.0909)) > 0.001 {
		t.Errorf("expected change ≈ -9.09, got %f", r.PriceChangePct)
	}
	if r.TimestampMs != 120_000 {
		t.Errorf("record timestamp must be the triggering candle's interval start, got %d", r.TimestampMs)
	}
}

func TestPriceRule_HighSeverityAboveDoubleThreshold(t *testing.T) {
	d := NewDetector(DefaultConfig())
	history := []domain.Candle{
		{Symbol: "BTCUSDT", IntervalStart: 120_000, Close: 112},
		{Symbol: "BTCUSDT", IntervalStart: 60_000, Close: 100},
	}

	records := d.Detect(history)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	// +12% > 2 * 5.0
	if records[0].Severity != domain.SeverityHigh {
		t.Errorf("expected high severity, got %s", records[0].Severity)
	}
}

func TestPriceRule_AbstainsBelowThresholdAndOnShortHistory(t *testing.T) {
	d := NewDetector(DefaultConfig())

	if got := d.Detect([]domain.Candle{{Close: 100}}); len(got) != 0 {
		t.Errorf("one candle must not fire any rule, got %d records", len(got))
	}

	small := []domain.Candle{
		{Symbol: "BTCUSDT", Close: 104},
		{Symbol: "BTCUSDT", Close: 100},
	}
	if got := d.Detect(small); len(got) != 0 {
		t.Errorf("4%% move must not fire at 5.0 threshold, got %d records", len(got))
	}
}

func TestPriceRule_ZeroPreviousCloseAbstains(t *testing.T) {
	d := NewDetector(DefaultConfig())
	history := []domain.Candle{
		{Symbol: "BTCUSDT", Close: 100},
		{Symbol: "BTCUSDT", Close: 0},
	}

	if got := d.Detect(history); len(got) != 0 {
		t.Errorf("zero previous close must abstain, got %d records", len(got))
	}
}

func TestVolumeRule_FiresMediumOnWorkedExample(t *testing.T) {
	// history[0].volume = 50, history[1..9].volume = 10 → avg 10, ratio 5.0.
	// Exceeds default 3.0 but not 6.0, so medium.
	d := NewDetector(DefaultConfig())
	history := flatHistory(10, 100, 10)
	history[0].Volume = 50

	records := d.Detect(history)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Type != domain.AnomalyVolumeSpike {
		t.Errorf("expected volume_spike, got %s", r.Type)
	}
	if r.VolumeRatio != 5.0 {
		t.Errorf("expected ratio 5.0, got %f", r.VolumeRatio)
	}
	if r.AverageVolume != 10.0 {
		t.Errorf("expected avg volume 10.0, got %f", r.AverageVolume)
	}
	if r.Severity != domain.SeverityMedium {
		t.Errorf("expected medium severity, got %s", r.Severity)
	}
}

func TestVolumeRule_ZeroAverageNeverFires(t *testing.T) {
	d := NewDetector(DefaultConfig())
	history := flatHistory(10, 100, 0)
	history[0].Volume = 1000

	if got := d.Detect(history); len(got) != 0 {
		t.Errorf("zero average volume must define ratio 0 and never fire, got %d records", len(got))
	}
}

func TestVolumeRule_RequiresTenCandles(t *testing.T) {
	d := NewDetector(Config{PriceThresholdPct: 1000, VolumeThreshold: 3, SMAThresholdPct: 1000})
	history := flatHistory(9, 100, 10)
	history[0].Volume = 500

	if got := d.Detect(history); len(got) != 0 {
		t.Errorf("nine candles is warm-up for the volume rule, got %d records", len(got))
	}
}

func TestSMARule_FiresOnWorkedExample(t *testing.T) {
	// 25 candles, closes: most recent 10 at 110, the rest at 100.
	// shortSMA = 110, longSMA = (110*10 + 100*10)/20 = 105,
	// divergence = 5/105*100 ≈ 4.76% > 2.0 → fires; 4.76 > 2*2.0 → high.
	d := NewDetector(DefaultConfig())
	history := flatHistory(25, 100, 10)
	for i := 0; i < 10; i++ {
		history[i].Close = 110
	}

	records := d.Detect(history)

	var smaRec *domain.AnomalyRecord
	for i := range records {
		if records[i].Type == domain.AnomalySMADivergence {
			smaRec = &records[i]
		}
	}
	if smaRec == nil {
		t.Fatal("expected sma_divergence record")
	}
	if smaRec.ShortSMA != 110 {
		t.Errorf("expected short SMA 110, got %f", smaRec.ShortSMA)
	}
	if smaRec.LongSMA != 105 {
		t.Errorf("expected long SMA 105, got %f", smaRec.LongSMA)
	}
	if math.Abs(smaRec.DivergencePct-4.7619) > 0.001 {
		t.Errorf("expected divergence ≈ 4.76, got %f", smaRec.DivergencePct)
	}
	if smaRec.Severity != domain.SeverityHigh {
		t.Errorf("4.76 > 2*2.0, expected high severity, got %s", smaRec.Severity)
	}
}

func TestSMARule_RequiresTwentyFiveCandles(t *testing.T) {
	d := NewDetector(Config{PriceThresholdPct: 1000, VolumeThreshold: 1000, SMAThresholdPct: 2})
	history := flatHistory(24, 100, 10)
	for i := 0; i < 10; i++ {
		history[i].Close = 200
	}

	if got := d.Detect(history); len(got) != 0 {
		t.Errorf("24 candles is warm-up for the SMA rule, got %d records", len(got))
	}
}

func TestDetect_MultipleRulesFireTogether(t *testing.T) {
	d := NewDetector(DefaultConfig())
	history := flatHistory(25, 100, 10)
	history[0].Close = 120  // +20% price move
	history[0].Volume = 100 // 10x volume

	records := d.Detect(history)

	types := map[string]bool{}
	for _, r := range records {
		types[r.Type] = true
	}
	if !types[domain.AnomalyPriceMovement] || !types[domain.AnomalyVolumeSpike] {
		t.Errorf("expected price and volume rules to fire together, got %v", types)
	}
}

func TestDetect_IdempotentOverUnchangedHistory(t *testing.T) {
	d := NewDetector(DefaultConfig())
	history := flatHistory(25, 100, 10)
	history[0].Close = 115
	history[0].Volume = 80

	first := d.Detect(history)
	second := d.Detect(history)

	if len(first) != len(second) {
		t.Fatalf("record counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("record %d differs between calls:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestDetect_EmptyHistoryReturnsNothing(t *testing.T) {
	d := NewDetector(DefaultConfig())

	if got := d.Detect(nil); got != nil {
		t.Errorf("expected nil for empty history, got %v", got)
	}
}
