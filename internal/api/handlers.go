package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/domain"
)

const (
	defaultHistoricalLimit = 100
	defaultAnomalyLimit    = 50
)

type candleResponse struct {
	Symbol        string  `json:"symbol"`
	IntervalStart int64   `json:"interval_start"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	TradeCount    int     `json:"trade_count"`
}

type anomalyResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Symbol      string  `json:"symbol"`
	Severity    string  `json:"severity"`
	Threshold   float64 `json:"threshold"`
	TimestampMs int64   `json:"timestamp_ms"`

	CurrentPrice   float64 `json:"current_price,omitempty"`
	PreviousPrice  float64 `json:"previous_price,omitempty"`
	PriceChangePct float64 `json:"price_change_pct,omitempty"`
	CurrentVolume  float64 `json:"current_volume,omitempty"`
	AverageVolume  float64 `json:"average_volume,omitempty"`
	VolumeRatio    float64 `json:"volume_ratio,omitempty"`
	ShortSMA       float64 `json:"short_sma,omitempty"`
	LongSMA        float64 `json:"long_sma,omitempty"`
	DivergencePct  float64 `json:"divergence_pct,omitempty"`
}

func toCandleResponses(candles []*domain.Candle) []candleResponse {
	out := make([]candleResponse, 0, len(candles))
	for _, c := range candles {
		out = append(out, candleResponse{
			Symbol:        c.Symbol,
			IntervalStart: c.IntervalStart,
			Open:          c.Open,
			High:          c.High,
			Low:           c.Low,
			Close:         c.Close,
			Volume:        c.Volume,
			TradeCount:    c.TradeCount,
		})
	}
	return out
}

func toAnomalyResponses(records []*domain.AnomalyRecord) []anomalyResponse {
	out := make([]anomalyResponse, 0, len(records))
	for _, r := range records {
		out = append(out, anomalyResponse{
			ID:             r.ID,
			Type:           r.Type,
			Symbol:         r.Symbol,
			Severity:       r.Severity,
			Threshold:      r.Threshold,
			TimestampMs:    r.TimestampMs,
			CurrentPrice:   r.CurrentPrice,
			PreviousPrice:  r.PreviousPrice,
			PriceChangePct: r.PriceChangePct,
			CurrentVolume:  r.CurrentVolume,
			AverageVolume:  r.AverageVolume,
			VolumeRatio:    r.VolumeRatio,
			ShortSMA:       r.ShortSMA,
			LongSMA:        r.LongSMA,
			DivergencePct:  r.DivergencePct,
		})
	}
	return out
}

// latestOHLCV returns the most recent candle for every tracked symbol.
func (s *Server) latestOHLCV(c *gin.Context) {
	candles, err := s.candles.GetLatest(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("latest ohlcv query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch OHLCV data"})
		return
	}
	c.JSON(http.StatusOK, toCandleResponses(candles))
}

// historical returns candles for one symbol, either the most recent ones
// (limit) or an inclusive time range (from, to in milliseconds).
func (s *Server) historical(c *gin.Context) {
	symbol := c.Param("symbol")

	fromStr := c.Query("from")
	toStr := c.Query("to")

	if fromStr != "" || toStr != "" {
		from, err1 := strconv.ParseInt(fromStr, 10, 64)
		to, err2 := strconv.ParseInt(toStr, 10, 64)
		if err1 != nil || err2 != nil || from > to {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid time range"})
			return
		}

		candles, err := s.candles.GetByTimeRange(c.Request.Context(), symbol, from, to)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("historical range query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch OHLCV data"})
			return
		}
		c.JSON(http.StatusOK, toCandleResponses(candles))
		return
	}

	limit := parseLimit(c.Query("limit"), defaultHistoricalLimit)
	candles, err := s.candles.GetBySymbol(c.Request.Context(), symbol, limit)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("historical query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch OHLCV data"})
		return
	}
	c.JSON(http.StatusOK, toCandleResponses(candles))
}

// recentAnomalies returns the newest anomaly records, optionally filtered
// by symbol.
func (s *Server) recentAnomalies(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), defaultAnomalyLimit)

	var (
		records []*domain.AnomalyRecord
		err     error
	)
	if symbol := c.Query("symbol"); symbol != "" {
		records, err = s.anomalies.GetBySymbol(c.Request.Context(), symbol, limit)
	} else {
		records, err = s.anomalies.GetRecent(c.Request.Context(), limit)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("recent anomalies query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch anomalies"})
		return
	}
	c.JSON(http.StatusOK, toAnomalyResponses(records))
}

// systemMetrics returns a small operational summary for dashboards.
func (s *Server) systemMetrics(c *gin.Context) {
	ctx := c.Request.Context()

	latest, err := s.candles.GetLatest(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("system metrics query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch system metrics"})
		return
	}

	var newestInterval int64
	for _, candle := range latest {
		if candle.IntervalStart > newestInterval {
			newestInterval = candle.IntervalStart
		}
	}

	anomalies, err := s.anomalies.GetRecent(ctx, defaultAnomalyLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("system metrics query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch system metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbols_tracked":    len(latest),
		"newest_interval_ms": newestInterval,
		"recent_anomalies":   len(anomalies),
		"uptime_seconds":     int64(time.Since(s.started).Seconds()),
		"last_updated":       time.Now().UTC().Format(time.RFC3339),
	})
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
