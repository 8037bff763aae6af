// Package api exposes the read-side HTTP API over the candle and anomaly
// stores.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"marketpulse/internal/storage"
)

// Server holds the HTTP handler dependencies.
type Server struct {
	candles   storage.CandleStore
	anomalies storage.AnomalyStore
	log       zerolog.Logger
	started   time.Time
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(candles storage.CandleStore, anomalies storage.AnomalyStore, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		candles:   candles,
		anomalies: anomalies,
		log:       log,
		started:   time.Now(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/healthz", s.health)
	r.GET("/crypto/latest-ohlcv", s.latestOHLCV)
	r.GET("/crypto/historical/:symbol", s.historical)
	r.GET("/anomalies/recent", s.recentAnomalies)
	r.GET("/system/metrics", s.systemMetrics)

	return r
}

// corsMiddleware allows browser frontends on any origin to call the API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
