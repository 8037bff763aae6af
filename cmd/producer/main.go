// The producer connects to the Binance trade stream and publishes trade
// events to Kafka.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"marketpulse/internal/config"
	"marketpulse/internal/ingestion"
	"marketpulse/internal/observability"
	"marketpulse/internal/transport/kafka"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger("producer", cfg.LogLevel)
	metrics := observability.NewMetrics("marketpulse")

	// Metrics server
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		select {
		case <-sigCh:
			logger.Warn().Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger, metrics)

	close(done)
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("producer failed")
	}

	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) error {
	client, err := ingestion.NewClient(ctx, cfg.BinanceWSURL, cfg.Symbols, nil, logger, metrics)
	if err != nil {
		return err
	}
	defer client.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	logger.Info().
		Strs("symbols", cfg.Symbols).
		Str("topic", cfg.KafkaTopic).
		Msg("streaming trades to kafka")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-client.Events():
			if !ok {
				return nil
			}
			if err := producer.Publish(ctx, &ev); err != nil {
				metrics.KafkaPublishErrors.Inc()
				logger.Error().Err(err).Str("symbol", ev.Symbol).Msg("publish failed")
				continue
			}
			metrics.TradesConsumed.Inc()
		}
	}
}
