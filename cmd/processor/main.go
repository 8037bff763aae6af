// The processor consumes trade events from Kafka, aggregates them into
// candles, runs anomaly detection and delivers alerts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"marketpulse/internal/alerting"
	"marketpulse/internal/anomaly"
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/ingestion"
	"marketpulse/internal/observability"
	"marketpulse/internal/pipeline"
	chstore "marketpulse/internal/storage/clickhouse"
	"marketpulse/internal/storage/migrations"
	pgstore "marketpulse/internal/storage/postgres"
	"marketpulse/internal/transport/kafka"
)

func main() {
	source := flag.String("source", "kafka", "Trade source: kafka, or ws for a direct feed without Kafka")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.NewLogger("processor", cfg.LogLevel)
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

	err = run(ctx, cfg, *source, logger, metrics)

	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("processor failed")
	}

	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, source string, logger zerolog.Logger, metrics *observability.Metrics) error {
	// Postgres: candles and anomalies
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return err
	}

	candleStore := pgstore.NewCandleStore(pool)
	anomalyStore := pgstore.NewAnomalyStore(pool)

	// ClickHouse: raw trade archive (optional)
	var archiver *pipeline.Archiver
	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return err
		}

		archiver = pipeline.NewArchiver(chstore.NewTradeArchive(conn), 500, 5*time.Second, logger, metrics)
	}

	// Alerting: Redis pub/sub plus the structured log, rate limited
	notifiers := alerting.MultiNotifier{alerting.NewLogNotifier(logger)}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		notifiers = append(notifiers, alerting.NewRedisNotifier(rdb, cfg.AlertChannel))
	}

	limited := alerting.NewRateLimitedNotifier(notifiers, cfg.AlertMinInterval)
	limited.OnSuppress = func(rec *domain.AnomalyRecord) {
		metrics.AlertsSuppressed.Inc()
	}

	detector := anomaly.NewDetector(anomaly.Config{
		PriceThresholdPct: cfg.PriceThresholdPct,
		VolumeThreshold:   cfg.VolumeThreshold,
		SMAThresholdPct:   cfg.SMAThresholdPct,
	})

	p := pipeline.New(pipeline.Config{
		Interval:    cfg.Interval,
		HistorySize: cfg.HistorySize,
	}, detector, candleStore, anomalyStore, archiver, limited, logger, metrics)
	defer p.Close()

	switch source {
	case "kafka":
		return runFromKafka(ctx, cfg, p, logger, metrics)
	case "ws":
		return runFromFeed(ctx, cfg, p, logger, metrics)
	default:
		return fmt.Errorf("unknown source %q", source)
	}
}

// runFromKafka consumes trades from the Kafka topic.
func runFromKafka(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger zerolog.Logger, metrics *observability.Metrics) error {
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	logger.Info().
		Str("topic", cfg.KafkaTopic).
		Str("group", cfg.KafkaGroupID).
		Dur("interval", cfg.Interval).
		Msg("processing trades from kafka")

	for {
		ev, err := consumer.ReadTrade(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.KafkaFetchErrors.Inc()
			logger.Error().Err(err).Msg("kafka read failed")
			continue
		}

		if err := p.Process(ctx, *ev); err != nil {
			logger.Debug().Err(err).Str("symbol", ev.Symbol).Msg("trade not processed")
		}
	}
}

// runFromFeed consumes the Binance stream directly, bypassing Kafka. Meant
// for development and single-node setups.
func runFromFeed(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger zerolog.Logger, metrics *observability.Metrics) error {
	client, err := ingestion.NewClient(ctx, cfg.BinanceWSURL, cfg.Symbols, nil, logger, metrics)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info().
		Strs("symbols", cfg.Symbols).
		Dur("interval", cfg.Interval).
		Msg("processing trades from direct feed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-client.Events():
			if !ok {
				return nil
			}
			if err := p.Process(ctx, ev); err != nil {
				logger.Debug().Err(err).Str("symbol", ev.Symbol).Msg("trade not processed")
			}
		}
	}
}
