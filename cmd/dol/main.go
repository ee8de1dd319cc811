package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/storm-dol-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-dol-service/internal/adapter/kafka"
	"github.com/couchcryptid/storm-dol-service/internal/cache"
	"github.com/couchcryptid/storm-dol-service/internal/collector"
	"github.com/couchcryptid/storm-dol-service/internal/config"
	"github.com/couchcryptid/storm-dol-service/internal/engine"
	"github.com/couchcryptid/storm-dol-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collectors := buildCollectors(cfg, logger)

	// Result cache: Redis when configured, in-process otherwise.
	var store cache.Store
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("redis cache enabled", "addr", cfg.RedisAddr)
	} else {
		store = cache.NewMemoryStore()
		logger.Info("in-process cache enabled")
	}

	// Audit trail (feature-flagged via KAFKA_AUDIT_TOPIC).
	var publisher engine.Publisher
	var auditCloser interface{ Close() error }
	if cfg.KafkaAuditTopic != "" {
		p := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
		publisher = p
		auditCloser = p
		logger.Info("audit publishing enabled", "topic", cfg.KafkaAuditTopic)
	} else {
		logger.Info("audit publishing disabled")
	}

	e := engine.New(collectors, store, publisher, logger, metrics, engineParams(cfg))
	srv := httpadapter.NewServer(cfg.HTTPAddr, e, e, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if auditCloser != nil {
		if err := auditCloser.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// buildCollectors wires one collector per configured base URL. Sources left
// unconfigured are reported as soft failures by the engine.
func buildCollectors(cfg *config.Config, logger *slog.Logger) []collector.Collector {
	var collectors []collector.Collector
	if cfg.AlertsBaseURL != "" {
		collectors = append(collectors, collector.NewAlertClient(cfg.AlertsBaseURL, cfg.CollectorTimeout, logger))
		logger.Info("alert collector enabled", "base_url", cfg.AlertsBaseURL)
	}
	if cfg.GroundReportBaseURL != "" {
		collectors = append(collectors, collector.NewGroundReportClient(cfg.GroundReportBaseURL, cfg.CollectorTimeout, logger))
		logger.Info("ground report collector enabled", "base_url", cfg.GroundReportBaseURL)
	}
	if cfg.RadarBaseURL != "" {
		collectors = append(collectors, collector.NewRadarClient(cfg.RadarBaseURL, cfg.CollectorTimeout, logger))
		logger.Info("radar collector enabled", "base_url", cfg.RadarBaseURL)
	}
	return collectors
}

func engineParams(cfg *config.Config) engine.Params {
	params := engine.DefaultParams()
	params.MaxRadiusMiles = cfg.MaxRadiusMiles
	params.CollectorTimeout = cfg.CollectorTimeout
	params.CacheTTL = cfg.CacheTTL
	params.Dedup.TimeWindow = cfg.DedupWindow
	params.Dedup.DistanceMiles = cfg.DedupDistanceMiles
	params.Scoring.MaxRadiusMiles = cfg.MaxRadiusMiles
	params.Inference.CorroborationBonus = cfg.CorroborationBonus
	params.Inference.SoftFailPenalty = cfg.SoftFailPenalty
	params.Inference.TopEventsCap = cfg.TopEventsCap
	return params
}
