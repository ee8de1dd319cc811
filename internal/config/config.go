package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Collector endpoints. An empty URL disables that source; its requests
	// are then counted as soft failures so confidence reflects the gap.
	AlertsBaseURL       string
	GroundReportBaseURL string
	RadarBaseURL        string
	CollectorTimeout    time.Duration

	// Engine tunables. Defaults are operational starting points, expected
	// to be recalibrated against historical claims data.
	MaxRadiusMiles     float64
	DedupWindow        time.Duration
	DedupDistanceMiles float64
	CorroborationBonus float64
	SoftFailPenalty    float64
	TopEventsCap       int

	// Result cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Kafka audit trail. Empty topic disables publishing.
	KafkaBrokers    []string
	KafkaAuditTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	collectorTimeout, err := parseDuration("COLLECTOR_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "6h")
	if err != nil {
		return nil, err
	}
	dedupWindow, err := parseDuration("DEDUP_WINDOW", "3h")
	if err != nil {
		return nil, err
	}

	maxRadius, err := parseFloat("MAX_RADIUS_MILES", 25)
	if err != nil {
		return nil, err
	}
	dedupDistance, err := parseFloat("DEDUP_DISTANCE_MILES", 10)
	if err != nil {
		return nil, err
	}
	corroborationBonus, err := parseFloat("CORROBORATION_BONUS", 1.2)
	if err != nil {
		return nil, err
	}
	softFailPenalty, err := parseFloat("SOFT_FAIL_PENALTY", 0.15)
	if err != nil {
		return nil, err
	}

	topEventsCap, err := parseInt("TOP_EVENTS_CAP", 10)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		AlertsBaseURL:       os.Getenv("ALERTS_BASE_URL"),
		GroundReportBaseURL: os.Getenv("GROUND_REPORT_BASE_URL"),
		RadarBaseURL:        os.Getenv("RADAR_BASE_URL"),
		CollectorTimeout:    collectorTimeout,

		MaxRadiusMiles:     maxRadius,
		DedupWindow:        dedupWindow,
		DedupDistanceMiles: dedupDistance,
		CorroborationBonus: corroborationBonus,
		SoftFailPenalty:    softFailPenalty,
		TopEventsCap:       topEventsCap,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		CacheTTL:      cacheTTL,

		KafkaAuditTopic: os.Getenv("KAFKA_AUDIT_TOPIC"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.AlertsBaseURL == "" && cfg.GroundReportBaseURL == "" && cfg.RadarBaseURL == "" {
		return nil, errors.New("at least one collector base URL is required")
	}
	if cfg.MaxRadiusMiles <= 0 {
		return nil, errors.New("MAX_RADIUS_MILES must be positive")
	}
	if cfg.SoftFailPenalty < 0 || cfg.SoftFailPenalty > 1 {
		return nil, errors.New("SOFT_FAIL_PENALTY must be in [0,1]")
	}
	if cfg.CorroborationBonus < 1 {
		return nil, errors.New("CORROBORATION_BONUS must be at least 1")
	}
	if cfg.KafkaAuditTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_AUDIT_TOPIC is set but KAFKA_BROKERS is not")
	}

	return cfg, nil
}

func parseDuration(name, fallback string) (time.Duration, error) {
	v, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, fallback))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func parseFloat(name string, fallback float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func parseInt(name string, fallback int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}
