package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAlertsURL = "https://alerts.example.test"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ALERTS_BASE_URL", testAlertsURL)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.CollectorTimeout)
	assert.Equal(t, 25.0, cfg.MaxRadiusMiles)
	assert.Equal(t, 3*time.Hour, cfg.DedupWindow)
	assert.Equal(t, 10.0, cfg.DedupDistanceMiles)
	assert.Equal(t, 1.2, cfg.CorroborationBonus)
	assert.Equal(t, 0.15, cfg.SoftFailPenalty)
	assert.Equal(t, 10, cfg.TopEventsCap)
	assert.Equal(t, 6*time.Hour, cfg.CacheTTL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaAuditTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ALERTS_BASE_URL", testAlertsURL)
	t.Setenv("GROUND_REPORT_BASE_URL", "https://reports.example.test")
	t.Setenv("RADAR_BASE_URL", "https://radar.example.test")
	t.Setenv("COLLECTOR_TIMEOUT", "2s")
	t.Setenv("MAX_RADIUS_MILES", "40")
	t.Setenv("DEDUP_WINDOW", "90m")
	t.Setenv("DEDUP_DISTANCE_MILES", "15")
	t.Setenv("CORROBORATION_BONUS", "1.5")
	t.Setenv("SOFT_FAIL_PENALTY", "0.2")
	t.Setenv("TOP_EVENTS_CAP", "5")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_AUDIT_TOPIC", "dol-audit")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.CollectorTimeout)
	assert.Equal(t, 40.0, cfg.MaxRadiusMiles)
	assert.Equal(t, 90*time.Minute, cfg.DedupWindow)
	assert.Equal(t, 15.0, cfg.DedupDistanceMiles)
	assert.Equal(t, 1.5, cfg.CorroborationBonus)
	assert.Equal(t, 0.2, cfg.SoftFailPenalty)
	assert.Equal(t, 5, cfg.TopEventsCap)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "dol-audit", cfg.KafkaAuditTopic)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"no collectors configured", map[string]string{}},
		{"bad collector timeout", map[string]string{"ALERTS_BASE_URL": testAlertsURL, "COLLECTOR_TIMEOUT": "soon"}},
		{"negative radius", map[string]string{"ALERTS_BASE_URL": testAlertsURL, "MAX_RADIUS_MILES": "-5"}},
		{"penalty above one", map[string]string{"ALERTS_BASE_URL": testAlertsURL, "SOFT_FAIL_PENALTY": "1.5"}},
		{"bonus below one", map[string]string{"ALERTS_BASE_URL": testAlertsURL, "CORROBORATION_BONUS": "0.8"}},
		{"audit topic without brokers", map[string]string{"ALERTS_BASE_URL": testAlertsURL, "KAFKA_AUDIT_TOPIC": "dol-audit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
