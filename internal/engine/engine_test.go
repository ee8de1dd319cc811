package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-dol-service/internal/cache"
	"github.com/couchcryptid/storm-dol-service/internal/collector"
	"github.com/couchcryptid/storm-dol-service/internal/domain"
	"github.com/couchcryptid/storm-dol-service/internal/observability"
)

var (
	phoenixProperty = domain.PropertyContext{Lat: 33.4484, Lon: -112.0740}

	mayWindow = domain.TimeWindow{
		Start: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 5, 7, 23, 59, 59, 0, time.UTC),
	}

	may3Hail    = time.Date(2024, 5, 3, 20, 15, 0, 0, time.UTC)
	may3Warning = time.Date(2024, 5, 3, 13, 0, 0, 0, time.UTC)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubCollector is a canned-response collector for engine tests.
type stubCollector struct {
	source domain.Source
	events []domain.WeatherEvent
	err    error
	block  bool // wait for context cancellation instead of returning
	calls  atomic.Int32
}

func (s *stubCollector) Source() domain.Source { return s.source }

func (s *stubCollector) FetchEvents(ctx context.Context, _ domain.BoundingBox, _ domain.TimeWindow) ([]domain.WeatherEvent, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.events, nil
}

// capturingPublisher records published audit records.
type capturingPublisher struct {
	records []AuditRecord
}

func (p *capturingPublisher) Publish(_ context.Context, record AuditRecord) error {
	p.records = append(p.records, record)
	return nil
}

func collectorsOf(stubs ...*stubCollector) []collector.Collector {
	out := make([]collector.Collector, len(stubs))
	for i, s := range stubs {
		out[i] = s
	}
	return out
}

func hailEvent(id string, at time.Time, latOffset, size float64) domain.WeatherEvent {
	return domain.WeatherEvent{
		ID:           id,
		Source:       domain.SourceGroundReport,
		EventType:    domain.EventHailReport,
		OccurredAt:   at,
		Magnitude:    &size,
		Geometry:     domain.PointGeometry(phoenixProperty.Lat+latOffset, phoenixProperty.Lon),
		QualityScore: 1.0,
	}
}

func warningEvent(id string, at time.Time) domain.WeatherEvent {
	ring := []domain.Geo{
		{Lat: phoenixProperty.Lat - 0.3, Lon: phoenixProperty.Lon - 0.3},
		{Lat: phoenixProperty.Lat - 0.3, Lon: phoenixProperty.Lon + 0.3},
		{Lat: phoenixProperty.Lat + 0.3, Lon: phoenixProperty.Lon + 0.3},
		{Lat: phoenixProperty.Lat + 0.3, Lon: phoenixProperty.Lon - 0.3},
	}
	return domain.WeatherEvent{
		ID:           id,
		Source:       domain.SourceAlert,
		EventType:    domain.EventSevereThunderstormWarning,
		OccurredAt:   at,
		Geometry:     domain.PolygonGeometry(ring),
		QualityScore: 1.0,
	}
}

func newTestEngine(collectors []collector.Collector, store cache.Store, publisher Publisher) *Engine {
	return New(collectors, store, publisher, testLogger(), observability.NewMetricsForTesting(), DefaultParams())
}

func TestInferDateOfLoss_InvalidLocation(t *testing.T) {
	alert := &stubCollector{source: domain.SourceAlert}
	e := newTestEngine(collectorsOf(alert), cache.NewMemoryStore(), nil)

	_, err := e.InferDateOfLoss(context.Background(), domain.PropertyContext{Lat: 99, Lon: 0}, mayWindow)
	require.ErrorIs(t, err, domain.ErrInvalidLocation)
	assert.Equal(t, int32(0), alert.calls.Load(), "no collector runs for an invalid location")
}

func TestInferDateOfLoss_CorroboratedStorm(t *testing.T) {
	alert := &stubCollector{source: domain.SourceAlert, events: []domain.WeatherEvent{warningEvent("al-1", may3Warning)}}
	ground := &stubCollector{source: domain.SourceGroundReport, events: []domain.WeatherEvent{hailEvent("gr-1", may3Hail, 0.029, 1.75)}}
	radar := &stubCollector{source: domain.SourceRadarDerived}
	publisher := &capturingPublisher{}
	e := newTestEngine(collectorsOf(alert, ground, radar), cache.NewMemoryStore(), publisher)

	result, err := e.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err)

	require.NotNil(t, result.RecommendedDate)
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), *result.RecommendedDate)
	require.Len(t, result.TopEvents, 2)
	assert.Equal(t, "gr-1", result.TopEvents[0].ID)
	assert.Equal(t, 2, result.TotalEventsScanned)
	assert.InDelta(t, 0.85, result.Confidence, 1e-9)
	assert.Empty(t, result.SourcesFailed)

	require.Len(t, publisher.records, 1)
	assert.NotEmpty(t, publisher.records[0].RequestID)
	assert.Equal(t, phoenixProperty, publisher.records[0].Property)
}

func TestInferDateOfLoss_ServedFromCache(t *testing.T) {
	ground := &stubCollector{source: domain.SourceGroundReport, events: []domain.WeatherEvent{hailEvent("gr-1", may3Hail, 0.029, 1.75)}}
	publisher := &capturingPublisher{}
	e := newTestEngine(collectorsOf(ground), cache.NewMemoryStore(), publisher)

	first, err := e.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err)

	// A nearby property in the same window hits the same coarse key.
	nearby := domain.PropertyContext{Lat: phoenixProperty.Lat + 0.002, Lon: phoenixProperty.Lon + 0.001}
	second, err := e.InferDateOfLoss(context.Background(), nearby, mayWindow)
	require.NoError(t, err)

	assert.Equal(t, int32(1), ground.calls.Load(), "second request must not refetch")
	assert.Equal(t, first.Confidence, second.Confidence)
	require.NotNil(t, second.RecommendedDate)
	assert.Equal(t, *first.RecommendedDate, *second.RecommendedDate)
	assert.Len(t, publisher.records, 1, "cache hits are not re-audited")
}

func TestInferDateOfLoss_SoftFailurePenalty(t *testing.T) {
	events := []domain.WeatherEvent{hailEvent("gr-1", may3Hail, 0.029, 1.75)}
	alertEvents := []domain.WeatherEvent{warningEvent("al-1", may3Warning)}

	healthy := newTestEngine(collectorsOf(
		&stubCollector{source: domain.SourceAlert, events: alertEvents},
		&stubCollector{source: domain.SourceGroundReport, events: events},
		&stubCollector{source: domain.SourceRadarDerived},
	), cache.NewMemoryStore(), nil)
	healthyResult, err := healthy.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err)

	degraded := newTestEngine(collectorsOf(
		&stubCollector{source: domain.SourceAlert, events: alertEvents},
		&stubCollector{source: domain.SourceGroundReport, events: events},
		&stubCollector{source: domain.SourceRadarDerived, err: errors.New("radar feed down")},
	), cache.NewMemoryStore(), nil)
	degradedResult, err := degraded.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err)

	require.NotNil(t, degradedResult.RecommendedDate)
	assert.Equal(t, *healthyResult.RecommendedDate, *degradedResult.RecommendedDate)
	assert.InDelta(t, healthyResult.Confidence-0.15, degradedResult.Confidence, 1e-9)
	assert.Equal(t, []domain.Source{domain.SourceRadarDerived}, degradedResult.SourcesFailed)
}

func TestInferDateOfLoss_AllSourcesUnavailable(t *testing.T) {
	down := errors.New("connection refused")
	e := newTestEngine(collectorsOf(
		&stubCollector{source: domain.SourceAlert, err: down},
		&stubCollector{source: domain.SourceGroundReport, err: down},
		&stubCollector{source: domain.SourceRadarDerived, err: down},
	), cache.NewMemoryStore(), nil)

	result, err := e.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err, "total source outage is still a well-formed result")

	assert.Nil(t, result.RecommendedDate)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.TopEvents)
	assert.Equal(t, 0, result.TotalEventsScanned)
	assert.Len(t, result.SourcesFailed, 3)
}

func TestInferDateOfLoss_NoSignal(t *testing.T) {
	e := newTestEngine(collectorsOf(
		&stubCollector{source: domain.SourceAlert},
		&stubCollector{source: domain.SourceGroundReport},
		&stubCollector{source: domain.SourceRadarDerived},
	), cache.NewMemoryStore(), nil)

	result, err := e.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err)

	assert.Nil(t, result.RecommendedDate)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.TopEvents)
	assert.Empty(t, result.SourcesFailed, "empty feeds are not failures")
}

func TestInferDateOfLoss_MissingCollectorCountsAsSoftFail(t *testing.T) {
	// Only two of the three expected sources are registered.
	e := newTestEngine(collectorsOf(
		&stubCollector{source: domain.SourceAlert, events: []domain.WeatherEvent{warningEvent("al-1", may3Warning)}},
		&stubCollector{source: domain.SourceGroundReport, events: []domain.WeatherEvent{hailEvent("gr-1", may3Hail, 0.029, 1.75)}},
	), cache.NewMemoryStore(), nil)

	result, err := e.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err)
	assert.Equal(t, []domain.Source{domain.SourceRadarDerived}, result.SourcesFailed)
	assert.InDelta(t, 0.70, result.Confidence, 1e-9)
}

func TestInferDateOfLoss_EmptyGeometryRejected(t *testing.T) {
	noGeometry := domain.WeatherEvent{
		ID:           "bad-1",
		Source:       domain.SourceGroundReport,
		EventType:    domain.EventHailReport,
		OccurredAt:   may3Hail,
		QualityScore: 1.0,
	}
	e := newTestEngine(collectorsOf(
		&stubCollector{source: domain.SourceAlert},
		&stubCollector{source: domain.SourceGroundReport, events: []domain.WeatherEvent{noGeometry, hailEvent("gr-1", may3Hail, 0.029, 1.75)}},
		&stubCollector{source: domain.SourceRadarDerived},
	), cache.NewMemoryStore(), nil)

	result, err := e.InferDateOfLoss(context.Background(), phoenixProperty, mayWindow)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalEventsScanned, "rejected events still count as scanned")
	require.Len(t, result.TopEvents, 1)
	assert.Equal(t, "gr-1", result.TopEvents[0].ID)
}

func TestInferDateOfLoss_CallerCancellation(t *testing.T) {
	blocked := &stubCollector{source: domain.SourceGroundReport, block: true}
	store := cache.NewMemoryStore()
	e := newTestEngine(collectorsOf(blocked), store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := e.InferDateOfLoss(ctx, phoenixProperty, mayWindow)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len(), "no partial result is ever cached")
}

func TestCheckReadiness(t *testing.T) {
	t.Run("ready with collectors and cache", func(t *testing.T) {
		e := newTestEngine(collectorsOf(&stubCollector{source: domain.SourceAlert}), cache.NewMemoryStore(), nil)
		assert.NoError(t, e.CheckReadiness(context.Background()))
	})

	t.Run("not ready without collectors", func(t *testing.T) {
		e := newTestEngine(nil, cache.NewMemoryStore(), nil)
		assert.Error(t, e.CheckReadiness(context.Background()))
	})
}
