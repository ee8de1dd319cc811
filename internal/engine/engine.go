// Package engine orchestrates one date-of-loss inference request: parallel
// collector fan-out, deduplication, scoring, date selection, and the
// read-through result cache.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-dol-service/internal/cache"
	"github.com/couchcryptid/storm-dol-service/internal/collector"
	"github.com/couchcryptid/storm-dol-service/internal/domain"
	"github.com/couchcryptid/storm-dol-service/internal/observability"
)

// AuditRecord is the evidence trail published for every freshly computed
// result, so the claims application can attach it to a claim record.
type AuditRecord struct {
	RequestID string                 `json:"request_id"`
	Property  domain.PropertyContext `json:"property"`
	Window    domain.TimeWindow      `json:"window"`
	Result    domain.DOLResult       `json:"result"`
}

// Publisher delivers audit records downstream. Publishing is best-effort:
// a failure is logged and counted, never surfaced to the caller.
type Publisher interface {
	Publish(ctx context.Context, record AuditRecord) error
}

// Params are the engine tunables, normally loaded from configuration.
type Params struct {
	MaxRadiusMiles   float64
	CollectorTimeout time.Duration
	CacheTTL         time.Duration
	Dedup            domain.DedupConfig
	Scoring          domain.ScoringConfig
	Inference        domain.InferenceConfig

	// ExpectedSources lists the channels a fully healthy request draws
	// from. Sources with no registered collector count as soft-failed so
	// confidence reflects the gap.
	ExpectedSources []domain.Source
}

// DefaultParams returns the operational defaults.
func DefaultParams() Params {
	return Params{
		MaxRadiusMiles:   25,
		CollectorTimeout: 5 * time.Second,
		CacheTTL:         6 * time.Hour,
		Dedup:            domain.DefaultDedupConfig(),
		Scoring:          domain.DefaultScoringConfig(),
		Inference:        domain.DefaultInferenceConfig(),
		ExpectedSources: []domain.Source{
			domain.SourceAlert,
			domain.SourceGroundReport,
			domain.SourceRadarDerived,
		},
	}
}

// Engine coordinates collectors, the pure domain pipeline, and the cache.
// It owns no persistent state beyond the cache entries it writes and is safe
// for concurrent use.
type Engine struct {
	collectors []collector.Collector
	store      cache.Store
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	params     Params
}

// New creates an Engine. publisher may be nil to disable the audit trail.
func New(collectors []collector.Collector, store cache.Store, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics, params Params) *Engine {
	return &Engine{
		collectors: collectors,
		store:      store,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
		params:     params,
	}
}

// CheckReadiness reports whether the engine can serve traffic: at least one
// collector registered and the cache reachable.
func (e *Engine) CheckReadiness(ctx context.Context) error {
	if len(e.collectors) == 0 {
		return errors.New("no collectors registered")
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("cache unreachable: %w", err)
	}
	return nil
}

// InferDateOfLoss runs one inference request. The only hard failure is an
// invalid property location (and caller cancellation); every degraded
// condition is absorbed into the result's confidence, so callers always get
// a well-formed result to apply their own policy to.
func (e *Engine) InferDateOfLoss(ctx context.Context, property domain.PropertyContext, window domain.TimeWindow) (domain.DOLResult, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := e.logger.With("request_id", requestID, "lat", property.Lat, "lon", property.Lon)

	if err := property.Validate(); err != nil {
		e.metrics.InferenceRequests.WithLabelValues("invalid_location").Inc()
		return domain.DOLResult{}, err
	}

	key := cache.Fingerprint(property, window)
	if result, ok := e.cachedResult(ctx, key, logger); ok {
		e.observeOutcome(result, start)
		return result, nil
	}

	raw, softFailed, err := e.collect(ctx, property, window, logger)
	if err != nil {
		// Caller went away; partial results are discarded, nothing cached.
		e.metrics.InferenceRequests.WithLabelValues("cancelled").Inc()
		return domain.DOLResult{}, err
	}

	valid := e.rejectEmptyGeometry(raw, logger)
	deduped := domain.Deduplicate(valid, e.params.Dedup)
	if merged := len(valid) - len(deduped); merged > 0 {
		e.metrics.EventsMerged.Add(float64(merged))
	}

	scored := domain.ScoreEvents(deduped, property, e.params.Scoring)
	result := domain.InferDateOfLoss(scored, softFailed, e.params.Inference)
	result.TotalEventsScanned = len(raw)

	logger.Info("inference complete",
		"events_scanned", result.TotalEventsScanned,
		"events_deduped", len(deduped),
		"confidence", result.Confidence,
		"has_signal", result.HasSignal(),
		"soft_failed", len(softFailed),
	)

	e.storeResult(ctx, key, result, logger)
	e.publishAudit(ctx, AuditRecord{
		RequestID: requestID,
		Property:  property,
		Window:    window,
		Result:    result,
	}, logger)

	e.observeOutcome(result, start)
	return result, nil
}

// collect fans out to every registered collector in parallel, each bounded
// by its own timeout budget, and gathers events plus the list of sources
// that soft-failed. Only caller cancellation is returned as an error.
func (e *Engine) collect(ctx context.Context, property domain.PropertyContext, window domain.TimeWindow, logger *slog.Logger) ([]domain.WeatherEvent, []domain.Source, error) {
	bbox := domain.BoundingBoxAround(property, e.params.MaxRadiusMiles)

	type fetchResult struct {
		source domain.Source
		events []domain.WeatherEvent
		err    error
	}

	results := make(chan fetchResult, len(e.collectors))
	var wg sync.WaitGroup
	for _, c := range e.collectors {
		wg.Add(1)
		go func(c collector.Collector) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, e.params.CollectorTimeout)
			defer cancel()

			fetchStart := time.Now()
			events, err := c.FetchEvents(fetchCtx, bbox, window)
			e.metrics.CollectorDuration.WithLabelValues(string(c.Source())).Observe(time.Since(fetchStart).Seconds())

			results <- fetchResult{source: c.Source(), events: events, err: err}
		}(c)
	}
	wg.Wait()
	close(results)

	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	fetched := make(map[domain.Source]bool, len(e.collectors))
	var raw []domain.WeatherEvent
	var softFailed []domain.Source
	for r := range results {
		fetched[r.source] = true
		if r.err != nil {
			// Soft failure: proceed without the source, degrade confidence.
			logger.Warn("collector soft-failed", "source", r.source, "error", r.err)
			e.metrics.CollectorRequests.WithLabelValues(string(r.source), "soft_fail").Inc()
			softFailed = append(softFailed, r.source)
			continue
		}
		e.metrics.CollectorRequests.WithLabelValues(string(r.source), "success").Inc()
		e.metrics.EventsCollected.WithLabelValues(string(r.source)).Add(float64(len(r.events)))
		raw = append(raw, r.events...)
	}

	// Sources with no registered collector also leave a data gap.
	for _, s := range e.params.ExpectedSources {
		if !fetched[s] {
			softFailed = append(softFailed, s)
		}
	}
	sort.Slice(softFailed, func(i, j int) bool { return softFailed[i] < softFailed[j] })

	return raw, softFailed, nil
}

// rejectEmptyGeometry drops events that cannot be placed in space. They are
// never scored but still count toward TotalEventsScanned.
func (e *Engine) rejectEmptyGeometry(events []domain.WeatherEvent, logger *slog.Logger) []domain.WeatherEvent {
	valid := make([]domain.WeatherEvent, 0, len(events))
	for _, ev := range events {
		if ev.Geometry.IsEmpty() {
			logger.Warn("event with empty geometry rejected", "event_id", ev.ID, "source", ev.Source)
			e.metrics.EventsRejected.WithLabelValues(string(ev.Source)).Inc()
			continue
		}
		valid = append(valid, ev)
	}
	return valid
}

// cachedResult attempts a cache read. A decode failure is treated as a miss
// so a poisoned entry heals itself on the next write.
func (e *Engine) cachedResult(ctx context.Context, key string, logger *slog.Logger) (domain.DOLResult, bool) {
	data, err := e.store.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		e.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return domain.DOLResult{}, false
	}
	if err != nil {
		logger.Warn("cache read failed", "error", err)
		e.metrics.CacheLookups.WithLabelValues("error").Inc()
		return domain.DOLResult{}, false
	}

	var result domain.DOLResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn("cache entry undecodable, recomputing", "error", err)
		e.metrics.CacheLookups.WithLabelValues("error").Inc()
		return domain.DOLResult{}, false
	}
	e.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return result, true
}

// storeResult writes the computed result through the cache. Cache failures
// never fail the request.
func (e *Engine) storeResult(ctx context.Context, key string, result domain.DOLResult, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		logger.Error("marshal result for cache", "error", err)
		return
	}
	if err := e.store.SetWithTTL(ctx, key, data, e.params.CacheTTL); err != nil {
		logger.Warn("cache write failed", "error", err)
	}
}

func (e *Engine) publishAudit(ctx context.Context, record AuditRecord, logger *slog.Logger) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, record); err != nil {
		logger.Warn("audit publish failed", "error", err)
		e.metrics.AuditRecords.WithLabelValues("error").Inc()
		return
	}
	e.metrics.AuditRecords.WithLabelValues("published").Inc()
}

func (e *Engine) observeOutcome(result domain.DOLResult, start time.Time) {
	outcome := "ok"
	if !result.HasSignal() {
		outcome = "no_signal"
	}
	e.metrics.InferenceRequests.WithLabelValues(outcome).Inc()
	e.metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	e.metrics.Confidence.Observe(result.Confidence)
}
