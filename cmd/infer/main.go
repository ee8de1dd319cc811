// Command infer runs a single date-of-loss inference from the command line
// and prints the result as JSON. It uses the same collectors and engine as
// the service, with an in-process cache, so it is suitable for spot checks
// against live or mock endpoints.
//
// Usage:
//
//	ALERTS_BASE_URL=http://localhost:9090 go run ./cmd/infer \
//	  -lat 33.4484 -lon -112.0740 -start 2024-05-01 -end 2024-05-07
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/storm-dol-service/internal/cache"
	"github.com/couchcryptid/storm-dol-service/internal/collector"
	"github.com/couchcryptid/storm-dol-service/internal/config"
	"github.com/couchcryptid/storm-dol-service/internal/domain"
	"github.com/couchcryptid/storm-dol-service/internal/engine"
	"github.com/couchcryptid/storm-dol-service/internal/observability"
)

func main() {
	lat := flag.Float64("lat", 0, "property latitude")
	lon := flag.Float64("lon", 0, "property longitude")
	start := flag.String("start", "", "window start date (YYYY-MM-DD)")
	end := flag.String("end", "", "window end date (YYYY-MM-DD)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall request timeout")
	flag.Parse()

	window, err := parseWindow(*start, *end)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, "text")

	var collectors []collector.Collector
	if cfg.AlertsBaseURL != "" {
		collectors = append(collectors, collector.NewAlertClient(cfg.AlertsBaseURL, cfg.CollectorTimeout, logger))
	}
	if cfg.GroundReportBaseURL != "" {
		collectors = append(collectors, collector.NewGroundReportClient(cfg.GroundReportBaseURL, cfg.CollectorTimeout, logger))
	}
	if cfg.RadarBaseURL != "" {
		collectors = append(collectors, collector.NewRadarClient(cfg.RadarBaseURL, cfg.CollectorTimeout, logger))
	}

	params := engine.DefaultParams()
	params.MaxRadiusMiles = cfg.MaxRadiusMiles
	params.CollectorTimeout = cfg.CollectorTimeout
	params.Scoring.MaxRadiusMiles = cfg.MaxRadiusMiles

	e := engine.New(collectors, cache.NewMemoryStore(), nil, logger, observability.NewMetrics(), params)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := e.InferDateOfLoss(ctx, domain.PropertyContext{Lat: *lat, Lon: *lon}, window)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inference:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
}

func parseWindow(start, end string) (domain.TimeWindow, error) {
	if start == "" || end == "" {
		return domain.TimeWindow{}, fmt.Errorf("both -start and -end are required")
	}
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return domain.TimeWindow{}, fmt.Errorf("invalid -start %q: %w", start, err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return domain.TimeWindow{}, fmt.Errorf("invalid -end %q: %w", end, err)
	}
	if e.Before(s) {
		return domain.TimeWindow{}, fmt.Errorf("-end precedes -start")
	}
	// Include the whole final day.
	return domain.TimeWindow{Start: s, End: e.Add(24*time.Hour - time.Second)}, nil
}
