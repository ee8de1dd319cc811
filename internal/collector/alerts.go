package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/storm-dol-service/internal/domain"
)

// AlertClient collects CAP-style severe weather warnings from the alert
// feed. Alerts carry a polygon footprint and an issuing-office certainty
// level instead of a numeric magnitude.
type AlertClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAlertClient creates the alert collector.
func NewAlertClient(baseURL string, timeout time.Duration, logger *slog.Logger) *AlertClient {
	return &AlertClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

func (c *AlertClient) Source() domain.Source { return domain.SourceAlert }

// FetchEvents queries the active-alerts endpoint for the window and
// normalizes each warning feature into a WeatherEvent.
func (c *AlertClient) FetchEvents(ctx context.Context, bbox domain.BoundingBox, window domain.TimeWindow) ([]domain.WeatherEvent, error) {
	params := url.Values{
		"bbox":  {fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat)},
		"start": {window.Start.UTC().Format(time.RFC3339)},
		"end":   {window.End.UTC().Format(time.RFC3339)},
	}

	var resp alertResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/alerts?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("alert feed: %w", err)
	}

	events := make([]domain.WeatherEvent, 0, len(resp.Features))
	for _, f := range resp.Features {
		event, ok := c.normalize(f, window)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *AlertClient) normalize(f alertFeature, window domain.TimeWindow) (domain.WeatherEvent, bool) {
	effective, err := time.Parse(time.RFC3339, f.Properties.Effective)
	if err != nil {
		c.logger.Warn("alert with unparseable effective time skipped",
			"alert_id", f.ID, "effective", f.Properties.Effective)
		return domain.WeatherEvent{}, false
	}
	if !window.Contains(effective) {
		return domain.WeatherEvent{}, false
	}

	ring := make([]domain.Geo, 0, len(f.Geometry.Coordinates))
	for _, outer := range f.Geometry.Coordinates {
		for _, pair := range outer {
			if len(pair) != 2 {
				continue
			}
			// GeoJSON order is lon,lat.
			ring = append(ring, domain.Geo{Lat: pair[1], Lon: pair[0]})
		}
		break // outer ring only, holes are irrelevant at this scale
	}

	return domain.WeatherEvent{
		ID:           f.ID,
		Source:       domain.SourceAlert,
		EventType:    alertSlug(f.Properties.Event),
		OccurredAt:   effective.UTC(),
		Geometry:     domain.PolygonGeometry(ring),
		SourceRef:    f.ID,
		QualityScore: certaintyScore(f.Properties.Certainty),
		Metadata: map[string]string{
			"headline": f.Properties.Headline,
			"severity": f.Properties.Severity,
		},
	}, true
}

// alertSlug normalizes an event name like "Severe Thunderstorm Warning" to
// the engine's slug form.
func alertSlug(event string) string {
	return strings.ToLower(strings.Join(strings.Fields(event), "-"))
}

// certaintyScore maps CAP certainty levels onto [0,1]. Feeds that omit
// certainty get full quality, matching the ingestion default.
func certaintyScore(certainty string) float64 {
	switch strings.ToLower(certainty) {
	case "observed":
		return 1.0
	case "likely":
		return 0.8
	case "possible":
		return 0.6
	case "unlikely":
		return 0.3
	default:
		return 1.0
	}
}

// Alert feed response types, GeoJSON-flavored.

type alertResponse struct {
	Features []alertFeature `json:"features"`
}

type alertFeature struct {
	ID         string          `json:"id"`
	Properties alertProperties `json:"properties"`
	Geometry   alertGeometry   `json:"geometry"`
}

type alertProperties struct {
	Event     string `json:"event"`
	Effective string `json:"effective"`
	Severity  string `json:"severity"`
	Certainty string `json:"certainty"`
	Headline  string `json:"headline"`
}

type alertGeometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"` // [ring][vertex][lon,lat]
}
