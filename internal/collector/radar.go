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

// RadarClient collects radar-derived storm cell signatures: high-reflectivity
// cores with a polygon footprint, a MESH hail size estimate, and a model
// confidence. These are inference, not observation, so their confidence
// flows into qualityScore and the source ranks below the other two.
type RadarClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRadarClient creates the radar-derived collector.
func NewRadarClient(baseURL string, timeout time.Duration, logger *slog.Logger) *RadarClient {
	return &RadarClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

func (c *RadarClient) Source() domain.Source { return domain.SourceRadarDerived }

// FetchEvents queries the storm-cell endpoint for the window.
func (c *RadarClient) FetchEvents(ctx context.Context, bbox domain.BoundingBox, window domain.TimeWindow) ([]domain.WeatherEvent, error) {
	params := url.Values{
		"bbox": {fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat)},
		"from": {window.Start.UTC().Format(time.RFC3339)},
		"to":   {window.End.UTC().Format(time.RFC3339)},
	}

	var resp cellResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/cells?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("radar feed: %w", err)
	}

	events := make([]domain.WeatherEvent, 0, len(resp.Cells))
	for _, cell := range resp.Cells {
		event, ok := c.normalize(cell, window)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *RadarClient) normalize(cell radarCell, window domain.TimeWindow) (domain.WeatherEvent, bool) {
	scanned, err := time.Parse(time.RFC3339, cell.ScanTime)
	if err != nil {
		c.logger.Warn("radar cell with unparseable scan time skipped",
			"cell_id", cell.ID, "scan_time", cell.ScanTime)
		return domain.WeatherEvent{}, false
	}
	if !window.Contains(scanned) {
		return domain.WeatherEvent{}, false
	}

	ring := make([]domain.Geo, 0, len(cell.Polygon))
	for _, pair := range cell.Polygon {
		if len(pair) != 2 {
			continue
		}
		// Radar feed publishes lat,lon order.
		ring = append(ring, domain.Geo{Lat: pair[0], Lon: pair[1]})
	}

	var magnitude *float64
	if cell.MESHInches > 0 {
		v := cell.MESHInches
		magnitude = &v
	}

	quality := cell.Confidence
	if quality <= 0 || quality > 1 {
		quality = 1.0 // feed omitted or out-of-range confidence
	}

	return domain.WeatherEvent{
		ID:           cell.ID,
		Source:       domain.SourceRadarDerived,
		EventType:    domain.EventRadarCore,
		OccurredAt:   scanned.UTC(),
		Magnitude:    magnitude,
		Geometry:     domain.PolygonGeometry(ring),
		SourceRef:    cell.ID,
		QualityScore: quality,
		Metadata: map[string]string{
			"max_dbz": fmt.Sprintf("%.1f", cell.MaxDBZ),
		},
	}, true
}

// Radar feed response types.

type cellResponse struct {
	Cells []radarCell `json:"cells"`
}

type radarCell struct {
	ID         string      `json:"id"`
	ScanTime   string      `json:"scan_time"`
	MaxDBZ     float64     `json:"max_dbz"`
	MESHInches float64     `json:"mesh_in"` // maximum estimated size of hail
	Polygon    [][]float64 `json:"polygon"` // [vertex][lat,lon]
	Confidence float64     `json:"confidence"`
}
