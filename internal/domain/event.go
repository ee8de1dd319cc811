package domain

import (
	"errors"
	"time"
)

// Source identifies the ingestion channel an event arrived through.
type Source string

const (
	SourceAlert        Source = "alert"
	SourceGroundReport Source = "ground_report"
	SourceRadarDerived Source = "radar_derived"
)

// sourcePriority ranks sources for dedup representative selection.
// Direct human/instrument reports outrank radar-derived inference.
var sourcePriority = map[Source]int{
	SourceAlert:        3,
	SourceGroundReport: 2,
	SourceRadarDerived: 1,
}

// Priority returns the authority rank of the source (higher wins ties).
func (s Source) Priority() int {
	return sourcePriority[s]
}

// Event type slugs produced by the collectors.
const (
	EventSevereThunderstormWarning = "severe-thunderstorm-warning"
	EventTornadoWarning            = "tornado-warning"
	EventFlashFloodWarning         = "flash-flood-warning"
	EventHailReport                = "hail-report"
	EventWindReport                = "wind-report"
	EventTornadoReport             = "tornado-report"
	EventRadarCore                 = "radar-core"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geometry is the spatial extent of an event: a single point, or a polygon
// ring of three or more vertices. The ring is stored open (first vertex not
// repeated); edge traversal wraps around.
type Geometry struct {
	Points []Geo `json:"points"`
}

// PointGeometry builds a single-point geometry.
func PointGeometry(lat, lon float64) Geometry {
	return Geometry{Points: []Geo{{Lat: lat, Lon: lon}}}
}

// PolygonGeometry builds a polygon geometry from a vertex ring.
func PolygonGeometry(ring []Geo) Geometry {
	return Geometry{Points: ring}
}

// IsPolygon reports whether the geometry is a ring rather than a point.
func (g Geometry) IsPolygon() bool { return len(g.Points) >= 3 }

// IsEmpty reports whether the geometry carries no coordinates. Empty
// geometries are rejected at ingestion and never reach scoring.
func (g Geometry) IsEmpty() bool { return len(g.Points) == 0 }

// Centroid returns the arithmetic mean of the geometry's vertices.
// Adequate for the dedup distance test at the distances involved.
func (g Geometry) Centroid() Geo {
	if g.IsEmpty() {
		return Geo{}
	}
	var lat, lon float64
	for _, p := range g.Points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(g.Points))
	return Geo{Lat: lat / n, Lon: lon / n}
}

// WeatherEvent is a single normalized storm signal from one source.
type WeatherEvent struct {
	ID         string            `json:"id"`
	Source     Source            `json:"source"`
	EventType  string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Magnitude  *float64          `json:"magnitude,omitempty"`
	Geometry   Geometry          `json:"geometry"`
	SourceRef  string            `json:"source_ref,omitempty"`

	// QualityScore is the source-asserted confidence in [0,1]. Collectors
	// default it to 1.0 when the upstream provides no confidence signal.
	QualityScore float64 `json:"quality_score"`

	// Metadata is carried through untouched for citation purposes
	// (raw warning text, merged-report annotations). Never interpreted.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ErrInvalidLocation is the only hard failure of an inference request:
// property coordinates outside WGS-84 ranges.
var ErrInvalidLocation = errors.New("property coordinates out of range")

// PropertyContext is the claim location an inference request evaluates.
// Address and Name are display metadata only.
type PropertyContext struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address,omitempty"`
	Name    string  `json:"name,omitempty"`
}

// Validate rejects coordinates outside -90..90 / -180..180.
func (p PropertyContext) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return ErrInvalidLocation
	}
	return nil
}

// TimeWindow is the inclusive UTC date range an inference request covers.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// BoundingBox is the geographic query extent handed to collectors.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundingBoxAround builds a box centered on the property, padded by
// radiusMiles on each side. Longitude padding widens with latitude so the
// box covers the full radius away from the equator.
func BoundingBoxAround(p PropertyContext, radiusMiles float64) BoundingBox {
	const milesPerDegreeLat = 69.0
	latPad := radiusMiles / milesPerDegreeLat
	lonPad := latPad * 1.5 // coarse cos(lat) compensation for CONUS latitudes
	return BoundingBox{
		MinLat: p.Lat - latPad,
		MinLon: p.Lon - lonPad,
		MaxLat: p.Lat + latPad,
		MaxLon: p.Lon + lonPad,
	}
}

// ScoredEvent extends a WeatherEvent with fields computed relative to one
// property. It is a pure function of (event, property, scoring parameters)
// and is never mutated after construction.
type ScoredEvent struct {
	WeatherEvent

	DistanceMiles     float64 `json:"distance_miles"`
	BearingDegrees    float64 `json:"bearing_degrees"`
	CardinalDirection string  `json:"cardinal_direction"`

	// InsideGeometry marks a property enclosed by the event polygon. The
	// bearing defaults to 0/"N" in that case and distance is zero.
	InsideGeometry bool `json:"inside_geometry,omitempty"`

	Score float64 `json:"score"`
}

// TopEvent is the citation-relevant reduction of a scored event that is
// included in a DOLResult.
type TopEvent struct {
	ID                string    `json:"id"`
	Source            Source    `json:"source"`
	EventType         string    `json:"type"`
	OccurredAt        time.Time `json:"occurred_at"`
	Magnitude         *float64  `json:"magnitude,omitempty"`
	Severity          *string   `json:"severity,omitempty"`
	DistanceMiles     float64   `json:"distance_miles"`
	CardinalDirection string    `json:"cardinal_direction"`
	SourceRef         string    `json:"source_ref,omitempty"`
	Score             float64   `json:"score"`
}

// DOLResult is the engine's final output for one request. A nil
// RecommendedDate is the explicit no-signal state, never a guessed date.
type DOLResult struct {
	RecommendedDate    *time.Time `json:"recommended_date,omitempty"`
	TopEvents          []TopEvent `json:"top_events"`
	Confidence         float64    `json:"confidence"`
	TotalEventsScanned int        `json:"total_events_scanned"`

	// SourcesUsed and SourcesFailed record which collectors contributed
	// and which soft-failed, for transparency in downstream reports.
	SourcesUsed   []Source  `json:"sources_used,omitempty"`
	SourcesFailed []Source  `json:"sources_failed,omitempty"`
	ComputedAt    time.Time `json:"computed_at"`
}

// HasSignal reports whether the result carries a recommendation.
func (r DOLResult) HasSignal() bool { return r.RecommendedDate != nil }
