package domain

import "math"

// ScoringConfig holds the tunable constants of the composite score. The
// defaults are operational starting points, expected to be recalibrated
// against historical claims data.
type ScoringConfig struct {
	// MaxRadiusMiles is the proximity cutoff: events farther than this from
	// the property score zero and never appear in citations.
	MaxRadiusMiles float64

	// HailReferenceInches and WindReferenceMPH are the severe-weather
	// thresholds magnitudes are normalized against (NWS severe criteria:
	// 1.5 inch hail, 58 mph wind).
	HailReferenceInches float64
	WindReferenceMPH    float64

	// NoMagnitudeFloor is the normalized magnitude assigned to events that
	// carry no numeric measure. A warning alone is still evidence.
	NoMagnitudeFloor float64
}

// DefaultScoringConfig returns the operational defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		MaxRadiusMiles:      25,
		HailReferenceInches: 1.5,
		WindReferenceMPH:    58,
		NoMagnitudeFloor:    0.3,
	}
}

// ScoreEvent computes the composite relevance of one event for one property:
//
//	score = normalizedMagnitude * proximityWeight * qualityScore
//
// The returned ScoredEvent is a pure function of its inputs and is never
// mutated afterwards; re-scoring always builds a new value.
func ScoreEvent(event WeatherEvent, property PropertyContext, cfg ScoringConfig) ScoredEvent {
	origin := Geo{Lat: property.Lat, Lon: property.Lon}
	nearest, inside := NearestPointOnGeometry(origin, event.Geometry)

	var distance, bearing float64
	direction := "N"
	if !inside {
		distance = HaversineDistanceMiles(origin, nearest)
		bearing = InitialBearingDegrees(origin, nearest)
		direction = CardinalBucket(bearing)
	}

	scored := ScoredEvent{
		WeatherEvent:      event,
		DistanceMiles:     distance,
		BearingDegrees:    bearing,
		CardinalDirection: direction,
		InsideGeometry:    inside,
	}
	scored.Score = normalizedMagnitude(event, cfg) * proximityWeight(distance, cfg.MaxRadiusMiles) * event.QualityScore
	return scored
}

// ScoreEvents scores every event against the property. Events beyond the
// proximity cutoff come back with a zero score; callers filter on Score > 0
// but count the full input for transparency.
func ScoreEvents(events []WeatherEvent, property PropertyContext, cfg ScoringConfig) []ScoredEvent {
	scored := make([]ScoredEvent, len(events))
	for i, e := range events {
		scored[i] = ScoreEvent(e, property, cfg)
	}
	return scored
}

// normalizedMagnitude maps an event's native magnitude onto [0,1] against
// the severe-weather reference for its type. Events without a numeric
// magnitude get the configured floor.
func normalizedMagnitude(event WeatherEvent, cfg ScoringConfig) float64 {
	if event.Magnitude == nil {
		return cfg.NoMagnitudeFloor
	}
	mag := *event.Magnitude

	var ref float64
	switch event.EventType {
	case EventHailReport, EventRadarCore:
		ref = cfg.HailReferenceInches
	case EventWindReport:
		ref = cfg.WindReferenceMPH
	case EventTornadoReport:
		ref = 3 // EF scale, EF3+ treated as full strength
	default:
		// Warning types rarely carry magnitudes; when one does, treat it
		// as already normalized.
		return clamp01(math.Max(mag, cfg.NoMagnitudeFloor))
	}
	if ref <= 0 {
		return cfg.NoMagnitudeFloor
	}
	return clamp01(math.Max(mag/ref, 0))
}

// proximityWeight decays linearly from 1 at the property to 0 at the radius.
func proximityWeight(distanceMiles, maxRadiusMiles float64) float64 {
	if maxRadiusMiles <= 0 {
		return 0
	}
	return math.Max(0, 1-distanceMiles/maxRadiusMiles)
}

// DeriveSeverity maps an event's magnitude to the family's four-level label
// (minor, moderate, severe, extreme) using NWS-informed thresholds. Returns
// nil when the event carries no magnitude or an unrecognized type.
func DeriveSeverity(eventType string, magnitude *float64) *string {
	if magnitude == nil {
		return nil
	}
	mag := *magnitude

	var s string
	switch eventType {
	case EventHailReport, EventRadarCore:
		switch {
		case mag < 0.75:
			s = "minor"
		case mag < 1.5:
			s = "moderate"
		case mag < 2.5:
			s = "severe"
		default:
			s = "extreme"
		}
	case EventWindReport:
		switch {
		case mag < 50:
			s = "minor"
		case mag < 74:
			s = "moderate"
		case mag < 96:
			s = "severe"
		default:
			s = "extreme"
		}
	case EventTornadoReport:
		switch {
		case mag <= 1:
			s = "minor"
		case mag == 2:
			s = "moderate"
		case mag <= 4:
			s = "severe"
		default:
			s = "extreme"
		}
	default:
		return nil
	}
	return &s
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
