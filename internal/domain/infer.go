package domain

import (
	"sort"
	"time"
)

// InferenceConfig holds the tunable constants of date-of-loss selection.
type InferenceConfig struct {
	// CorroborationBonus multiplies a date bucket's strength when two or
	// more distinct sources contributed to it.
	CorroborationBonus float64

	// SoftFailPenalty is subtracted from confidence once per collector that
	// failed or timed out during the request.
	SoftFailPenalty float64

	// TopEventsCap bounds the citation list on the winning date.
	TopEventsCap int
}

// DefaultInferenceConfig returns the operational defaults.
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		CorroborationBonus: 1.2,
		SoftFailPenalty:    0.15,
		TopEventsCap:       10,
	}
}

// dateBucket aggregates the scored events of one UTC calendar date.
type dateBucket struct {
	date     time.Time
	events   []ScoredEvent
	sources  map[Source]bool
	strength float64
}

// InferDateOfLoss buckets positively scored events by UTC calendar date,
// selects the best-supported date, and computes a calibrated confidence.
//
// Bucket strength is the sum of member scores, multiplied by the
// corroboration bonus when two or more distinct sources agree on the date.
// Ties between equal-strength buckets go to the more recent date. Confidence
// combines the winner's dominance over all buckets with the breadth of
// sources behind it, minus a fixed penalty per soft-failed collector.
//
// When nothing scores above zero the result is the explicit no-signal state:
// nil recommended date, zero confidence, empty citations. Callers treat that
// as a distinct outcome, not an error.
func InferDateOfLoss(scored []ScoredEvent, softFailedSources []Source, cfg InferenceConfig) DOLResult {
	result := DOLResult{
		TopEvents:          []TopEvent{},
		TotalEventsScanned: len(scored),
		SourcesFailed:      softFailedSources,
		ComputedAt:         clock.Now().UTC(),
	}

	buckets := make(map[time.Time]*dateBucket)
	for _, e := range scored {
		if e.Score <= 0 {
			continue
		}
		day := e.OccurredAt.UTC().Truncate(24 * time.Hour)
		b, ok := buckets[day]
		if !ok {
			b = &dateBucket{date: day, sources: make(map[Source]bool)}
			buckets[day] = b
		}
		b.events = append(b.events, e)
		b.sources[e.Source] = true
		b.strength += e.Score
	}

	if len(buckets) == 0 {
		return result
	}

	var total float64
	var winner *dateBucket
	for _, b := range buckets {
		if len(b.sources) >= 2 {
			b.strength *= cfg.CorroborationBonus
		}
		total += b.strength
		if winner == nil || b.strength > winner.strength ||
			(b.strength == winner.strength && b.date.After(winner.date)) {
			winner = b
		}
	}

	date := winner.date
	result.RecommendedDate = &date
	result.TopEvents = citationList(winner.events, cfg.TopEventsCap)
	result.SourcesUsed = sortedSources(winner.sources)
	result.Confidence = confidence(winner, total, len(softFailedSources), cfg)
	return result
}

// confidence blends the winning bucket's dominance with source breadth and
// applies the soft-fail penalty, clamped to [0,1].
func confidence(winner *dateBucket, total float64, softFails int, cfg InferenceConfig) float64 {
	dominance := winner.strength / total
	sourceFactor := 0.7 + 0.15*float64(len(winner.sources)-1)
	if sourceFactor > 1 {
		sourceFactor = 1
	}
	return clamp01(dominance*sourceFactor - cfg.SoftFailPenalty*float64(softFails))
}

// citationList reduces the winning bucket to its citation fields, ordered by
// score descending and capped.
func citationList(events []ScoredEvent, limit int) []TopEvent {
	ordered := append([]ScoredEvent(nil), events...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].ID < ordered[j].ID
	})
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}

	top := make([]TopEvent, len(ordered))
	for i, e := range ordered {
		top[i] = TopEvent{
			ID:                e.ID,
			Source:            e.Source,
			EventType:         e.EventType,
			OccurredAt:        e.OccurredAt,
			Magnitude:         e.Magnitude,
			Severity:          DeriveSeverity(e.EventType, e.Magnitude),
			DistanceMiles:     e.DistanceMiles,
			CardinalDirection: e.CardinalDirection,
			SourceRef:         e.SourceRef,
			Score:             e.Score,
		}
	}
	return top
}

func sortedSources(set map[Source]bool) []Source {
	out := make([]Source, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
