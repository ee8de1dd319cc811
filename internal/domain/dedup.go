package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DedupConfig controls when two events are considered reports of the same
// physical storm cell.
type DedupConfig struct {
	// TimeWindow is the maximum gap between occurrence times for a merge.
	TimeWindow time.Duration
	// DistanceMiles is the maximum centroid-to-centroid distance for a merge.
	DistanceMiles float64
}

// DefaultDedupConfig matches the operational defaults (3 hours, 10 miles).
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		TimeWindow:    3 * time.Hour,
		DistanceMiles: 10,
	}
}

// Metadata keys written onto merged representatives.
const (
	MetaMergedCount   = "merged_count"
	MetaMergedSources = "merged_sources"
)

// Deduplicate collapses events that likely describe the same storm cell into
// one representative per cluster. Two events are merge candidates when their
// occurrence times are within cfg.TimeWindow and their geometry centroids are
// within cfg.DistanceMiles; candidate pairs are clustered with union-find.
//
// The representative of each cluster is the member with the highest
// qualityScore (ties broken by source authority), its magnitude raised to the
// cluster maximum (under-reporting is far more common than over-reporting in
// storm data), and its metadata annotated with the merged count and source
// list. Output is ordered by occurrence time, so the operation is
// deterministic regardless of collector arrival order, and idempotent.
func Deduplicate(events []WeatherEvent, cfg DedupConfig) []WeatherEvent {
	if len(events) <= 1 {
		return append([]WeatherEvent(nil), events...)
	}

	sorted := append([]WeatherEvent(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].OccurredAt.Equal(sorted[j].OccurredAt) {
			return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	centroids := make([]Geo, len(sorted))
	for i, e := range sorted {
		centroids[i] = e.Geometry.Centroid()
	}

	uf := newUnionFind(len(sorted))
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			gap := sorted[j].OccurredAt.Sub(sorted[i].OccurredAt)
			if gap > cfg.TimeWindow {
				break // sorted by time, later events are only further away
			}
			if HaversineDistanceMiles(centroids[i], centroids[j]) <= cfg.DistanceMiles {
				uf.union(i, j)
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range sorted {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	merged := make([]WeatherEvent, 0, len(clusters))
	for _, members := range clusters {
		merged = append(merged, mergeCluster(sorted, members))
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].OccurredAt.Equal(merged[j].OccurredAt) {
			return merged[i].OccurredAt.Before(merged[j].OccurredAt)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

// mergeCluster reduces one connected component to its representative event.
func mergeCluster(events []WeatherEvent, members []int) WeatherEvent {
	rep := events[members[0]]
	for _, idx := range members[1:] {
		e := events[idx]
		if e.QualityScore > rep.QualityScore ||
			(e.QualityScore == rep.QualityScore && e.Source.Priority() > rep.Source.Priority()) {
			rep = e
		}
	}

	if len(members) == 1 {
		return rep
	}

	var maxMag *float64
	sources := make(map[Source]bool, len(members))
	for _, idx := range members {
		e := events[idx]
		sources[e.Source] = true
		if e.Magnitude != nil && (maxMag == nil || *e.Magnitude > *maxMag) {
			v := *e.Magnitude
			maxMag = &v
		}
	}
	rep.Magnitude = maxMag

	sourceList := make([]string, 0, len(sources))
	for s := range sources {
		sourceList = append(sourceList, string(s))
	}
	sort.Strings(sourceList)

	meta := make(map[string]string, len(rep.Metadata)+2)
	for k, v := range rep.Metadata {
		meta[k] = v
	}
	meta[MetaMergedCount] = strconv.Itoa(len(members))
	meta[MetaMergedSources] = strings.Join(sourceList, ",")
	rep.Metadata = meta

	return rep
}

// unionFind is an array-backed disjoint set with union by rank and path
// compression. Indices refer to positions in the time-sorted event slice.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(i, j int) {
	ri, rj := uf.find(i), uf.find(j)
	if ri == rj {
		return
	}
	if uf.rank[ri] < uf.rank[rj] {
		ri, rj = rj, ri
	}
	uf.parent[rj] = ri
	if uf.rank[ri] == uf.rank[rj] {
		uf.rank[ri]++
	}
}
