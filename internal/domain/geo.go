package domain

import "math"

// earthRadiusMiles is the mean Earth radius used for great-circle math.
const earthRadiusMiles = 3958.8

// milesPerDegree approximates one degree of latitude, used by the locally
// flat projection in nearest-point math. Accurate to well under a mile at
// the sub-100-mile distances this engine works with.
const milesPerDegree = 69.0

// HaversineDistanceMiles returns the great-circle distance between two
// points on the WGS-84 sphere.
func HaversineDistanceMiles(a, b Geo) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

// InitialBearingDegrees returns the forward azimuth from one point toward
// another, normalized to [0,360). The bearing from a point to itself is 0.
func InitialBearingDegrees(from, to Geo) float64 {
	if from == to {
		return 0
	}
	lat1 := radians(from.Lat)
	lat2 := radians(to.Lat)
	dLon := radians(to.Lon - from.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// cardinalNames in compass order; each sector is 45 degrees wide, centered
// on its heading (N covers [337.5,360) and [0,22.5)).
var cardinalNames = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CardinalBucket maps a bearing in degrees to its 8-point compass label.
func CardinalBucket(bearingDegrees float64) string {
	b := math.Mod(math.Mod(bearingDegrees, 360)+360, 360)
	idx := int(math.Floor((b+22.5)/45)) % 8
	return cardinalNames[idx]
}

// NearestPointOnGeometry returns the point of the geometry closest to the
// property. For a point geometry that is the point itself. For a polygon it
// projects the property onto every boundary segment in a locally flat
// approximation and takes the global minimum; if the property lies inside
// the ring, the property itself is returned with inside=true so scoring
// treats the event as maximum proximity.
func NearestPointOnGeometry(property Geo, g Geometry) (nearest Geo, inside bool) {
	if g.IsEmpty() {
		return property, false
	}
	if !g.IsPolygon() {
		return g.Points[0], false
	}
	if pointInRing(property, g.Points) {
		return property, true
	}

	best := g.Points[0]
	bestDist := math.Inf(1)
	n := len(g.Points)
	for i := 0; i < n; i++ {
		a := g.Points[i]
		b := g.Points[(i+1)%n]
		candidate := nearestOnSegment(property, a, b)
		if d := flatDistanceSq(property, candidate); d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	return best, false
}

// nearestOnSegment projects p onto segment ab in a locally flat frame
// (longitude scaled by cos(lat) so east-west miles weigh the same as
// north-south), clamping to the segment endpoints.
func nearestOnSegment(p, a, b Geo) Geo {
	scale := math.Cos(radians(p.Lat))

	ax, ay := (a.Lon-p.Lon)*scale, a.Lat-p.Lat
	bx, by := (b.Lon-p.Lon)*scale, b.Lat-p.Lat
	dx, dy := bx-ax, by-ay

	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return a
	}

	t := -(ax*dx + ay*dy) / segLenSq
	t = math.Max(0, math.Min(1, t))

	return Geo{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
}

// flatDistanceSq is the squared distance between two nearby points in the
// same locally flat frame used by nearestOnSegment. Only used for ordering.
func flatDistanceSq(p, q Geo) float64 {
	scale := math.Cos(radians(p.Lat))
	dx := (q.Lon - p.Lon) * scale
	dy := q.Lat - p.Lat
	return dx*dx + dy*dy
}

// pointInRing is a standard ray-casting test against an open vertex ring.
func pointInRing(p Geo, ring []Geo) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			crossLon := (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lon
			if p.Lon < crossLon {
				inside = !inside
			}
		}
	}
	return inside
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
