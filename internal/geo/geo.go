// Package geo provides the distance and area primitives used by survey
// analytics and exports.
package geo

import (
	"fmt"
	"math"

	"github.com/tphakala/treesurvey/internal/errors"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6_371_000.0

// SquareMetersPerHectare converts m² to hectares.
const SquareMetersPerHectare = 10_000.0

// Fix is a single GPS reading. It is immutable once captured.
type Fix struct {
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lon"`
	AccuracyMeters float64 `json:"accuracy"`
}

// Validate checks coordinate ranges and a non-negative accuracy.
func (f Fix) Validate() error {
	switch {
	case math.IsNaN(f.Latitude) || f.Latitude < -90 || f.Latitude > 90:
		return errors.Newf("invalid latitude %v: must be within [-90, 90]", f.Latitude).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	case math.IsNaN(f.Longitude) || f.Longitude < -180 || f.Longitude > 180:
		return errors.Newf("invalid longitude %v: must be within [-180, 180]", f.Longitude).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	case math.IsNaN(f.AccuracyMeters) || f.AccuracyMeters < 0:
		return errors.Newf("invalid accuracy %v: must be non-negative", f.AccuracyMeters).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// String renders the fix as "lat,lon" with six decimals.
func (f Fix) String() string {
	return fmt.Sprintf("%.6f,%.6f", f.Latitude, f.Longitude)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the great-circle distance between a and b using
// the haversine formula.
func DistanceMeters(a, b Fix) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push h marginally above 1 for antipodal points
	h = math.Min(1, h)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// distinctCount counts points with distinct coordinates, ignoring accuracy.
func distinctCount(points []Fix) int {
	seen := make(map[[2]float64]struct{}, len(points))
	for _, p := range points {
		seen[[2]float64{p.Latitude, p.Longitude}] = struct{}{}
	}
	return len(seen)
}

// BoundingBoxAreaHectares approximates the surveyed area as the rectangle
// spanned by the points. The west-east leg is measured along the minimum
// latitude and the south-north leg along the minimum longitude. ok is false
// with fewer than two distinct points or when the area is zero.
func BoundingBoxAreaHectares(points []Fix) (area float64, ok bool) {
	if distinctCount(points) < 2 {
		return 0, false
	}

	minLat, maxLat := points[0].Latitude, points[0].Latitude
	minLon, maxLon := points[0].Longitude, points[0].Longitude
	for _, p := range points[1:] {
		minLat = math.Min(minLat, p.Latitude)
		maxLat = math.Max(maxLat, p.Latitude)
		minLon = math.Min(minLon, p.Longitude)
		maxLon = math.Max(maxLon, p.Longitude)
	}

	width := DistanceMeters(Fix{Latitude: minLat, Longitude: minLon}, Fix{Latitude: minLat, Longitude: maxLon})
	height := DistanceMeters(Fix{Latitude: minLat, Longitude: minLon}, Fix{Latitude: maxLat, Longitude: minLon})

	area = width * height / SquareMetersPerHectare
	if area <= 0 {
		return 0, false
	}
	return area, true
}

// Density returns count per hectare of the bounding box of points.
// It is undefined whenever the area is.
func Density(count int, points []Fix) (float64, bool) {
	area, ok := BoundingBoxAreaHectares(points)
	if !ok {
		return 0, false
	}
	return float64(count) / area, true
}

// AveragePairwiseDistance returns the mean distance over all unordered
// pairs of points. Undefined for fewer than two points.
func AveragePairwiseDistance(points []Fix) (float64, bool) {
	n := len(points)
	if n < 2 {
		return 0, false
	}

	var total float64
	for i := range n {
		for j := i + 1; j < n; j++ {
			total += DistanceMeters(points[i], points[j])
		}
	}

	pairs := n * (n - 1) / 2
	return total / float64(pairs), true
}
