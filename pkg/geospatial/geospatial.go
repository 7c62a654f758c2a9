package geospatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidCoordinates is returned for a latitude or longitude out of range
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Marker is a located item with GeoJSON properties
type Marker struct {
	Lat        float64
	Lon        float64
	Properties map[string]interface{}
}

// NewPoint validates lat/lon and returns the point in GeoJSON axis order
func NewPoint(lat, lon float64) (orb.Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return orb.Point{}, fmt.Errorf("%w: lat %v, lon %v", ErrInvalidCoordinates, lat, lon)
	}
	return orb.Point{lon, lat}, nil
}

// FeatureCollection renders markers as point features. The collection carries
// a bounding box when it is not empty.
func FeatureCollection(markers []Marker) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	points := make(orb.MultiPoint, 0, len(markers))

	for i, m := range markers {
		point, err := NewPoint(m.Lat, m.Lon)
		if err != nil {
			return nil, fmt.Errorf("marker %d: %w", i, err)
		}
		f := geojson.NewFeature(point)
		for k, v := range m.Properties {
			f.Properties[k] = v
		}
		fc.Append(f)
		points = append(points, point)
	}

	if len(points) > 0 {
		fc.BBox = geojson.NewBBox(points.Bound())
	}
	return fc, nil
}

// Centroid returns the mean position of markers
func Centroid(markers []Marker) (orb.Point, bool) {
	if len(markers) == 0 {
		return orb.Point{}, false
	}
	points := make(orb.MultiPoint, len(markers))
	for i, m := range markers {
		points[i] = orb.Point{m.Lon, m.Lat}
	}
	centroid, _ := planar.CentroidArea(points)
	return centroid, true
}

// SpreadKm returns the largest distance in kilometres between any marker and
// the centroid.
func SpreadKm(markers []Marker) float64 {
	center, ok := Centroid(markers)
	if !ok {
		return 0
	}
	var spread float64
	for _, m := range markers {
		if d := geo.Distance(center, orb.Point{m.Lon, m.Lat}) / 1000; d > spread {
			spread = d
		}
	}
	return spread
}
