// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the geographic point type and great-circle distance.
package spatial

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

const (
	earthRadiusKm = 6371.0
	earthRadius   = earthRadiusKm * 1000 // meters
)

// Point represents a geographical point with latitude and longitude in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Validate checks that the point lies inside the global latitude/longitude bounds.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return fmt.Errorf("coordinates must be numeric (got %v)", p)
	}

	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90 (got %f)", p.Lat)
	}

	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180 (got %f)", p.Lng)
	}

	return nil
}

// centralAngle returns the haversine central angle between two points, in radians.
func (p Point) centralAngle(other Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p Point) HaversineDistance(other Point) float64 {
	return earthRadius * p.centralAngle(other)
}

// DistanceKm calculates the great-circle distance between two points in kilometers.
func (p Point) DistanceKm(other Point) float64 {
	return earthRadiusKm * p.centralAngle(other)
}

// Cell returns the H3 cell index containing the point at the given resolution.
func (p Point) Cell(res int) (int64, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
	if err != nil {
		return 0, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
	}

	return int64(cell), nil
}
