// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package needs

import (
	"cmp"
	"slices"
	"strings"

	"github.com/zerohunger/connect/spatial"
	"github.com/zerohunger/connect/utils/textutils"
)

// RankedMatch is a need point together with its distance to a reference point.
type RankedMatch struct {
	*NeedPoint
	DistanceKm float64 `json:"distance_km"`
}

// Rank orders points by great-circle distance to ref, nearest first, and keeps
// at most limit of them (limit <= 0 keeps all). Exact ties keep the input
// order. points is not modified.
func Rank(ref spatial.Point, points []*NeedPoint, limit int) []RankedMatch {
	ranked := make([]RankedMatch, 0, len(points))

	for _, p := range points {
		if p == nil {
			continue
		}

		ranked = append(ranked, RankedMatch{
			NeedPoint:  p,
			DistanceKm: ref.DistanceKm(p.Point),
		})
	}

	slices.SortStableFunc(ranked, func(a, b RankedMatch) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}

// Names returns the need point names of matches, in order.
func Names(matches []RankedMatch) []string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}

	return names
}

// Filter returns the points whose name, address or city contains query,
// ignoring case and accents. An empty query returns every point.
func Filter(points []*NeedPoint, query string) []*NeedPoint {
	q := textutils.LowerASCIIFolding(query)
	if q == "" {
		return points
	}

	var out []*NeedPoint

	for _, p := range points {
		haystack := textutils.LowerASCIIFolding(p.Name + " " + p.Address + " " + p.City)
		if strings.Contains(haystack, q) {
			out = append(out, p)
		}
	}

	return out
}
