// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package needs

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNeedPointsFile(t *testing.T) {
	points, report, err := LoadNeedPointsFile("testdata/food_banks.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"bank-0", "bank-1", "bank-3", "bank-4"}, ids(points))
	assert.Equal(t, 4, report.Accepted)
	require.Len(t, report.Rejected, 2)
	assert.Equal(t, 4, report.Rejected[0].Line)
	assert.Contains(t, report.Rejected[0].Reason, "non-numeric latitude")
	assert.Equal(t, 7, report.Rejected[1].Line)
	assert.Contains(t, report.Rejected[1].Reason, "latitude must be between")

	daily := points[0]
	assert.Equal(t, "Daily Bread Food Bank", daily.Name)
	assert.Equal(t, "Toronto", daily.City)
	assert.Equal(t, []string{"Canned goods", "Dry staples", "Hygiene kits"}, daily.Needs)
	assert.Equal(t, "Call for hours", daily.Hours)
	assert.NotZero(t, daily.Cell)

	// needs rotate on the data row index, dropped rows included
	assert.Equal(t, []string{"Canned goods", "Dry staples", "Hygiene kits"}, points[2].Needs)

	unnamed := points[3]
	assert.Equal(t, "Food Bank", unnamed.Name)
	assert.Equal(t, "Address not provided", unnamed.Address)
}

func TestLoadNeedPointsEmpty(t *testing.T) {
	points, report, err := LoadNeedPoints(strings.NewReader(""), "empty")
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.Empty(t, report.Rejected)
}

func TestLoadInsecurityStatsFile(t *testing.T) {
	stats, report, err := LoadInsecurityStatsFile("testdata/insecurity.csv")
	require.NoError(t, err)

	regions := make([]string, len(stats))
	for i, s := range stats {
		regions[i] = s.Region
	}

	if diff := cmp.Diff([]string{"Toronto Public Health", "Ottawa Public Health", "Northwestern Health Unit"}, regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, report.Rejected, 1)
	assert.Contains(t, report.Rejected[0].Reason, "non-numeric percent")
	assert.Equal(t, TrendNA, stats[0].Trend)
}

func TestLoadInsecurityStatsWithoutTitle(t *testing.T) {
	csv := "region,percent,latitude,longitude\nPeel,18.5,43.65,-79.75\n"

	stats, _, err := LoadInsecurityStats(strings.NewReader(csv), "inline")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Peel", stats[0].Region)
	assert.InDelta(t, 18.5, stats[0].Percent, 1e-9)
}

func TestDeriveCity(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"191 New Toronto St, Toronto, ON M8V 2E7, Canada", "Toronto"},
		{"12 Main St, Guelph", "12 Main St"},
		{"Sudbury", "Sudbury"},
		{" , ", "Ontario"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveCity(tt.address))
		})
	}
}

func ids(points []*NeedPoint) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.ID
	}

	return out
}
