// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

// Package needs holds the need-point reference data (food banks and regional
// food-insecurity statistics) and ranks need points by distance.
package needs

import (
	"github.com/zerohunger/connect/spatial"
)

// CellResolution is the H3 resolution stored alongside every need point.
const CellResolution = 8

// NeedPoint is a fixed location (e.g. a food bank) able to receive donations.
// It is loaded once and never mutated afterwards.
type NeedPoint struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Address     string        `json:"address"`
	City        string        `json:"city"`
	Description string        `json:"description"`
	Phone       string        `json:"phone"`
	Point       spatial.Point `json:"point"`
	Needs       []string      `json:"needs"`
	Hours       string        `json:"hours"`
	Cell        int64         `json:"-"`
}

// Trend is the direction of a region's food-insecurity rate.
type Trend string

const (
	TrendHigher Trend = "Higher"
	TrendLower  Trend = "Lower"
	TrendStable Trend = "Stable"
	TrendNA     Trend = "N/A"
)

// InsecurityStat is the share of food-insecure households of a region.
type InsecurityStat struct {
	Region  string        `json:"region"`
	Percent float64       `json:"percent"`
	Point   spatial.Point `json:"point"`
	Trend   Trend         `json:"trend"`
}
