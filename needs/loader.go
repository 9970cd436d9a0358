// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package needs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/zerohunger/connect/spatial"
)

// defaultNeedSets are rotated over the loaded food banks; the dataset has no
// needs column.
var defaultNeedSets = [][]string{
	{"Canned goods", "Dry staples", "Hygiene kits"},
	{"Fresh produce", "Baby items", "Protein"},
	{"Ready meals", "Snacks", "Water"},
}

// RowError describes a rejected input row.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// LoadReport summarizes a load. Rejected rows are dropped from the result but
// never fail the load.
type LoadReport struct {
	Source   string     `json:"source"`
	Accepted int        `json:"accepted"`
	Rejected []RowError `json:"rejected"`
}

func (r *LoadReport) reject(line int, format string, args ...any) {
	r.Rejected = append(r.Rejected, RowError{Line: line, Reason: fmt.Sprintf(format, args...)})
}

// Log writes one line per rejected row so data owners can follow up.
func (r *LoadReport) Log() {
	for _, rej := range r.Rejected {
		log.Printf("⚠️  %s: dropped %s", r.Source, rej)
	}

	log.Printf("Loaded %d rows from %s (%d rejected)", r.Accepted, r.Source, len(r.Rejected))
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	return reader
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[i])
}

func parseNumber(name, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-numeric %s %q", name, value)
	}

	return f, nil
}

func parsePoint(latStr, lngStr string) (spatial.Point, error) {
	lat, err := parseNumber("latitude", latStr)
	if err != nil {
		return spatial.Point{}, err
	}

	lng, err := parseNumber("longitude", lngStr)
	if err != nil {
		return spatial.Point{}, err
	}

	p := spatial.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return spatial.Point{}, err
	}

	return p, nil
}

// deriveCity picks the locality out of a comma separated address.
// "123 Main St, Guelph, ON N1H 1A1, Canada" -> "Guelph".
func deriveCity(address string) string {
	var parts []string

	for _, p := range strings.Split(address, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}

	switch {
	case len(parts) >= 3:
		return parts[len(parts)-3]
	case len(parts) > 0:
		return parts[0]
	default:
		return "Ontario"
	}
}

// LoadNeedPoints parses food banks from CSV with a header row and the columns
// name, address, latitude, longitude. Row ids are "bank-<n>" where n is the
// zero based data row index, so ids stay stable when earlier rows are dropped.
func LoadNeedPoints(r io.Reader, source string) ([]*NeedPoint, *LoadReport, error) {
	reader := newCSVReader(r)
	report := &LoadReport{Source: source}

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*NeedPoint{}, report, nil
		}

		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	points := []*NeedPoint{}

	for idx := 0; ; idx++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.reject(parseErr.Line, "%v", parseErr.Err)

				continue
			}

			return nil, nil, fmt.Errorf("reading %s: %w", source, err)
		}

		line, _ := reader.FieldPos(0)

		point, err := parsePoint(field(record, 2), field(record, 3))
		if err != nil {
			report.reject(line, "%v", err)

			continue
		}

		name := field(record, 0)
		if name == "" {
			name = "Food Bank"
		}

		address := field(record, 1)
		if address == "" {
			address = "Address not provided"
		}

		c, err := point.Cell(CellResolution)
		if err != nil {
			report.reject(line, "%v", err)

			continue
		}

		needSet := defaultNeedSets[idx%len(defaultNeedSets)]

		points = append(points, &NeedPoint{
			ID:          fmt.Sprintf("bank-%d", idx),
			Name:        name,
			Address:     address,
			City:        deriveCity(address),
			Description: "Community food bank",
			Phone:       "N/A",
			Point:       point,
			Needs:       append([]string(nil), needSet...),
			Hours:       "Call for hours",
			Cell:        c,
		})
	}

	report.Accepted = len(points)

	return points, report, nil
}

// LoadInsecurityStats parses region statistics from CSV with the columns
// region, percent, latitude, longitude. An optional leading title line (a
// line without commas) precedes the header.
func LoadInsecurityStats(r io.Reader, source string) ([]*InsecurityStat, *LoadReport, error) {
	reader := newCSVReader(r)
	report := &LoadReport{Source: source}

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []*InsecurityStat{}, report, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	if len(first) == 1 {
		// title line, the header follows
		if _, err := reader.Read(); err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("reading header: %w", err)
		}
	}

	stats := []*InsecurityStat{}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.reject(parseErr.Line, "%v", parseErr.Err)

				continue
			}

			return nil, nil, fmt.Errorf("reading %s: %w", source, err)
		}

		line, _ := reader.FieldPos(0)

		percent, err := parseNumber("percent", field(record, 1))
		if err != nil {
			report.reject(line, "%v", err)

			continue
		}

		point, err := parsePoint(field(record, 2), field(record, 3))
		if err != nil {
			report.reject(line, "%v", err)

			continue
		}

		stats = append(stats, &InsecurityStat{
			Region:  field(record, 0),
			Percent: percent,
			Point:   point,
			Trend:   TrendNA,
		})
	}

	report.Accepted = len(stats)

	return stats, report, nil
}

// LoadNeedPointsFile opens path and loads its need points.
func LoadNeedPointsFile(path string) ([]*NeedPoint, *LoadReport, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return nil, nil, fmt.Errorf("opening need points: %w", err)
	}
	defer f.Close()

	return LoadNeedPoints(f, path)
}

// LoadInsecurityStatsFile opens path and loads its statistics.
func LoadInsecurityStatsFile(path string) ([]*InsecurityStat, *LoadReport, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return nil, nil, fmt.Errorf("opening insecurity stats: %w", err)
	}
	defer f.Close()

	return LoadInsecurityStats(f, path)
}
