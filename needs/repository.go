// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package needs

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/zerohunger/connect/utils/textutils"
)

// needsSeparator joins the needs list for binding; the column itself is a
// VARCHAR[].
const needsSeparator = "|"

// Repository keeps the reference datasets in an in-process DuckDB catalogue.
type Repository interface {
	// CreateSchema creates the need_points and insecurity tables
	CreateSchema() error

	// BulkInsertNeedPoints appends need points, preserving their order
	BulkInsertNeedPoints(points []*NeedPoint) error

	// ListNeedPoints returns every need point in insertion order
	ListNeedPoints() ([]*NeedPoint, error)

	// CountNeedPoints returns the number of stored need points
	CountNeedPoints() (int, error)

	// BulkInsertInsecurity appends insecurity statistics
	BulkInsertInsecurity(stats []*InsecurityStat) error

	// TopInsecurity returns the n regions with the highest percent
	TopInsecurity(n int) ([]*InsecurityStat, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlNeedsRepository struct {
	db *sql.DB
}

// NewRepository creates a repository over db.
func NewRepository(db *sql.DB) Repository {
	return &sqlNeedsRepository{db: db}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlNeedsRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlNeedsRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS need_points_seq START 1;

		CREATE TABLE IF NOT EXISTS need_points (
			seq INTEGER PRIMARY KEY DEFAULT nextval('need_points_seq'),
			id VARCHAR NOT NULL UNIQUE,
			name VARCHAR NOT NULL,
			address VARCHAR NOT NULL,
			city VARCHAR NOT NULL,
			description VARCHAR NOT NULL,
			phone VARCHAR NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			needs VARCHAR[] NOT NULL,
			hours VARCHAR NOT NULL,
			h3_res8 UBIGINT
		);

		CREATE SEQUENCE IF NOT EXISTS insecurity_seq START 1;

		CREATE TABLE IF NOT EXISTS insecurity (
			seq INTEGER PRIMARY KEY DEFAULT nextval('insecurity_seq'),
			region VARCHAR NOT NULL,
			percent DOUBLE NOT NULL,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			trend VARCHAR NOT NULL
		);
	`)

	return err
}

func (r *sqlNeedsRepository) BulkInsertNeedPoints(points []*NeedPoint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO need_points(
			id, name, address, city, description, phone,
			lat, lng, needs, hours, h3_res8
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, string_split(?, '` + needsSeparator + `'), ?, ?)
	`)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = rErr
		}

		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(
			p.ID,
			p.Name,
			p.Address,
			p.City,
			p.Description,
			p.Phone,
			p.Point.Lat,
			p.Point.Lng,
			strings.Join(p.Needs, needsSeparator),
			p.Hours,
			p.Cell,
		); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = rErr
			}

			return fmt.Errorf("inserting need point %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

func (r *sqlNeedsRepository) ListNeedPoints() ([]*NeedPoint, error) {
	rows, err := r.db.Query(`
		SELECT id, name, address, city, description, phone,
		       lat, lng, needs, hours, h3_res8
		FROM need_points
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []*NeedPoint{}

	for rows.Next() {
		p := &NeedPoint{}

		var (
			needs any
			cell  sql.NullInt64
		)

		if err := rows.Scan(
			&p.ID, &p.Name, &p.Address, &p.City, &p.Description, &p.Phone,
			&p.Point.Lat, &p.Point.Lng, &needs, &p.Hours, &cell,
		); err != nil {
			return nil, err
		}

		list, ok := textutils.AnyToStringSlice(needs)
		if !ok {
			return nil, fmt.Errorf("unexpected needs column type %T for %s", needs, p.ID)
		}

		for _, n := range list {
			if n != "" {
				p.Needs = append(p.Needs, n)
			}
		}

		if cell.Valid {
			p.Cell = cell.Int64
		}

		points = append(points, p)
	}

	return points, rows.Err()
}

func (r *sqlNeedsRepository) CountNeedPoints() (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM need_points",
	).Scan(&count)

	return count, err
}

func (r *sqlNeedsRepository) BulkInsertInsecurity(stats []*InsecurityStat) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO insecurity(region, percent, lat, lng, trend)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = rErr
		}

		return err
	}
	defer stmt.Close()

	for _, s := range stats {
		if _, err := stmt.Exec(s.Region, s.Percent, s.Point.Lat, s.Point.Lng, string(s.Trend)); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = rErr
			}

			return fmt.Errorf("inserting insecurity for %s: %w", s.Region, err)
		}
	}

	return tx.Commit()
}

func (r *sqlNeedsRepository) TopInsecurity(n int) ([]*InsecurityStat, error) {
	query := `
		SELECT region, percent, lat, lng, trend
		FROM insecurity
		ORDER BY percent DESC, seq
	`

	var args []any
	if n > 0 {
		query += " LIMIT ?"

		args = append(args, n)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []*InsecurityStat{}

	for rows.Next() {
		var (
			s     InsecurityStat
			trend string
		)

		if err := rows.Scan(&s.Region, &s.Percent, &s.Point.Lat, &s.Point.Lng, &trend); err != nil {
			return nil, err
		}

		s.Trend = Trend(trend)
		stats = append(stats, &s)
	}

	return stats, rows.Err()
}

// LoadCatalog reads both CSV files into repo and returns the need points read
// back in insertion order. insecurityPath may be empty.
func LoadCatalog(repo Repository, needsPath, insecurityPath string) ([]*NeedPoint, error) {
	if err := repo.CreateSchema(); err != nil {
		return nil, fmt.Errorf("creating needs schema: %w", err)
	}

	points, report, err := LoadNeedPointsFile(needsPath)
	if err != nil {
		return nil, err
	}

	report.Log()

	if err := repo.BulkInsertNeedPoints(points); err != nil {
		return nil, fmt.Errorf("storing need points: %w", err)
	}

	if insecurityPath != "" {
		stats, report, err := LoadInsecurityStatsFile(insecurityPath)
		if err != nil {
			return nil, err
		}

		report.Log()

		if err := repo.BulkInsertInsecurity(stats); err != nil {
			return nil, fmt.Errorf("storing insecurity stats: %w", err)
		}
	}

	stored, err := repo.ListNeedPoints()
	if err != nil {
		return nil, fmt.Errorf("listing need points: %w", err)
	}

	return stored, nil
}
