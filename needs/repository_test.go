// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package needs

import (
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, Repository) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	repo := NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return db, repo
}

func TestCreateSchema(t *testing.T) {
	db, _ := setupTestDB(t)
	defer db.Close()

	for _, table := range []string{"need_points", "insecurity"} {
		var name string

		err := db.QueryRow("SELECT table_name FROM information_schema.tables WHERE table_name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s not created", table)
		assert.Equal(t, table, name)
	}
}

func TestNeedPointsRoundTrip(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	points, _, err := LoadNeedPointsFile("testdata/food_banks.csv")
	require.NoError(t, err)

	require.NoError(t, repo.BulkInsertNeedPoints(points))

	count, err := repo.CountNeedPoints()
	require.NoError(t, err)
	assert.Equal(t, len(points), count)

	stored, err := repo.ListNeedPoints()
	require.NoError(t, err)

	if diff := cmp.Diff(points, stored); diff != "" {
		t.Errorf("stored need points mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateNeedPointIDRollsBack(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	points, _, err := LoadNeedPointsFile("testdata/food_banks.csv")
	require.NoError(t, err)

	dup := append(points[:1:1], points[0])

	assert.Error(t, repo.BulkInsertNeedPoints(dup))

	count, err := repo.CountNeedPoints()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTopInsecurity(t *testing.T) {
	db, repo := setupTestDB(t)
	defer db.Close()

	stats, _, err := LoadInsecurityStatsFile("testdata/insecurity.csv")
	require.NoError(t, err)
	require.NoError(t, repo.BulkInsertInsecurity(stats))

	top, err := repo.TopInsecurity(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Northwestern Health Unit", top[0].Region)
	assert.Equal(t, "Toronto Public Health", top[1].Region)

	all, err := repo.TopInsecurity(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLoadCatalog(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	points, err := LoadCatalog(repo, "testdata/food_banks.csv", "testdata/insecurity.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"bank-0", "bank-1", "bank-3", "bank-4"}, ids(points))

	top, err := repo.TopInsecurity(1)
	require.NoError(t, err)
	assert.Equal(t, "Northwestern Health Unit", top[0].Region)
}
