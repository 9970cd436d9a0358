// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/zerohunger/connect/geocode"
	"github.com/zerohunger/connect/metrics"
	"github.com/zerohunger/connect/needs"
	"github.com/zerohunger/connect/utils/httputils"
)

// appOptions are the settings shared by every subcommand.
type appOptions struct {
	NeedsPath       string
	InsecurityPath  string
	Provider        string
	Region          string
	UserAgent       string
	GoogleProject   string
	EnableHTTPTrace bool
}

var options = &appOptions{}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}

	return def
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&options.NeedsPath, "needs", envOr("ZHC_NEEDS_CSV", "data/food_banks.csv"),
		"Food bank CSV (name,address,latitude,longitude)")
	flags.StringVar(&options.InsecurityPath, "insecurity", envOr("ZHC_INSECURITY_CSV", "data/insecurity.csv"),
		"Food insecurity CSV (region,percent,latitude,longitude); empty to skip")
	flags.StringVar(&options.Provider, "provider", envOr("ZHC_GEOCODER", "nominatim"),
		"Address provider: nominatim or google")
	flags.StringVar(&options.Region, "region", geocode.DefaultRegion,
		"Region appended to every address query")
	flags.StringVar(&options.UserAgent, "user-agent", "",
		"User-Agent sent to the address provider")
	flags.StringVar(&options.GoogleProject, "google-project", os.Getenv("GOOGLE_CLOUD_PROJECT"),
		"Project holding the Maps API key when GOOGLE_MAPS_API_KEY is unset")
	flags.BoolVar(&options.EnableHTTPTrace, "http-trace", false,
		"Display provider HTTP requests-responses")
}

// openCatalog loads the reference datasets into an in-memory DuckDB.
func openCatalog() (*sql.DB, needs.Repository, []*needs.NeedPoint, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := needs.NewRepository(db)

	points, err := needs.LoadCatalog(repo, options.NeedsPath, options.InsecurityPath)
	if err != nil {
		db.Close()

		return nil, nil, nil, fmt.Errorf("loading catalog: %w", err)
	}

	log.Printf("📍 %d need points loaded from %s", len(points), options.NeedsPath)

	return db, repo, points, nil
}

func googleMapsKey() string {
	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey != "" {
		return apiKey
	}

	log.Println("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	apiKey, err := geocode.APIKeyFromADC(ctx, options.GoogleProject)
	if err != nil {
		log.Printf("Failed to retrieve API key via ADC: %v", err)

		return ""
	}

	log.Println("✅ Successfully retrieved Google Maps API Key via ADC")

	return apiKey
}

func newProvider() (geocode.Provider, error) {
	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = fmt.Sprintf("zhc/%s (+https://github.com/zerohunger/connect)", Version)
	}

	clientOpts := httputils.ClientOptions{UserAgent: userAgent}
	if options.EnableHTTPTrace {
		clientOpts.Trace = os.Stderr
	}

	switch options.Provider {
	case "nominatim":
		clientOpts.MinInterval = time.Second

		return geocode.NewNominatimProvider("", httputils.NewClient(clientOpts)), nil
	case "google":
		return geocode.NewGoogleMapsProvider(googleMapsKey(), "ca", httputils.NewClient(clientOpts)), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want nominatim or google)", options.Provider)
	}
}

func newResolver(m *metrics.Metrics) (*geocode.Resolver, error) {
	provider, err := newProvider()
	if err != nil {
		return nil, err
	}

	log.Printf("📍 Geocoding: %s (%s)", provider.Name(), options.Region)

	return geocode.NewResolver(provider, geocode.ResolverOptions{Region: options.Region, Metrics: m}), nil
}
