// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zerohunger/connect/spatial"
)

// DefaultNominatimURL is the public OpenStreetMap search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// NominatimProvider queries an OpenStreetMap Nominatim instance.
type NominatimProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewNominatimProvider creates a provider against baseURL (DefaultNominatimURL
// when empty). The client is expected to carry a User-Agent.
func NewNominatimProvider(baseURL string, client *http.Client) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &NominatimProvider{baseURL: baseURL, httpClient: client}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string {
	return "nominatim"
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search implements Provider.
func (p *NominatimProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		if ctx.Err() != nil {
			return nil, Classify(ctx.Err())
		}

		return nil, &GeocodingError{Type: ErrorTypeDecode, Message: "decoding nominatim response", Err: err}
	}

	candidates := make([]Candidate, 0, len(places))

	for _, place := range places {
		c, err := place.candidate()
		if err != nil {
			log.Printf("⚠️ nominatim: skipping %q: %v", place.DisplayName, err)

			continue
		}

		candidates = append(candidates, c)
	}

	return candidates, nil
}

func (n nominatimPlace) candidate() (Candidate, error) {
	lat, err := strconv.ParseFloat(n.Lat, 64)
	if err != nil {
		return Candidate{}, fmt.Errorf("bad lat %q: %w", n.Lat, err)
	}

	lng, err := strconv.ParseFloat(n.Lon, 64)
	if err != nil {
		return Candidate{}, fmt.Errorf("bad lon %q: %w", n.Lon, err)
	}

	pt := spatial.Point{Lat: lat, Lng: lng}
	if err := pt.Validate(); err != nil {
		return Candidate{}, err
	}

	return Candidate{Label: n.DisplayName, Point: pt}, nil
}
