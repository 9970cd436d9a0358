// Copyright 2025 The ZeroHunger Connect Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/zerohunger/connect/spatial"
)

// DefaultGoogleMapsURL is the Google Maps Geocoding endpoint.
const DefaultGoogleMapsURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsProvider uses the Google Maps Geocoding API.
type GoogleMapsProvider struct {
	apiKey     string
	region     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleMapsProvider creates a new Google Maps provider. region is a
// ccTLD bias such as "ca"; it may be empty.
func NewGoogleMapsProvider(apiKey, region string, client *http.Client) *GoogleMapsProvider {
	if client == nil {
		client = http.DefaultClient
	}

	return &GoogleMapsProvider{
		apiKey:     apiKey,
		region:     region,
		baseURL:    DefaultGoogleMapsURL,
		httpClient: client,
	}
}

// WithBaseURL points the provider at another endpoint.
func (g *GoogleMapsProvider) WithBaseURL(baseURL string) *GoogleMapsProvider {
	g.baseURL = baseURL

	return g
}

// Name implements Provider.
func (g *GoogleMapsProvider) Name() string {
	return "google_maps"
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// Search implements Provider.
func (g *GoogleMapsProvider) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if g.apiKey == "" {
		return nil, &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "google maps API key not configured"}
	}

	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)

	if g.region != "" {
		params.Set("region", g.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode)
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeDecode, Message: "decoding google maps response", Err: err}
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []Candidate{}, nil
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT", "REQUEST_DENIED":
		return nil, &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "google maps status: " + gmResp.Status + " " + gmResp.ErrorMessage}
	case "INVALID_REQUEST":
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "google maps status: " + gmResp.Status}
	default:
		return nil, &GeocodingError{Type: ErrorTypeUnknown, Message: "google maps status: " + gmResp.Status}
	}

	candidates := make([]Candidate, 0, min(limit, len(gmResp.Results)))

	for _, r := range gmResp.Results {
		if len(candidates) == limit {
			break
		}

		pt := spatial.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		if pt.Validate() != nil {
			continue
		}

		candidates = append(candidates, Candidate{Label: r.FormattedAddress, Point: pt})
	}

	return candidates, nil
}
