package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPGeocoder queries a Nominatim-compatible search endpoint.
type HTTPGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
	log       *slog.Logger
}

// NewHTTPGeocoder builds a geocoder for baseURL. A zero timeout falls back to 10s.
func NewHTTPGeocoder(baseURL, userAgent string, timeout time.Duration, log *slog.Logger) *HTTPGeocoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = "astro-bot/1.0"
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone,omitempty"`
}

// Resolve implements Geocoder.
func (g *HTTPGeocoder) Resolve(ctx context.Context, place string) (*Location, error) {
	q := strings.TrimSpace(place)
	if q == "" {
		return nil, ErrNotFound
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.log.WarnContext(ctx, "geocoder returned non-200", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return nil, fmt.Errorf("geo: unexpected status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("geo: decode response: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geo: parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geo: parse lon: %w", err)
	}

	return &Location{
		Name:      results[0].DisplayName,
		Latitude:  lat,
		Longitude: lon,
		Timezone:  results[0].Timezone,
	}, nil
}
