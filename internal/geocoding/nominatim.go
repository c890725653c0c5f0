package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/platform/config"
)

// ErrAddressNotFound indicates the geocoder returned no candidates for the address.
var ErrAddressNotFound = errors.New("geocoding: address not found")

// Resolver turns a free-form street address into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, address string) (domain.Coordinate, error)
}

// NominatimClient resolves addresses against the OpenStreetMap Nominatim search endpoint.
type NominatimClient struct {
	httpClient  *http.Client
	baseURL     string
	countryCode string
	userAgent   string
}

// NewNominatimClient constructs a client using the supplied configuration.
func NewNominatimClient(cfg config.GeocodingConfig) *NominatimClient {
	return &NominatimClient{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimSpace(cfg.BaseURL),
		countryCode: strings.TrimSpace(cfg.CountryCode),
		userAgent:   strings.TrimSpace(cfg.UserAgent),
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve queries the geocoder and returns the best candidate's coordinates.
// A response without candidates yields ErrAddressNotFound.
func (c *NominatimClient) Resolve(ctx context.Context, address string) (domain.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Coordinate{}, ErrAddressNotFound
	}

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoding: parse base url: %w", err)
	}

	query := endpoint.Query()
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	if c.countryCode != "" {
		query.Set("countrycodes", c.countryCode)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoding: build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoding: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Coordinate{}, fmt.Errorf("geocoding: unexpected status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoding: decode response: %w", err)
	}
	if len(results) == 0 {
		return domain.Coordinate{}, ErrAddressNotFound
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lat), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoding: parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(results[0].Lon), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("geocoding: parse longitude: %w", err)
	}

	return domain.Coordinate{Lat: lat, Lon: lon}, nil
}
