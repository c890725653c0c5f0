package geocoding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/libre-rico/api/internal/platform/config"
)

func newTestClient(baseURL string) *NominatimClient {
	return NewNominatimClient(config.GeocodingConfig{
		BaseURL:     baseURL,
		CountryCode: "cl",
		Timeout:     2 * time.Second,
		UserAgent:   "librerico-test/0.1",
	})
}

func TestNominatimClientResolvesAddress(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":            r.URL.Query().Get("q"),
			"format":       r.URL.Query().Get("format"),
			"limit":        r.URL.Query().Get("limit"),
			"countrycodes": r.URL.Query().Get("countrycodes"),
		}
		if ua := r.Header.Get("User-Agent"); ua != "librerico-test/0.1" {
			t.Errorf("unexpected user agent: %s", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"-33.4372","lon":"-70.6506","display_name":"Santiago"}]`))
	}))
	defer srv.Close()

	coord, err := newTestClient(srv.URL).Resolve(context.Background(), "Alameda 1111, Santiago")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if coord.Lat != -33.4372 || coord.Lon != -70.6506 {
		t.Errorf("unexpected coordinate: %+v", coord)
	}
	if gotQuery["q"] != "Alameda 1111, Santiago" {
		t.Errorf("unexpected q param: %s", gotQuery["q"])
	}
	if gotQuery["format"] != "json" || gotQuery["limit"] != "1" {
		t.Errorf("unexpected query params: %v", gotQuery)
	}
	if gotQuery["countrycodes"] != "cl" {
		t.Errorf("unexpected countrycodes: %s", gotQuery["countrycodes"])
	}
}

func TestNominatimClientNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Resolve(context.Background(), "nowhere at all")
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestNominatimClientEmptyAddress(t *testing.T) {
	_, err := newTestClient("http://unused.invalid").Resolve(context.Background(), "   ")
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestNominatimClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Resolve(context.Background(), "Alameda 1111")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if errors.Is(err, ErrAddressNotFound) {
		t.Fatal("server errors must not be reported as missing addresses")
	}
}
