package services

import (
	"context"
	"errors"
	"math"
	"testing"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/platform/config"
)

var testShippingConfig = config.ShippingConfig{
	OriginLat:    -33.4417,
	OriginLon:    -70.6400,
	FreeRadiusKm: 5.0,
	StandardFee:  3000,
}

type stubResolver struct {
	resolveFn func(ctx context.Context, address string) (domain.Coordinate, error)
}

func (s *stubResolver) Resolve(ctx context.Context, address string) (domain.Coordinate, error) {
	return s.resolveFn(ctx, address)
}

func TestHaversineZeroDistance(t *testing.T) {
	origin := domain.Coordinate{Lat: -33.4417, Lon: -70.6400}
	if d := Haversine(origin, origin); d != 0 {
		t.Fatalf("distance = %f, want 0", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := domain.Coordinate{Lat: -33.4417, Lon: -70.6400}
	b := domain.Coordinate{Lat: -33.0472, Lon: -71.6127}
	if da, db := Haversine(a, b), Haversine(b, a); math.Abs(da-db) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", da, db)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Santiago to Valparaíso is roughly 100 km in a straight line.
	santiago := domain.Coordinate{Lat: -33.4417, Lon: -70.6400}
	valparaiso := domain.Coordinate{Lat: -33.0472, Lon: -71.6127}
	d := Haversine(santiago, valparaiso)
	if d < 95 || d > 105 {
		t.Fatalf("distance = %f, want about 100", d)
	}
}

func TestQuoteForCoordinateWithinRadius(t *testing.T) {
	svc, err := NewShippingService(ShippingServiceDeps{Config: testShippingConfig})
	if err != nil {
		t.Fatalf("NewShippingService returned error: %v", err)
	}

	// About 3 km north of the origin.
	quote := svc.QuoteForCoordinate(context.Background(), domain.Coordinate{Lat: -33.4147, Lon: -70.6400})
	if quote.Cost != 0 {
		t.Fatalf("cost = %d, want 0", quote.Cost)
	}
	if quote.WithinRadius == nil || !*quote.WithinRadius {
		t.Fatalf("withinRadius = %v, want true", quote.WithinRadius)
	}
	if quote.DistanceKm == nil || *quote.DistanceKm < 2.5 || *quote.DistanceKm > 3.5 {
		t.Fatalf("distance = %v, want about 3", quote.DistanceKm)
	}
}

func TestQuoteForCoordinateBeyondRadius(t *testing.T) {
	svc, err := NewShippingService(ShippingServiceDeps{Config: testShippingConfig})
	if err != nil {
		t.Fatalf("NewShippingService returned error: %v", err)
	}

	// About 8 km north of the origin.
	quote := svc.QuoteForCoordinate(context.Background(), domain.Coordinate{Lat: -33.3697, Lon: -70.6400})
	if quote.Cost != 3000 {
		t.Fatalf("cost = %d, want 3000", quote.Cost)
	}
	if quote.WithinRadius == nil || *quote.WithinRadius {
		t.Fatalf("withinRadius = %v, want false", quote.WithinRadius)
	}
}

func TestQuoteForCoordinateBoundaryIsFree(t *testing.T) {
	svc, err := NewShippingService(ShippingServiceDeps{Config: testShippingConfig})
	if err != nil {
		t.Fatalf("NewShippingService returned error: %v", err)
	}

	// One degree of latitude is about 111.195 km, so this destination sits
	// almost exactly on the 5 km circle, a hair inside it.
	delta := 4.9999 / (earthRadiusKm * math.Pi / 180)
	quote := svc.QuoteForCoordinate(context.Background(), domain.Coordinate{
		Lat: testShippingConfig.OriginLat + delta,
		Lon: testShippingConfig.OriginLon,
	})
	if quote.Cost != 0 {
		t.Fatalf("cost = %d, want 0 at the radius boundary", quote.Cost)
	}
}

func TestQuoteForUserPrefersStoredCoordinates(t *testing.T) {
	resolver := &stubResolver{
		resolveFn: func(context.Context, string) (domain.Coordinate, error) {
			t.Fatal("resolver should not be called when coordinates are stored")
			return domain.Coordinate{}, nil
		},
	}
	svc, err := NewShippingService(ShippingServiceDeps{Config: testShippingConfig, Resolver: resolver})
	if err != nil {
		t.Fatalf("NewShippingService returned error: %v", err)
	}

	lat, lon := -33.4147, -70.6400
	quote := svc.QuoteForUser(context.Background(), domain.User{
		Address: "Alameda 1000, Santiago",
		Lat:     &lat,
		Lon:     &lon,
	})
	if quote.Cost != 0 {
		t.Fatalf("cost = %d, want 0", quote.Cost)
	}
}

func TestQuoteForUserGeocodesAddress(t *testing.T) {
	resolver := &stubResolver{
		resolveFn: func(_ context.Context, address string) (domain.Coordinate, error) {
			if address != "Av. Apoquindo 3000, Las Condes" {
				t.Fatalf("resolver received address %q", address)
			}
			return domain.Coordinate{Lat: -33.3697, Lon: -70.6400}, nil
		},
	}
	svc, err := NewShippingService(ShippingServiceDeps{Config: testShippingConfig, Resolver: resolver})
	if err != nil {
		t.Fatalf("NewShippingService returned error: %v", err)
	}

	quote := svc.QuoteForUser(context.Background(), domain.User{
		Address: "Av. Apoquindo 3000, Las Condes",
	})
	if quote.Cost != 3000 {
		t.Fatalf("cost = %d, want 3000", quote.Cost)
	}
	if quote.DistanceKm == nil {
		t.Fatal("distance should be set after successful geocoding")
	}
}

func TestQuoteForUserGeocodeFailureFallsBack(t *testing.T) {
	resolver := &stubResolver{
		resolveFn: func(context.Context, string) (domain.Coordinate, error) {
			return domain.Coordinate{}, errors.New("nominatim timeout")
		},
	}
	svc, err := NewShippingService(ShippingServiceDeps{Config: testShippingConfig, Resolver: resolver})
	if err != nil {
		t.Fatalf("NewShippingService returned error: %v", err)
	}

	quote := svc.QuoteForUser(context.Background(), domain.User{Address: "nowhere"})
	if quote.Cost != 3000 {
		t.Fatalf("cost = %d, want the standard fee", quote.Cost)
	}
	if quote.DistanceKm != nil || quote.WithinRadius != nil {
		t.Fatalf("distance fields should be empty on fallback, got %v / %v", quote.DistanceKm, quote.WithinRadius)
	}
}

func TestQuoteForUserNoLocation(t *testing.T) {
	svc, err := NewShippingService(ShippingServiceDeps{Config: testShippingConfig})
	if err != nil {
		t.Fatalf("NewShippingService returned error: %v", err)
	}

	quote := svc.QuoteForUser(context.Background(), domain.User{})
	if quote.Cost != 3000 {
		t.Fatalf("cost = %d, want the standard fee", quote.Cost)
	}
}

func TestNewShippingServiceRejectsInvalidConfig(t *testing.T) {
	if _, err := NewShippingService(ShippingServiceDeps{Config: config.ShippingConfig{FreeRadiusKm: 0}}); err == nil {
		t.Fatal("expected error for zero radius")
	}
	if _, err := NewShippingService(ShippingServiceDeps{Config: config.ShippingConfig{FreeRadiusKm: 5, StandardFee: -1}}); err == nil {
		t.Fatal("expected error for negative fee")
	}
}
