package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/geocoding"
	"github.com/libre-rico/api/internal/platform/config"
)

const earthRadiusKm = 6371.0

// ShippingServiceDeps bundles collaborators required to construct the shipping service.
type ShippingServiceDeps struct {
	Config   config.ShippingConfig
	Resolver geocoding.Resolver
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type shippingService struct {
	origin      domain.Coordinate
	radiusKm    float64
	standardFee int64
	resolver    geocoding.Resolver
	logger      func(context.Context, string, map[string]any)
}

// NewShippingService wires dependencies into a concrete ShippingService implementation.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Config.FreeRadiusKm <= 0 {
		return nil, errors.New("shipping service: free radius must be positive")
	}
	if deps.Config.StandardFee < 0 {
		return nil, errors.New("shipping service: standard fee must not be negative")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &shippingService{
		origin:      domain.Coordinate{Lat: deps.Config.OriginLat, Lon: deps.Config.OriginLon},
		radiusKm:    deps.Config.FreeRadiusKm,
		standardFee: deps.Config.StandardFee,
		resolver:    deps.Resolver,
		logger:      logger,
	}, nil
}

// Haversine computes the great-circle distance between two coordinates in kilometres.
func Haversine(a, b domain.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func (s *shippingService) QuoteForCoordinate(_ context.Context, destination domain.Coordinate) ShippingQuote {
	distance := Haversine(s.origin, destination)
	within := distance <= s.radiusKm
	// Rounding is presentational only; the radius check uses the exact distance.
	rounded := math.Round(distance*100) / 100

	quote := ShippingQuote{
		DistanceKm:   &rounded,
		WithinRadius: &within,
	}
	if within {
		quote.Cost = 0
		quote.Message = fmt.Sprintf("free delivery within %.1f km of the store", s.radiusKm)
	} else {
		quote.Cost = s.standardFee
		quote.Message = fmt.Sprintf("destination is %.2f km away, standard delivery fee applies", rounded)
	}
	return quote
}

func (s *shippingService) QuoteForUser(ctx context.Context, user domain.User) ShippingQuote {
	if user.Lat != nil && user.Lon != nil {
		return s.QuoteForCoordinate(ctx, domain.Coordinate{Lat: *user.Lat, Lon: *user.Lon})
	}

	if s.resolver != nil && user.Address != "" {
		start := time.Now()
		coord, err := s.resolver.Resolve(ctx, user.Address)
		if err == nil {
			return s.QuoteForCoordinate(ctx, coord)
		}
		s.logger(ctx, "shipping.geocode.failed", map[string]any{
			"user":    user.ID,
			"error":   err.Error(),
			"elapsed": time.Since(start).String(),
		})
	}

	// No usable location: charge the standard fee rather than failing the order.
	return ShippingQuote{
		Cost:    s.standardFee,
		Message: "address could not be resolved, standard delivery fee applies",
	}
}
