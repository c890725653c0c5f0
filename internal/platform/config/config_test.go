package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "librerico-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Shipping.OriginLat != defaultShippingOriginLat {
		t.Errorf("unexpected default origin latitude: %f", cfg.Shipping.OriginLat)
	}
	if cfg.Shipping.OriginLon != defaultShippingOriginLon {
		t.Errorf("unexpected default origin longitude: %f", cfg.Shipping.OriginLon)
	}
	if cfg.Shipping.FreeRadiusKm != defaultShippingFreeRadiusKm {
		t.Errorf("unexpected default free radius: %f", cfg.Shipping.FreeRadiusKm)
	}
	if cfg.Shipping.StandardFee != defaultShippingStandardFee {
		t.Errorf("unexpected default standard fee: %d", cfg.Shipping.StandardFee)
	}
	if cfg.Geocoding.BaseURL != defaultGeocodingBaseURL {
		t.Errorf("unexpected default geocoding url: %s", cfg.Geocoding.BaseURL)
	}
	if cfg.Geocoding.CountryCode != "cl" {
		t.Errorf("unexpected default country code: %s", cfg.Geocoding.CountryCode)
	}
	if cfg.Geocoding.Timeout != 5*time.Second {
		t.Errorf("unexpected default geocoding timeout: %s", cfg.Geocoding.Timeout)
	}
	if cfg.PubSub.ProjectID != "librerico-dev" {
		t.Errorf("expected pubsub project to default to firestore project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != defaultOrderEventsTopic {
		t.Errorf("unexpected default order events topic: %s", cfg.PubSub.OrderEventsTopic)
	}
	if !cfg.Features.EnableCoupons {
		t.Error("expected coupons enabled by default")
	}
	if !cfg.Features.EnableOrderEvents {
		t.Error("expected order events enabled by default")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_READ_TIMEOUT":       "20s",
		"API_SERVER_WRITE_TIMEOUT":      "25s",
		"API_SERVER_IDLE_TIMEOUT":       "2m",
		"API_FIRESTORE_PROJECT_ID":      "librerico-prod",
		"API_FIRESTORE_EMULATOR_HOST":   "localhost:8200",
		"API_SHIPPING_ORIGIN_LAT":       "-36.8201",
		"API_SHIPPING_ORIGIN_LON":       "-73.0444",
		"API_SHIPPING_FREE_RADIUS_KM":   "8",
		"API_SHIPPING_STANDARD_FEE":     "4500",
		"API_GEOCODING_BASE_URL":        "https://geo.example.com/search",
		"API_GEOCODING_COUNTRY_CODE":    "AR",
		"API_GEOCODING_TIMEOUT":         "3s",
		"API_GEOCODING_USER_AGENT":      "librerico-test/0.1",
		"API_PUBSUB_PROJECT_ID":         "librerico-events",
		"API_PUBSUB_ORDER_EVENTS_TOPIC": "orders-out",
		"API_FEATURE_COUPONS":           "false",
		"API_FEATURE_ORDER_EVENTS":      "off",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.EmulatorHost != "localhost:8200" {
		t.Errorf("unexpected emulator host: %s", cfg.Firestore.EmulatorHost)
	}
	if cfg.Shipping.OriginLat != -36.8201 || cfg.Shipping.OriginLon != -73.0444 {
		t.Errorf("unexpected origin: %f,%f", cfg.Shipping.OriginLat, cfg.Shipping.OriginLon)
	}
	if cfg.Shipping.FreeRadiusKm != 8 {
		t.Errorf("unexpected free radius: %f", cfg.Shipping.FreeRadiusKm)
	}
	if cfg.Shipping.StandardFee != 4500 {
		t.Errorf("unexpected standard fee: %d", cfg.Shipping.StandardFee)
	}
	if cfg.Geocoding.CountryCode != "ar" {
		t.Errorf("expected lowercased country code, got %s", cfg.Geocoding.CountryCode)
	}
	if cfg.Geocoding.Timeout != 3*time.Second {
		t.Errorf("unexpected geocoding timeout: %s", cfg.Geocoding.Timeout)
	}
	if cfg.PubSub.ProjectID != "librerico-events" {
		t.Errorf("unexpected pubsub project: %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != "orders-out" {
		t.Errorf("unexpected topic: %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.Features.EnableCoupons {
		t.Error("expected coupons disabled")
	}
	if cfg.Features.EnableOrderEvents {
		t.Error("expected order events disabled")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	env := map[string]string{
		"API_SHIPPING_FREE_RADIUS_KM": "-1",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := validationErr.Fields()
	if len(fields) != 2 {
		t.Fatalf("expected two invalid fields, got %v", fields)
	}
	if fields[0] != "Firestore.ProjectID" {
		t.Errorf("unexpected first field: %s", fields[0])
	}
	if fields[1] != "Shipping.FreeRadiusKm" {
		t.Errorf("unexpected second field: %s", fields[1])
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	contents := "# local overrides\nexport API_FIRESTORE_PROJECT_ID=librerico-local\nAPI_SHIPPING_STANDARD_FEE=\"2500\"\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Firestore.ProjectID != "librerico-local" {
		t.Errorf("unexpected project id: %s", cfg.Firestore.ProjectID)
	}
	if cfg.Shipping.StandardFee != 2500 {
		t.Errorf("unexpected standard fee: %d", cfg.Shipping.StandardFee)
	}
}

func TestEnvMapTakesPrecedenceOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("API_SERVER_PORT=7000\nAPI_FIRESTORE_PROJECT_ID=from-file\n"), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	env := map[string]string{"API_SERVER_PORT": "7100"}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7100" {
		t.Errorf("expected env map value to win, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "from-file" {
		t.Errorf("unexpected project id: %s", cfg.Firestore.ProjectID)
	}
}
