package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/libre-rico/api/internal/di"
	"github.com/libre-rico/api/internal/handlers"
	"github.com/libre-rico/api/internal/platform/config"
	pfirestore "github.com/libre-rico/api/internal/platform/firestore"
	"github.com/libre-rico/api/internal/platform/jobs"
	"github.com/libre-rico/api/internal/platform/observability"
	"github.com/libre-rico/api/internal/platform/requestctx"
	firestoreRepo "github.com/libre-rico/api/internal/repositories/firestore"
	"github.com/libre-rico/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Close(closeCtx); err != nil {
			logger.Warn("failed to close firestore client", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(provider)
	if err != nil {
		logger.Fatal("failed to build repositories", zap.Error(err))
	}

	var events services.OrderEventPublisher
	if cfg.Features.EnableOrderEvents && cfg.PubSub.OrderEventsTopic != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("failed to close pubsub client", zap.Error(err))
			}
		}()

		publisher, err := jobs.NewPubSubOrderEventPublisher(pubsubClient.Topic(cfg.PubSub.OrderEventsTopic))
		if err != nil {
			logger.Fatal("failed to build order event publisher", zap.Error(err))
		}
		events = publisher
	}

	container, err := di.NewContainer(ctx, cfg, registry, di.ContainerOptions{
		Events: events,
		Logger: serviceEventLogger(logger.Named("services")),
	})
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}

	orderHandlers := handlers.NewOrderHandlers(container.Services.Orders)
	cartHandlers := handlers.NewCartHandlers(container.Services.Cart)
	userHandlers := handlers.NewUserHandlers(container.Services.Users)
	productHandlers := handlers.NewProductHandlers(container.Services.Products)
	favoriteHandlers := handlers.NewFavoriteHandlers(container.Services.Favorites)
	paymentMethodHandlers := handlers.NewPaymentMethodHandlers(container.Services.PaymentMethods)
	employeeHandlers := handlers.NewEmployeeHandlers(container.Services.Employees)
	couponHandlers := handlers.NewCouponHandlers(container.Services.Coupons)
	healthHandlers := handlers.NewHealthHandlers(container.Services.System)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithUserRoutes(userHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithFavoriteRoutes(favoriteHandlers.Routes),
		handlers.WithPaymentMethodRoutes(paymentMethodHandlers.Routes),
		handlers.WithEmployeeRoutes(employeeHandlers.Routes),
	}
	if cfg.Features.EnableCoupons {
		opts = append(opts, handlers.WithCouponRoutes(couponHandlers.Routes))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("libre-rico api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// serviceEventLogger adapts the zap logger to the map-based event callback the
// service layer expects. Events raised inside a request reuse the
// request-scoped logger so they carry the request and trace identifiers.
func serviceEventLogger(fallback *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := observability.FromContext(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
