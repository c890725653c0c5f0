package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libre-rico/api/internal/geocoding"
	"github.com/libre-rico/api/internal/platform/config"
	"github.com/libre-rico/api/internal/repositories"
	"github.com/libre-rico/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders         services.OrderService
	Shipping       services.ShippingService
	Coupons        services.CouponService
	Cart           services.CartService
	Users          services.UserService
	Products       services.ProductService
	Favorites      services.FavoriteService
	PaymentMethods services.PaymentMethodService
	Employees      services.EmployeeService
	System         services.SystemService
}

// ContainerOptions carries optional infrastructure that the container cannot
// derive from configuration alone.
type ContainerOptions struct {
	// Events receives order lifecycle messages. Nil disables publishing.
	Events services.OrderEventPublisher
	// Resolver overrides the geocoder built from configuration. Tests use this
	// to avoid network calls.
	Resolver geocoding.Resolver
	// Logger receives service-level events. Nil discards them.
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ContainerOptions) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, opts)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts ContainerOptions) (Services, error) {
	var svc Services

	resolver := opts.Resolver
	if resolver == nil {
		resolver = geocoding.NewNominatimClient(cfg.Geocoding)
	}

	shippingSvc, err := services.NewShippingService(services.ShippingServiceDeps{
		Config:   cfg.Shipping,
		Resolver: resolver,
		Logger:   opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping service: %w", err)
	}
	svc.Shipping = shippingSvc

	if cfg.Features.EnableCoupons {
		svc.Coupons = services.NewCouponService()
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:         reg.Orders(),
		Users:          reg.Users(),
		Carts:          reg.Carts(),
		PaymentMethods: reg.PaymentMethods(),
		Shipping:       shippingSvc,
		Coupons:        svc.Coupons,
		Clock:          time.Now,
		Events:         opts.Events,
		Logger:         opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts: reg.Carts(),
		Clock: time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:          reg.Users(),
		RecoveryTokens: reg.RecoveryTokens(),
		Clock:          time.Now,
		Logger:         opts.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = userSvc

	productSvc, err := services.NewProductService(services.ProductServiceDeps{
		Products: reg.Products(),
		Clock:    time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build product service: %w", err)
	}
	svc.Products = productSvc

	favoriteSvc, err := services.NewFavoriteService(services.FavoriteServiceDeps{
		Favorites: reg.Favorites(),
		Clock:     time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build favorite service: %w", err)
	}
	svc.Favorites = favoriteSvc

	paymentSvc, err := services.NewPaymentMethodService(services.PaymentMethodServiceDeps{
		PaymentMethods: reg.PaymentMethods(),
		Clock:          time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment method service: %w", err)
	}
	svc.PaymentMethods = paymentSvc

	employeeSvc, err := services.NewEmployeeService(services.EmployeeServiceDeps{
		Employees: reg.Employees(),
		Clock:     time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build employee service: %w", err)
	}
	svc.Employees = employeeSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{Health: healthRepo})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
