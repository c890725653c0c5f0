package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/libre-rico/api/internal/platform/firestore"
	"github.com/libre-rico/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	orders         *OrderRepository
	carts          *CartRepository
	users          *UserRepository
	products       *ProductRepository
	favorites      *FavoriteRepository
	employees      *EmployeeRepository
	paymentMethods *PaymentMethodRepository
	recoveryTokens *RecoveryTokenRepository
	health         repositories.HealthRepository
}

// NewRegistry constructs all Firestore repositories sharing a single provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	reg := &Registry{provider: provider}

	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, fmt.Errorf("build cart repository: %w", err)
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, fmt.Errorf("build user repository: %w", err)
	}
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	if reg.favorites, err = NewFavoriteRepository(provider); err != nil {
		return nil, fmt.Errorf("build favorite repository: %w", err)
	}
	if reg.employees, err = NewEmployeeRepository(provider); err != nil {
		return nil, fmt.Errorf("build employee repository: %w", err)
	}
	if reg.paymentMethods, err = NewPaymentMethodRepository(provider); err != nil {
		return nil, fmt.Errorf("build payment method repository: %w", err)
	}
	if reg.recoveryTokens, err = NewRecoveryTokenRepository(provider); err != nil {
		return nil, fmt.Errorf("build recovery token repository: %w", err)
	}

	checks := []repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := provider.Client(ctx)
				return err
			},
		},
	}
	if reg.health, err = repositories.NewDependencyHealthRepository(checks); err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}

	return reg, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Users returns the user repository.
func (r *Registry) Users() repositories.UserRepository { return r.users }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// Favorites returns the favorite repository.
func (r *Registry) Favorites() repositories.FavoriteRepository { return r.favorites }

// Employees returns the employee repository.
func (r *Registry) Employees() repositories.EmployeeRepository { return r.employees }

// PaymentMethods returns the payment method repository.
func (r *Registry) PaymentMethods() repositories.PaymentMethodRepository { return r.paymentMethods }

// RecoveryTokens returns the recovery token repository.
func (r *Registry) RecoveryTokens() repositories.RecoveryTokenRepository { return r.recoveryTokens }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Ensure interface compliance.
var _ repositories.Registry = (*Registry)(nil)
