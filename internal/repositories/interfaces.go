package repositories

import (
	"context"
	"time"

	domain "github.com/libre-rico/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Carts() CartRepository
	Users() UserRepository
	Products() ProductRepository
	Favorites() FavoriteRepository
	Employees() EmployeeRepository
	PaymentMethods() PaymentMethodRepository
	RecoveryTokens() RecoveryTokenRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists orders and their lifecycle transitions.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// TransitionStatus atomically moves the order between states. The update is applied
	// only when the stored status matches expected; otherwise the current order is
	// returned alongside a conflict error.
	TransitionStatus(ctx context.Context, orderID string, expected domain.OrderStatus, update OrderStatusUpdate) (domain.Order, error)
}

// OrderStatusUpdate carries the fields mutated during a status transition.
type OrderStatusUpdate struct {
	Status             domain.OrderStatus
	PaymentMethodRef   *string
	PaymentMethodLabel *string
	PaidAt             *time.Time
	CancelledAt        *time.Time
}

// CartRepository stores per-user cart items keyed by product name.
type CartRepository interface {
	AddItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error)
	ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

// UserRepository persists customer accounts.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	FindByRUT(ctx context.Context, rut string) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	Delete(ctx context.Context, userID string) error
	List(ctx context.Context) ([]domain.User, error)
}

// ProductRepository persists the catalogue.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, productID string) error
}

// FavoriteRepository stores per-user favourite products.
type FavoriteRepository interface {
	Add(ctx context.Context, favorite domain.Favorite) (domain.Favorite, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error)
	Remove(ctx context.Context, userID, favoriteID string) error
	Clear(ctx context.Context, userID string) error
}

// EmployeeRepository persists staff records.
type EmployeeRepository interface {
	Insert(ctx context.Context, employee domain.Employee) error
	FindByID(ctx context.Context, employeeID string) (domain.Employee, error)
	FindByRUT(ctx context.Context, rut string) (domain.Employee, error)
	List(ctx context.Context) ([]domain.Employee, error)
	Update(ctx context.Context, employee domain.Employee) (domain.Employee, error)
	Delete(ctx context.Context, employeeID string) error
}

// PaymentMethodRepository stores tokenised payment instruments under each user.
type PaymentMethodRepository interface {
	Insert(ctx context.Context, userID string, method domain.PaymentMethod) error
	FindByID(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error)
	ListByUser(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	Update(ctx context.Context, userID string, method domain.PaymentMethod) (domain.PaymentMethod, error)
	Delete(ctx context.Context, userID, methodID string) error
}

// RecoveryTokenRepository stores single-use password recovery tokens.
type RecoveryTokenRepository interface {
	Insert(ctx context.Context, token domain.RecoveryToken) error
	FindByToken(ctx context.Context, token string) (domain.RecoveryToken, error)
	MarkUsed(ctx context.Context, tokenID string) error
}

// HealthRepository evaluates backend connectivity for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
