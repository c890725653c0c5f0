package services

import (
	"context"
	"time"

	domain "github.com/libre-rico/api/internal/domain"
)

// ShippingQuote captures the outcome of a delivery pricing calculation.
type ShippingQuote struct {
	Cost         int64
	DistanceKm   *float64
	WithinRadius *bool
	Message      string
}

// ShippingService prices deliveries against the store's free-shipping radius.
type ShippingService interface {
	// QuoteForCoordinate prices a delivery to known coordinates.
	QuoteForCoordinate(ctx context.Context, destination domain.Coordinate) ShippingQuote
	// QuoteForUser resolves the user's location, geocoding their street address
	// when no stored coordinates exist, and prices the delivery. Resolution
	// failures degrade to the standard fee with no distance information.
	QuoteForUser(ctx context.Context, user domain.User) ShippingQuote
}

// CouponService resolves whitelisted discount codes.
type CouponService interface {
	Resolve(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context) []domain.Coupon
}

// CreateOrderCommand carries the inputs for placing an order. Line items are
// never supplied by the caller; the order snapshots the user's stored cart.
type CreateOrderCommand struct {
	UserID           string
	CouponCode       string
	Discount         *int64
	ExplicitFee      *int64
	Address          string
	PaymentMethodRef string
}

// PayOrderCommand carries the inputs for settling an order. The payment method
// reference is optional; when present it must belong to the order's owner.
type PayOrderCommand struct {
	OrderID          string
	PaymentMethodRef string
	PaymentLabel     string
}

// OrderService owns the order lifecycle.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	Pay(ctx context.Context, cmd PayOrderCommand) (domain.Order, error)
	Cancel(ctx context.Context, orderID string) (domain.Order, error)
	ShippingEstimate(ctx context.Context, userID string) (ShippingQuote, error)
}

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	EventType  string    `json:"event_type"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Total      int64     `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// AddCartItemCommand carries the inputs for adding a cart line.
type AddCartItemCommand struct {
	UserID    string
	Name      string
	UnitPrice int64
	Quantity  int
	ImageRef  string
}

// CartService owns per-user shopping carts.
type CartService interface {
	AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.CartItem, error)
	List(ctx context.Context, userID string) ([]domain.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (domain.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

// RegisterUserCommand carries the inputs for creating an account.
type RegisterUserCommand struct {
	Email      string
	Username   string
	Password   string
	FirstNames string
	LastNames  string
	RUT        string
	Phone      string
	Address    string
	Lat        *float64
	Lon        *float64
}

// UpdateUserCommand carries the mutable profile fields.
type UpdateUserCommand struct {
	UserID     string
	Username   *string
	FirstNames *string
	LastNames  *string
	Phone      *string
	Address    *string
	Lat        *float64
	Lon        *float64
}

// UserService owns customer accounts and the password recovery flow.
type UserService interface {
	Register(ctx context.Context, cmd RegisterUserCommand) (domain.User, error)
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	Get(ctx context.Context, userID string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, cmd UpdateUserCommand) (domain.User, error)
	Delete(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ValidateEmail(ctx context.Context, email string) (bool, error)
	RequestRecovery(ctx context.Context, email string) (domain.RecoveryToken, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// ProductCommand carries catalogue fields for create and update.
type ProductCommand struct {
	ID          string
	Name        string
	Description string
	Price       int64
	ImageRef    string
	Category    string
}

// ProductService owns the catalogue.
type ProductService interface {
	Create(ctx context.Context, cmd ProductCommand) (domain.Product, error)
	Get(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Update(ctx context.Context, cmd ProductCommand) (domain.Product, error)
	Delete(ctx context.Context, productID string) error
}

// AddFavoriteCommand carries the inputs for saving a favourite.
type AddFavoriteCommand struct {
	UserID      string
	ProductName string
	Price       int64
	ImageRef    string
}

// FavoriteService owns per-user favourite products.
type FavoriteService interface {
	Add(ctx context.Context, cmd AddFavoriteCommand) (domain.Favorite, error)
	List(ctx context.Context, userID string) ([]domain.Favorite, error)
	Remove(ctx context.Context, userID, favoriteID string) error
	Clear(ctx context.Context, userID string) error
}

// AddPaymentMethodCommand carries the raw card details submitted by the client.
// The number is masked before anything is persisted.
type AddPaymentMethodCommand struct {
	UserID string
	Kind   string
	Holder string
	Brand  string
	Expiry string
	Number string
}

// UpdatePaymentMethodCommand carries the editable payment method fields.
type UpdatePaymentMethodCommand struct {
	UserID   string
	MethodID string
	Holder   *string
	Brand    *string
	Expiry   *string
}

// PaymentMethodService owns tokenised payment instruments.
type PaymentMethodService interface {
	Add(ctx context.Context, cmd AddPaymentMethodCommand) (domain.PaymentMethod, error)
	Get(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error)
	List(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	Update(ctx context.Context, cmd UpdatePaymentMethodCommand) (domain.PaymentMethod, error)
	Delete(ctx context.Context, userID, methodID string) error
}

// EmployeeCommand carries staff fields for create and update.
type EmployeeCommand struct {
	ID     string
	Name   string
	Email  string
	RUT    string
	Role   string
	Status string
}

// EmployeeService owns staff records.
type EmployeeService interface {
	Create(ctx context.Context, cmd EmployeeCommand) (domain.Employee, error)
	Get(ctx context.Context, employeeID string) (domain.Employee, error)
	List(ctx context.Context) ([]domain.Employee, error)
	Update(ctx context.Context, cmd EmployeeCommand) (domain.Employee, error)
	Delete(ctx context.Context, employeeID string) error
}

// SystemService surfaces runtime health information.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}
