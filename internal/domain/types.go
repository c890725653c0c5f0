package domain

import "time"

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// LineItem is a cart item snapshot captured on an order at creation time.
type LineItem struct {
	Name      string
	UnitPrice int64
	Quantity  int
	ImageRef  string
}

// Order is the persisted order entity. Orders are never deleted; paid and
// cancelled are terminal states.
type Order struct {
	ID          string
	UserID      string
	Items       []LineItem
	Subtotal    int64
	Discount    int64
	ShippingFee int64
	Total       int64
	Status      OrderStatus

	PaymentMethodRef   string
	PaymentMethodLabel string
	CouponCode         string

	ShippingAddress  string
	DistanceKm       *float64
	WithinFreeRadius *bool

	CreatedAt   time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time
}

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// ShippingQuote is the ephemeral result of a shipping cost computation. It is
// produced fresh on every request and never persisted on its own.
type ShippingQuote struct {
	Cost         int64
	DistanceKm   *float64
	WithinRadius *bool
	Message      string
}

// CartItem is a mutable cart entry owned by a user.
type CartItem struct {
	ID        string
	UserID    string
	Name      string
	UnitPrice int64
	Quantity  int
	ImageRef  string
	AddedAt   time.Time
}

// User is a registered customer account. The password is stored as a digest;
// plaintext never reaches the repository layer.
type User struct {
	ID           string
	Email        string
	Username     string
	FirstNames   string
	LastNames    string
	RUT          string
	Phone        string
	Address      string
	Lat          *float64
	Lon          *float64
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PaymentMethod is a masked payment instrument stored per user. Only the
// masked representation and last four digits are ever persisted.
type PaymentMethod struct {
	ID           string
	Kind         string
	Holder       string
	Brand        string
	Expiry       string
	MaskedNumber string
	Last4        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Product is a catalog entry.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	ImageRef    string
	Category    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Favorite marks a product saved by a user, deduplicated by product name.
type Favorite struct {
	ID          string
	UserID      string
	ProductName string
	Price       int64
	ImageRef    string
	AddedAt     time.Time
}

// Employee is a staff record for the employee portal.
type Employee struct {
	ID        string
	Name      string
	Email     string
	RUT       string
	Role      string
	Status    string
	CreatedAt time.Time
}

// CouponType classifies the effect a coupon has on an order.
type CouponType string

const (
	CouponFreeShipping CouponType = "free_shipping"
	CouponPercent      CouponType = "percent"
	CouponFixed        CouponType = "fixed"
)

// Coupon describes the effect of a whitelisted discount code.
type Coupon struct {
	Code  string
	Type  CouponType
	Value int64
	Label string
}

// RecoveryToken is a single-use password recovery token with an expiry.
type RecoveryToken struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// HealthStatus reflects the state of a dependency or the system as a whole.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// SystemHealthCheck captures the outcome of a single dependency probe.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates all dependency probe results.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
