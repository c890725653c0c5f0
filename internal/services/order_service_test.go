package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/repositories"
)

type repoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e repoError) Error() string       { return "repository error" }
func (e repoError) IsNotFound() bool    { return e.notFound }
func (e repoError) IsConflict() bool    { return e.conflict }
func (e repoError) IsUnavailable() bool { return e.unavailable }

type stubOrderRepository struct {
	insertFn     func(ctx context.Context, order domain.Order) error
	findByIDFn   func(ctx context.Context, orderID string) (domain.Order, error)
	listByUserFn func(ctx context.Context, userID string) ([]domain.Order, error)
	transitionFn func(ctx context.Context, orderID string, expected domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn == nil {
		return errors.New("unexpected Insert call")
	}
	return s.insertFn(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn == nil {
		return domain.Order{}, errors.New("unexpected FindByID call")
	}
	return s.findByIDFn(ctx, orderID)
}

func (s *stubOrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if s.listByUserFn == nil {
		return nil, errors.New("unexpected ListByUser call")
	}
	return s.listByUserFn(ctx, userID)
}

func (s *stubOrderRepository) TransitionStatus(ctx context.Context, orderID string, expected domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	if s.transitionFn == nil {
		return domain.Order{}, errors.New("unexpected TransitionStatus call")
	}
	return s.transitionFn(ctx, orderID, expected, update)
}

type stubUserRepository struct {
	findByIDFn func(ctx context.Context, userID string) (domain.User, error)
}

func (s *stubUserRepository) Insert(context.Context, domain.User) error { return nil }
func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findByIDFn == nil {
		return domain.User{}, errors.New("unexpected FindByID call")
	}
	return s.findByIDFn(ctx, userID)
}
func (s *stubUserRepository) FindByEmail(context.Context, string) (domain.User, error) {
	return domain.User{}, errors.New("unexpected FindByEmail call")
}
func (s *stubUserRepository) FindByRUT(context.Context, string) (domain.User, error) {
	return domain.User{}, errors.New("unexpected FindByRUT call")
}
func (s *stubUserRepository) Update(context.Context, domain.User) (domain.User, error) {
	return domain.User{}, errors.New("unexpected Update call")
}
func (s *stubUserRepository) Delete(context.Context, string) error { return nil }
func (s *stubUserRepository) List(context.Context) ([]domain.User, error) {
	return nil, errors.New("unexpected List call")
}

type stubCartRepository struct {
	listByUserFn func(ctx context.Context, userID string) ([]domain.CartItem, error)
	clearFn      func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) AddItem(context.Context, domain.CartItem) (domain.CartItem, error) {
	return domain.CartItem{}, errors.New("unexpected AddItem call")
}
func (s *stubCartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	if s.listByUserFn == nil {
		return nil, errors.New("unexpected ListByUser call")
	}
	return s.listByUserFn(ctx, userID)
}
func (s *stubCartRepository) UpdateQuantity(context.Context, string, string, int) (domain.CartItem, error) {
	return domain.CartItem{}, errors.New("unexpected UpdateQuantity call")
}
func (s *stubCartRepository) RemoveItem(context.Context, string, string) error {
	return errors.New("unexpected RemoveItem call")
}
func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	if s.clearFn == nil {
		return errors.New("unexpected Clear call")
	}
	return s.clearFn(ctx, userID)
}

// cartWithItems returns a cart stub that serves the given lines for any user.
func cartWithItems(items ...domain.CartItem) *stubCartRepository {
	return &stubCartRepository{
		listByUserFn: func(context.Context, string) ([]domain.CartItem, error) {
			return items, nil
		},
		clearFn: func(context.Context, string) error { return nil },
	}
}

type stubPaymentMethodRepository struct {
	findByIDFn func(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error)
}

func (s *stubPaymentMethodRepository) Insert(context.Context, string, domain.PaymentMethod) error {
	return nil
}
func (s *stubPaymentMethodRepository) FindByID(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error) {
	if s.findByIDFn == nil {
		return domain.PaymentMethod{}, errors.New("unexpected FindByID call")
	}
	return s.findByIDFn(ctx, userID, methodID)
}
func (s *stubPaymentMethodRepository) ListByUser(context.Context, string) ([]domain.PaymentMethod, error) {
	return nil, errors.New("unexpected ListByUser call")
}
func (s *stubPaymentMethodRepository) Update(context.Context, string, domain.PaymentMethod) (domain.PaymentMethod, error) {
	return domain.PaymentMethod{}, errors.New("unexpected Update call")
}
func (s *stubPaymentMethodRepository) Delete(context.Context, string, string) error { return nil }

type stubShippingService struct {
	quoteForCoordinateFn func(ctx context.Context, destination domain.Coordinate) ShippingQuote
	quoteForUserFn       func(ctx context.Context, user domain.User) ShippingQuote
}

func (s *stubShippingService) QuoteForCoordinate(ctx context.Context, destination domain.Coordinate) ShippingQuote {
	if s.quoteForCoordinateFn == nil {
		return ShippingQuote{}
	}
	return s.quoteForCoordinateFn(ctx, destination)
}

func (s *stubShippingService) QuoteForUser(ctx context.Context, user domain.User) ShippingQuote {
	if s.quoteForUserFn == nil {
		return ShippingQuote{}
	}
	return s.quoteForUserFn(ctx, user)
}

type stubEventPublisher struct {
	publishFn func(ctx context.Context, message OrderEventMessage) (string, error)
}

func (s *stubEventPublisher) PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error) {
	if s.publishFn == nil {
		return "", nil
	}
	return s.publishFn(ctx, message)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func ptrInt64(v int64) *int64       { return &v }
func ptrFloat64(v float64) *float64 { return &v }

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Users == nil {
		deps.Users = &stubUserRepository{
			findByIDFn: func(ctx context.Context, userID string) (domain.User, error) {
				return domain.User{ID: userID, Address: "Alameda 1000, Santiago"}, nil
			},
		}
	}
	if deps.Carts == nil {
		deps.Carts = cartWithItems(domain.CartItem{Name: "Pan amasado", UnitPrice: 1200, Quantity: 1})
	}
	if deps.Shipping == nil {
		deps.Shipping = &stubShippingService{}
	}
	if deps.Clock == nil {
		deps.Clock = fixedClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService returned error: %v", err)
	}
	return svc
}

func TestCreateOrderSnapshotsCart(t *testing.T) {
	var inserted domain.Order
	var published []OrderEventMessage

	orders := &stubOrderRepository{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = order
			return nil
		},
	}
	carts := &stubCartRepository{
		listByUserFn: func(_ context.Context, userID string) ([]domain.CartItem, error) {
			if userID != "usr_1" {
				t.Fatalf("cart listed for %q, want usr_1", userID)
			}
			return []domain.CartItem{
				{ID: "crt_1", UserID: userID, Name: "Empanada de pino", UnitPrice: 2500, Quantity: 4},
				{ID: "crt_2", UserID: userID, Name: "Bebida", UnitPrice: 1500, Quantity: 2},
			}, nil
		},
	}
	shipping := &stubShippingService{
		quoteForUserFn: func(_ context.Context, _ domain.User) ShippingQuote {
			within := false
			return ShippingQuote{Cost: 3000, DistanceKm: ptrFloat64(8.42), WithinRadius: &within}
		},
	}
	events := &stubEventPublisher{
		publishFn: func(_ context.Context, message OrderEventMessage) (string, error) {
			published = append(published, message)
			return "msg-1", nil
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:   orders,
		Carts:    carts,
		Shipping: shipping,
		Coupons:  NewCouponService(),
		Events:   events,
	})

	order, err := svc.Create(context.Background(), CreateOrderCommand{
		UserID:     "usr_1",
		CouponCode: "descuento10",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if got, want := len(order.Items), 2; got != want {
		t.Fatalf("items = %d, want %d", got, want)
	}
	if order.Items[0].UnitPrice != 2500 || order.Items[0].Quantity != 4 {
		t.Fatalf("first line = %+v, want the stored cart price and quantity", order.Items[0])
	}
	if got, want := order.Subtotal, int64(13000); got != want {
		t.Fatalf("subtotal = %d, want %d", got, want)
	}
	if got, want := order.Discount, int64(1300); got != want {
		t.Fatalf("discount = %d, want %d", got, want)
	}
	if got, want := order.ShippingFee, int64(3000); got != want {
		t.Fatalf("shipping fee = %d, want %d", got, want)
	}
	if got, want := order.Total, int64(14700); got != want {
		t.Fatalf("total = %d, want %d", got, want)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %s, want %s", order.Status, domain.OrderStatusPending)
	}
	if !strings.HasPrefix(order.ID, "ord_") {
		t.Fatalf("order id %q missing prefix", order.ID)
	}
	if order.CouponCode != "DESCUENTO10" {
		t.Fatalf("coupon code = %q, want DESCUENTO10", order.CouponCode)
	}
	if order.DistanceKm == nil || *order.DistanceKm != 8.42 {
		t.Fatalf("distance = %v, want 8.42", order.DistanceKm)
	}
	if inserted.ID != order.ID {
		t.Fatalf("inserted order id %q does not match returned %q", inserted.ID, order.ID)
	}
	if len(published) != 1 || published[0].EventType != "order.created" {
		t.Fatalf("published events = %+v, want one order.created", published)
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	carts := &stubCartRepository{
		listByUserFn: func(context.Context, string) ([]domain.CartItem, error) {
			return nil, nil
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepository{},
		Carts:  carts,
	})

	_, err := svc.Create(context.Background(), CreateOrderCommand{UserID: "usr_1"})
	if !errors.Is(err, ErrOrderEmptyCart) {
		t.Fatalf("err = %v, want ErrOrderEmptyCart", err)
	}
	if errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("empty cart must not report as generic invalid input: %v", err)
	}
}

func TestCreateOrderFreeShippingCoupon(t *testing.T) {
	orders := &stubOrderRepository{
		insertFn: func(context.Context, domain.Order) error { return nil },
	}
	shipping := &stubShippingService{
		quoteForUserFn: func(context.Context, domain.User) ShippingQuote {
			return ShippingQuote{Cost: 3000}
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:   orders,
		Carts:    cartWithItems(domain.CartItem{Name: "Pan amasado", UnitPrice: 1200, Quantity: 1}),
		Shipping: shipping,
		Coupons:  NewCouponService(),
	})

	order, err := svc.Create(context.Background(), CreateOrderCommand{
		UserID:     "usr_1",
		CouponCode: " libreenvio ",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.ShippingFee != 0 {
		t.Fatalf("shipping fee = %d, want 0", order.ShippingFee)
	}
	if order.Total != 1200 {
		t.Fatalf("total = %d, want 1200", order.Total)
	}
}

func TestCreateOrderExplicitFeeSkipsQuote(t *testing.T) {
	orders := &stubOrderRepository{
		insertFn: func(context.Context, domain.Order) error { return nil },
	}
	shipping := &stubShippingService{
		quoteForUserFn: func(context.Context, domain.User) ShippingQuote {
			t.Fatal("QuoteForUser should not be called when a fee is supplied")
			return ShippingQuote{}
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:   orders,
		Carts:    cartWithItems(domain.CartItem{Name: "Queso", UnitPrice: 4000, Quantity: 1}),
		Shipping: shipping,
	})

	order, err := svc.Create(context.Background(), CreateOrderCommand{
		UserID:      "usr_1",
		ExplicitFee: ptrInt64(1500),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.ShippingFee != 1500 {
		t.Fatalf("shipping fee = %d, want 1500", order.ShippingFee)
	}
	if order.DistanceKm != nil || order.WithinFreeRadius != nil {
		t.Fatalf("distance fields should be empty on explicit fee, got %v / %v", order.DistanceKm, order.WithinFreeRadius)
	}
}

func TestCreateOrderUnknownCoupon(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:  &stubOrderRepository{},
		Coupons: NewCouponService(),
	})

	_, err := svc.Create(context.Background(), CreateOrderCommand{
		UserID:     "usr_1",
		CouponCode: "NADA",
	})
	if !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("err = %v, want ErrCouponNotFound", err)
	}
}

func TestCreateOrderDiscountCappedAtSubtotal(t *testing.T) {
	orders := &stubOrderRepository{
		insertFn: func(context.Context, domain.Order) error { return nil },
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: orders,
		Carts:  cartWithItems(domain.CartItem{Name: "Chicle", UnitPrice: 500, Quantity: 1}),
	})

	order, err := svc.Create(context.Background(), CreateOrderCommand{
		UserID:      "usr_1",
		Discount:    ptrInt64(2000),
		ExplicitFee: ptrInt64(3000),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.Discount != 500 {
		t.Fatalf("discount = %d, want 500", order.Discount)
	}
	if order.Total != 3000 {
		t.Fatalf("total = %d, want 3000", order.Total)
	}
}

func TestCreateOrderRecordsPaymentMethodRef(t *testing.T) {
	var inserted domain.Order
	orders := &stubOrderRepository{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = order
			return nil
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	_, err := svc.Create(context.Background(), CreateOrderCommand{
		UserID:           "usr_1",
		ExplicitFee:      ptrInt64(0),
		PaymentMethodRef: " pm_9 ",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if inserted.PaymentMethodRef != "pm_9" {
		t.Fatalf("payment method ref = %q, want pm_9", inserted.PaymentMethodRef)
	}
}

func TestCreateOrderUserNotFound(t *testing.T) {
	users := &stubUserRepository{
		findByIDFn: func(context.Context, string) (domain.User, error) {
			return domain.User{}, repoError{notFound: true}
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepository{},
		Users:  users,
	})

	_, err := svc.Create(context.Background(), CreateOrderCommand{UserID: "usr_missing"})
	if !errors.Is(err, ErrOrderUserNotFound) {
		t.Fatalf("err = %v, want ErrOrderUserNotFound", err)
	}
}

func TestPayOrderTransitionsAndClearsCart(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	var appliedUpdate repositories.OrderStatusUpdate
	var cartCleared string
	var published []OrderEventMessage

	orders := &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPending, Total: 9900}, nil
		},
		transitionFn: func(_ context.Context, orderID string, expected domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
			if expected != domain.OrderStatusPending {
				t.Fatalf("expected status = %s, want pending", expected)
			}
			appliedUpdate = update
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPaid, Total: 9900}, nil
		},
	}
	methods := &stubPaymentMethodRepository{
		findByIDFn: func(_ context.Context, userID, methodID string) (domain.PaymentMethod, error) {
			if userID != "usr_1" {
				t.Fatalf("payment method lookup for user %q, want usr_1", userID)
			}
			return domain.PaymentMethod{ID: methodID, MaskedNumber: "**** **** **** 4242"}, nil
		},
	}
	carts := &stubCartRepository{
		clearFn: func(_ context.Context, userID string) error {
			cartCleared = userID
			return nil
		},
	}
	events := &stubEventPublisher{
		publishFn: func(_ context.Context, message OrderEventMessage) (string, error) {
			published = append(published, message)
			return "msg-2", nil
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		Carts:          carts,
		PaymentMethods: methods,
		Events:         events,
		Clock:          fixedClock(now),
	})

	order, err := svc.Pay(context.Background(), PayOrderCommand{
		OrderID:          "ord_1",
		PaymentMethodRef: "pm_1",
	})
	if err != nil {
		t.Fatalf("Pay returned error: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", order.Status)
	}
	if appliedUpdate.Status != domain.OrderStatusPaid {
		t.Fatalf("update status = %s, want paid", appliedUpdate.Status)
	}
	if appliedUpdate.PaidAt == nil || !appliedUpdate.PaidAt.Equal(now) {
		t.Fatalf("paidAt = %v, want %v", appliedUpdate.PaidAt, now)
	}
	if appliedUpdate.PaymentMethodLabel == nil || *appliedUpdate.PaymentMethodLabel != "**** **** **** 4242" {
		t.Fatalf("payment label = %v, want masked number", appliedUpdate.PaymentMethodLabel)
	}
	if cartCleared != "usr_1" {
		t.Fatalf("cart cleared for %q, want usr_1", cartCleared)
	}
	if len(published) != 1 || published[0].EventType != "order.paid" {
		t.Fatalf("published events = %+v, want one order.paid", published)
	}
}

func TestPayOrderKeysVaultAndCartOnOrderOwner(t *testing.T) {
	var vaultUser, cartCleared string

	orders := &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_owner", Status: domain.OrderStatusPending}, nil
		},
		transitionFn: func(_ context.Context, orderID string, _ domain.OrderStatus, _ repositories.OrderStatusUpdate) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_owner", Status: domain.OrderStatusPaid}, nil
		},
	}
	methods := &stubPaymentMethodRepository{
		findByIDFn: func(_ context.Context, userID, methodID string) (domain.PaymentMethod, error) {
			vaultUser = userID
			if userID != "usr_owner" {
				return domain.PaymentMethod{}, repoError{notFound: true}
			}
			return domain.PaymentMethod{ID: methodID, MaskedNumber: "**** **** **** 9999"}, nil
		},
	}
	carts := &stubCartRepository{
		clearFn: func(_ context.Context, userID string) error {
			cartCleared = userID
			return nil
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		Carts:          carts,
		PaymentMethods: methods,
	})

	// Whoever issues the request, the vault lookup and the cart clear are
	// keyed on the stored order's owner.
	if _, err := svc.Pay(context.Background(), PayOrderCommand{
		OrderID:          "ord_1",
		PaymentMethodRef: "pm_owner",
	}); err != nil {
		t.Fatalf("Pay returned error: %v", err)
	}
	if vaultUser != "usr_owner" {
		t.Fatalf("vault consulted for %q, want usr_owner", vaultUser)
	}
	if cartCleared != "usr_owner" {
		t.Fatalf("cart cleared for %q, want usr_owner", cartCleared)
	}
}

func TestPayOrderWithoutMethodRef(t *testing.T) {
	var appliedUpdate repositories.OrderStatusUpdate

	orders := &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPending}, nil
		},
		transitionFn: func(_ context.Context, orderID string, _ domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
			appliedUpdate = update
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPaid}, nil
		},
	}
	methods := &stubPaymentMethodRepository{
		findByIDFn: func(context.Context, string, string) (domain.PaymentMethod, error) {
			t.Fatal("vault should not be consulted without a method reference")
			return domain.PaymentMethod{}, nil
		},
	}
	carts := &stubCartRepository{
		clearFn: func(context.Context, string) error { return nil },
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		Carts:          carts,
		PaymentMethods: methods,
	})

	order, err := svc.Pay(context.Background(), PayOrderCommand{
		OrderID:      "ord_1",
		PaymentLabel: "Efectivo",
	})
	if err != nil {
		t.Fatalf("Pay returned error: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", order.Status)
	}
	if appliedUpdate.PaymentMethodRef != nil {
		t.Fatalf("payment method ref = %v, want unset", appliedUpdate.PaymentMethodRef)
	}
	if appliedUpdate.PaymentMethodLabel == nil || *appliedUpdate.PaymentMethodLabel != "Efectivo" {
		t.Fatalf("payment label = %v, want Efectivo", appliedUpdate.PaymentMethodLabel)
	}
}

func TestPayOrderFallsBackToStoredMethodRef(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPending, PaymentMethodRef: "pm_stored"}, nil
		},
		transitionFn: func(_ context.Context, orderID string, _ domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
			if update.PaymentMethodRef == nil || *update.PaymentMethodRef != "pm_stored" {
				t.Fatalf("payment method ref = %v, want pm_stored", update.PaymentMethodRef)
			}
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPaid}, nil
		},
	}
	methods := &stubPaymentMethodRepository{
		findByIDFn: func(_ context.Context, userID, methodID string) (domain.PaymentMethod, error) {
			if methodID != "pm_stored" {
				t.Fatalf("vault lookup for %q, want the method stored on the order", methodID)
			}
			return domain.PaymentMethod{ID: methodID, MaskedNumber: "**** **** **** 1111"}, nil
		},
	}
	carts := &stubCartRepository{
		clearFn: func(context.Context, string) error { return nil },
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		Carts:          carts,
		PaymentMethods: methods,
	})

	if _, err := svc.Pay(context.Background(), PayOrderCommand{OrderID: "ord_1"}); err != nil {
		t.Fatalf("Pay returned error: %v", err)
	}
}

func TestPayOrderCartClearFailureDoesNotFailPayment(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPending}, nil
		},
		transitionFn: func(_ context.Context, orderID string, _ domain.OrderStatus, _ repositories.OrderStatusUpdate) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPaid}, nil
		},
	}
	methods := &stubPaymentMethodRepository{
		findByIDFn: func(_ context.Context, _, methodID string) (domain.PaymentMethod, error) {
			return domain.PaymentMethod{ID: methodID, MaskedNumber: "**** **** **** 0001"}, nil
		},
	}
	carts := &stubCartRepository{
		clearFn: func(context.Context, string) error {
			return errors.New("firestore unavailable")
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		Carts:          carts,
		PaymentMethods: methods,
	})

	order, err := svc.Pay(context.Background(), PayOrderCommand{
		OrderID:          "ord_1",
		PaymentMethodRef: "pm_1",
	})
	if err != nil {
		t.Fatalf("Pay returned error: %v", err)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", order.Status)
	}
}

func TestPayOrderRejectsForeignPaymentMethod(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPending}, nil
		},
	}
	methods := &stubPaymentMethodRepository{
		findByIDFn: func(_ context.Context, userID, _ string) (domain.PaymentMethod, error) {
			if userID != "usr_1" {
				t.Fatalf("vault lookup for %q, want the order owner", userID)
			}
			return domain.PaymentMethod{}, repoError{notFound: true}
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		PaymentMethods: methods,
	})

	_, err := svc.Pay(context.Background(), PayOrderCommand{
		OrderID:          "ord_1",
		PaymentMethodRef: "pm_foreign",
	})
	if !errors.Is(err, ErrOrderPaymentMethodNotFound) {
		t.Fatalf("err = %v, want ErrOrderPaymentMethodNotFound", err)
	}
}

func TestPayOrderAlreadyPaid(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "usr_1", Status: domain.OrderStatusPaid}, nil
		},
		transitionFn: func(_ context.Context, orderID string, _ domain.OrderStatus, _ repositories.OrderStatusUpdate) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusPaid}, repoError{conflict: true}
		},
	}
	methods := &stubPaymentMethodRepository{
		findByIDFn: func(_ context.Context, _, methodID string) (domain.PaymentMethod, error) {
			return domain.PaymentMethod{ID: methodID, MaskedNumber: "**** **** **** 7777"}, nil
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:         orders,
		PaymentMethods: methods,
	})

	_, err := svc.Pay(context.Background(), PayOrderCommand{
		OrderID:          "ord_1",
		PaymentMethodRef: "pm_1",
	})
	if !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("err = %v, want ErrOrderInvalidState", err)
	}
	if !strings.Contains(err.Error(), "paid") {
		t.Fatalf("err %q should mention the current status", err.Error())
	}
}

func TestCancelOrder(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	var appliedUpdate repositories.OrderStatusUpdate

	orders := &stubOrderRepository{
		transitionFn: func(_ context.Context, orderID string, expected domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
			if expected != domain.OrderStatusPending {
				t.Fatalf("expected status = %s, want pending", expected)
			}
			appliedUpdate = update
			return domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}, nil
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: orders,
		Clock:  fixedClock(now),
	})

	order, err := svc.Cancel(context.Background(), "ord_9")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", order.Status)
	}
	if appliedUpdate.CancelledAt == nil || !appliedUpdate.CancelledAt.Equal(now) {
		t.Fatalf("cancelledAt = %v, want %v", appliedUpdate.CancelledAt, now)
	}
	if appliedUpdate.PaidAt != nil {
		t.Fatalf("paidAt should be empty on cancel, got %v", appliedUpdate.PaidAt)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	orders := &stubOrderRepository{
		transitionFn: func(context.Context, string, domain.OrderStatus, repositories.OrderStatusUpdate) (domain.Order, error) {
			return domain.Order{}, repoError{notFound: true}
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{Orders: orders})

	_, err := svc.Cancel(context.Background(), "ord_missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestShippingEstimateResolvesUser(t *testing.T) {
	users := &stubUserRepository{
		findByIDFn: func(_ context.Context, userID string) (domain.User, error) {
			return domain.User{ID: userID, Lat: ptrFloat64(-33.45), Lon: ptrFloat64(-70.66)}, nil
		},
	}
	shipping := &stubShippingService{
		quoteForUserFn: func(_ context.Context, user domain.User) ShippingQuote {
			if user.Lat == nil {
				t.Fatal("quote should receive the stored coordinates")
			}
			within := true
			return ShippingQuote{Cost: 0, DistanceKm: ptrFloat64(2.1), WithinRadius: &within}
		},
	}

	svc := newTestOrderService(t, OrderServiceDeps{
		Orders:   &stubOrderRepository{},
		Users:    users,
		Shipping: shipping,
	})

	quote, err := svc.ShippingEstimate(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("ShippingEstimate returned error: %v", err)
	}
	if quote.Cost != 0 {
		t.Fatalf("cost = %d, want 0", quote.Cost)
	}
	if quote.WithinRadius == nil || !*quote.WithinRadius {
		t.Fatalf("withinRadius = %v, want true", quote.WithinRadius)
	}
}
