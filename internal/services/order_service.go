package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/repositories"
)

const (
	orderEventCreated   = "order.created"
	orderEventPaid      = "order.paid"
	orderEventCancelled = "order.cancelled"

	orderIDPrefix = "ord_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderEmptyCart indicates the user has nothing in the cart to order.
	ErrOrderEmptyCart = errors.New("order: cart is empty")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent updates collided.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUserNotFound indicates the referenced customer does not exist.
	ErrOrderUserNotFound = errors.New("order: user not found")
	// ErrOrderPaymentMethodNotFound indicates the payment method does not belong to the user.
	ErrOrderPaymentMethodNotFound = errors.New("order: payment method not found")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders         repositories.OrderRepository
	Users          repositories.UserRepository
	Carts          repositories.CartRepository
	PaymentMethods repositories.PaymentMethodRepository
	Shipping       ShippingService
	Coupons        CouponService
	Clock          func() time.Time
	IDGenerator    func() string
	Events         OrderEventPublisher
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders         repositories.OrderRepository
	users          repositories.UserRepository
	carts          repositories.CartRepository
	paymentMethods repositories.PaymentMethodRepository
	shipping       ShippingService
	coupons        CouponService
	clock          func() time.Time
	newID          func() string
	events         OrderEventPublisher
	logger         func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("order service: shipping service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:         deps.Orders,
		users:          deps.Users,
		carts:          deps.Carts,
		paymentMethods: deps.PaymentMethods,
		shipping:       deps.Shipping,
		coupons:        deps.Coupons,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderUserNotFound, userID)
		}
		return domain.Order{}, err
	}

	// The order snapshots the server-side cart. Prices and quantities never
	// come from the request.
	cartItems, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if len(cartItems) == 0 {
		return domain.Order{}, fmt.Errorf("%w: user %s", ErrOrderEmptyCart, userID)
	}

	items := make([]domain.LineItem, 0, len(cartItems))
	var subtotal int64
	for _, item := range cartItems {
		items = append(items, domain.LineItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageRef:  item.ImageRef,
		})
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	address := strings.TrimSpace(cmd.Address)
	if address == "" {
		address = user.Address
	}

	var (
		fee          int64
		distanceKm   *float64
		withinRadius *bool
	)
	if cmd.ExplicitFee != nil {
		if *cmd.ExplicitFee < 0 {
			return domain.Order{}, fmt.Errorf("%w: shipping fee must not be negative", ErrOrderInvalidInput)
		}
		fee = *cmd.ExplicitFee
	} else {
		quote := s.shipping.QuoteForUser(ctx, user)
		fee = quote.Cost
		distanceKm = quote.DistanceKm
		withinRadius = quote.WithinRadius
	}

	var discount int64
	couponCode := strings.ToUpper(strings.TrimSpace(cmd.CouponCode))
	switch {
	case cmd.Discount != nil:
		if *cmd.Discount < 0 {
			return domain.Order{}, fmt.Errorf("%w: discount must not be negative", ErrOrderInvalidInput)
		}
		discount = *cmd.Discount
	case couponCode != "" && s.coupons != nil:
		coupon, err := s.coupons.Resolve(ctx, couponCode)
		if err != nil {
			return domain.Order{}, err
		}
		discount, fee = ApplyCoupon(coupon, subtotal, fee)
	}

	if discount > subtotal {
		discount = subtotal
	}

	now := s.now()
	order := domain.Order{
		ID:               orderIDPrefix + s.newID(),
		UserID:           userID,
		Items:            items,
		Subtotal:         subtotal,
		Discount:         discount,
		ShippingFee:      fee,
		Total:            subtotal - discount + fee,
		Status:           domain.OrderStatusPending,
		PaymentMethodRef: strings.TrimSpace(cmd.PaymentMethodRef),
		CouponCode:       couponCode,
		ShippingAddress:  address,
		DistanceKm:       distanceKm,
		WithinFreeRadius: withinRadius,
		CreatedAt:        now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: now,
	})

	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) Pay(ctx context.Context, cmd PayOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	// Ownership is decided by the order, never by the request.
	methodRef := strings.TrimSpace(cmd.PaymentMethodRef)
	if methodRef == "" {
		methodRef = order.PaymentMethodRef
	}
	label := strings.TrimSpace(cmd.PaymentLabel)
	if methodRef != "" {
		if s.paymentMethods == nil {
			return domain.Order{}, errors.New("order service: payment method repository not configured")
		}
		method, err := s.paymentMethods.FindByID(ctx, order.UserID, methodRef)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderPaymentMethodNotFound, methodRef)
			}
			return domain.Order{}, err
		}
		if label == "" {
			label = method.MaskedNumber
		}
	}

	now := s.now()
	update := repositories.OrderStatusUpdate{
		Status: domain.OrderStatusPaid,
		PaidAt: &now,
	}
	if methodRef != "" {
		update.PaymentMethodRef = &methodRef
	}
	if label != "" {
		update.PaymentMethodLabel = &label
	}
	updated, err := s.orders.TransitionStatus(ctx, orderID, domain.OrderStatusPending, update)
	if err != nil {
		return domain.Order{}, s.mapTransitionError(updated, err)
	}

	// Cart clearing happens after the order settles. A crash between the two
	// leaves a stale cart, never an unpaid order.
	if err := s.carts.Clear(ctx, updated.UserID); err != nil {
		s.logger(ctx, "order.pay.cart_clear.failed", map[string]any{
			"order": orderID,
			"user":  updated.UserID,
			"error": err.Error(),
		})
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventPaid,
		OrderID:    updated.ID,
		UserID:     updated.UserID,
		Status:     string(updated.Status),
		Total:      updated.Total,
		OccurredAt: now,
	})

	return updated, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	order, err := s.orders.TransitionStatus(ctx, orderID, domain.OrderStatusPending, repositories.OrderStatusUpdate{
		Status:      domain.OrderStatusCancelled,
		CancelledAt: &now,
	})
	if err != nil {
		return domain.Order{}, s.mapTransitionError(order, err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		EventType:  orderEventCancelled,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.Total,
		OccurredAt: now,
	})

	return order, nil
}

func (s *orderService) ShippingEstimate(ctx context.Context, userID string) (ShippingQuote, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ShippingQuote{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return ShippingQuote{}, fmt.Errorf("%w: %s", ErrOrderUserNotFound, userID)
		}
		return ShippingQuote{}, err
	}

	return s.shipping.QuoteForUser(ctx, user), nil
}

func (s *orderService) mapTransitionError(order domain.Order, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			if order.Status != "" {
				return fmt.Errorf("%w: order is %s", ErrOrderInvalidState, order.Status)
			}
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  message.EventType,
			"order": message.OrderID,
			"error": err.Error(),
		})
	}
}
