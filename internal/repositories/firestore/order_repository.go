package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/libre-rico/api/internal/domain"
	pfirestore "github.com/libre-rico/api/internal/platform/firestore"
	"github.com/libre-rico/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders in Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	col      *pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	col := pfirestore.NewCollection[orderDocument](provider, orderCollection)
	return &OrderRepository{provider: provider, col: col}, nil
}

// Insert stores a new order document. Existing IDs are rejected as conflicts.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: id is required")
	}
	if err := r.col.Create(ctx, id, encodeOrder(order)); err != nil {
		return err
	}
	return nil
}

// FindByID loads an order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.col.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListByUser returns the user's orders ordered by creation time descending.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.col.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("userId", "==", uid).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

// TransitionStatus applies the update inside a transaction, guarding against
// concurrent state changes. When the stored status differs from expected the
// current order is returned together with a conflict error.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID string, expected domain.OrderStatus, update repositories.OrderStatusUpdate) (domain.Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}

	docRef, err := r.col.DocumentRef(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	var current domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}
		current = doc.toDomain(snap.Ref.ID)

		if current.Status != expected {
			return status.Errorf(codes.FailedPrecondition, "order status is %s", current.Status)
		}

		updates := []firestore.Update{
			{Path: "status", Value: string(update.Status)},
		}
		if update.PaymentMethodRef != nil {
			updates = append(updates, firestore.Update{Path: "paymentMethodRef", Value: *update.PaymentMethodRef})
		}
		if update.PaymentMethodLabel != nil {
			updates = append(updates, firestore.Update{Path: "paymentMethodLabel", Value: *update.PaymentMethodLabel})
		}
		if update.PaidAt != nil {
			updates = append(updates, firestore.Update{Path: "paidAt", Value: update.PaidAt.UTC()})
		}
		if update.CancelledAt != nil {
			updates = append(updates, firestore.Update{Path: "cancelledAt", Value: update.CancelledAt.UTC()})
		}
		if err := tx.Update(docRef, updates); err != nil {
			return err
		}

		current.Status = update.Status
		if update.PaymentMethodRef != nil {
			current.PaymentMethodRef = *update.PaymentMethodRef
		}
		if update.PaymentMethodLabel != nil {
			current.PaymentMethodLabel = *update.PaymentMethodLabel
		}
		if update.PaidAt != nil {
			paidAt := update.PaidAt.UTC()
			current.PaidAt = &paidAt
		}
		if update.CancelledAt != nil {
			cancelledAt := update.CancelledAt.UTC()
			current.CancelledAt = &cancelledAt
		}
		return nil
	})
	if err != nil {
		return current, pfirestore.WrapError("orders.transition", err)
	}
	return current, nil
}

type orderLineItemDocument struct {
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
	ImageRef  string `firestore:"imageRef,omitempty"`
}

type orderDocument struct {
	UserID             string                  `firestore:"userId"`
	Items              []orderLineItemDocument `firestore:"items"`
	Subtotal           int64                   `firestore:"subtotal"`
	Discount           int64                   `firestore:"discount"`
	ShippingFee        int64                   `firestore:"shippingFee"`
	Total              int64                   `firestore:"total"`
	Status             string                  `firestore:"status"`
	PaymentMethodRef   string                  `firestore:"paymentMethodRef,omitempty"`
	PaymentMethodLabel string                  `firestore:"paymentMethodLabel,omitempty"`
	CouponCode         string                  `firestore:"couponCode,omitempty"`
	ShippingAddress    string                  `firestore:"shippingAddress,omitempty"`
	DistanceKm         *float64                `firestore:"distanceKm,omitempty"`
	WithinFreeRadius   *bool                   `firestore:"withinFreeRadius,omitempty"`
	CreatedAt          time.Time               `firestore:"createdAt"`
	PaidAt             *time.Time              `firestore:"paidAt,omitempty"`
	CancelledAt        *time.Time              `firestore:"cancelledAt,omitempty"`
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderLineItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineItemDocument{
			Name:      strings.TrimSpace(item.Name),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageRef:  strings.TrimSpace(item.ImageRef),
		})
	}
	doc := orderDocument{
		UserID:             strings.TrimSpace(order.UserID),
		Items:              items,
		Subtotal:           order.Subtotal,
		Discount:           order.Discount,
		ShippingFee:        order.ShippingFee,
		Total:              order.Total,
		Status:             string(order.Status),
		PaymentMethodRef:   strings.TrimSpace(order.PaymentMethodRef),
		PaymentMethodLabel: strings.TrimSpace(order.PaymentMethodLabel),
		CouponCode:         strings.TrimSpace(order.CouponCode),
		ShippingAddress:    strings.TrimSpace(order.ShippingAddress),
		DistanceKm:         order.DistanceKm,
		WithinFreeRadius:   order.WithinFreeRadius,
		CreatedAt:          order.CreatedAt.UTC(),
		PaidAt:             order.PaidAt,
		CancelledAt:        order.CancelledAt,
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.LineItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.LineItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageRef:  item.ImageRef,
		})
	}
	return domain.Order{
		ID:                 id,
		UserID:             d.UserID,
		Items:              items,
		Subtotal:           d.Subtotal,
		Discount:           d.Discount,
		ShippingFee:        d.ShippingFee,
		Total:              d.Total,
		Status:             domain.OrderStatus(d.Status),
		PaymentMethodRef:   d.PaymentMethodRef,
		PaymentMethodLabel: d.PaymentMethodLabel,
		CouponCode:         d.CouponCode,
		ShippingAddress:    d.ShippingAddress,
		DistanceKm:         d.DistanceKm,
		WithinFreeRadius:   d.WithinFreeRadius,
		CreatedAt:          d.CreatedAt,
		PaidAt:             d.PaidAt,
		CancelledAt:        d.CancelledAt,
	}
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)
