package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/libre-rico/api/internal/domain"
	pfirestore "github.com/libre-rico/api/internal/platform/firestore"
	"github.com/libre-rico/api/internal/repositories"
)

const cartItemCollectionPattern = "carts/%s/items"

// CartRepository persists per-user cart items in Firestore.
type CartRepository struct {
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

// AddItem stores a new cart item, rejecting duplicates by product name.
func (r *CartRepository) AddItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	coll, err := r.collection(ctx, item.UserID)
	if err != nil {
		return domain.CartItem{}, err
	}

	name := strings.TrimSpace(item.Name)
	if name == "" {
		return domain.CartItem{}, errors.New("cart repository: item name is required")
	}

	var saved domain.CartItem
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := coll.Where("name", "==", name).Limit(1)
		snaps, err := tx.Documents(query).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "cart item already exists")
		}

		docRef := coll.NewDoc()
		if id := strings.TrimSpace(item.ID); id != "" {
			docRef = coll.Doc(id)
		}

		doc := cartItemDocument{
			Name:      name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageRef:  strings.TrimSpace(item.ImageRef),
			AddedAt:   item.AddedAt,
		}
		if doc.AddedAt.IsZero() {
			doc.AddedAt = time.Now().UTC()
		} else {
			doc.AddedAt = doc.AddedAt.UTC()
		}

		if err := tx.Set(docRef, doc); err != nil {
			return err
		}

		saved = doc.toDomain(docRef.ID, item.UserID)
		return nil
	})
	if err != nil {
		return domain.CartItem{}, pfirestore.WrapError("cart.add", err)
	}
	return saved, nil
}

// ListByUser returns all cart items ordered by when they were added.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("addedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var items []domain.CartItem
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("cart.list", err)
		}
		item, err := decodeCartItemDocument(snap, userID)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateQuantity changes the quantity of a single cart item.
func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (domain.CartItem, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CartItem{}, err
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.CartItem{}, errors.New("cart repository: item id is required")
	}

	var saved domain.CartItem
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc cartItemDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode cart item %s: %w", id, err)
		}

		if err := tx.Update(docRef, []firestore.Update{{Path: "quantity", Value: quantity}}); err != nil {
			return err
		}

		doc.Quantity = quantity
		saved = doc.toDomain(docRef.ID, userID)
		return nil
	})
	if err != nil {
		return domain.CartItem{}, pfirestore.WrapError("cart.update", err)
	}
	return saved, nil
}

// RemoveItem deletes a single cart item. Missing items are reported as not found.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, itemID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return errors.New("cart repository: item id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("cart.remove", err)
	}
	return nil
}

// Clear removes every item from the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}

	iter := coll.Documents(ctx)
	defer iter.Stop()

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	bulk := client.BulkWriter(ctx)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
		if _, err := bulk.Delete(snap.Ref); err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
	}
	bulk.End()
	return nil
}

func (r *CartRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf(cartItemCollectionPattern, uid)
	return client.Collection(path), nil
}

func decodeCartItemDocument(snapshot *firestore.DocumentSnapshot, userID string) (domain.CartItem, error) {
	var doc cartItemDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.CartItem{}, fmt.Errorf("decode cart item %s: %w", snapshot.Ref.ID, err)
	}
	return doc.toDomain(snapshot.Ref.ID, userID), nil
}

type cartItemDocument struct {
	Name      string    `firestore:"name"`
	UnitPrice int64     `firestore:"unitPrice"`
	Quantity  int       `firestore:"quantity"`
	ImageRef  string    `firestore:"imageRef,omitempty"`
	AddedAt   time.Time `firestore:"addedAt"`
}

func (d cartItemDocument) toDomain(id, userID string) domain.CartItem {
	return domain.CartItem{
		ID:        id,
		UserID:    strings.TrimSpace(userID),
		Name:      strings.TrimSpace(d.Name),
		UnitPrice: d.UnitPrice,
		Quantity:  d.Quantity,
		ImageRef:  strings.TrimSpace(d.ImageRef),
		AddedAt:   d.AddedAt,
	}
}

// Ensure interface compliance.
var _ repositories.CartRepository = (*CartRepository)(nil)
