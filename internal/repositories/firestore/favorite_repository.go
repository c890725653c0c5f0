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

const favoriteCollectionPattern = "users/%s/favorites"

// FavoriteRepository stores per-user favourite products in Firestore.
type FavoriteRepository struct {
	provider *pfirestore.Provider
}

// NewFavoriteRepository constructs a Firestore-backed favorite repository.
func NewFavoriteRepository(provider *pfirestore.Provider) (*FavoriteRepository, error) {
	if provider == nil {
		return nil, errors.New("favorite repository requires firestore provider")
	}
	return &FavoriteRepository{provider: provider}, nil
}

// Add stores a new favourite, rejecting duplicates by product name.
func (r *FavoriteRepository) Add(ctx context.Context, favorite domain.Favorite) (domain.Favorite, error) {
	coll, err := r.collection(ctx, favorite.UserID)
	if err != nil {
		return domain.Favorite{}, err
	}

	name := strings.TrimSpace(favorite.ProductName)
	if name == "" {
		return domain.Favorite{}, errors.New("favorite repository: product name is required")
	}

	var saved domain.Favorite
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := coll.Where("productName", "==", name).Limit(1)
		snaps, err := tx.Documents(query).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "favorite already exists")
		}

		docRef := coll.NewDoc()
		if id := strings.TrimSpace(favorite.ID); id != "" {
			docRef = coll.Doc(id)
		}

		doc := favoriteDocument{
			ProductName: name,
			Price:       favorite.Price,
			ImageRef:    strings.TrimSpace(favorite.ImageRef),
			AddedAt:     favorite.AddedAt,
		}
		if doc.AddedAt.IsZero() {
			doc.AddedAt = time.Now().UTC()
		} else {
			doc.AddedAt = doc.AddedAt.UTC()
		}

		if err := tx.Set(docRef, doc); err != nil {
			return err
		}

		saved = doc.toDomain(docRef.ID, favorite.UserID)
		return nil
	})
	if err != nil {
		return domain.Favorite{}, pfirestore.WrapError("favorites.add", err)
	}
	return saved, nil
}

// ListByUser returns the user's favourites ordered by when they were added.
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("addedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var favorites []domain.Favorite
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("favorites.list", err)
		}
		var doc favoriteDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode favorite %s: %w", snap.Ref.ID, err)
		}
		favorites = append(favorites, doc.toDomain(snap.Ref.ID, userID))
	}
	return favorites, nil
}

// Remove deletes a favourite. Missing entries are reported as not found.
func (r *FavoriteRepository) Remove(ctx context.Context, userID, favoriteID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(favoriteID)
	if id == "" {
		return errors.New("favorite repository: id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("favorites.remove", err)
	}
	return nil
}

// Clear removes every favourite stored for the user.
func (r *FavoriteRepository) Clear(ctx context.Context, userID string) error {
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
			return pfirestore.WrapError("favorites.clear", err)
		}
		if _, err := bulk.Delete(snap.Ref); err != nil {
			return pfirestore.WrapError("favorites.clear", err)
		}
	}
	bulk.End()
	return nil
}

func (r *FavoriteRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("favorite repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("favorite repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf(favoriteCollectionPattern, uid)
	return client.Collection(path), nil
}

type favoriteDocument struct {
	ProductName string    `firestore:"productName"`
	Price       int64     `firestore:"price"`
	ImageRef    string    `firestore:"imageRef,omitempty"`
	AddedAt     time.Time `firestore:"addedAt"`
}

func (d favoriteDocument) toDomain(id, userID string) domain.Favorite {
	return domain.Favorite{
		ID:          id,
		UserID:      strings.TrimSpace(userID),
		ProductName: strings.TrimSpace(d.ProductName),
		Price:       d.Price,
		ImageRef:    strings.TrimSpace(d.ImageRef),
		AddedAt:     d.AddedAt,
	}
}

// Ensure interface compliance.
var _ repositories.FavoriteRepository = (*FavoriteRepository)(nil)
