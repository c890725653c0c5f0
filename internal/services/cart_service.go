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

const cartItemIDPrefix = "crt_"

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the cart item could not be located.
	ErrCartItemNotFound = errors.New("cart: item not found")
	// ErrCartItemExists indicates the product is already in the cart.
	ErrCartItemExists = errors.New("cart: item already exists")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type cartService struct {
	carts repositories.CartRepository
	clock func() time.Time
	newID func() string
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
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

	return &cartService{
		carts: deps.Carts,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (domain.CartItem, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.CartItem{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.CartItem{}, fmt.Errorf("%w: item name is required", ErrCartInvalidInput)
	}
	if cmd.UnitPrice < 0 {
		return domain.CartItem{}, fmt.Errorf("%w: price must not be negative", ErrCartInvalidInput)
	}
	quantity := cmd.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	item := domain.CartItem{
		ID:        cartItemIDPrefix + s.newID(),
		UserID:    userID,
		Name:      name,
		UnitPrice: cmd.UnitPrice,
		Quantity:  quantity,
		ImageRef:  strings.TrimSpace(cmd.ImageRef),
		AddedAt:   s.clock(),
	}

	stored, err := s.carts.AddItem(ctx, item)
	if err != nil {
		return domain.CartItem{}, s.mapRepositoryError(err)
	}
	return stored, nil
}

func (s *cartService) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return items, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (domain.CartItem, error) {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" || itemID == "" {
		return domain.CartItem{}, fmt.Errorf("%w: user id and item id are required", ErrCartInvalidInput)
	}
	if quantity <= 0 {
		return domain.CartItem{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	item, err := s.carts.UpdateQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		return domain.CartItem{}, s.mapRepositoryError(err)
	}
	return item, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" || itemID == "" {
		return fmt.Errorf("%w: user id and item id are required", ErrCartInvalidInput)
	}

	if err := s.carts.RemoveItem(ctx, userID, itemID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *cartService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCartItemNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCartItemExists, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("cart: repository unavailable: %w", err)
		}
	}

	return err
}
