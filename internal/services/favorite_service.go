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

const favoriteIDPrefix = "fav_"

var (
	// ErrFavoriteInvalidInput signals the caller provided invalid data.
	ErrFavoriteInvalidInput = errors.New("favorite: invalid input")
	// ErrFavoriteNotFound indicates the favourite could not be located.
	ErrFavoriteNotFound = errors.New("favorite: not found")
	// ErrFavoriteExists indicates the product is already saved.
	ErrFavoriteExists = errors.New("favorite: already exists")
)

// FavoriteServiceDeps bundles collaborators required to construct the favorite service.
type FavoriteServiceDeps struct {
	Favorites   repositories.FavoriteRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type favoriteService struct {
	favorites repositories.FavoriteRepository
	clock     func() time.Time
	newID     func() string
}

// NewFavoriteService wires dependencies into a concrete FavoriteService implementation.
func NewFavoriteService(deps FavoriteServiceDeps) (FavoriteService, error) {
	if deps.Favorites == nil {
		return nil, errors.New("favorite service: favorite repository is required")
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

	return &favoriteService{
		favorites: deps.Favorites,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *favoriteService) Add(ctx context.Context, cmd AddFavoriteCommand) (domain.Favorite, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Favorite{}, fmt.Errorf("%w: user id is required", ErrFavoriteInvalidInput)
	}
	productName := strings.TrimSpace(cmd.ProductName)
	if productName == "" {
		return domain.Favorite{}, fmt.Errorf("%w: product name is required", ErrFavoriteInvalidInput)
	}

	favorite := domain.Favorite{
		ID:          favoriteIDPrefix + s.newID(),
		UserID:      userID,
		ProductName: productName,
		Price:       cmd.Price,
		ImageRef:    strings.TrimSpace(cmd.ImageRef),
		AddedAt:     s.clock(),
	}

	stored, err := s.favorites.Add(ctx, favorite)
	if err != nil {
		return domain.Favorite{}, s.mapRepositoryError(err)
	}
	return stored, nil
}

func (s *favoriteService) List(ctx context.Context, userID string) ([]domain.Favorite, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrFavoriteInvalidInput)
	}

	favorites, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return favorites, nil
}

func (s *favoriteService) Remove(ctx context.Context, userID, favoriteID string) error {
	userID = strings.TrimSpace(userID)
	favoriteID = strings.TrimSpace(favoriteID)
	if userID == "" || favoriteID == "" {
		return fmt.Errorf("%w: user id and favorite id are required", ErrFavoriteInvalidInput)
	}

	if err := s.favorites.Remove(ctx, userID, favoriteID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *favoriteService) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrFavoriteInvalidInput)
	}

	if err := s.favorites.Clear(ctx, userID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *favoriteService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrFavoriteNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrFavoriteExists, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("favorite: repository unavailable: %w", err)
		}
	}

	return err
}
