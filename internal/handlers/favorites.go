package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/platform/httpx"
	"github.com/libre-rico/api/internal/services"
)

const maxFavoriteBodySize = 16 * 1024

type addFavoriteRequest struct {
	UserID      string `json:"user_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	ImageRef    string `json:"image_ref"`
}

type favoritePayload struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	ImageRef    string `json:"image_ref,omitempty"`
	AddedAt     string `json:"added_at"`
}

type favoriteListResponse struct {
	Items []favoritePayload `json:"items"`
}

// FavoriteHandlers exposes the saved products endpoints.
type FavoriteHandlers struct {
	favorites services.FavoriteService
}

// NewFavoriteHandlers constructs a new FavoriteHandlers instance.
func NewFavoriteHandlers(favorites services.FavoriteService) *FavoriteHandlers {
	return &FavoriteHandlers{favorites: favorites}
}

// Routes registers the /favorites endpoints.
func (h *FavoriteHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.add)
	r.Get("/", h.list)
	r.Delete("/{favoriteID}", h.remove)
	r.Delete("/", h.clear)
}

func (h *FavoriteHandlers) add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.favorites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favorite_service_unavailable", "favorite service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxFavoriteBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addFavoriteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	favorite, err := h.favorites.Add(ctx, services.AddFavoriteCommand{
		UserID:      req.UserID,
		ProductName: req.ProductName,
		Price:       req.Price,
		ImageRef:    req.ImageRef,
	})
	if err != nil {
		writeFavoriteError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildFavoritePayload(favorite))
}

func (h *FavoriteHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.favorites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favorite_service_unavailable", "favorite service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id query parameter is required", http.StatusBadRequest))
		return
	}

	favorites, err := h.favorites.List(ctx, userID)
	if err != nil {
		writeFavoriteError(ctx, w, err)
		return
	}

	items := make([]favoritePayload, 0, len(favorites))
	for _, favorite := range favorites {
		items = append(items, buildFavoritePayload(favorite))
	}
	writeJSONResponse(w, http.StatusOK, favoriteListResponse{Items: items})
}

func (h *FavoriteHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.favorites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favorite_service_unavailable", "favorite service unavailable", http.StatusServiceUnavailable))
		return
	}

	favoriteID := strings.TrimSpace(chi.URLParam(r, "favoriteID"))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if favoriteID == "" || userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id and favorite id are required", http.StatusBadRequest))
		return
	}

	if err := h.favorites.Remove(ctx, userID, favoriteID); err != nil {
		writeFavoriteError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FavoriteHandlers) clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.favorites == nil {
		httpx.WriteError(ctx, w, httpx.NewError("favorite_service_unavailable", "favorite service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id query parameter is required", http.StatusBadRequest))
		return
	}

	if err := h.favorites.Clear(ctx, userID); err != nil {
		writeFavoriteError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildFavoritePayload(favorite domain.Favorite) favoritePayload {
	return favoritePayload{
		ID:          favorite.ID,
		UserID:      favorite.UserID,
		ProductName: favorite.ProductName,
		Price:       favorite.Price,
		ImageRef:    favorite.ImageRef,
		AddedAt:     formatTime(favorite.AddedAt),
	}
}

func writeFavoriteError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrFavoriteInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrFavoriteNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("favorite_not_found", "favorite not found", http.StatusNotFound))
	case errors.Is(err, services.ErrFavoriteExists):
		httpx.WriteError(ctx, w, httpx.NewError("favorite_exists", "product is already saved", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
