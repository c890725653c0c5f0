package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/platform/httpx"
	"github.com/libre-rico/api/internal/services"
)

type couponPayload struct {
	Code  string `json:"code"`
	Type  string `json:"type"`
	Value int64  `json:"value,omitempty"`
	Label string `json:"label"`
}

type couponListResponse struct {
	Items []couponPayload `json:"items"`
}

// CouponHandlers exposes the discount code endpoints.
type CouponHandlers struct {
	coupons services.CouponService
}

// NewCouponHandlers constructs a new CouponHandlers instance.
func NewCouponHandlers(coupons services.CouponService) *CouponHandlers {
	return &CouponHandlers{coupons: coupons}
}

// Routes registers the /coupons endpoints.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/{code}", h.get)
}

func (h *CouponHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupons are disabled", http.StatusServiceUnavailable))
		return
	}

	coupons := h.coupons.List(ctx)
	items := make([]couponPayload, 0, len(coupons))
	for _, coupon := range coupons {
		items = append(items, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, couponListResponse{Items: items})
}

func (h *CouponHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupons are disabled", http.StatusServiceUnavailable))
		return
	}

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	coupon, err := h.coupons.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, services.ErrCouponNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon code not recognised", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCouponPayload(coupon))
}

func buildCouponPayload(coupon domain.Coupon) couponPayload {
	return couponPayload{
		Code:  coupon.Code,
		Type:  string(coupon.Type),
		Value: coupon.Value,
		Label: coupon.Label,
	}
}
