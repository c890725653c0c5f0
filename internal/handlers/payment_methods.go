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

const maxPaymentMethodBodySize = 16 * 1024

type addPaymentMethodRequest struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Holder string `json:"holder"`
	Brand  string `json:"brand"`
	Expiry string `json:"expiry"`
	Number string `json:"number"`
}

type updatePaymentMethodRequest struct {
	UserID string  `json:"user_id"`
	Holder *string `json:"holder"`
	Brand  *string `json:"brand"`
	Expiry *string `json:"expiry"`
}

// paymentMethodPayload never carries the raw card number.
type paymentMethodPayload struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Holder       string `json:"holder"`
	Brand        string `json:"brand,omitempty"`
	Expiry       string `json:"expiry,omitempty"`
	MaskedNumber string `json:"masked_number"`
	Last4        string `json:"last4"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type paymentMethodListResponse struct {
	Items []paymentMethodPayload `json:"items"`
}

// PaymentMethodHandlers exposes the stored payment instrument endpoints.
type PaymentMethodHandlers struct {
	methods services.PaymentMethodService
}

// NewPaymentMethodHandlers constructs a new PaymentMethodHandlers instance.
func NewPaymentMethodHandlers(methods services.PaymentMethodService) *PaymentMethodHandlers {
	return &PaymentMethodHandlers{methods: methods}
}

// Routes registers the /payment-methods endpoints.
func (h *PaymentMethodHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.add)
	r.Get("/", h.list)
	r.Get("/{methodID}", h.get)
	r.Patch("/{methodID}", h.update)
	r.Delete("/{methodID}", h.delete)
}

func (h *PaymentMethodHandlers) add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.methods == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_method_service_unavailable", "payment method service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxPaymentMethodBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addPaymentMethodRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	method, err := h.methods.Add(ctx, services.AddPaymentMethodCommand{
		UserID: req.UserID,
		Kind:   req.Kind,
		Holder: req.Holder,
		Brand:  req.Brand,
		Expiry: req.Expiry,
		Number: req.Number,
	})
	if err != nil {
		writePaymentMethodError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildPaymentMethodPayload(method))
}

func (h *PaymentMethodHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.methods == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_method_service_unavailable", "payment method service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id query parameter is required", http.StatusBadRequest))
		return
	}

	methods, err := h.methods.List(ctx, userID)
	if err != nil {
		writePaymentMethodError(ctx, w, err)
		return
	}

	items := make([]paymentMethodPayload, 0, len(methods))
	for _, method := range methods {
		items = append(items, buildPaymentMethodPayload(method))
	}
	writeJSONResponse(w, http.StatusOK, paymentMethodListResponse{Items: items})
}

func (h *PaymentMethodHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.methods == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_method_service_unavailable", "payment method service unavailable", http.StatusServiceUnavailable))
		return
	}

	methodID := strings.TrimSpace(chi.URLParam(r, "methodID"))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if methodID == "" || userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id and method id are required", http.StatusBadRequest))
		return
	}

	method, err := h.methods.Get(ctx, userID, methodID)
	if err != nil {
		writePaymentMethodError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPaymentMethodPayload(method))
}

func (h *PaymentMethodHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.methods == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_method_service_unavailable", "payment method service unavailable", http.StatusServiceUnavailable))
		return
	}

	methodID := strings.TrimSpace(chi.URLParam(r, "methodID"))
	if methodID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "method id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxPaymentMethodBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updatePaymentMethodRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	method, err := h.methods.Update(ctx, services.UpdatePaymentMethodCommand{
		UserID:   req.UserID,
		MethodID: methodID,
		Holder:   req.Holder,
		Brand:    req.Brand,
		Expiry:   req.Expiry,
	})
	if err != nil {
		writePaymentMethodError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPaymentMethodPayload(method))
}

func (h *PaymentMethodHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.methods == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_method_service_unavailable", "payment method service unavailable", http.StatusServiceUnavailable))
		return
	}

	methodID := strings.TrimSpace(chi.URLParam(r, "methodID"))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if methodID == "" || userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "user_id and method id are required", http.StatusBadRequest))
		return
	}

	if err := h.methods.Delete(ctx, userID, methodID); err != nil {
		writePaymentMethodError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildPaymentMethodPayload(method domain.PaymentMethod) paymentMethodPayload {
	return paymentMethodPayload{
		ID:           method.ID,
		Kind:         method.Kind,
		Holder:       method.Holder,
		Brand:        method.Brand,
		Expiry:       method.Expiry,
		MaskedNumber: method.MaskedNumber,
		Last4:        method.Last4,
		CreatedAt:    formatTime(method.CreatedAt),
		UpdatedAt:    formatTime(method.UpdatedAt),
	}
}

func writePaymentMethodError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentMethodInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentMethodNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_method_not_found", "payment method not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
