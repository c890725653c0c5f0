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

const maxEmployeeBodySize = 16 * 1024

type employeeRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	RUT    string `json:"rut"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type employeePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	RUT       string `json:"rut"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type employeeListResponse struct {
	Items []employeePayload `json:"items"`
}

// EmployeeHandlers exposes the staff management endpoints.
type EmployeeHandlers struct {
	employees services.EmployeeService
}

// NewEmployeeHandlers constructs a new EmployeeHandlers instance.
func NewEmployeeHandlers(employees services.EmployeeService) *EmployeeHandlers {
	return &EmployeeHandlers{employees: employees}
}

// Routes registers the /employees endpoints.
func (h *EmployeeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{employeeID}", h.get)
	r.Patch("/{employeeID}", h.update)
	r.Delete("/{employeeID}", h.delete)
}

func (h *EmployeeHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.employees == nil {
		httpx.WriteError(ctx, w, httpx.NewError("employee_service_unavailable", "employee service unavailable", http.StatusServiceUnavailable))
		return
	}

	req, ok := decodeEmployeeRequest(ctx, w, r)
	if !ok {
		return
	}

	employee, err := h.employees.Create(ctx, services.EmployeeCommand{
		Name:   req.Name,
		Email:  req.Email,
		RUT:    req.RUT,
		Role:   req.Role,
		Status: req.Status,
	})
	if err != nil {
		writeEmployeeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildEmployeePayload(employee))
}

func (h *EmployeeHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.employees == nil {
		httpx.WriteError(ctx, w, httpx.NewError("employee_service_unavailable", "employee service unavailable", http.StatusServiceUnavailable))
		return
	}

	employees, err := h.employees.List(ctx)
	if err != nil {
		writeEmployeeError(ctx, w, err)
		return
	}

	items := make([]employeePayload, 0, len(employees))
	for _, employee := range employees {
		items = append(items, buildEmployeePayload(employee))
	}
	writeJSONResponse(w, http.StatusOK, employeeListResponse{Items: items})
}

func (h *EmployeeHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.employees == nil {
		httpx.WriteError(ctx, w, httpx.NewError("employee_service_unavailable", "employee service unavailable", http.StatusServiceUnavailable))
		return
	}

	employeeID := strings.TrimSpace(chi.URLParam(r, "employeeID"))
	if employeeID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "employee id is required", http.StatusBadRequest))
		return
	}

	employee, err := h.employees.Get(ctx, employeeID)
	if err != nil {
		writeEmployeeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildEmployeePayload(employee))
}

func (h *EmployeeHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.employees == nil {
		httpx.WriteError(ctx, w, httpx.NewError("employee_service_unavailable", "employee service unavailable", http.StatusServiceUnavailable))
		return
	}

	employeeID := strings.TrimSpace(chi.URLParam(r, "employeeID"))
	if employeeID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "employee id is required", http.StatusBadRequest))
		return
	}

	req, ok := decodeEmployeeRequest(ctx, w, r)
	if !ok {
		return
	}

	employee, err := h.employees.Update(ctx, services.EmployeeCommand{
		ID:     employeeID,
		Name:   req.Name,
		Email:  req.Email,
		RUT:    req.RUT,
		Role:   req.Role,
		Status: req.Status,
	})
	if err != nil {
		writeEmployeeError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildEmployeePayload(employee))
}

func (h *EmployeeHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.employees == nil {
		httpx.WriteError(ctx, w, httpx.NewError("employee_service_unavailable", "employee service unavailable", http.StatusServiceUnavailable))
		return
	}

	employeeID := strings.TrimSpace(chi.URLParam(r, "employeeID"))
	if employeeID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "employee id is required", http.StatusBadRequest))
		return
	}

	if err := h.employees.Delete(ctx, employeeID); err != nil {
		writeEmployeeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeEmployeeRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (employeeRequest, bool) {
	var req employeeRequest
	body, err := readLimitedBody(r, maxEmployeeBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return req, false
	}
	return req, true
}

func buildEmployeePayload(employee domain.Employee) employeePayload {
	return employeePayload{
		ID:        employee.ID,
		Name:      employee.Name,
		Email:     employee.Email,
		RUT:       employee.RUT,
		Role:      employee.Role,
		Status:    employee.Status,
		CreatedAt: formatTime(employee.CreatedAt),
	}
}

func writeEmployeeError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrEmployeeInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrEmployeeNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("employee_not_found", "employee not found", http.StatusNotFound))
	case errors.Is(err, services.ErrEmployeeAlreadyExists):
		httpx.WriteError(ctx, w, httpx.NewError("employee_exists", "rut is already registered", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
