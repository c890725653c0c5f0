package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/services"
)

type stubUserService struct {
	registerFn     func(context.Context, services.RegisterUserCommand) (domain.User, error)
	authenticateFn func(context.Context, string, string) (domain.User, error)
	getFn          func(context.Context, string) (domain.User, error)
	listFn         func(context.Context) ([]domain.User, error)
	updateFn       func(context.Context, services.UpdateUserCommand) (domain.User, error)
	deleteFn       func(context.Context, string) error
	changeFn       func(context.Context, string, string, string) error
	validateFn     func(context.Context, string) (bool, error)
	recoveryFn     func(context.Context, string) (domain.RecoveryToken, error)
	resetFn        func(context.Context, string, string) error
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterUserCommand) (domain.User, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, cmd)
	}
	return domain.User{}, errors.New("not implemented")
}

func (s *stubUserService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	if s.authenticateFn != nil {
		return s.authenticateFn(ctx, email, password)
	}
	return domain.User{}, errors.New("not implemented")
}

func (s *stubUserService) Get(ctx context.Context, userID string) (domain.User, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return domain.User{}, errors.New("not implemented")
}

func (s *stubUserService) List(ctx context.Context) ([]domain.User, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (s *stubUserService) Update(ctx context.Context, cmd services.UpdateUserCommand) (domain.User, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.User{}, errors.New("not implemented")
}

func (s *stubUserService) Delete(ctx context.Context, userID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, userID)
	}
	return errors.New("not implemented")
}

func (s *stubUserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if s.changeFn != nil {
		return s.changeFn(ctx, userID, current, next)
	}
	return errors.New("not implemented")
}

func (s *stubUserService) ValidateEmail(ctx context.Context, email string) (bool, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, email)
	}
	return false, errors.New("not implemented")
}

func (s *stubUserService) RequestRecovery(ctx context.Context, email string) (domain.RecoveryToken, error) {
	if s.recoveryFn != nil {
		return s.recoveryFn(ctx, email)
	}
	return domain.RecoveryToken{}, errors.New("not implemented")
}

func (s *stubUserService) ResetPassword(ctx context.Context, token, password string) error {
	if s.resetFn != nil {
		return s.resetFn(ctx, token, password)
	}
	return errors.New("not implemented")
}

func newUserTestRouter(service services.UserService) chi.Router {
	r := chi.NewRouter()
	r.Route("/users", NewUserHandlers(service).Routes)
	return r
}

func TestRegisterEndpoint(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	service := &stubUserService{
		registerFn: func(_ context.Context, cmd services.RegisterUserCommand) (domain.User, error) {
			return domain.User{
				ID:        "usr_1",
				Email:     strings.ToLower(cmd.Email),
				Username:  "maria",
				RUT:       cmd.RUT,
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}
	router := newUserTestRouter(service)

	body := `{"email": "Maria@Example.com", "password": "Secreta99", "rut": "12345678-9"}`
	req := httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var payload userPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Email != "maria@example.com" {
		t.Fatalf("payload = %+v", payload)
	}
	if strings.Contains(rec.Body.String(), "Secreta99") {
		t.Fatal("password leaked into the response")
	}
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	service := &stubUserService{
		registerFn: func(context.Context, services.RegisterUserCommand) (domain.User, error) {
			return domain.User{}, fmt.Errorf("%w: email or rut already registered", services.ErrUserAlreadyExists)
		},
	}
	router := newUserTestRouter(service)

	body := `{"email": "dup@example.com", "password": "Secreta99", "rut": "12345678-9"}`
	req := httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	service := &stubUserService{
		authenticateFn: func(context.Context, string, string) (domain.User, error) {
			return domain.User{}, services.ErrUserInvalidCredentials
		},
	}
	router := newUserTestRouter(service)

	body := `{"email": "x@example.com", "password": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/users/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRecoveryEndpoint(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	service := &stubUserService{
		recoveryFn: func(_ context.Context, email string) (domain.RecoveryToken, error) {
			if email != "forgot@example.com" {
				t.Fatalf("recovery for %q", email)
			}
			return domain.RecoveryToken{Token: "abc123", ExpiresAt: now.Add(time.Hour)}, nil
		},
	}
	router := newUserTestRouter(service)

	body := `{"email": "forgot@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/users/recovery", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var payload recoveryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if payload.Token != "abc123" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestResetPasswordEndpointInvalidToken(t *testing.T) {
	service := &stubUserService{
		resetFn: func(context.Context, string, string) error {
			return fmt.Errorf("%w: token expired", services.ErrRecoveryTokenInvalid)
		},
	}
	router := newUserTestRouter(service)

	body := `{"token": "stale", "password": "Renovada11"}`
	req := httptest.NewRequest(http.MethodPost, "/users/recovery/reset", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteUserEndpoint(t *testing.T) {
	var deleted string
	service := &stubUserService{
		deleteFn: func(_ context.Context, userID string) error {
			deleted = userID
			return nil
		},
	}
	router := newUserTestRouter(service)

	req := httptest.NewRequest(http.MethodDelete, "/users/usr_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if deleted != "usr_1" {
		t.Fatalf("deleted = %q", deleted)
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	var gotUser, gotCurrent, gotNext string
	service := &stubUserService{
		changeFn: func(_ context.Context, userID, current, next string) error {
			gotUser, gotCurrent, gotNext = userID, current, next
			return nil
		},
	}
	router := newUserTestRouter(service)

	body := strings.NewReader(`{"current_password":"Secreta1","new_password":"Secreta2"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/usr_1:change-password", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	if gotUser != "usr_1" || gotCurrent != "Secreta1" || gotNext != "Secreta2" {
		t.Fatalf("change password called with %q %q %q", gotUser, gotCurrent, gotNext)
	}
}

func TestChangePasswordEndpointWrongCurrent(t *testing.T) {
	service := &stubUserService{
		changeFn: func(context.Context, string, string, string) error {
			return services.ErrUserInvalidCredentials
		},
	}
	router := newUserTestRouter(service)

	body := strings.NewReader(`{"current_password":"nope","new_password":"Secreta2"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/usr_1:change-password", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestValidateEmailEndpoint(t *testing.T) {
	service := &stubUserService{
		validateFn: func(_ context.Context, email string) (bool, error) {
			return email == "maria@example.cl", nil
		},
	}
	router := newUserTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/users/validate-email?email=maria%40example.cl", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Email      string `json:"email"`
		Registered bool   `json:"registered"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Registered || payload.Email != "maria@example.cl" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestValidateEmailEndpointMalformed(t *testing.T) {
	service := &stubUserService{
		validateFn: func(context.Context, string) (bool, error) {
			return false, fmt.Errorf("%w: email address is malformed", services.ErrUserInvalidInput)
		},
	}
	router := newUserTestRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/users/validate-email?email=not-an-email", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
