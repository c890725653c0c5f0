package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/libre-rico/api/internal/domain"
)

type memoryPaymentMethodRepository struct {
	byUser map[string]map[string]domain.PaymentMethod
}

func newMemoryPaymentMethodRepository() *memoryPaymentMethodRepository {
	return &memoryPaymentMethodRepository{byUser: map[string]map[string]domain.PaymentMethod{}}
}

func (m *memoryPaymentMethodRepository) Insert(_ context.Context, userID string, method domain.PaymentMethod) error {
	if m.byUser[userID] == nil {
		m.byUser[userID] = map[string]domain.PaymentMethod{}
	}
	m.byUser[userID][method.ID] = method
	return nil
}

func (m *memoryPaymentMethodRepository) FindByID(_ context.Context, userID, methodID string) (domain.PaymentMethod, error) {
	method, ok := m.byUser[userID][methodID]
	if !ok {
		return domain.PaymentMethod{}, repoError{notFound: true}
	}
	return method, nil
}

func (m *memoryPaymentMethodRepository) ListByUser(_ context.Context, userID string) ([]domain.PaymentMethod, error) {
	methods := make([]domain.PaymentMethod, 0, len(m.byUser[userID]))
	for _, method := range m.byUser[userID] {
		methods = append(methods, method)
	}
	return methods, nil
}

func (m *memoryPaymentMethodRepository) Update(_ context.Context, userID string, method domain.PaymentMethod) (domain.PaymentMethod, error) {
	if _, ok := m.byUser[userID][method.ID]; !ok {
		return domain.PaymentMethod{}, repoError{notFound: true}
	}
	m.byUser[userID][method.ID] = method
	return method, nil
}

func (m *memoryPaymentMethodRepository) Delete(_ context.Context, userID, methodID string) error {
	if _, ok := m.byUser[userID][methodID]; !ok {
		return repoError{notFound: true}
	}
	delete(m.byUser[userID], methodID)
	return nil
}

func TestMaskCardNumber(t *testing.T) {
	cases := []struct {
		name       string
		number     string
		wantMasked string
		wantErr    bool
	}{
		{name: "sixteen digits", number: "4111111111114242", wantMasked: "**** **** **** 4242"},
		{name: "with spaces", number: "4111 1111 1111 4242", wantMasked: "**** **** **** 4242"},
		{name: "with dashes", number: "4111-1111-1111-4242", wantMasked: "**** **** **** 4242"},
		{name: "twelve digits", number: "411111119999", wantMasked: "**** **** **** 9999"},
		{name: "eleven digits", number: "41111111999", wantErr: true},
		{name: "letters", number: "4111x1111111x424", wantErr: true},
		{name: "empty", number: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			masked, last4, err := MaskCardNumber(tc.number)
			if tc.wantErr {
				if !errors.Is(err, ErrPaymentMethodInvalidInput) {
					t.Fatalf("err = %v, want ErrPaymentMethodInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MaskCardNumber returned error: %v", err)
			}
			if masked != tc.wantMasked {
				t.Fatalf("masked = %q, want %q", masked, tc.wantMasked)
			}
			if !strings.HasSuffix(masked, last4) {
				t.Fatalf("masked %q does not end in last4 %q", masked, last4)
			}
		})
	}
}

func TestAddPaymentMethodStoresOnlyMaskedNumber(t *testing.T) {
	repo := newMemoryPaymentMethodRepository()
	svc, err := NewPaymentMethodService(PaymentMethodServiceDeps{PaymentMethods: repo})
	if err != nil {
		t.Fatalf("NewPaymentMethodService returned error: %v", err)
	}

	method, err := svc.Add(context.Background(), AddPaymentMethodCommand{
		UserID: "usr_1",
		Holder: "María Pérez",
		Brand:  "visa",
		Expiry: "12/27",
		Number: "4111 1111 1111 4242",
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if method.MaskedNumber != "**** **** **** 4242" {
		t.Fatalf("masked = %q", method.MaskedNumber)
	}
	if method.Last4 != "4242" {
		t.Fatalf("last4 = %q", method.Last4)
	}
	if method.Kind != "card" {
		t.Fatalf("kind = %q, want the card default", method.Kind)
	}

	stored := repo.byUser["usr_1"][method.ID]
	if strings.Contains(stored.MaskedNumber, "4111") {
		t.Fatal("full card number leaked into storage")
	}
}

func TestUpdatePaymentMethodKeepsNumber(t *testing.T) {
	repo := newMemoryPaymentMethodRepository()
	svc, err := NewPaymentMethodService(PaymentMethodServiceDeps{PaymentMethods: repo})
	if err != nil {
		t.Fatalf("NewPaymentMethodService returned error: %v", err)
	}

	method, err := svc.Add(context.Background(), AddPaymentMethodCommand{
		UserID: "usr_1",
		Holder: "María Pérez",
		Number: "4111111111114242",
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	holder := "María P. de la Fuente"
	expiry := "01/30"
	updated, err := svc.Update(context.Background(), UpdatePaymentMethodCommand{
		UserID:   "usr_1",
		MethodID: method.ID,
		Holder:   &holder,
		Expiry:   &expiry,
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.Holder != holder || updated.Expiry != expiry {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.MaskedNumber != method.MaskedNumber || updated.Last4 != method.Last4 {
		t.Fatal("update must not touch the stored number")
	}
}

func TestGetPaymentMethodScopedToUser(t *testing.T) {
	repo := newMemoryPaymentMethodRepository()
	svc, err := NewPaymentMethodService(PaymentMethodServiceDeps{PaymentMethods: repo})
	if err != nil {
		t.Fatalf("NewPaymentMethodService returned error: %v", err)
	}

	method, err := svc.Add(context.Background(), AddPaymentMethodCommand{
		UserID: "usr_1",
		Holder: "María Pérez",
		Number: "4111111111114242",
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if _, err := svc.Get(context.Background(), "usr_2", method.ID); !errors.Is(err, ErrPaymentMethodNotFound) {
		t.Fatalf("err = %v, want ErrPaymentMethodNotFound for another user", err)
	}
}
