package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/repositories"
)

const (
	paymentMethodIDPrefix = "pm_"
	minCardDigits         = 12
	maskPrefix            = "**** **** **** "
)

var (
	// ErrPaymentMethodInvalidInput signals the caller provided invalid data.
	ErrPaymentMethodInvalidInput = errors.New("payment method: invalid input")
	// ErrPaymentMethodNotFound indicates the payment method could not be located.
	ErrPaymentMethodNotFound = errors.New("payment method: not found")
)

// PaymentMethodServiceDeps bundles collaborators required to construct the
// payment method service.
type PaymentMethodServiceDeps struct {
	PaymentMethods repositories.PaymentMethodRepository
	Clock          func() time.Time
	IDGenerator    func() string
}

type paymentMethodService struct {
	methods repositories.PaymentMethodRepository
	clock   func() time.Time
	newID   func() string
}

// NewPaymentMethodService wires dependencies into a concrete
// PaymentMethodService implementation.
func NewPaymentMethodService(deps PaymentMethodServiceDeps) (PaymentMethodService, error) {
	if deps.PaymentMethods == nil {
		return nil, errors.New("payment method service: repository is required")
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

	return &paymentMethodService{
		methods: deps.PaymentMethods,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// MaskCardNumber reduces a card number to its masked display form. Separators
// are ignored; the input must carry at least twelve digits.
func MaskCardNumber(number string) (masked, last4 string, err error) {
	var digits []rune
	for _, r := range number {
		switch {
		case unicode.IsDigit(r):
			digits = append(digits, r)
		case r == ' ' || r == '-':
			// separators are fine
		default:
			return "", "", fmt.Errorf("%w: card number contains invalid characters", ErrPaymentMethodInvalidInput)
		}
	}
	if len(digits) < minCardDigits {
		return "", "", fmt.Errorf("%w: card number needs at least %d digits", ErrPaymentMethodInvalidInput, minCardDigits)
	}
	last4 = string(digits[len(digits)-4:])
	return maskPrefix + last4, last4, nil
}

func (s *paymentMethodService) Add(ctx context.Context, cmd AddPaymentMethodCommand) (domain.PaymentMethod, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.PaymentMethod{}, fmt.Errorf("%w: user id is required", ErrPaymentMethodInvalidInput)
	}
	holder := strings.TrimSpace(cmd.Holder)
	if holder == "" {
		return domain.PaymentMethod{}, fmt.Errorf("%w: holder is required", ErrPaymentMethodInvalidInput)
	}

	masked, last4, err := MaskCardNumber(cmd.Number)
	if err != nil {
		return domain.PaymentMethod{}, err
	}

	kind := strings.TrimSpace(cmd.Kind)
	if kind == "" {
		kind = "card"
	}

	now := s.clock()
	method := domain.PaymentMethod{
		ID:           paymentMethodIDPrefix + s.newID(),
		Kind:         kind,
		Holder:       holder,
		Brand:        strings.TrimSpace(cmd.Brand),
		Expiry:       strings.TrimSpace(cmd.Expiry),
		MaskedNumber: masked,
		Last4:        last4,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.methods.Insert(ctx, userID, method); err != nil {
		return domain.PaymentMethod{}, s.mapRepositoryError(err)
	}
	return method, nil
}

func (s *paymentMethodService) Get(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error) {
	userID = strings.TrimSpace(userID)
	methodID = strings.TrimSpace(methodID)
	if userID == "" || methodID == "" {
		return domain.PaymentMethod{}, fmt.Errorf("%w: user id and method id are required", ErrPaymentMethodInvalidInput)
	}

	method, err := s.methods.FindByID(ctx, userID, methodID)
	if err != nil {
		return domain.PaymentMethod{}, s.mapRepositoryError(err)
	}
	return method, nil
}

func (s *paymentMethodService) List(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrPaymentMethodInvalidInput)
	}

	methods, err := s.methods.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return methods, nil
}

func (s *paymentMethodService) Update(ctx context.Context, cmd UpdatePaymentMethodCommand) (domain.PaymentMethod, error) {
	userID := strings.TrimSpace(cmd.UserID)
	methodID := strings.TrimSpace(cmd.MethodID)
	if userID == "" || methodID == "" {
		return domain.PaymentMethod{}, fmt.Errorf("%w: user id and method id are required", ErrPaymentMethodInvalidInput)
	}

	method, err := s.methods.FindByID(ctx, userID, methodID)
	if err != nil {
		return domain.PaymentMethod{}, s.mapRepositoryError(err)
	}

	// The card number is immutable; replacing a card means adding a new method.
	if cmd.Holder != nil {
		holder := strings.TrimSpace(*cmd.Holder)
		if holder == "" {
			return domain.PaymentMethod{}, fmt.Errorf("%w: holder must not be blank", ErrPaymentMethodInvalidInput)
		}
		method.Holder = holder
	}
	if cmd.Brand != nil {
		method.Brand = strings.TrimSpace(*cmd.Brand)
	}
	if cmd.Expiry != nil {
		method.Expiry = strings.TrimSpace(*cmd.Expiry)
	}
	method.UpdatedAt = s.clock()

	updated, err := s.methods.Update(ctx, userID, method)
	if err != nil {
		return domain.PaymentMethod{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *paymentMethodService) Delete(ctx context.Context, userID, methodID string) error {
	userID = strings.TrimSpace(userID)
	methodID = strings.TrimSpace(methodID)
	if userID == "" || methodID == "" {
		return fmt.Errorf("%w: user id and method id are required", ErrPaymentMethodInvalidInput)
	}

	if err := s.methods.Delete(ctx, userID, methodID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *paymentMethodService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentMethodNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment method: repository unavailable: %w", err)
		}
	}

	return err
}
