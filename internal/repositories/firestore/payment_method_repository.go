package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/libre-rico/api/internal/domain"
	pfirestore "github.com/libre-rico/api/internal/platform/firestore"
	"github.com/libre-rico/api/internal/repositories"
)

const paymentMethodCollectionPattern = "users/%s/paymentMethods"

// PaymentMethodRepository persists masked payment instruments in Firestore.
// Only the masked form of the card number is ever stored.
type PaymentMethodRepository struct {
	provider *pfirestore.Provider
}

// NewPaymentMethodRepository constructs a Firestore-backed payment method repository.
func NewPaymentMethodRepository(provider *pfirestore.Provider) (*PaymentMethodRepository, error) {
	if provider == nil {
		return nil, errors.New("payment method repository requires firestore provider")
	}
	return &PaymentMethodRepository{provider: provider}, nil
}

// Insert stores a new payment method document.
func (r *PaymentMethodRepository) Insert(ctx context.Context, userID string, method domain.PaymentMethod) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(method.ID)
	if id == "" {
		return errors.New("payment method repository: id is required")
	}
	if _, err := coll.Doc(id).Create(ctx, encodePaymentMethod(method)); err != nil {
		return pfirestore.WrapError("payment_methods.insert", err)
	}
	return nil
}

// FindByID loads a single payment method.
func (r *PaymentMethodRepository) FindByID(ctx context.Context, userID, methodID string) (domain.PaymentMethod, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	id := strings.TrimSpace(methodID)
	if id == "" {
		return domain.PaymentMethod{}, errors.New("payment method repository: id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.PaymentMethod{}, pfirestore.WrapError("payment_methods.get", err)
	}
	return decodePaymentMethodDocument(snap)
}

// ListByUser returns all payment methods ordered by creation time descending.
func (r *PaymentMethodRepository) ListByUser(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var methods []domain.PaymentMethod
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("payment_methods.list", err)
		}
		method, err := decodePaymentMethodDocument(snap)
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	return methods, nil
}

// Update replaces the stored payment method. Missing methods are reported as not found.
func (r *PaymentMethodRepository) Update(ctx context.Context, userID string, method domain.PaymentMethod) (domain.PaymentMethod, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	id := strings.TrimSpace(method.ID)
	if id == "" {
		return domain.PaymentMethod{}, errors.New("payment method repository: id is required")
	}

	var saved domain.PaymentMethod
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		if _, err := tx.Get(docRef); err != nil {
			return err
		}
		doc := encodePaymentMethod(method)
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.PaymentMethod{}, pfirestore.WrapError("payment_methods.update", err)
	}
	return saved, nil
}

// Delete removes the specified payment method. Missing methods are reported as not found.
func (r *PaymentMethodRepository) Delete(ctx context.Context, userID, methodID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(methodID)
	if id == "" {
		return errors.New("payment method repository: id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("payment_methods.delete", err)
	}
	return nil
}

func (r *PaymentMethodRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("payment method repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("payment method repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf(paymentMethodCollectionPattern, uid)
	return client.Collection(path), nil
}

func decodePaymentMethodDocument(snapshot *firestore.DocumentSnapshot) (domain.PaymentMethod, error) {
	var doc paymentMethodDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("decode payment method %s: %w", snapshot.Ref.ID, err)
	}
	return doc.toDomain(snapshot.Ref.ID), nil
}

type paymentMethodDocument struct {
	Kind         string    `firestore:"kind"`
	Holder       string    `firestore:"holder"`
	Brand        string    `firestore:"brand,omitempty"`
	Expiry       string    `firestore:"expiry,omitempty"`
	MaskedNumber string    `firestore:"maskedNumber"`
	Last4        string    `firestore:"last4"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func encodePaymentMethod(method domain.PaymentMethod) paymentMethodDocument {
	doc := paymentMethodDocument{
		Kind:         strings.TrimSpace(method.Kind),
		Holder:       strings.TrimSpace(method.Holder),
		Brand:        strings.TrimSpace(method.Brand),
		Expiry:       strings.TrimSpace(method.Expiry),
		MaskedNumber: strings.TrimSpace(method.MaskedNumber),
		Last4:        strings.TrimSpace(method.Last4),
		CreatedAt:    method.CreatedAt.UTC(),
		UpdatedAt:    method.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	return doc
}

func (d paymentMethodDocument) toDomain(id string) domain.PaymentMethod {
	return domain.PaymentMethod{
		ID:           id,
		Kind:         d.Kind,
		Holder:       d.Holder,
		Brand:        d.Brand,
		Expiry:       d.Expiry,
		MaskedNumber: d.MaskedNumber,
		Last4:        d.Last4,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.PaymentMethodRepository = (*PaymentMethodRepository)(nil)
