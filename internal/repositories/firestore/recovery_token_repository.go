package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/libre-rico/api/internal/domain"
	pfirestore "github.com/libre-rico/api/internal/platform/firestore"
	"github.com/libre-rico/api/internal/repositories"
)

const recoveryTokenCollection = "recoveryTokens"

// RecoveryTokenRepository stores single-use password recovery tokens in Firestore.
type RecoveryTokenRepository struct {
	col *pfirestore.Collection[recoveryTokenDocument]
}

// NewRecoveryTokenRepository constructs a Firestore-backed recovery token repository.
func NewRecoveryTokenRepository(provider *pfirestore.Provider) (*RecoveryTokenRepository, error) {
	if provider == nil {
		return nil, errors.New("recovery token repository requires firestore provider")
	}
	col := pfirestore.NewCollection[recoveryTokenDocument](provider, recoveryTokenCollection)
	return &RecoveryTokenRepository{col: col}, nil
}

// Insert stores a freshly issued token.
func (r *RecoveryTokenRepository) Insert(ctx context.Context, token domain.RecoveryToken) error {
	id := strings.TrimSpace(token.ID)
	if id == "" {
		return errors.New("recovery token repository: id is required")
	}
	if err := r.col.Create(ctx, id, encodeRecoveryToken(token)); err != nil {
		return err
	}
	return nil
}

// FindByToken loads a token record by its opaque value.
func (r *RecoveryTokenRepository) FindByToken(ctx context.Context, token string) (domain.RecoveryToken, error) {
	value := strings.TrimSpace(token)
	if value == "" {
		return domain.RecoveryToken{}, pfirestore.WrapError("recovery_tokens.find", status.Error(codes.NotFound, "token not found"))
	}
	docs, err := r.col.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("token", "==", value).Limit(1)
	})
	if err != nil {
		return domain.RecoveryToken{}, err
	}
	if len(docs) == 0 {
		return domain.RecoveryToken{}, pfirestore.WrapError("recovery_tokens.find", status.Error(codes.NotFound, "token not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// MarkUsed flags the token as consumed.
func (r *RecoveryTokenRepository) MarkUsed(ctx context.Context, tokenID string) error {
	updates := []firestore.Update{{Path: "used", Value: true}}
	if err := r.col.Update(ctx, strings.TrimSpace(tokenID), updates); err != nil {
		return err
	}
	return nil
}

type recoveryTokenDocument struct {
	Email     string    `firestore:"email"`
	Token     string    `firestore:"token"`
	ExpiresAt time.Time `firestore:"expiresAt"`
	Used      bool      `firestore:"used"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func encodeRecoveryToken(token domain.RecoveryToken) recoveryTokenDocument {
	doc := recoveryTokenDocument{
		Email:     strings.ToLower(strings.TrimSpace(token.Email)),
		Token:     strings.TrimSpace(token.Token),
		ExpiresAt: token.ExpiresAt.UTC(),
		Used:      token.Used,
		CreatedAt: token.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	return doc
}

func (d recoveryTokenDocument) toDomain(id string) domain.RecoveryToken {
	return domain.RecoveryToken{
		ID:        id,
		Email:     d.Email,
		Token:     d.Token,
		ExpiresAt: d.ExpiresAt,
		Used:      d.Used,
		CreatedAt: d.CreatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.RecoveryTokenRepository = (*RecoveryTokenRepository)(nil)
