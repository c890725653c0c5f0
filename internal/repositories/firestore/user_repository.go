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

const userCollection = "users"

// UserRepository persists customer accounts in Firestore.
type UserRepository struct {
	provider *pfirestore.Provider
	col      *pfirestore.Collection[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	col := pfirestore.NewCollection[userDocument](provider, userCollection)
	return &UserRepository{provider: provider, col: col}, nil
}

// Insert stores a new user, ensuring email and RUT remain unique.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	id := strings.TrimSpace(user.ID)
	if id == "" {
		return errors.New("user repository: id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	coll := client.Collection(userCollection)
	email := strings.ToLower(strings.TrimSpace(user.Email))
	rut := strings.TrimSpace(user.RUT)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(coll.Where("email", "==", email).Limit(1)).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "email already registered")
		}

		if rut != "" {
			snaps, err = tx.Documents(coll.Where("rut", "==", rut).Limit(1)).GetAll()
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if len(snaps) > 0 {
				return status.Error(codes.AlreadyExists, "rut already registered")
			}
		}

		return tx.Create(coll.Doc(id), encodeUser(user))
	})
	if err != nil {
		return pfirestore.WrapError("users.insert", err)
	}
	return nil
}

// FindByID loads a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	doc, err := r.col.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.User{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByEmail loads a user by their e-mail address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOneBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// FindByRUT loads a user by national identifier.
func (r *UserRepository) FindByRUT(ctx context.Context, rut string) (domain.User, error) {
	return r.findOneBy(ctx, "rut", strings.TrimSpace(rut))
}

// Update replaces the stored user document.
func (r *UserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	id := strings.TrimSpace(user.ID)
	if id == "" {
		return domain.User{}, errors.New("user repository: id is required")
	}

	docRef, err := r.col.DocumentRef(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	var saved domain.User
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(docRef); err != nil {
			return err
		}
		doc := encodeUser(user)
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.update", err)
	}
	return saved, nil
}

// Delete removes the user document. Missing users are reported as not found.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if err := r.col.Delete(ctx, strings.TrimSpace(userID), firestore.Exists); err != nil {
		return err
	}
	return nil
}

// List returns all registered users.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	docs, err := r.col.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.Data.toDomain(doc.ID))
	}
	return users, nil
}

func (r *UserRepository) findOneBy(ctx context.Context, field, value string) (domain.User, error) {
	if value == "" {
		return domain.User{}, pfirestore.WrapError("users.find", status.Error(codes.NotFound, "user not found"))
	}
	docs, err := r.col.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where(field, "==", value).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, pfirestore.WrapError("users.find", status.Error(codes.NotFound, "user not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

type userDocument struct {
	Email        string    `firestore:"email"`
	Username     string    `firestore:"username"`
	FirstNames   string    `firestore:"firstNames,omitempty"`
	LastNames    string    `firestore:"lastNames,omitempty"`
	RUT          string    `firestore:"rut,omitempty"`
	Phone        string    `firestore:"phone,omitempty"`
	Address      string    `firestore:"address,omitempty"`
	Lat          *float64  `firestore:"lat,omitempty"`
	Lon          *float64  `firestore:"lon,omitempty"`
	PasswordHash string    `firestore:"passwordHash"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func encodeUser(user domain.User) userDocument {
	doc := userDocument{
		Email:        strings.ToLower(strings.TrimSpace(user.Email)),
		Username:     strings.TrimSpace(user.Username),
		FirstNames:   strings.TrimSpace(user.FirstNames),
		LastNames:    strings.TrimSpace(user.LastNames),
		RUT:          strings.TrimSpace(user.RUT),
		Phone:        strings.TrimSpace(user.Phone),
		Address:      strings.TrimSpace(user.Address),
		Lat:          user.Lat,
		Lon:          user.Lon,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	return doc
}

func (d userDocument) toDomain(id string) domain.User {
	return domain.User{
		ID:           id,
		Email:        d.Email,
		Username:     d.Username,
		FirstNames:   d.FirstNames,
		LastNames:    d.LastNames,
		RUT:          d.RUT,
		Phone:        d.Phone,
		Address:      d.Address,
		Lat:          d.Lat,
		Lon:          d.Lon,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.UserRepository = (*UserRepository)(nil)
