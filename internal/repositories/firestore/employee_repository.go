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

const employeeCollection = "employees"

// EmployeeRepository persists staff records in Firestore.
type EmployeeRepository struct {
	provider *pfirestore.Provider
	col      *pfirestore.Collection[employeeDocument]
}

// NewEmployeeRepository constructs a Firestore-backed employee repository.
func NewEmployeeRepository(provider *pfirestore.Provider) (*EmployeeRepository, error) {
	if provider == nil {
		return nil, errors.New("employee repository requires firestore provider")
	}
	col := pfirestore.NewCollection[employeeDocument](provider, employeeCollection)
	return &EmployeeRepository{provider: provider, col: col}, nil
}

// Insert stores a new employee, ensuring RUT uniqueness.
func (r *EmployeeRepository) Insert(ctx context.Context, employee domain.Employee) error {
	id := strings.TrimSpace(employee.ID)
	if id == "" {
		return errors.New("employee repository: id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	coll := client.Collection(employeeCollection)
	rut := strings.TrimSpace(employee.RUT)
	email := strings.TrimSpace(employee.Email)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(coll.Where("rut", "==", rut).Limit(1)).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "rut already registered")
		}
		if email != "" {
			snaps, err = tx.Documents(coll.Where("email", "==", email).Limit(1)).GetAll()
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			if len(snaps) > 0 {
				return status.Error(codes.AlreadyExists, "email already registered")
			}
		}
		return tx.Create(coll.Doc(id), encodeEmployee(employee))
	})
	if err != nil {
		return pfirestore.WrapError("employees.insert", err)
	}
	return nil
}

// FindByID loads an employee by identifier.
func (r *EmployeeRepository) FindByID(ctx context.Context, employeeID string) (domain.Employee, error) {
	doc, err := r.col.Get(ctx, strings.TrimSpace(employeeID))
	if err != nil {
		return domain.Employee{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByRUT loads an employee by national identifier.
func (r *EmployeeRepository) FindByRUT(ctx context.Context, rut string) (domain.Employee, error) {
	trimmed := strings.TrimSpace(rut)
	if trimmed == "" {
		return domain.Employee{}, pfirestore.WrapError("employees.find", status.Error(codes.NotFound, "employee not found"))
	}
	docs, err := r.col.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("rut", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Employee{}, err
	}
	if len(docs) == 0 {
		return domain.Employee{}, pfirestore.WrapError("employees.find", status.Error(codes.NotFound, "employee not found"))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns all employees ordered by name.
func (r *EmployeeRepository) List(ctx context.Context) ([]domain.Employee, error) {
	docs, err := r.col.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	employees := make([]domain.Employee, 0, len(docs))
	for _, doc := range docs {
		employees = append(employees, doc.Data.toDomain(doc.ID))
	}
	return employees, nil
}

// Update replaces the stored employee document. Missing employees are reported as not found.
func (r *EmployeeRepository) Update(ctx context.Context, employee domain.Employee) (domain.Employee, error) {
	id := strings.TrimSpace(employee.ID)
	if id == "" {
		return domain.Employee{}, errors.New("employee repository: id is required")
	}

	docRef, err := r.col.DocumentRef(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}

	var saved domain.Employee
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(docRef); err != nil {
			return err
		}
		doc := encodeEmployee(employee)
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.Employee{}, pfirestore.WrapError("employees.update", err)
	}
	return saved, nil
}

// Delete removes the employee document. Missing employees are reported as not found.
func (r *EmployeeRepository) Delete(ctx context.Context, employeeID string) error {
	if err := r.col.Delete(ctx, strings.TrimSpace(employeeID), firestore.Exists); err != nil {
		return err
	}
	return nil
}

type employeeDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	RUT       string    `firestore:"rut"`
	Role      string    `firestore:"role,omitempty"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func encodeEmployee(employee domain.Employee) employeeDocument {
	doc := employeeDocument{
		Name:      strings.TrimSpace(employee.Name),
		Email:     strings.ToLower(strings.TrimSpace(employee.Email)),
		RUT:       strings.TrimSpace(employee.RUT),
		Role:      strings.TrimSpace(employee.Role),
		Status:    strings.TrimSpace(employee.Status),
		CreatedAt: employee.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	return doc
}

func (d employeeDocument) toDomain(id string) domain.Employee {
	return domain.Employee{
		ID:        id,
		Name:      d.Name,
		Email:     d.Email,
		RUT:       d.RUT,
		Role:      d.Role,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.EmployeeRepository = (*EmployeeRepository)(nil)
