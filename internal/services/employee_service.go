package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/repositories"
)

const (
	employeeIDPrefix      = "emp_"
	employeeDefaultStatus = "active"
)

var (
	// ErrEmployeeInvalidInput signals the caller provided invalid data.
	ErrEmployeeInvalidInput = errors.New("employee: invalid input")
	// ErrEmployeeNotFound indicates the employee could not be located.
	ErrEmployeeNotFound = errors.New("employee: not found")
	// ErrEmployeeAlreadyExists indicates the RUT is already registered.
	ErrEmployeeAlreadyExists = errors.New("employee: already exists")

	// rutPattern matches a Chilean RUT without dots: 7 or 8 digits, a dash
	// and a verifier digit or K.
	rutPattern = regexp.MustCompile(`^\d{7,8}-[0-9kK]$`)
)

// EmployeeServiceDeps bundles collaborators required to construct the employee service.
type EmployeeServiceDeps struct {
	Employees   repositories.EmployeeRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type employeeService struct {
	employees repositories.EmployeeRepository
	clock     func() time.Time
	newID     func() string
}

// NewEmployeeService wires dependencies into a concrete EmployeeService implementation.
func NewEmployeeService(deps EmployeeServiceDeps) (EmployeeService, error) {
	if deps.Employees == nil {
		return nil, errors.New("employee service: employee repository is required")
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

	return &employeeService{
		employees: deps.Employees,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *employeeService) Create(ctx context.Context, cmd EmployeeCommand) (domain.Employee, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Employee{}, fmt.Errorf("%w: name is required", ErrEmployeeInvalidInput)
	}
	rut := strings.ToUpper(strings.TrimSpace(cmd.RUT))
	if !rutPattern.MatchString(rut) {
		return domain.Employee{}, fmt.Errorf("%w: rut must look like 12345678-9", ErrEmployeeInvalidInput)
	}

	status := strings.TrimSpace(cmd.Status)
	if status == "" {
		status = employeeDefaultStatus
	}

	employee := domain.Employee{
		ID:        employeeIDPrefix + s.newID(),
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(cmd.Email)),
		RUT:       rut,
		Role:      strings.TrimSpace(cmd.Role),
		Status:    status,
		CreatedAt: s.clock(),
	}

	if err := s.employees.Insert(ctx, employee); err != nil {
		return domain.Employee{}, s.mapRepositoryError(err)
	}
	return employee, nil
}

func (s *employeeService) Get(ctx context.Context, employeeID string) (domain.Employee, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return domain.Employee{}, fmt.Errorf("%w: employee id is required", ErrEmployeeInvalidInput)
	}

	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return domain.Employee{}, s.mapRepositoryError(err)
	}
	return employee, nil
}

func (s *employeeService) List(ctx context.Context) ([]domain.Employee, error) {
	employees, err := s.employees.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return employees, nil
}

func (s *employeeService) Update(ctx context.Context, cmd EmployeeCommand) (domain.Employee, error) {
	employeeID := strings.TrimSpace(cmd.ID)
	if employeeID == "" {
		return domain.Employee{}, fmt.Errorf("%w: employee id is required", ErrEmployeeInvalidInput)
	}

	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return domain.Employee{}, s.mapRepositoryError(err)
	}

	if name := strings.TrimSpace(cmd.Name); name != "" {
		employee.Name = name
	}
	if email := strings.TrimSpace(cmd.Email); email != "" {
		employee.Email = strings.ToLower(email)
	}
	if rut := strings.ToUpper(strings.TrimSpace(cmd.RUT)); rut != "" {
		if !rutPattern.MatchString(rut) {
			return domain.Employee{}, fmt.Errorf("%w: rut must look like 12345678-9", ErrEmployeeInvalidInput)
		}
		employee.RUT = rut
	}
	if role := strings.TrimSpace(cmd.Role); role != "" {
		employee.Role = role
	}
	if status := strings.TrimSpace(cmd.Status); status != "" {
		employee.Status = status
	}

	updated, err := s.employees.Update(ctx, employee)
	if err != nil {
		return domain.Employee{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *employeeService) Delete(ctx context.Context, employeeID string) error {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return fmt.Errorf("%w: employee id is required", ErrEmployeeInvalidInput)
	}

	if err := s.employees.Delete(ctx, employeeID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *employeeService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrEmployeeNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrEmployeeAlreadyExists, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("employee: repository unavailable: %w", err)
		}
	}

	return err
}
