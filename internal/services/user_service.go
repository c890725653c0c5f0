package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"

	domain "github.com/libre-rico/api/internal/domain"
	"github.com/libre-rico/api/internal/repositories"
)

const (
	userIDPrefix          = "usr_"
	recoveryTokenIDPrefix = "rtk_"
	recoveryTokenTTL      = time.Hour
	recoveryTokenBytes    = 32
	minPasswordLength     = 8
)

var (
	// ErrUserInvalidInput signals the caller provided invalid data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserNotFound indicates the account could not be located.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUserAlreadyExists indicates the email or RUT is already registered.
	ErrUserAlreadyExists = errors.New("user: already exists")
	// ErrUserInvalidCredentials indicates email and password did not match.
	ErrUserInvalidCredentials = errors.New("user: invalid credentials")
	// ErrRecoveryTokenInvalid indicates the token is unknown, expired or spent.
	ErrRecoveryTokenInvalid = errors.New("user: recovery token invalid")

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users          repositories.UserRepository
	RecoveryTokens repositories.RecoveryTokenRepository
	Clock          func() time.Time
	IDGenerator    func() string
	TokenGenerator func() (string, error)
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type userService struct {
	users    repositories.UserRepository
	tokens   repositories.RecoveryTokenRepository
	clock    func() time.Time
	newID    func() string
	newToken func() (string, error)
	logger   func(context.Context, string, map[string]any)
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
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

	tokenGen := deps.TokenGenerator
	if tokenGen == nil {
		tokenGen = func() (string, error) {
			buf := make([]byte, recoveryTokenBytes)
			if _, err := rand.Read(buf); err != nil {
				return "", err
			}
			return base64.RawURLEncoding.EncodeToString(buf), nil
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users:  deps.Users,
		tokens: deps.RecoveryTokens,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		newToken: tokenGen,
		logger:   logger,
	}, nil
}

func (s *userService) Register(ctx context.Context, cmd RegisterUserCommand) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if !emailPattern.MatchString(email) {
		return domain.User{}, fmt.Errorf("%w: invalid email", ErrUserInvalidInput)
	}
	if err := validatePassword(cmd.Password); err != nil {
		return domain.User{}, err
	}

	rut := strings.ToUpper(strings.TrimSpace(cmd.RUT))
	if rut == "" {
		return domain.User{}, fmt.Errorf("%w: rut is required", ErrUserInvalidInput)
	}

	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		// Fall back to the mailbox name when no username was chosen.
		username = email[:strings.Index(email, "@")]
	}

	now := s.clock()
	user := domain.User{
		ID:           userIDPrefix + s.newID(),
		Email:        email,
		Username:     username,
		FirstNames:   strings.TrimSpace(cmd.FirstNames),
		LastNames:    strings.TrimSpace(cmd.LastNames),
		RUT:          rut,
		Phone:        strings.TrimSpace(cmd.Phone),
		Address:      strings.TrimSpace(cmd.Address),
		Lat:          cmd.Lat,
		Lon:          cmd.Lon,
		PasswordHash: hashPassword(cmd.Password),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return domain.User{}, fmt.Errorf("%w: email or rut already registered", ErrUserAlreadyExists)
		}
		return domain.User{}, err
	}

	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: email and password are required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// The caller cannot distinguish a missing account from a bad password.
			return domain.User{}, ErrUserInvalidCredentials
		}
		return domain.User{}, err
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(hashPassword(password))) != 1 {
		return domain.User{}, ErrUserInvalidCredentials
	}

	return user, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(hashPassword(currentPassword))) != 1 {
		return ErrUserInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user.PasswordHash = hashPassword(newPassword)
	user.UpdatedAt = s.clock()
	if _, err := s.users.Update(ctx, user); err != nil {
		return s.mapRepositoryError(err)
	}

	s.logger(ctx, "user.password.changed", map[string]any{"user_id": user.ID})
	return nil
}

// ValidateEmail reports whether an account exists for the address. A malformed
// address is an input error rather than a lookup miss.
func (s *userService) ValidateEmail(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return false, fmt.Errorf("%w: email address is malformed", ErrUserInvalidInput)
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *userService) Get(ctx context.Context, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.User{}, s.mapRepositoryError(err)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return users, nil
}

func (s *userService) Update(ctx context.Context, cmd UpdateUserCommand) (domain.User, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.User{}, s.mapRepositoryError(err)
	}

	if cmd.Username != nil {
		username := strings.TrimSpace(*cmd.Username)
		if username == "" {
			return domain.User{}, fmt.Errorf("%w: username must not be blank", ErrUserInvalidInput)
		}
		user.Username = username
	}
	if cmd.FirstNames != nil {
		user.FirstNames = strings.TrimSpace(*cmd.FirstNames)
	}
	if cmd.LastNames != nil {
		user.LastNames = strings.TrimSpace(*cmd.LastNames)
	}
	if cmd.Phone != nil {
		user.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if cmd.Address != nil {
		user.Address = strings.TrimSpace(*cmd.Address)
		// A new address invalidates any previously stored coordinates unless
		// fresh ones arrive in the same update.
		if cmd.Lat == nil && cmd.Lon == nil {
			user.Lat = nil
			user.Lon = nil
		}
	}
	if cmd.Lat != nil {
		user.Lat = cmd.Lat
	}
	if cmd.Lon != nil {
		user.Lon = cmd.Lon
	}
	user.UpdatedAt = s.clock()

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return domain.User{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *userService) Delete(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *userService) RequestRecovery(ctx context.Context, email string) (domain.RecoveryToken, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.RecoveryToken{}, fmt.Errorf("%w: email is required", ErrUserInvalidInput)
	}
	if s.tokens == nil {
		return domain.RecoveryToken{}, errors.New("user service: recovery token repository not configured")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.RecoveryToken{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		return domain.RecoveryToken{}, err
	}

	value, err := s.newToken()
	if err != nil {
		return domain.RecoveryToken{}, fmt.Errorf("user: generating recovery token: %w", err)
	}

	now := s.clock()
	token := domain.RecoveryToken{
		ID:        recoveryTokenIDPrefix + s.newID(),
		Email:     user.Email,
		Token:     value,
		ExpiresAt: now.Add(recoveryTokenTTL),
		CreatedAt: now,
	}

	if err := s.tokens.Insert(ctx, token); err != nil {
		return domain.RecoveryToken{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "user.recovery.requested", map[string]any{
		"user":    user.ID,
		"expires": token.ExpiresAt.Format(time.RFC3339),
	})

	return token, nil
}

func (s *userService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	tokenValue = strings.TrimSpace(tokenValue)
	if tokenValue == "" {
		return fmt.Errorf("%w: token is required", ErrUserInvalidInput)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if s.tokens == nil {
		return errors.New("user service: recovery token repository not configured")
	}

	token, err := s.tokens.FindByToken(ctx, tokenValue)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return ErrRecoveryTokenInvalid
		}
		return err
	}
	if token.Used {
		return fmt.Errorf("%w: token already used", ErrRecoveryTokenInvalid)
	}
	if s.clock().After(token.ExpiresAt) {
		return fmt.Errorf("%w: token expired", ErrRecoveryTokenInvalid)
	}

	user, err := s.users.FindByEmail(ctx, token.Email)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	user.PasswordHash = hashPassword(newPassword)
	user.UpdatedAt = s.clock()
	if _, err := s.users.Update(ctx, user); err != nil {
		return s.mapRepositoryError(err)
	}

	// The token burns even if the trailing log never happens.
	if err := s.tokens.MarkUsed(ctx, token.ID); err != nil {
		return s.mapRepositoryError(err)
	}

	s.logger(ctx, "user.password.reset", map[string]any{"user": user.ID})
	return nil
}

func (s *userService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrUserAlreadyExists, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("user: repository unavailable: %w", err)
		}
	}

	return err
}

// validatePassword enforces a minimum length of eight characters with at
// least one uppercase letter and one digit.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrUserInvalidInput, minPasswordLength)
	}
	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: password needs an uppercase letter", ErrUserInvalidInput)
	}
	if !hasDigit {
		return fmt.Errorf("%w: password needs a digit", ErrUserInvalidInput)
	}
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
