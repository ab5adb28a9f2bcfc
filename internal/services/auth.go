package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/types"
)

const (
	maxUsernameLength = 150
	maxEmailLength    = 254
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Username string
	Password string
	Email    string
}

// AuthService implements registration, credential resolution and the JWT
// token lifecycle.
type AuthService struct {
	users  UserRepository
	hasher *auth.Hasher
	tokens *auth.TokenIssuer
}

func NewAuthService(users UserRepository, hasher *auth.Hasher, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register creates an account and issues its first token pair.
// Emails are not checked for uniqueness.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (types.User, types.TokenPair, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if username == "" {
		return types.User{}, types.TokenPair{}, &MissingFieldError{Field: "username"}
	}
	if input.Password == "" {
		return types.User{}, types.TokenPair{}, &MissingFieldError{Field: "password"}
	}
	if err := validateUsername(username); err != nil {
		return types.User{}, types.TokenPair{}, err
	}
	if utf8.RuneCountInString(email) > maxEmailLength {
		return types.User{}, types.TokenPair{}, &ValidationError{
			Field:   "email",
			Message: fmt.Sprintf("Email must be at most %d characters", maxEmailLength),
		}
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return types.User{}, types.TokenPair{}, ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, types.TokenPair{}, fmt.Errorf("check username: %w", err)
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return types.User{}, types.TokenPair{}, &ValidationError{
				Field:   "password",
				Message: "Password must be at most 72 bytes",
			}
		}
		return types.User{}, types.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, types.TokenPair{}, ErrDuplicateUsername
		}
		return types.User{}, types.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return types.User{}, types.TokenPair{}, err
	}
	return user, pair, nil
}

// Resolve authenticates identifier, which may be a username or an email.
// The username is tried first; then every account registered with that
// email, oldest first. All failures collapse into ErrInvalidCredential.
func (s *AuthService) Resolve(ctx context.Context, identifier, password string) (types.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return types.User{}, &MissingFieldError{Field: "username"}
	}
	if password == "" {
		return types.User{}, &MissingFieldError{Field: "password"}
	}

	compared := false
	byName, err := s.users.GetByUsername(ctx, identifier)
	switch {
	case err == nil:
		compared = true
		if s.hasher.Matches(byName.PasswordHash, password) {
			return byName, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return types.User{}, fmt.Errorf("lookup username: %w", err)
	}

	byEmail, err := s.users.ListByEmail(ctx, identifier)
	if err != nil {
		return types.User{}, fmt.Errorf("lookup email: %w", err)
	}
	for _, candidate := range byEmail {
		if candidate.ID == byName.ID {
			continue
		}
		compared = true
		if s.hasher.Matches(candidate.PasswordHash, password) {
			return candidate, nil
		}
	}

	if !compared {
		s.hasher.Burn(password)
	}
	return types.User{}, ErrInvalidCredential
}

// Login resolves the credentials and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (types.User, types.TokenPair, error) {
	user, err := s.Resolve(ctx, identifier, password)
	if err != nil {
		return types.User{}, types.TokenPair{}, err
	}
	pair, err := s.tokens.Issue(user)
	if err != nil {
		return types.User{}, types.TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token bound to the
// same user. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", &MissingFieldError{Field: "refresh"}
	}
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", auth.ErrUnauthorized
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	return s.tokens.IssueAccess(userID)
}

func validateUsername(username string) error {
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return &ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username must be at most %d characters", maxUsernameLength),
		}
	}
	if !usernamePattern.MatchString(username) {
		return &ValidationError{
			Field:   "username",
			Message: "Username may contain only letters, digits and @/./+/-/_",
		}
	}
	return nil
}
