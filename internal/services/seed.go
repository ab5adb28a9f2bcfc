package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/types"
)

// DefaultApplicationName is the OAuth client the frontend authenticates as.
const DefaultApplicationName = "Todo App"

const (
	clientIDBytes     = 20
	clientSecretBytes = 32
)

// SeedInput describes the bootstrap account and OAuth client.
type SeedInput struct {
	Username        string
	Email           string
	Password        string
	ApplicationName string
}

// SeedResult reports what Seed created. ClientSecret is only set when the
// application was created by this run; it is not recoverable afterwards.
type SeedResult struct {
	User               types.User
	Application        types.OAuthApplication
	UserCreated        bool
	ApplicationCreated bool
	ClientSecret       string
}

// SeedService bootstraps a fresh deployment.
type SeedService struct {
	users  UserRepository
	apps   ApplicationRepository
	hasher *auth.Hasher
}

func NewSeedService(users UserRepository, apps ApplicationRepository, hasher *auth.Hasher) *SeedService {
	return &SeedService{
		users:  users,
		apps:   apps,
		hasher: hasher,
	}
}

// Seed gets or creates the user, then gets or creates the application owned
// by it. Running it twice changes nothing.
func (s *SeedService) Seed(ctx context.Context, input SeedInput) (SeedResult, error) {
	var result SeedResult

	user, created, err := s.ensureUser(ctx, input)
	if err != nil {
		return SeedResult{}, err
	}
	result.User = user
	result.UserCreated = created

	name := strings.TrimSpace(input.ApplicationName)
	if name == "" {
		name = DefaultApplicationName
	}

	app, err := s.apps.GetApplicationByName(ctx, name)
	if err == nil {
		result.Application = app
		return result, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return SeedResult{}, fmt.Errorf("lookup application: %w", err)
	}

	clientID, err := randomHex(clientIDBytes)
	if err != nil {
		return SeedResult{}, err
	}
	secret, err := randomHex(clientSecretBytes)
	if err != nil {
		return SeedResult{}, err
	}
	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return SeedResult{}, fmt.Errorf("hash client secret: %w", err)
	}

	app, err = s.apps.CreateApplication(ctx, types.OAuthApplication{
		Name:             name,
		ClientID:         clientID,
		ClientSecretHash: secretHash,
		OwnerID:          user.ID,
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("create application: %w", err)
	}
	result.Application = app
	result.ApplicationCreated = true
	result.ClientSecret = secret
	return result, nil
}

func (s *SeedService) ensureUser(ctx context.Context, input SeedInput) (types.User, bool, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return types.User{}, false, &MissingFieldError{Field: "username"}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	if input.Password == "" {
		return types.User{}, false, &MissingFieldError{Field: "password"}
	}
	if err := validateUsername(username); err != nil {
		return types.User{}, false, err
	}
	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return types.User{}, false, fmt.Errorf("hash password: %w", err)
	}
	user, err = s.users.Create(ctx, types.User{
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: hashed,
	})
	if err != nil {
		return types.User{}, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random value: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
