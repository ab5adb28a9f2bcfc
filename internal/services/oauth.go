package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/types"
)

// ApplicationRepository defines persistence operations for OAuth clients.
type ApplicationRepository interface {
	GetApplicationByClientID(ctx context.Context, clientID string) (types.OAuthApplication, error)
	GetApplicationByName(ctx context.Context, name string) (types.OAuthApplication, error)
	CreateApplication(ctx context.Context, app types.OAuthApplication) (types.OAuthApplication, error)
	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int, error)
}

// PasswordGrantInput is a resource owner password credentials request.
type PasswordGrantInput struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// OAuthService issues protected-resource tokens through the password grant.
type OAuthService struct {
	apps   ApplicationRepository
	users  *AuthService
	hasher *auth.Hasher
	issuer *auth.OAuthIssuer
	now    func() time.Time
}

func NewOAuthService(apps ApplicationRepository, users *AuthService, hasher *auth.Hasher, issuer *auth.OAuthIssuer) *OAuthService {
	return &OAuthService{
		apps:   apps,
		users:  users,
		hasher: hasher,
		issuer: issuer,
		now:    time.Now,
	}
}

// PasswordGrant authenticates the client, then the user, and issues an
// opaque bearer token. The username may be an email, as at REST login.
func (s *OAuthService) PasswordGrant(ctx context.Context, input PasswordGrantInput) (types.OAuthToken, error) {
	app, err := s.authenticateClient(ctx, input.ClientID, input.ClientSecret)
	if err != nil {
		return types.OAuthToken{}, err
	}

	user, err := s.users.Resolve(ctx, input.Username, input.Password)
	if err != nil {
		return types.OAuthToken{}, err
	}

	token, err := s.issuer.Issue(ctx, app.ID, user.ID)
	if err != nil {
		return types.OAuthToken{}, err
	}
	return types.OAuthToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.issuer.TTL().Seconds()),
		Scope:       auth.DefaultScope,
	}, nil
}

// PurgeExpired deletes tokens whose lifetime has ended.
func (s *OAuthService) PurgeExpired(ctx context.Context) (int, error) {
	return s.apps.DeleteExpiredAccessTokens(ctx, s.now().UTC())
}

func (s *OAuthService) authenticateClient(ctx context.Context, clientID, clientSecret string) (types.OAuthApplication, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || clientSecret == "" {
		return types.OAuthApplication{}, ErrInvalidClient
	}

	app, err := s.apps.GetApplicationByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.Burn(clientSecret)
			return types.OAuthApplication{}, ErrInvalidClient
		}
		return types.OAuthApplication{}, fmt.Errorf("lookup client: %w", err)
	}
	if !s.hasher.Matches(app.ClientSecretHash, clientSecret) {
		return types.OAuthApplication{}, ErrInvalidClient
	}
	return app, nil
}
