package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/types"
)

const oauthTokenBytes = 32

// DefaultScope is granted to every OAuth access token.
const DefaultScope = "read write"

// OAuthTokenStore persists opaque OAuth access tokens.
type OAuthTokenStore interface {
	CreateAccessToken(ctx context.Context, token types.OAuthAccessToken) error
	GetAccessToken(ctx context.Context, tokenHash string) (types.OAuthAccessToken, error)
}

// OAuthIssuer issues and verifies opaque bearer tokens for protected resources.
type OAuthIssuer struct {
	store OAuthTokenStore
	ttl   time.Duration
	now   func() time.Time
}

// NewOAuthIssuer constructs an OAuthIssuer backed by store.
func NewOAuthIssuer(store OAuthTokenStore, ttl time.Duration) *OAuthIssuer {
	return &OAuthIssuer{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (o *OAuthIssuer) TTL() time.Duration {
	return o.ttl
}

// Issue creates a new token for userID on behalf of the application.
// The plaintext token is returned once and never stored.
func (o *OAuthIssuer) Issue(ctx context.Context, applicationID, userID int) (string, error) {
	raw := make([]byte, oauthTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := o.now().UTC()
	err := o.store.CreateAccessToken(ctx, types.OAuthAccessToken{
		TokenHash:     hashToken(token),
		ApplicationID: applicationID,
		UserID:        userID,
		Scope:         DefaultScope,
		ExpiresAt:     now.Add(o.ttl),
		CreatedAt:     now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// Verify checks that token exists and has not expired. It satisfies Verifier.
func (o *OAuthIssuer) Verify(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, ErrUnauthorized
	}
	stored, err := o.store.GetAccessToken(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrUnauthorized
		}
		return 0, err
	}
	if !o.now().Before(stored.ExpiresAt) {
		return 0, ErrUnauthorized
	}
	return stored.UserID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
