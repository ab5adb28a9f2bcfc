package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/todo-app/apiserver/types"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenIssuer      = "todoapi"
)

// Claims are the JWT claims carried by access and refresh tokens.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access/refresh token pairs.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with the given secret and lifetimes.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue creates an access/refresh pair bound to the user's id.
func (i *TokenIssuer) Issue(user types.User) (types.TokenPair, error) {
	if user.ID < 1 {
		return types.TokenPair{}, errors.New("cannot issue tokens for unsaved user")
	}

	refresh, err := i.sign(user.ID, tokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return types.TokenPair{}, err
	}
	access, err := i.sign(user.ID, tokenTypeAccess, i.accessTTL)
	if err != nil {
		return types.TokenPair{}, err
	}
	return types.TokenPair{Refresh: refresh, Access: access}, nil
}

// IssueAccess creates a standalone access token for the user id.
func (i *TokenIssuer) IssueAccess(userID int) (string, error) {
	return i.sign(userID, tokenTypeAccess, i.accessTTL)
}

// Verify validates an access token and returns its subject.
// It satisfies Verifier.
func (i *TokenIssuer) Verify(_ context.Context, token string) (int, error) {
	return i.parse(token, tokenTypeAccess)
}

// ParseRefresh validates a refresh token and returns its subject.
func (i *TokenIssuer) ParseRefresh(token string) (int, error) {
	return i.parse(token, tokenTypeRefresh)
}

func (i *TokenIssuer) sign(userID int, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.Itoa(userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (i *TokenIssuer) parse(tokenString, wantType string) (int, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return 0, ErrUnauthorized
	}
	if claims.TokenType != wantType {
		return 0, ErrUnauthorized
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, ErrUnauthorized
	}
	return userID, nil
}
