package types

import "time"

// TokenPair is the JWT access/refresh pair issued at login and registration.
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// OAuthApplication is a client allowed to request protected-resource tokens.
type OAuthApplication struct {
	ID               int       `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	ClientID         string    `json:"client_id" db:"client_id"`
	ClientSecretHash string    `json:"-" db:"client_secret_hash"`
	OwnerID          int       `json:"owner_id" db:"owner_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// OAuthAccessToken is an opaque bearer token bound to a user and application.
// Only the SHA-256 of the token value is persisted.
type OAuthAccessToken struct {
	TokenHash     string    `db:"token_hash"`
	ApplicationID int       `db:"application_id"`
	UserID        int       `db:"user_id"`
	Scope         string    `db:"scope"`
	ExpiresAt     time.Time `db:"expires_at"`
	CreatedAt     time.Time `db:"created_at"`
}

// OAuthToken is the RFC 6749 access token response.
type OAuthToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}
