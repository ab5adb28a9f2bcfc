package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/todo-app/apiserver/internal/db"
	"github.com/todo-app/apiserver/types"
)

// OAuthRepository stores OAuth client applications and issued access tokens.
type OAuthRepository struct {
	db *db.Conn
}

func NewOAuthRepository(conn *db.Conn) *OAuthRepository {
	return &OAuthRepository{db: conn}
}

const applicationColumns = `id, name, client_id, client_secret_hash, owner_id, created_at`

func (r *OAuthRepository) GetApplicationByClientID(ctx context.Context, clientID string) (types.OAuthApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM oauth_applications WHERE client_id = ?`
	return r.getApplication(ctx, query, clientID)
}

func (r *OAuthRepository) GetApplicationByName(ctx context.Context, name string) (types.OAuthApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM oauth_applications WHERE name = ?`
	return r.getApplication(ctx, query, name)
}

func (r *OAuthRepository) CreateApplication(ctx context.Context, app types.OAuthApplication) (types.OAuthApplication, error) {
	app.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO oauth_applications (name, client_id, client_secret_hash, owner_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		r.db.Rebind(query),
		app.Name,
		app.ClientID,
		app.ClientSecretHash,
		app.OwnerID,
		app.CreatedAt,
	).Scan(&app.ID); err != nil {
		if db.IsUniqueViolation(err) {
			return types.OAuthApplication{}, ErrConflict
		}
		return types.OAuthApplication{}, err
	}
	return app, nil
}

func (r *OAuthRepository) CreateAccessToken(ctx context.Context, token types.OAuthAccessToken) error {
	const query = `
		INSERT INTO oauth_access_tokens (token_hash, application_id, user_id, scope, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(
		ctx,
		r.db.Rebind(query),
		token.TokenHash,
		token.ApplicationID,
		token.UserID,
		token.Scope,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil && db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *OAuthRepository) GetAccessToken(ctx context.Context, tokenHash string) (types.OAuthAccessToken, error) {
	const query = `
		SELECT token_hash, application_id, user_id, scope, expires_at, created_at
		FROM oauth_access_tokens
		WHERE token_hash = ?`
	var token types.OAuthAccessToken
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), tokenHash).Scan(
		&token.TokenHash,
		&token.ApplicationID,
		&token.UserID,
		&token.Scope,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OAuthAccessToken{}, ErrNotFound
		}
		return types.OAuthAccessToken{}, err
	}
	return token, nil
}

// DeleteExpiredAccessTokens removes tokens that expired before now and
// returns how many were deleted.
func (r *OAuthRepository) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM oauth_access_tokens WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), now.UTC())
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *OAuthRepository) getApplication(ctx context.Context, query string, arg any) (types.OAuthApplication, error) {
	var app types.OAuthApplication
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), arg).Scan(
		&app.ID,
		&app.Name,
		&app.ClientID,
		&app.ClientSecretHash,
		&app.OwnerID,
		&app.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OAuthApplication{}, ErrNotFound
		}
		return types.OAuthApplication{}, err
	}
	return app, nil
}
