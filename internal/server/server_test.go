package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todo-app/apiserver/config"
	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/db"
	"github.com/todo-app/apiserver/internal/db/dbtest"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	router *chi.Mux
	conn   *db.Conn
}

func testConfig() config.Config {
	return config.Config{
		RequestTimeout: 10 * time.Second,
		CORSOrigins:    []string{"http://localhost:3000"},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			AccessTokenTTL:  5 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			OAuthTokenTTL:   time.Hour,
			BcryptCost:      bcrypt.MinCost,
		},
	}
}

func newTestAPI(t *testing.T, cfg config.Config) *testAPI {
	t.Helper()
	conn := dbtest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router, _, err := newRouter(cfg, conn, nil, logger)
	require.NoError(t, err)
	return &testAPI{router: router, conn: conn}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

type authBody struct {
	User struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
	Tokens struct {
		Refresh string `json:"refresh"`
		Access  string `json:"access"`
	} `json:"tokens"`
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

type todoBody struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
	User        struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) register(t *testing.T, username, password, email string) authBody {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register/", map[string]string{
		"username": username,
		"password": password,
		"email":    email,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](t, rec)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, testConfig())
	rec := api.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t, testConfig())

	registered := api.register(t, "alice", "s3cret", "alice@example.com")
	assert.Equal(t, "alice", registered.User.Username)
	assert.NotEmpty(t, registered.Tokens.Access)

	for _, identifier := range []string{"alice", "alice@example.com"} {
		rec := api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"username": identifier,
			"password": "s3cret",
		}, "")
		require.Equal(t, http.StatusOK, rec.Code, identifier)
		body := decode[authBody](t, rec)
		assert.Equal(t, registered.User.ID, body.User.ID)
	}

	rec := api.do(t, http.MethodGet, "/api/auth/me/", nil, registered.Tokens.Access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"id":`+strconv.Itoa(registered.User.ID)+`,"username":"alice","email":"alice@example.com"}`,
		rec.Body.String())
}

func TestRegister_Errors(t *testing.T) {
	api := newTestAPI(t, testConfig())
	api.register(t, "alice", "pw", "")

	rec := api.do(t, http.MethodPost, "/api/auth/register/", map[string]string{"username": "alice", "password": "pw"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errorBody{Error: "Username already exists", Field: "username"}, decode[errorBody](t, rec))

	rec = api.do(t, http.MethodPost, "/api/auth/register/", map[string]string{"username": "bob"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password", decode[errorBody](t, rec).Field)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register/", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_Errors(t *testing.T) {
	api := newTestAPI(t, testConfig())
	api.register(t, "alice", "s3cret", "alice@example.com")

	wrongPassword := api.do(t, http.MethodPost, "/api/auth/login/", map[string]string{"username": "alice", "password": "nope"}, "")
	unknownUser := api.do(t, http.MethodPost, "/api/auth/login/", map[string]string{"username": "nobody", "password": "s3cret"}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Equal(t, "username", decode[errorBody](t, wrongPassword).Field)

	missing := api.do(t, http.MethodPost, "/api/auth/login/", map[string]string{"username": "alice"}, "")
	assert.Equal(t, http.StatusBadRequest, missing.Code)
	assert.Equal(t, "password", decode[errorBody](t, missing).Field)
}

func TestTokenEndpoints(t *testing.T) {
	api := newTestAPI(t, testConfig())
	api.register(t, "alice", "s3cret", "")

	rec := api.do(t, http.MethodPost, "/api/token/", map[string]string{"username": "alice", "password": "s3cret"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode[map[string]string](t, rec)
	require.NotEmpty(t, pair["refresh"])
	require.NotEmpty(t, pair["access"])

	rec = api.do(t, http.MethodPost, "/api/token/refresh/", map[string]string{"refresh": pair["refresh"]}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	access := decode[map[string]string](t, rec)["access"]

	rec = api.do(t, http.MethodGet, "/api/todos/", nil, access)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/token/refresh/", map[string]string{"refresh": pair["access"]}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/token/refresh/", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/todos/", nil, pair["refresh"])
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTodos_RequireAuth(t *testing.T) {
	api := newTestAPI(t, testConfig())

	for _, path := range []string{"/api/todos/", "/api/todos/1/", "/api/todos/users/", "/api/auth/me/"} {
		rec := api.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	}

	rec := api.do(t, http.MethodGet, "/api/todos/", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTodoLifecycle(t *testing.T) {
	api := newTestAPI(t, testConfig())
	alice := api.register(t, "alice", "pw", "")
	bob := api.register(t, "bob", "pw", "")
	token := alice.Tokens.Access

	rec := api.do(t, http.MethodPost, "/api/todos/", map[string]any{
		"title":       "  buy milk ",
		"description": "semi-skimmed",
		"user":        map[string]int{"id": bob.User.ID},
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[todoBody](t, rec)
	assert.Equal(t, "buy milk", created.Title)
	assert.False(t, created.Completed)
	assert.Equal(t, alice.User.ID, created.User.ID)
	assert.NotEmpty(t, created.CreatedAt)
	path := "/api/todos/" + strconv.Itoa(created.ID) + "/"

	rec = api.do(t, http.MethodGet, "/api/todos", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]todoBody](t, rec), 1)

	rec = api.do(t, http.MethodPatch, path, map[string]bool{"completed": true}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	patched := decode[todoBody](t, rec)
	assert.True(t, patched.Completed)
	assert.Equal(t, "buy milk", patched.Title)
	assert.Equal(t, "semi-skimmed", patched.Description)

	rec = api.do(t, http.MethodPut, path, map[string]any{"completed": false}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "title", decode[errorBody](t, rec).Field)

	rec = api.do(t, http.MethodPut, path, map[string]any{"title": "oat milk", "completed": false}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "oat milk", decode[todoBody](t, rec).Title)

	rec = api.do(t, http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodDelete, path, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTodoValidation(t *testing.T) {
	api := newTestAPI(t, testConfig())
	token := api.register(t, "alice", "pw", "").Tokens.Access

	rec := api.do(t, http.MethodPost, "/api/todos/", map[string]string{"title": "   "}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errorBody{Error: "Title cannot be empty", Field: "title"}, decode[errorBody](t, rec))

	rec = api.do(t, http.MethodPost, "/api/todos/", map[string]string{"description": "no title"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/todos/", map[string]any{"title": "x", "completed": "yes"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/todos/abc/", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTodos_AreOwnerScoped(t *testing.T) {
	api := newTestAPI(t, testConfig())
	alice := api.register(t, "alice", "pw", "")
	bob := api.register(t, "bob", "pw", "")

	rec := api.do(t, http.MethodPost, "/api/todos/", map[string]string{"title": "alice only"}, alice.Tokens.Access)
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/todos/" + strconv.Itoa(decode[todoBody](t, rec).ID) + "/"

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rec := api.do(t, method, path, map[string]bool{"completed": true}, bob.Tokens.Access)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}

	rec = api.do(t, http.MethodGet, "/api/todos/", nil, bob.Tokens.Access)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = api.do(t, http.MethodGet, path, nil, alice.Tokens.Access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[todoBody](t, rec).Completed)
}

func TestUsers(t *testing.T) {
	api := newTestAPI(t, testConfig())
	alice := api.register(t, "alice", "pw", "a@example.com")
	bob := api.register(t, "bob", "pw", "")

	rec := api.do(t, http.MethodGet, "/api/todos/users/", nil, alice.Tokens.Access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":`+strconv.Itoa(alice.User.ID)+`,"username":"alice","email":"a@example.com"},
		{"id":`+strconv.Itoa(bob.User.ID)+`,"username":"bob","email":""}
	]`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/todos/users/"+strconv.Itoa(bob.User.ID)+"/", nil, alice.Tokens.Access)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/todos/users/999/", nil, alice.Tokens.Access)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func (a *testAPI) seedClient(t *testing.T) services.SeedResult {
	t.Helper()
	seed := services.NewSeedService(
		store.NewUserRepository(a.conn),
		store.NewOAuthRepository(a.conn),
		auth.NewHasher(bcrypt.MinCost),
	)
	result, err := seed.Seed(context.Background(), services.SeedInput{Username: "admin", Password: "admin-pw"})
	require.NoError(t, err)
	return result
}

func (a *testAPI) oauthToken(t *testing.T, form url.Values, clientID, clientSecret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/o/token/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientID != "" {
		req.SetBasicAuth(clientID, clientSecret)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestOAuthTokenAndGraphQL(t *testing.T) {
	api := newTestAPI(t, testConfig())
	client := api.seedClient(t)
	alice := api.register(t, "alice", "s3cret", "alice@example.com")

	rec := api.oauthToken(t, url.Values{
		"grant_type": {"password"},
		"username":   {"alice@example.com"},
		"password":   {"s3cret"},
	}, client.Application.ClientID, client.ClientSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	token := decode[map[string]any](t, rec)["access_token"].(string)

	query := map[string]string{"query": `mutation { createTodo(title: "via graphql") { todo { title user { id } } } }`}
	rec = api.do(t, http.MethodPost, "/graphql/", query, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"data":{"createTodo":{"todo":{"title":"via graphql","user":{"id":"`+strconv.Itoa(alice.User.ID)+`"}}}}}`,
		rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/todos/", nil, alice.Tokens.Access)
	require.Len(t, decode[[]todoBody](t, rec), 1)

	rec = api.do(t, http.MethodPost, "/graphql/", query, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/graphql/", query, alice.Tokens.Access)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "jwt is not accepted by graphql by default")

	rec = api.do(t, http.MethodGet, "/api/todos/", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "oauth token is not accepted by rest by default")
}

func TestOAuthToken_Errors(t *testing.T) {
	api := newTestAPI(t, testConfig())
	client := api.seedClient(t)
	api.register(t, "alice", "s3cret", "")

	tests := []struct {
		name       string
		form       url.Values
		clientID   string
		secret     string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing grant type",
			form:       url.Values{"username": {"alice"}, "password": {"s3cret"}},
			clientID:   client.Application.ClientID,
			secret:     client.ClientSecret,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "unsupported grant",
			form:       url.Values{"grant_type": {"client_credentials"}},
			clientID:   client.Application.ClientID,
			secret:     client.ClientSecret,
			wantStatus: http.StatusBadRequest,
			wantError:  "unsupported_grant_type",
		},
		{
			name:       "bad client secret",
			form:       url.Values{"grant_type": {"password"}, "username": {"alice"}, "password": {"s3cret"}},
			clientID:   client.Application.ClientID,
			secret:     "wrong",
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_client",
		},
		{
			name:       "bad user password",
			form:       url.Values{"grant_type": {"password"}, "username": {"alice"}, "password": {"nope"}},
			clientID:   client.Application.ClientID,
			secret:     client.ClientSecret,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_grant",
		},
		{
			name: "client credentials in form",
			form: url.Values{
				"grant_type":    {"password"},
				"username":      {"alice"},
				"client_id":     {client.Application.ClientID},
				"client_secret": {client.ClientSecret},
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.oauthToken(t, tt.form, tt.clientID, tt.secret)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decode[map[string]any](t, rec)["error"])
		})
	}
}

func TestUnifiedTokens(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.UnifiedTokens = true
	api := newTestAPI(t, cfg)
	alice := api.register(t, "alice", "pw", "")

	rec := api.do(t, http.MethodPost, "/graphql", map[string]string{"query": `{ me { username } }`}, alice.Tokens.Access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"me":{"username":"alice"}}}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/todos/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_RequiresJWTSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, slog.Default())
	assert.EqualError(t, err, "JWT_SECRET is required")
}
