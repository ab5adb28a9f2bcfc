package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/db/dbtest"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	auth   *services.AuthService
	users  *services.UserService
	todos  *services.TodoService
	oauth  *services.OAuthService
	seed   *services.SeedService
	tokens *auth.TokenIssuer
	bearer *auth.OAuthIssuer
	events *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn := dbtest.New(t)
	userRepo := store.NewUserRepository(conn)
	todoRepo := store.NewTodoRepository(conn)
	oauthRepo := store.NewOAuthRepository(conn)

	hasher := auth.NewHasher(bcrypt.MinCost)
	tokens := auth.NewTokenIssuer("test-secret", 5*time.Minute, 24*time.Hour)
	bearer := auth.NewOAuthIssuer(oauthRepo, time.Hour)
	events := &recordingPublisher{}

	authService := services.NewAuthService(userRepo, hasher, tokens)
	return &testEnv{
		auth:   authService,
		users:  services.NewUserService(userRepo),
		todos:  services.NewTodoService(todoRepo, events, nil),
		oauth:  services.NewOAuthService(oauthRepo, authService, hasher, bearer),
		seed:   services.NewSeedService(userRepo, oauthRepo, hasher),
		tokens: tokens,
		bearer: bearer,
		events: events,
	}
}

func (e *testEnv) register(t *testing.T, username, password, email string) types.User {
	t.Helper()
	user, _, err := e.auth.Register(context.Background(), services.RegisterInput{
		Username: username,
		Password: password,
		Email:    email,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

type recordingPublisher struct {
	events []types.TodoEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event types.TodoEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

var errBrokerDown = errors.New("broker down")
