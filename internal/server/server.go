package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/todo-app/apiserver/config"
	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/db"
	"github.com/todo-app/apiserver/internal/graph"
	"github.com/todo-app/apiserver/internal/handlers"
	"github.com/todo-app/apiserver/internal/mq"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/internal/telemetry"
)

const tokenPurgeInterval = time.Hour

// Server wraps the HTTP server, router and the resources they own.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *db.Conn
	queue      *mq.MQ
	oauth      *services.OAuthService
	logger     *slog.Logger
	telemetry  telemetry.Shutdown
}

// New opens every backing resource named in cfg and builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = shutdownTracing(ctx)
		_ = dbConn.Close()
		return nil, err
	}
	var events services.EventPublisher
	if queue != nil {
		events = mq.NewTodoEvents(queue, cfg.MQ.Channel)
	}

	router, oauthService, err := newRouter(cfg, dbConn, events, logger)
	if err != nil {
		if queue != nil {
			_ = queue.Close()
		}
		_ = shutdownTracing(ctx)
		_ = dbConn.Close()
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		oauth:      oauthService,
		logger:     logger,
		telemetry:  shutdownTracing,
	}, nil
}

// newRouter wires repositories, services and handlers over conn.
func newRouter(cfg config.Config, conn *db.Conn, events services.EventPublisher, logger *slog.Logger) (*chi.Mux, *services.OAuthService, error) {
	userRepo := store.NewUserRepository(conn)
	todoRepo := store.NewTodoRepository(conn)
	oauthRepo := store.NewOAuthRepository(conn)

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	tokenIssuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	oauthIssuer := auth.NewOAuthIssuer(oauthRepo, cfg.Auth.OAuthTokenTTL)

	userService := services.NewUserService(userRepo)
	authService := services.NewAuthService(userRepo, hasher, tokenIssuer)
	todoService := services.NewTodoService(todoRepo, events, logger)
	oauthService := services.NewOAuthService(oauthRepo, authService, hasher, oauthIssuer)

	// REST accepts JWT access tokens and GraphQL accepts OAuth bearer
	// tokens, unless the deployment opts into accepting either on both.
	var restVerifier, graphVerifier auth.Verifier = tokenIssuer, oauthIssuer
	if cfg.Auth.UnifiedTokens {
		restVerifier = auth.AnyOf(tokenIssuer, oauthIssuer)
		graphVerifier = auth.AnyOf(oauthIssuer, tokenIssuer)
	}
	restAuth := handlers.RequireAuth(restVerifier, logger)
	graphAuth := handlers.RequireAuth(graphVerifier, logger)

	graphHandler, err := graph.NewHandler(graph.NewResolver(todoService, userService, logger))
	if err != nil {
		return nil, nil, fmt.Errorf("build graphql schema: %w", err)
	}

	authHandler := handlers.NewAuthHandler(authService, userService, logger)
	todoHandler := handlers.NewTodoHandler(todoService, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	oauthHandler := handlers.NewOAuthHandler(oauthService, logger)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	if strings.TrimSpace(cfg.Telemetry.Endpoint) != "" {
		router.Use(telemetry.Middleware(cfg.Telemetry.ServiceName))
	}
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Timeout(timeout),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	router.Get("/healthz", handlers.Healthz(conn, logger))
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, restAuth)
	})
	router.Route("/api/token", func(r chi.Router) {
		handlers.TokenRouter(r, authHandler)
	})
	router.Route("/api/todos", func(r chi.Router) {
		r.Use(restAuth)
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler)
		})
		handlers.TodoRouter(r, todoHandler)
	})
	router.Route("/o", func(r chi.Router) {
		handlers.OAuthRouter(r, oauthHandler)
	})
	router.With(graphAuth).Post("/graphql", graphHandler.ServeHTTP)

	return router, oauthService, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.purgeExpiredTokens(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// the database, queue and tracer.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if qerr := s.queue.Close(); qerr != nil {
			s.logger.Warn("failed to close message queue", slog.Any("error", qerr))
		}
	}
	if s.telemetry != nil {
		if terr := s.telemetry(ctx); terr != nil {
			s.logger.Warn("failed to flush traces", slog.Any("error", terr))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func (s *Server) purgeExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.oauth.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("failed to purge expired oauth tokens", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				s.logger.Info("purged expired oauth tokens", slog.Int("count", removed))
			}
		}
	}
}
