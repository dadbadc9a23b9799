package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/moodlocation/apiserver/config"
	"github.com/moodlocation/apiserver/internal/db"
	"github.com/moodlocation/apiserver/internal/handlers"
	"github.com/moodlocation/apiserver/internal/mq"
	"github.com/moodlocation/apiserver/internal/services"
	"github.com/moodlocation/apiserver/internal/storage"
	"github.com/moodlocation/apiserver/internal/store"
)

// Server wraps the HTTP server and the clients it owns.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	db         *db.Database
	broker     *mq.MQ
	logger     *slog.Logger
}

// Deps are the collaborators the router is built from.
type Deps struct {
	AccountService *services.AccountService
	HistoryService *services.HistoryService
	Health         handlers.Pinger
	MaxBodyBytes   int64
	Logger         *slog.Logger
}

// New connects to the document store and optional backends and constructs
// a Server. A connection failure is returned to the caller.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	database, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	logger.Info("mongodb connected", "host", db.Host(cfg.Database.URI), "database", database.Name())

	if cfg.Database.AutoMigrate {
		if err := db.MigrateUp(cfg.Database); err != nil {
			_ = database.Close(context.Background())
			return nil, err
		}
	}

	var images services.ImageStore
	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = database.Close(context.Background())
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if objects != nil {
		images = objects
		logger.Info("profile image storage enabled", "backend", cfg.Storage.Backend, "bucket", objects.Bucket())
	}

	var publisher services.EventPublisher
	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = database.Close(context.Background())
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if broker != nil {
		publisher = broker
		logger.Info("event publishing enabled", "backend", cfg.MQ.Backend)
	}

	accountRepo := store.NewAccountRepository(database.Collection(store.AccountsCollection))
	historyRepo := store.NewHistoryRepository(database.Collection(store.HistoryCollection))

	router := NewRouter(Deps{
		AccountService: services.NewAccountService(accountRepo, images, publisher, logger),
		HistoryService: services.NewHistoryService(historyRepo, publisher, logger),
		Health:         database,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Logger:         logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = config.DefaultServerPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         database,
		broker:     broker,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP routes and middleware.
func NewRouter(deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = config.DefaultMaxBodyBytes
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}),
		limitBody(maxBody),
	)

	router.Get("/", handlers.Root)
	router.Get("/healthz", handlers.Healthz(deps.Health, logger))
	router.Route("/api", func(r chi.Router) {
		handlers.AccountRouter(r, deps.AccountService, logger)
		r.Route("/history", func(r chi.Router) {
			handlers.HistoryRouter(r, deps.HistoryService, logger)
		})
	})

	return router
}

func limitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Router exposes the chi router.
func (s *Server) Router() chi.Router {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the owned clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.broker != nil {
		if closeErr := s.broker.Close(); closeErr != nil {
			s.logger.Warn("close mq failed", "error", closeErr)
		}
	}
	if s.db != nil {
		if closeErr := s.db.Close(ctx); closeErr != nil {
			s.logger.Warn("close mongodb failed", "error", closeErr)
		}
	}
	return err
}
