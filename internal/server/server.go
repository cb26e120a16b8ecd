package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alva-alumni/apiserver/config"
	"github.com/alva-alumni/apiserver/internal/auth"
	"github.com/alva-alumni/apiserver/internal/db"
	"github.com/alva-alumni/apiserver/internal/events"
	"github.com/alva-alumni/apiserver/internal/handlers"
	"github.com/alva-alumni/apiserver/internal/logging"
	"github.com/alva-alumni/apiserver/internal/mq"
	"github.com/alva-alumni/apiserver/internal/services"
	"github.com/alva-alumni/apiserver/internal/storage"
	"github.com/alva-alumni/apiserver/internal/store"
	"github.com/alva-alumni/apiserver/internal/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

const (
	// writeTimeout must outlast requestTimeout so the 504 reaches the client.
	requestTimeout = 30 * time.Second
	writeTimeout   = requestTimeout + 5*time.Second
	readTimeout    = 15 * time.Second
	idleTimeout    = 60 * time.Second
)

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	queue      *mq.MQ
	logger     zerolog.Logger
}

// Deps are the services the router dispatches to.
type Deps struct {
	Auth         *services.AuthService
	Alumni       *services.AlumniService
	Tokens       *auth.TokenService
	Logger       zerolog.Logger
	PhotoUploads bool
}

// New opens the database, object storage and message queue named in cfg and
// builds the HTTP server around them.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	photos, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	var sender events.Sender
	if queue != nil {
		sender = queue
	}
	publisher := events.NewPublisher(sender, logger)

	repo := store.NewAlumniRepository(dbConn)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var photoStore services.PhotoStore
	if photos != nil {
		photoStore = photos
	}

	router := NewRouter(cfg, Deps{
		Auth:         services.NewAuthService(repo, auth.NewHasher(cfg.Auth.BcryptCost), tokens, publisher, cfg.Auth.DefaultApproved),
		Alumni:       services.NewAlumniService(repo, tokens, photoStore, publisher),
		Tokens:       tokens,
		Logger:       logger,
		PhotoUploads: photos != nil,
	})

	logger.Info().
		Str("env", cfg.Env).
		Str("storage", cfg.Storage.Backend).
		Str("mq", cfg.MQ.Backend).
		Msg("dependencies ready")

	return &Server{
		httpServer: newHTTPServer(cfg.ServerPort, router),
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// NewRouter builds the HTTP handler tree. Every route lives under /api.
func NewRouter(cfg config.Config, deps Deps) http.Handler {
	exposeStack := !cfg.IsProduction()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(deps.Logger),
		middleware.Recoverer,
		corsHandler(cfg),
		middleware.Timeout(requestTimeout),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.NotFound)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, handlers.NewAuthHandler(deps.Auth, validator.New(), exposeStack))
		})
		r.Route("/alumni", func(r chi.Router) {
			handlers.AlumniRouter(
				r,
				handlers.NewAlumniHandler(deps.Alumni, exposeStack),
				handlers.RequireAuth(deps.Tokens),
				deps.PhotoUploads,
			)
		})
	})
	return router
}

// corsHandler admits the configured origins, plus any localhost origin
// outside production.
func corsHandler(cfg config.Config) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(cfg.CORSOrigins))
	for _, origin := range cfg.CORSOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}
	production := cfg.IsProduction()

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if _, ok := allowed[origin]; ok {
				return true
			}
			return !production && (strings.HasPrefix(origin, "http://localhost:") ||
				strings.HasPrefix(origin, "http://127.0.0.1:"))
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and queue.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		err = errors.Join(err, s.queue.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
