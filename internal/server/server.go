// Package server is judgehub's composition root: it builds every
// dependency from config, wires them into the chi router and runs the HTTP
// server until shutdown.
//
// Wiring, leaves first:
//
//	sqlite.DB ─┬─ AuthService ─────────── AuthHandler
//	           ├─ ProblemService ──────── ProblemHandler
//	           └─ SubmissionService ──┬── SubmissionHandler
//	judge.Client → judge.Evaluator ───┘
//	redis (optional) → token revocation, submit rate limit
//	minio (optional) → source archive
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/judgehub/internal/archive"
	"github.com/sakif/judgehub/internal/auth"
	"github.com/sakif/judgehub/internal/cache"
	"github.com/sakif/judgehub/internal/config"
	"github.com/sakif/judgehub/internal/handler"
	"github.com/sakif/judgehub/internal/judge"
	"github.com/sakif/judgehub/internal/middleware"
	sqliteRepo "github.com/sakif/judgehub/internal/repository/sqlite"
	"github.com/sakif/judgehub/internal/service"
	"github.com/sakif/judgehub/internal/validate"
)

// Server owns the router and every long-lived resource. Close releases
// them; Start calls it on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db          *sqliteRepo.DB
	redis       *redis.Client
	submissions *service.SubmissionService
	languages   judge.Languages
}

// New connects to the database, redis and object storage as configured
// and builds the router. Redis and object storage are optional.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setup(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context) error {
	cfg := s.config
	validator := validate.New()

	// === Sessions ===
	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Redis.Enabled() {
		rdb, err := cache.Connect(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		s.redis = rdb
		revoker = cache.NewRedisRevoker(rdb)
	} else {
		s.logger.Warn("redis not configured: token revocation is in-memory and submissions are not rate limited")
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, revoker)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === Judge ===
	client, err := judge.NewClient(judge.ClientConfig{
		BaseURL:     cfg.Judge.BaseURL,
		APIKey:      cfg.Judge.APIKey,
		AuthHeader:  cfg.Judge.AuthHeader,
		Timeout:     cfg.Judge.RequestTimeout,
		PollRetries: cfg.Judge.PollRetries,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("creating judge client: %w", err)
	}
	s.languages = judge.NewLanguages(cfg.Judge.Languages)
	evaluator := judge.NewEvaluator(s.languages, client, judge.EvaluatorConfig{
		PollInterval:    cfg.Judge.PollInterval,
		PollMaxAttempts: cfg.Judge.PollMaxAttempts,
		Timeout:         cfg.Judge.EvaluationTimeout,
	}, s.logger)

	// === Source archive ===
	var archiver service.SourceArchiver
	if cfg.Archive.Enabled() {
		uploader, err := archive.NewMinioUploader(
			cfg.Archive.Endpoint,
			cfg.Archive.AccessKeyID,
			cfg.Archive.SecretAccessKey,
			cfg.Archive.UseSSL,
			cfg.Archive.Bucket,
		)
		if err != nil {
			return err
		}
		if err := uploader.EnsureBucket(ctx); err != nil {
			return err
		}
		src := archive.NewSource(archive.NewRetryUploader(uploader))
		s.logger.Info("archiving submission sources", slog.String("store", src.Store()))
		archiver = src
	}

	// === Services ===
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), validator, s.logger)
	problemService := service.NewProblemService(s.db, validator, s.logger)
	s.submissions = service.NewSubmissionService(s.db, s.db, evaluator, archiver, validator, s.logger)

	// === Handlers ===
	var github handler.GitHubProvider
	if cfg.Auth.GitHub.Enabled() {
		github = auth.NewGitHubProvider(cfg.Auth.GitHub.ClientID, cfg.Auth.GitHub.ClientSecret, cfg.Auth.GitHub.CallbackURL)
	}
	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), s.logger)
	problemHandler := handler.NewProblemHandler(problemService, s.logger)
	submissionHandler := handler.NewSubmissionHandler(s.submissions, s.logger)

	submitLimit := s.submitLimiter()

	// === Routes ===
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handler.HealthHandler(s.healthDeps(), s.logger))

	if github != nil {
		r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	requireAuth := auth.RequireAuth(tokens)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))

		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.With(requireAuth).Post("/auth/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		r.Get("/languages", handler.LanguagesHandler(s.languages))

		r.Route("/problems", func(r chi.Router) {
			r.Get("/", problemHandler.HandleList)
			r.With(requireAuth).Post("/", problemHandler.HandleCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", problemHandler.HandleGet)
				r.With(requireAuth).Put("/", problemHandler.HandleUpdate)
				r.With(requireAuth).Delete("/", problemHandler.HandleDelete)
				r.With(requireAuth).Post("/run", submissionHandler.HandleRun)
				r.With(requireAuth, submitLimit).Post("/submissions", submissionHandler.HandleSubmit)
			})
		})

		r.Get("/submissions", submissionHandler.HandleList)
		r.Get("/submissions/{id}", submissionHandler.HandleGet)
	})

	return nil
}

// submitLimiter is a no-op unless redis is configured and a positive limit
// is set.
func (s *Server) submitLimiter() func(http.Handler) http.Handler {
	perMinute := s.config.RateLimit.SubmitPerMinute
	if s.redis == nil || perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := cache.NewRedisLimiter(s.redis, cache.LimiterConfig{
		Name:      "submit",
		PerMinute: perMinute,
		FailOpen:  s.config.RateLimit.FailOpen,
	})
	byUser := func(r *http.Request) string {
		id, _ := auth.UserIDFromContext(r.Context())
		return id
	}
	return middleware.RateLimit(limiter, byUser, s.logger)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (s *Server) healthDeps() map[string]handler.Pinger {
	deps := map[string]handler.Pinger{"database": s.db}
	if s.redis != nil {
		deps["redis"] = redisPinger{client: s.redis}
	}
	return deps
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close waits for background archive uploads and releases connections.
func (s *Server) Close() error {
	if s.submissions != nil {
		s.submissions.Wait()
	}

	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then
// drains in-flight requests and closes resources.
func (s *Server) Start(ctx context.Context) error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.Database.Path),
			slog.String("judge", s.config.Judge.BaseURL),
			slog.Int("languages", len(s.languages.List())),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
