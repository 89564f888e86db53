package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shelfmark/shelfmark/handlers"
	"github.com/shelfmark/shelfmark/lib/auth"
	"github.com/shelfmark/shelfmark/lib/config"
	"github.com/shelfmark/shelfmark/lib/db"
	"github.com/shelfmark/shelfmark/lib/follow"
	"github.com/shelfmark/shelfmark/lib/health"
	"github.com/shelfmark/shelfmark/lib/images"
	"github.com/shelfmark/shelfmark/lib/media"
	"github.com/shelfmark/shelfmark/lib/metadata"
	"github.com/shelfmark/shelfmark/lib/metrics"
	"github.com/shelfmark/shelfmark/lib/profiles"
	"gorm.io/gorm"
)

type App struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *slog.Logger
	router *chi.Mux

	authManager *auth.Manager
	media       *media.Service
	follow      *follow.Service
	profiles    *profiles.Service
	images      *images.Service
	metadata    *metadata.Client
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging.Level)

	gdb, err := db.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	authManager, err := auth.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	imageSvc := images.New(gdb, logger, cfg.Images.OpenAIKey)
	followSvc := follow.New(gdb, logger)

	app := &App{
		cfg:         cfg,
		db:          gdb,
		logger:      logger,
		router:      chi.NewRouter(),
		authManager: authManager,
		media:       media.New(gdb, logger, imageSvc),
		follow:      followSvc,
		profiles:    profiles.New(gdb, logger, followSvc),
		images:      imageSvc,
		metadata:    metadata.NewClient(cfg.Metadata.TMDBAPIKey, logger),
	}

	app.setupRoutes()
	return app, nil
}

func (a *App) setupRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(metrics.Middleware)
	a.router.Use(auth.Middleware(a.authManager, a.logger))

	a.router.Get("/healthz", health.Check(a.db))
	a.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	searchLimiter := handlers.NewRateLimiter(a.cfg.Server.SearchRatePerSec, a.cfg.Server.SearchBurst)

	a.router.Route("/api", func(r chi.Router) {
		r.Route("/media", func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Get("/", handlers.HandleListMedia(a.media))
			r.Post("/", handlers.HandleAddMedia(a.media))
			r.Get("/{id}", handlers.HandleGetMedia(a.media))
			r.Put("/{id}", handlers.HandleUpdateMedia(a.media))
			r.Delete("/{id}", handlers.HandleDeleteMedia(a.media))
		})

		r.Route("/users", func(r chi.Router) {
			r.With(searchLimiter.Middleware).Get("/search", handlers.HandleSearchUsers(a.profiles))

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/media", handlers.HandleUserMedia(a.media))
				r.Get("/profile", handlers.HandleProfile(a.profiles))
				r.Get("/followers", handlers.HandleFollowList(a.follow, follow.DirectionFollowers))
				r.Get("/following", handlers.HandleFollowList(a.follow, follow.DirectionFollowing))
				r.With(auth.RequireUser).Post("/follow", handlers.HandleFollow(a.follow))
				r.With(auth.RequireUser).Delete("/follow", handlers.HandleUnfollow(a.follow))
			})
		})

		r.With(auth.RequireUser).Put("/profile", handlers.HandleUpdateProfile(a.profiles))

		r.Route("/images", func(r chi.Router) {
			r.Get("/shared", handlers.HandleSharedImages(a.images))
			r.With(auth.RequireUser).Post("/generate", handlers.HandleGenerateImage(a.images))
		})

		r.Get("/metadata/search", handlers.HandleMetadataSearch(a.metadata))
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func main() {
	app, err := NewApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         app.cfg.Addr(),
		Handler:      app.router,
		ReadTimeout:  app.cfg.Server.ReadTimeout,
		WriteTimeout: app.cfg.Server.WriteTimeout,
	}

	app.logger.Info("Starting server", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil {
		app.logger.Error("Server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
