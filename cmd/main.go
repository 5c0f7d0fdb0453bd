package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rehearsal_scheduler/internal/auth"
	"rehearsal_scheduler/internal/config"
	createBand "rehearsal_scheduler/internal/http_server/handlers/create_band"
	createRehearsal "rehearsal_scheduler/internal/http_server/handlers/create_rehearsal"
	createVenue "rehearsal_scheduler/internal/http_server/handlers/create_venue"
	forgotPassword "rehearsal_scheduler/internal/http_server/handlers/forgot_password"
	listBands "rehearsal_scheduler/internal/http_server/handlers/list_bands"
	listRehearsals "rehearsal_scheduler/internal/http_server/handlers/list_rehearsals"
	listVenues "rehearsal_scheduler/internal/http_server/handlers/list_venues"
	"rehearsal_scheduler/internal/http_server/handlers/login"
	"rehearsal_scheduler/internal/http_server/handlers/logout"
	"rehearsal_scheduler/internal/http_server/handlers/me"
	"rehearsal_scheduler/internal/http_server/handlers/register"
	resetPassword "rehearsal_scheduler/internal/http_server/handlers/reset_password"
	updatePassword "rehearsal_scheduler/internal/http_server/handlers/update_password"
	sl "rehearsal_scheduler/internal/lib/logger"
	"rehearsal_scheduler/internal/middleware/authn"
	rateLimit "rehearsal_scheduler/internal/middleware/ratelimit"
	"rehearsal_scheduler/internal/migrations"
	"rehearsal_scheduler/internal/rabbitmq"
	"rehearsal_scheduler/internal/storage/postgres"
	"rehearsal_scheduler/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting rehearsal scheduler", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	if err := migrations.Up(ctx, postgres.DSN(cfg)); err != nil {
		log.Error("failed to run migrations", sl.Err(err))
		os.Exit(1)
	}

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", sl.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	cache, err := redis.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}
	defer cache.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", sl.Err(err))
		os.Exit(1)
	}
	defer msgBroker.Close()

	authService := auth.New(
		log,
		storage,
		storage,
		msgBroker,
		cache,
		cfg.Tokens.SessionTokenSecret,
		cfg.Tokens.SessionTokenTTL,
		cfg.Tokens.ResetTokenTTL,
		cfg.ClientURL,
	)

	router := setupRouter(log, authService, storage, cfg.Tokens.SessionTokenSecret)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", sl.Err(err))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", sl.Err(err))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	authService *auth.Auth,
	storage *postgres.PostgresRepo,
	tokenSecret string,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(rateLimit.Register()).Post("/register",
			register.New(log, validate, authService),
		)
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, authService),
		)
		r.With(rateLimit.ForgotPassword()).Post("/forgot-password",
			forgotPassword.New(log, validate, authService),
		)
		r.With(rateLimit.ResetPassword()).Put("/reset-password/{resetToken}",
			resetPassword.New(log, validate, authService),
		)

		r.Group(func(r chi.Router) {
			r.Use(authn.New(log, tokenSecret))

			r.Get("/me", me.New(log, authService))
			r.Put("/update-password", updatePassword.New(log, validate, authService))
			r.Get("/logout", logout.New(log))
		})
	})

	r.Route("/api/bands", func(r chi.Router) {
		r.Use(authn.New(log, tokenSecret))

		r.Post("/", createBand.New(log, validate, storage))
		r.Get("/", listBands.New(log, storage))
		r.Post("/{bandID}/rehearsals", createRehearsal.New(log, validate, storage))
		r.Get("/{bandID}/rehearsals", listRehearsals.New(log, storage))
	})

	r.Route("/api/venues", func(r chi.Router) {
		r.Use(authn.New(log, tokenSecret))

		r.Post("/", createVenue.New(log, validate, storage))
		r.Get("/", listVenues.New(log, storage))
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
