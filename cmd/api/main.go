package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/convo/convo-api/internal/config"
	"github.com/convo/convo-api/internal/domain/auth"
	"github.com/convo/convo-api/internal/domain/chat"
	"github.com/convo/convo-api/internal/domain/role"
	"github.com/convo/convo-api/internal/domain/user"
	"github.com/convo/convo-api/internal/middleware"
	"github.com/convo/convo-api/internal/pkg/database"
	"github.com/convo/convo-api/internal/pkg/jwt"
	"github.com/convo/convo-api/internal/pkg/logger"
	pkgresponse "github.com/convo/convo-api/internal/pkg/response"
	"github.com/convo/convo-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Convo API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	avatarStorage, err := storage.NewS3Storage(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create avatar storage")
	}

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	chatRepo := chat.NewRepository(db)
	roleRepo := role.NewRepository(db)

	// ---------- WebSocket hub ----------
	chatHub := chat.NewHub(redis)
	go chatHub.Run()
	defer chatHub.Stop()

	// ---------- Services ----------
	// The authorization engine reads conversations and memberships through
	// the registry over the chat repository.
	roleService := role.NewService(roleRepo, chat.NewRoleRegistry(chatRepo, chatHub))
	authService := auth.NewService(userRepo, jwtService, redis)
	chatService := chat.NewService(chatRepo, roleService.Gate(), chatHub, avatarStorage)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	roleHandler := role.NewHandler(roleService)
	chatHandler := chat.NewHandler(chatService, chatHub)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())
		r.Mount("/conversations", chatHandler.Routes(authMiddleware, roleHandler))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
