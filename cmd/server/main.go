package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gudangpos/backend/internal/cache"
	"gudangpos/backend/internal/config"
	"gudangpos/backend/internal/domain"
	"gudangpos/backend/internal/httpapi"
	"gudangpos/backend/internal/imagestore"
	"gudangpos/backend/internal/insights"
	"gudangpos/backend/internal/service"
	"gudangpos/backend/internal/store"
	"gudangpos/backend/internal/store/memory"
	pgstore "gudangpos/backend/internal/store/postgres"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalw("invalid security configuration", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalw("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "error", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalw("failed to ensure schema", "error", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		if err := seedAdminIfEmpty(ctx, pg, log); err != nil {
			log.Fatalw("failed to seed admin account", "error", err)
		}
		log.Infow("repository ready", "kind", "postgres")
	} else {
		repo = memory.NewSeeded(log)
		log.Infow("repository ready", "kind", "in-memory")
	}

	views := cache.ViewCache(cache.NoopViewCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisViewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, using noop cache", "error", err)
		} else {
			views = redisCache
			closers = append(closers, redisCache.Close)
			log.Infow("cache ready", "kind", "redis")
		}
	} else {
		log.Infow("cache ready", "kind", "noop")
	}

	images := imagestore.Store(imagestore.Noop{})
	if cfg.UploadDir != "" {
		local, err := imagestore.NewLocal(cfg.UploadDir, cfg.UploadBaseURL)
		if err != nil {
			log.Fatalw("failed to init image store", "error", err)
		}
		images = local
		log.Infow("image store ready", "dir", cfg.UploadDir)
	} else {
		log.Warnw("UPLOAD_DIR not set, uploads are discarded")
	}

	viewTTL := time.Duration(cfg.ViewCacheTTLSeconds) * time.Second
	advisor := insights.NewAdvisor(views, viewTTL)
	svc := service.New(repo, views, advisor, images, viewTTL, log)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, log)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("inventory backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warnw("close error", "error", err)
		}
	}

	log.Infow("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

// seedAdminIfEmpty creates the first admin account on a fresh database.
// SEED_ADMIN_PASSWORD must be set; without it the instance starts with no
// way to log in, so we refuse.
func seedAdminIfEmpty(ctx context.Context, repo store.Repository, log *zap.SugaredLogger) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		return fmt.Errorf("database has no users; set SEED_ADMIN_PASSWORD to bootstrap the first admin")
	}
	email := os.Getenv("SEED_ADMIN_EMAIL")
	if email == "" {
		email = "admin@gudangpos.local"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	err = repo.CreateUser(ctx, domain.UserAccount{
		Email:        email,
		FullName:     "Administrator",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		return err
	}
	log.Infow("seeded initial admin account", "email", email)
	return nil
}
