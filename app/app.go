package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-auth-api/config"
	"go-auth-api/db"
	"go-auth-api/docs"
	"go-auth-api/handler"
	"go-auth-api/logger"
	"go-auth-api/metrics"
	"go-auth-api/repository"
	"go-auth-api/router"
	"go-auth-api/service"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// App is the fully wired HTTP application.
type App struct {
	DB      *sql.DB
	Redis   *redis.Client
	Auth    *service.AuthService
	Sweeper *service.Sweeper
	Router  http.Handler
}

// Build wires repositories, services and handlers on top of the given
// connections. redisClient may be nil, in which case profiles are not cached.
func Build(cfg config.Config, database *sql.DB, redisClient *redis.Client) (*App, error) {
	a := cfg.Auth.Argon2
	hasher, err := service.NewPasswordHasher(service.Argon2Params{
		Memory:      a.Memory,
		Iterations:  a.Iterations,
		Parallelism: a.Parallelism,
		SaltLength:  service.DefaultArgon2Params.SaltLength,
		KeyLength:   a.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("create password hasher: %w", err)
	}

	userRepo := repository.NewUserRepository(database)
	tokenRepo := repository.NewTokenRepository(database)
	ephemeralRepo := repository.NewEphemeralTokenRepository(database)

	codec := service.NewTokenCodec([]byte(cfg.JWT.SecretKey), cfg.JWT.Issuer, cfg.JWT.AccessTTL)
	refreshTokens := service.NewRefreshTokenService(tokenRepo, cfg.Auth.RefreshTTL)
	ephemeralTokens := service.NewEphemeralTokenService(ephemeralRepo, cfg.Auth.OTPLength)

	var cache *service.ProfileCache
	if redisClient != nil {
		cache = service.NewProfileCache(redisClient, cfg.Redis.ProfileTTL)
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return nil, err
	}

	authService := service.NewAuthService(
		userRepo,
		hasher,
		codec,
		refreshTokens,
		ephemeralTokens,
		notifier,
		cache,
		service.AuthConfig{EphemeralTTL: cfg.Auth.EphemeralTTL, AppURL: cfg.Mail.AppURL},
	)
	authHandler := handler.NewAuthHandler(authService, cfg.Server.SecureCookies)

	r := router.NewRouter(authHandler, codec, router.Options{
		APIPrefix:      cfg.Server.APIPrefix,
		AllowedOrigins: splitOrigins(cfg.Server.AllowedOrigin),
	})

	return &App{
		DB:      database,
		Redis:   redisClient,
		Auth:    authService,
		Sweeper: service.NewSweeper(refreshTokens, ephemeralTokens, cfg.Auth.SweepInterval),
		Router:  r,
	}, nil
}

func newNotifier(cfg config.Config) (service.Notifier, error) {
	if cfg.Mail.Driver == "smtp" {
		m := cfg.Mail
		n, err := service.NewSMTPNotifier(m.Host, m.Port, m.Username, m.Password, m.From, cfg.Auth.EphemeralTTL)
		if err != nil {
			return nil, fmt.Errorf("create mail notifier: %w", err)
		}
		return n, nil
	}
	logger.Log.Warn("Mail driver is 'log': verification codes and reset links are written to the log")
	return service.LogNotifier{}, nil
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func Run() {
	logger.Init()
	if err := config.LoadConfig("."); err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	cfg := config.AppConfig
	logger.SetLevel(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Log.Info("Configuration loaded successfully")

	metrics.MustRegister("auth")
	docs.SwaggerInfo.BasePath = cfg.Server.APIPrefix

	database, err := db.Connect()
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, cfg.Database.MigrationsPath); err != nil {
		logger.Log.Fatalf("Error running database migrations: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = db.ConnectRedis()
		if err != nil {
			logger.Log.WithError(err).Warn("Redis unavailable, profile caching disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	application, err := Build(cfg, database, redisClient)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go application.Sweeper.Run(sweepCtx)

	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
