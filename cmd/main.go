package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/venue-tournaments/config"
	"github.com/Dosada05/venue-tournaments/db"
	"github.com/Dosada05/venue-tournaments/handlers"
	"github.com/Dosada05/venue-tournaments/metrics"
	"github.com/Dosada05/venue-tournaments/middleware"
	"github.com/Dosada05/venue-tournaments/realtime"
	"github.com/Dosada05/venue-tournaments/repositories"
	api "github.com/Dosada05/venue-tournaments/routes"
	"github.com/Dosada05/venue-tournaments/services"
	"github.com/Dosada05/venue-tournaments/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("memory_store", cfg.UsesMemoryStore()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Хранилище
	var (
		tournamentRepo   repositories.TournamentRepository
		registrationRepo repositories.RegistrationRepository
	)
	if cfg.UsesMemoryStore() {
		store := repositories.NewMemoryStore()
		tournamentRepo, registrationRepo = store.Tournaments(), store.Registrations()
		logger.Warn("using in-memory store, data is lost on restart")
	} else {
		dbConn, err := db.Connect(cfg.DatabaseURL, db.DefaultPool, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer closeDB(dbConn, logger)
		logger.Info("database connection established")

		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, dbConn); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			logger.Info("database schema applied")
		}
		tournamentRepo = repositories.NewPostgresTournamentRepository(dbConn)
		registrationRepo = repositories.NewPostgresRegistrationRepository(dbConn)
	}

	// Метрики
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(promRegistry)

	// Загрузчик выгрузок (Cloudflare R2), необязателен
	var uploader storage.FileUploader
	if cfg.R2Enabled() {
		uploader, err = storage.NewR2Uploader(ctx, storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize R2 uploader: %w", err)
		}
		logger.Info("R2 uploader initialized")
	}

	wsHub := realtime.NewHub(logger)
	go wsHub.Run(ctx)

	authService := services.NewAuthService(services.AuthConfig{
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
		JWTSecret:         cfg.JWTSecretKey,
		TokenTTL:          cfg.JWTTTL,
	})

	registry := services.NewTournamentRegistry(services.RegistryConfig{
		Tournaments:    tournamentRepo,
		Registrations:  registrationRepo,
		Identity:       authService,
		Capacity:       services.NewCapacityPolicy(cfg.DefaultCapacity, cfg.ReducedCapacity, cfg.ReducedGames),
		GatewayTimeout: cfg.GatewayTimeout,
		Logger:         logger,
		Metrics:        appMetrics,
		Notifier:       wsHub,
	})
	defer registry.Close()

	if err := registry.RefreshTournaments(ctx); err != nil {
		// сервер все равно поднимается: список отдаст ошибку и повторит попытку
		logger.Warn("initial tournament load failed", slog.Any("error", err))
	}

	scheduler, err := services.NewRefreshScheduler(registry, cfg.RefreshInterval, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()
	logger.Info("refresh scheduler started", slog.Duration("interval", cfg.RefreshInterval))

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:          handlers.NewAuthHandler(authService),
		Tournaments:   handlers.NewTournamentHandler(registry),
		Registrations: handlers.NewRegistrationHandler(registry, services.NewExportService(registry, uploader, logger)),
		Orders:        handlers.NewOrderHandler(services.NewOrderService(cfg.OrderWhatsappNumber)),
		WebSocket:     handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigin),
	}, api.Options{
		Authenticator:       authService,
		Admins:              authService,
		RegistrationLimiter: middleware.NewIPRateLimiter(cfg.RegistrationRate),
		AllowedOrigins:      cfg.CORSAllowedOrigin,
		Metrics:             appMetrics.Handler(),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return err
	}
	logger.Info("server shutdown complete")
	return nil
}

func closeDB(dbConn *sql.DB, logger *slog.Logger) {
	if err := dbConn.Close(); err != nil {
		logger.Error("failed to close database connection", slog.Any("error", err))
		return
	}
	logger.Info("database connection closed")
}
