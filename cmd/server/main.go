package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energia-backend/internal/adapters/http/middleware"
	"energia-backend/internal/adapters/http/routes"
	"energia-backend/internal/adapters/mail"
	"energia-backend/internal/adapters/persistence/models"
	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/config"
	"energia-backend/internal/core/services"
	"energia-backend/internal/pkg/metrics"
	"energia-backend/internal/pkg/password"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "energia-backend/docs" // Swagger docs
)

// @title ENERGIA API
// @version 1.0
// @description Campus energy monitoring: identity, user administration and notifications.

// @contact.name ENERGIA Support
// @contact.email energia@cet.ac.in

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	setupLogger()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load configuration")
	}
	if cfg.IsProd() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	password.Configure(cfg.Password.Argon2MemoryKB, cfg.Password.Argon2Iterations)

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	defer config.CloseDatabase(db)

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to auto migrate")
	}
	log.Info().Msg("✅ Database migration completed")

	store := repositories.NewStore(db)

	// Seed allow-list and dev logins
	if cfg.IsDev() {
		if err := config.NewSeeder(store).Run(context.Background()); err != nil {
			log.Warn().Err(err).Msg("⚠️ Failed to seed database")
		}
	}

	// Purge expired reset tickets on schedule
	cronService := services.NewCronService(store, cfg.Reset.PurgeSchedule)
	if err := cronService.Start(); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start cron service")
	}
	defer cronService.Stop()

	// Shared limiter storage when Redis is configured
	var limiterStorage fiber.Storage
	if cfg.Redis.URL != "" {
		redisStorage, err := middleware.NewRedisStorage(cfg.Redis.URL)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Redis unavailable, rate limits kept in memory")
		} else {
			defer redisStorage.Close()
			limiterStorage = redisStorage
			log.Info().Msg("✅ Rate limiter using Redis")
		}
	}

	m := metrics.NewDefault()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ENERGIA API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg, m, limiterStorage)

	// Setup routes
	routes.Setup(app, &routes.Deps{
		Config:         cfg,
		Store:          store,
		Mailer:         mail.New(cfg),
		Metrics:        m,
		LimiterStorage: limiterStorage,
	})

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Info().Str("port", cfg.Port).Str("mode", cfg.AppMode).Msg("🚀 Server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("❌ Failed to start server")
	}
}

// setupLogger writes human-readable logs to a terminal and JSON otherwise
func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("❌ Error during shutdown")
	}
	log.Info().Msg("✅ Server stopped gracefully")
}
