package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energia-backend/internal/adapters/mqtt"
	"energia-backend/internal/adapters/persistence/models"
	"energia-backend/internal/adapters/persistence/repositories"
	"energia-backend/internal/config"
	"energia-backend/internal/core/services"
	"energia-backend/internal/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load configuration")
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	defer config.CloseDatabase(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to auto migrate")
	}

	m := metrics.NewDefault()
	ingest := services.NewIngestService(repositories.NewStore(db), m)

	// Worker metrics on a side port
	metricsAddr := ":" + cfg.MQTT.MetricsPort
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", metricsAddr).Msg("⚠️ Metrics listener stopped")
		}
	}()

	subscriber := mqtt.NewSubscriber(cfg.MQTT, ingest)
	if err := subscriber.Start(); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start MQTT subscriber")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down ingestion worker...")
	subscriber.Stop()
}
