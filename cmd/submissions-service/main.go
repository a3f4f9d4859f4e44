package main

import (
	"fmt"
	"os"

	"github.com/helioserv/solarops-submissions/internal/auth"
	"github.com/helioserv/solarops-submissions/internal/config"
	"github.com/helioserv/solarops-submissions/internal/db"
	"github.com/helioserv/solarops-submissions/internal/excel"
	httphandler "github.com/helioserv/solarops-submissions/internal/http"
	"github.com/helioserv/solarops-submissions/internal/http/middleware"
	"github.com/helioserv/solarops-submissions/internal/logger"
	"github.com/helioserv/solarops-submissions/internal/metrics"
	"github.com/helioserv/solarops-submissions/internal/pdf"
	"github.com/helioserv/solarops-submissions/internal/propagation"
	"github.com/helioserv/solarops-submissions/internal/repository"
	"github.com/helioserv/solarops-submissions/internal/service"
	"github.com/helioserv/solarops-submissions/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	inverterClient := upstream.NewInverterClient(cfg.Upstream.InverterBaseURL, cfg.Upstream.Timeout)
	meterClient := upstream.NewMeterClient(cfg.Upstream.MeterBaseURL, cfg.Upstream.Timeout)
	weatherClient := upstream.NewWeatherClient(cfg.Upstream.WeatherBaseURL, cfg.Upstream.Timeout)

	calculator := metrics.NewCalculator(inverterClient, meterClient, weatherClient, log)
	propagator := propagation.NewPropagator(repository.NewSatelliteRepository(database), log)
	submissionRepo := repository.NewSubmissionRepository(database)
	submissionService := service.NewSubmissionService(submissionRepo, calculator, propagator, inverterClient, cfg, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(submissionService, excel.NewParser(), excel.NewGenerator(), pdf.NewGenerator(), log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting submissions service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}

	submissionService.Wait()
}
