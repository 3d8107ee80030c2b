package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"energy-analytics/internal/catalog"
	"energy-analytics/internal/config"
	"energy-analytics/internal/handlers"
	"energy-analytics/internal/repository"
	"energy-analytics/internal/services"
	"energy-analytics/pkg/database"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting energy analytics API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"data_dir":    cfg.Data.Dir,
		"persistence": cfg.Database.Enabled,
		"db_driver":   cfg.Database.Driver,
	})

	// Dedicated registry so /metrics only exposes this process
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := metrics.NewCollector("energy_analytics", registry)

	cat, err := catalog.Load(cfg.Data.CatalogPath)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load source catalog", logging.Fields{
			"catalog": cfg.Data.CatalogPath,
		}, err)
	}
	cat = cat.WithDataDir(cfg.Data.Dir)
	if n, ok := cfg.Data.TopNOverride(); ok {
		cat.LCOE.TopN = n
	}

	// Initialize optional persistence
	var repo repository.AnalysisRepository
	if cfg.Database.Enabled {
		db, err := database.Open(cfg.DatabaseConnConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		if err := repository.Migrate(ctx, db); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to migrate database", logging.Fields{}, err)
		}
		repo = repository.NewAnalysisRepository(db, logger, metricsCollector)
	}

	// Initialize services
	normalizer := services.NewNormalizer(cfg.Data.Workers, logger, metricsCollector)
	analysisService := services.NewAnalysisService(cat, normalizer, logger, metricsCollector)
	summaryService := services.NewSummaryService(analysisService, repo, logger, metricsCollector)

	// A failed first run leaves the API up; clients can POST a refresh once the data is fixed
	if _, err := summaryService.Refresh(ctx); err != nil {
		logger.Error(ctx, "[STARTUP_ANALYSIS_FAILED] Initial analysis failed", logging.Fields{}, err)
	}

	energyHandler := handlers.NewEnergyHandler(summaryService, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	energyHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
