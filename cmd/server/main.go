package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/robfig/cron"

	"github.com/jwaldner/ivsurface/internal/alpaca"
	"github.com/jwaldner/ivsurface/internal/config"
	"github.com/jwaldner/ivsurface/internal/handlers"
	"github.com/jwaldner/ivsurface/internal/logger"
	"github.com/jwaldner/ivsurface/internal/surface"
	"github.com/jwaldner/ivsurface/internal/treasury"
)

func main() {
	cfg := config.Load()

	if err := logger.InitWithConfig(cfg.Logging.LogLevel, cfg.Logging.LogFile); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger.Log.Infof("ivsurface starting - port %s", cfg.Port)

	if cfg.AlpacaAPIKey == "" || cfg.AlpacaSecretKey == "" {
		log.Fatal("ALPACA_API_KEY and ALPACA_SECRET_KEY are required (config.yaml, .env or environment)")
	}
	// Reject obvious placeholder values; real auth errors surface per request
	if strings.Contains(cfg.AlpacaAPIKey, "<") || cfg.AlpacaAPIKey == "REPLACE_ME" {
		log.Fatal("API key appears to be a placeholder - please set real credentials")
	}

	// Risk-free rate: fetch once up front, then refresh on a schedule so
	// surface builds never wait on the Treasury API.
	rates := treasury.NewClient(cfg.FallbackRate)
	if _, err := rates.Refresh(); err != nil {
		logger.Log.Warnf("Initial Treasury fetch failed, using fallback rate %.4f", cfg.FallbackRate)
	}
	scheduler := cron.New()
	if err := scheduler.AddFunc("@every 1h", func() { rates.Refresh() }); err != nil {
		log.Fatalf("Failed to schedule rate refresh: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	alpacaClient := alpaca.NewClient(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey)
	builder := surface.NewBuilder(cfg.Solver.Workers, cfg.Solver.MoneynessMin, cfg.Solver.MoneynessMax)
	surfaceHandler := handlers.NewSurfaceHandler(alpacaClient, rates, builder)

	r := mux.NewRouter()
	r.HandleFunc("/", surfaceHandler.HomeHandler).Methods("GET")
	r.HandleFunc("/api/surface", surfaceHandler.SurfaceJSONHandler).Methods("GET")
	r.HandleFunc("/api/surface/csv", surfaceHandler.SurfaceCSVHandler).Methods("GET")
	r.HandleFunc("/api/test-connection", surfaceHandler.TestConnectionHandler).Methods("GET")

	logger.Log.Infof("HTTP server listening on port %s", cfg.Port)
	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, r); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
