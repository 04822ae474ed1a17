package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/scrape-comb/app/api"
	"github.com/lysyi3m/scrape-comb/app/cfg"
	"github.com/lysyi3m/scrape-comb/app/database"
	"github.com/lysyi3m/scrape-comb/app/engine"
	"github.com/lysyi3m/scrape-comb/app/scraper"
	"github.com/lysyi3m/scrape-comb/app/tasks"
	"github.com/lysyi3m/scrape-comb/app/transport"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	log.Printf("Starting Scrape Comb server (version: %s)...", appCfg.Version)

	// Database connection
	log.Printf("Opening database at %s...", appCfg.DBPath)
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations:", err)
	}
	log.Printf("Database ready (schema version: %d, dirty: %t)", version, dirty)

	// Load scan profiles
	log.Printf("Loading scan profiles from %s...", appCfg.ProfilesDir)
	configCache := scraper.NewConfigCache(appCfg.ProfilesDir)
	if err := configCache.Run(); err != nil {
		log.Fatal("Failed to load scan profiles:", err)
	}
	log.Printf("Loaded %d scan profiles", configCache.GetProfileCount())

	// Initialize repositories
	scanRepo := database.NewScanRepository(db)
	resultRepo := database.NewResultRepository(db)

	// Connect to the scraper service
	log.Printf("Connecting to scraper at %s...", appCfg.ScraperURL)
	client := transport.NewClient(appCfg.ScraperURL)
	clientCtx, clientCancel := context.WithCancel(context.Background())
	defer clientCancel()
	go client.Run(clientCtx)

	// Initialize core components
	hub := engine.NewHub()
	launcher := scraper.NewLauncher(hub, client)

	// Initialize and start scheduler
	log.Printf("Starting background scheduler with %d workers...", appCfg.WorkerCount)
	scheduler := tasks.NewScheduler(configCache, launcher, hub, scanRepo, resultRepo)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP server
	log.Println("Initializing HTTP server...")
	apiHandler := api.NewHandler(hub, launcher, scanRepo, resultRepo, configCache)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", appCfg.Port)
		log.Printf("API endpoints available:")
		log.Printf("  Scan:          http://localhost:%s/scans/<id>", appCfg.Port)
		log.Printf("  Results:       http://localhost:%s/scans/<id>/results", appCfg.Port)
		log.Printf("  Health check:  http://localhost:%s/health", appCfg.Port)
		log.Printf("  Statistics:    http://localhost:%s/stats", appCfg.Port)

		if appCfg.APIAccessKey != "" {
			log.Printf("  List scans:    http://localhost:%s/api/scans (requires API key)", appCfg.Port)
			log.Printf("  Start scan:    http://localhost:%s/api/scans (POST, requires API key)", appCfg.Port)
			log.Printf("  Stop scan:     http://localhost:%s/api/scans/<id>/stop (POST, requires API key)", appCfg.Port)
		} else {
			log.Printf("  API endpoints: DISABLED (API_ACCESS_KEY not set)")
		}

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Scrape Comb server started successfully!")
	log.Println("Press Ctrl+C to shutdown gracefully...")

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-serverErrChan:
		log.Printf("Server error: %v", err)
	}

	// Graceful shutdown
	log.Println("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server stopped")
	}

	// Scraper connection and scheduler are stopped via defer
	clientCancel()
	log.Println("Scraper connection closed")

	log.Println("Scrape Comb server shutdown complete")
}
