// Command codesetd is the codeset server daemon.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeset/internal/api"
	"codeset/internal/config"
	"codeset/internal/registry"
	"codeset/internal/store"
)

func main() {
	// Parse flags
	listen := flag.String("listen", "", "Address to listen on (default: :7448)")
	dataDir := flag.String("data", "", "Data directory (default: ./data)")
	hierDir := flag.String("hierarchies", "", "Hierarchy definition directory (default: ./hierarchies)")
	flag.Parse()

	// Load config (flags override env)
	cfg := config.FromEnv()
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *hierDir != "" {
		cfg.HierarchyDir = *hierDir
	}

	log.Printf("codesetd starting...")
	log.Printf("  listen:      %s", cfg.Listen)
	log.Printf("  data:        %s", cfg.DataDir)
	log.Printf("  hierarchies: %s", cfg.HierarchyDir)
	log.Printf("  max_batch:   %d", cfg.MaxBatchSize)
	log.Printf("  version:     %s", cfg.Version)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	db, err := store.OpenDataDir(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	reg := registry.New(cfg.HierarchyDir)

	// Create HTTP server
	mux := api.NewRouter(db, reg, cfg)
	handler := api.WithDefaults(mux, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}

		close(done)
	}()

	// Start server
	log.Printf("codesetd listening on %s", cfg.Listen)
	log.Printf("Draft routes: /{owner}/{draft}/v1/...")
	log.Printf("Admin routes: POST /admin/v1/drafts, GET /admin/v1/drafts, DELETE /admin/v1/drafts/{owner}/{draft}")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}

	<-done
	log.Println("codesetd stopped")
}
