package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intake.app/console/internal/api"
	"intake.app/console/internal/app"
	"intake.app/console/internal/config"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.Debug() {
		log.Println("Service starting in DEBUG mode")
	}

	console, err := app.New(context.Background(), config.AppConfig)
	if err != nil {
		log.Fatalf("Failed to initialize console: %v", err)
	}
	defer console.Close()

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(console.Conversations, console.Reviews)
	router := api.NewRouter(apiHandler, api.RouterConfig{
		AllowedOrigin: config.AppConfig.AllowedOrigin,
		Metrics:       console.Metrics.Handler(),
	})

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // summary generation can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting console on %s (backend %s). Press Ctrl+C to quit.", serverAddr, config.AppConfig.BackendURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// console.Close() runs on return and stops open engines.
	log.Println("Server exiting gracefully")
}
