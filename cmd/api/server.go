package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"finlink/internal/infrastructure/postgres/listener"
	"finlink/internal/interfaces/scheduler"
)

// StartServer starts the API server in the background.
func StartServer(addr string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Aggregation fans out to the provider, so writes may take a while.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	return srv
}

// Background groups the workers that run next to the HTTP server.
type Background struct {
	Scheduler *scheduler.Scheduler
	Pool      *scheduler.WorkerPool
	Listener  *listener.CredentialListener
}

// GracefulShutdown stops accepting requests, then stops the listener and
// drains queued sync jobs.
func GracefulShutdown(srv *http.Server, bg Background, timeout time.Duration) {
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	if bg.Listener != nil {
		bg.Listener.Stop()
	}
	if bg.Scheduler != nil {
		bg.Scheduler.Shutdown(timeout)
	}
	if bg.Pool != nil {
		bg.Pool.ShutdownWithTimeout(timeout)
	}

	log.Println("Server stopped")
}
