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

	"go.uber.org/multierr"

	"github.com/dukerupert/studyhall/internal/auth"
	"github.com/dukerupert/studyhall/internal/config"
	"github.com/dukerupert/studyhall/internal/content"
	"github.com/dukerupert/studyhall/internal/database"
	"github.com/dukerupert/studyhall/internal/logging"
	"github.com/dukerupert/studyhall/internal/server"
)

const cleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	verifier := auth.NewVerifier([]byte(cfg.AuthSecret), cfg.AuthIssuer, cfg.AuthAudience)
	cloner := content.NewClient(content.Config{
		BaseURL: cfg.ContentURL,
		APIKey:  cfg.ContentAPIKey,
	})

	srv := server.New(db, cloner, verifier, cfg.BaseURL, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Periodic housekeeping: flag long-expired invites, drop stale
	// rate-limit windows.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.InviteStore().RevokeExpired(); err != nil {
					logger.Error("revoke expired invites", "error", err)
				} else if n > 0 {
					logger.Info("revoked expired invites", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupDone:
				return
			}
		}
	}()

	go func() {
		fmt.Printf("studyhall running at http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	close(cleanupDone)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var shutdownErr error
	if err := httpServer.Shutdown(ctx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, err)
	}
	if err := db.Close(); err != nil {
		shutdownErr = multierr.Append(shutdownErr, err)
	}
	if shutdownErr != nil {
		log.Fatalf("shutdown error: %v", shutdownErr)
	}
}
