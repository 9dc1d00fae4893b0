package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/calluna/rewardbox/internal/database"
	"github.com/calluna/rewardbox/internal/logging"
	"github.com/calluna/rewardbox/internal/server"
)

func main() {
	port := os.Getenv("REWARDBOX_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("REWARDBOX_DB_PATH")
	if dbPath == "" {
		dbPath = "rewardbox.db"
	}

	logger := logging.Setup(os.Getenv("REWARDBOX_LOG_LEVEL"))

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		AdminKeyHash: os.Getenv("REWARDBOX_ADMIN_KEY_HASH"),
		CatalogTTL:   30 * time.Second,
	}
	if v := os.Getenv("REWARDBOX_REDEEM_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RedeemRetries = n
		}
	}
	if cfg.AdminKeyHash == "" {
		logger.Warn("REWARDBOX_ADMIN_KEY_HASH not set; admin surface disabled")
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Expired rate-limit windows accumulate without this.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupDone:
				return
			}
		}
	}()

	go func() {
		logger.Info("rewardbox listening", "port", port, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	close(cleanupDone)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
