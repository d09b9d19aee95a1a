package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"example.com/backstage/services/rental/internal/api"
	"example.com/backstage/services/rental/internal/infrastructure"
	"example.com/backstage/services/rental/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the Rental API server",
	Long:  `Launches the HTTP server for listings, bookings, tenancies and rent collection, and the payment gateway subscriber when enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer() error {
	logger.Info("Initializing Rental Service...")

	rt, err := openRuntime(runtimeOptions{cache: true, messaging: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if sqlDB, err := rt.db.DB.DB(); err == nil {
		go metrics.CollectDBStats(ctx, sqlDB, 15*time.Second)
	}

	// --- Payment gateway subscriber ---
	var subscriber *infrastructure.MQTTSubscriber
	if cfg.MQTT.Enabled {
		subscriber, err = infrastructure.NewMQTTSubscriber(cfg.MQTT, logger)
		if err != nil {
			return fmt.Errorf("failed to create MQTT subscriber: %w", err)
		}
		subscriber.RegisterHandler("received", rt.services.Tenancy.HandleGatewayNotification)
		if err := subscriber.Start(); err != nil {
			return err
		}
	}

	// --- API Layer Setup ---
	router := gin.New()

	checks := map[string]api.Pinger{"database": rt.db}
	var limiter api.RateCounter
	if rt.cache != nil {
		checks["redis"] = rt.cache
		limiter = rt.cache
	}

	handlers := api.NewAPIHandlers(rt.services, logger, checks)
	api.SetupRoutes(router, handlers, rt.services, cfg.Server, limiter, logger)

	// --- HTTP Server ---
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infof("Rental API listening on %s", serverAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-shutdownChan

	logger.Warn("Shutdown signal received, initiating graceful shutdown...")

	// Stop taking gateway notifications before the HTTP server goes away.
	if subscriber != nil {
		subscriber.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	} else {
		logger.Info("Server stopped gracefully")
	}

	logger.Info("Rental Service shutdown complete")
	return nil
}
