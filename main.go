package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vcf-drop/internal/config"
	"vcf-drop/internal/container"
	"vcf-drop/internal/handler"
	"vcf-drop/internal/middleware"
	"vcf-drop/internal/service"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"
)

// loginAttemptsPerMinute bounds admin credential guessing per client
const loginAttemptsPerMinute = 10

// Resources holds all resources that need cleanup
type Resources struct {
	container *container.Container
	countdown service.Runner
	server    *http.Server
	log       *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	if r.countdown != nil {
		if err := r.countdown.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop countdown watcher")
			errs = append(errs, fmt.Errorf("countdown watcher shutdown: %w", err))
		}
	}

	if r.container != nil {
		r.container.Cleanup()
	}

	if len(errs) > 0 {
		r.log.WithField("error_count", len(errs)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"target":      cfg.TargetCount,
		"countdown":   cfg.CountdownDuration.String(),
	}).Info("Starting vcf-drop server")

	ctx := context.Background()
	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	countdown := c.Services.Countdown
	if err := countdown.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start countdown watcher")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(c),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// WriteTimeout stays unset so event streams are not cut off;
		// other routes are bounded by the Timeout middleware.
	}

	resources := &Resources{
		container: c,
		countdown: countdown,
		server:    server,
		log:       log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins
	corsConfig.ExposedHeaders = append(corsConfig.ExposedHeaders, "X-Contact-Count")

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Metrics)
	r.Use(middleware.AccessLog(log))
	r.Use(chiMiddleware.Recoverer)

	submitLimiter := middleware.NewRateLimiter(cfg.SubmitRatePerMinute, cfg.SubmitRateBurst, middleware.KeyByIP, log)
	loginLimiter := middleware.NewRateLimiter(loginAttemptsPerMinute, 3, middleware.KeyByIP, log)

	var redisPinger handler.Pinger
	if c.HasRedis() {
		redisPinger = c.GetRedisClient()
	}
	var dbPinger handler.Pinger
	if c.DB != nil {
		dbPinger = c.DB
	}
	healthHandler := handler.NewHealthHandler(c.StoreMode, redisPinger, dbPinger, log)
	campaignHandler := handler.NewCampaignHandler(c.Services.Campaign, log)
	adminHandler := handler.NewAdminHandler(c.Services.Campaign, c.Services.AdminAuth, log)
	eventsHandler := handler.NewEventsHandler(c.Notifier, log)

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Long-lived stream, outside the request timeout and compression
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Compress(5))
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			campaignHandler.RegisterRoutes(r, submitLimiter.Handler)
			adminHandler.RegisterRoutes(r, loginLimiter.Handler)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.Write(w, errors.NewNotFoundError("Endpoint not found"), middleware.GetRequestID(r.Context()))
	})

	log.Info("Router configured successfully")
	return r
}
