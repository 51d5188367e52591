package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/brandmonkz/engagement-tracker/internal/config"
	"github.com/brandmonkz/engagement-tracker/internal/pkg/logger"
	"github.com/brandmonkz/engagement-tracker/internal/repository/postgres"
	"github.com/brandmonkz/engagement-tracker/internal/service/analytics"
	"github.com/brandmonkz/engagement-tracker/internal/service/engagement"
	"github.com/brandmonkz/engagement-tracker/internal/tracking"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("connected to database")

	// Redis is optional; without it analytics reads go straight to Postgres.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unavailable, analytics cache disabled", "error", err)
			rdb = nil
		} else {
			logger.Info("analytics cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	deliveries := postgres.NewDeliveryRepo(db)
	aggregates := postgres.NewAggregateRepo(db)
	events := postgres.NewEventRepo(db)

	engagementSvc := engagement.NewService(deliveries, aggregates, events)
	analyticsSvc := analytics.NewService(postgres.NewAnalyticsRepo(db))

	var reader tracking.AnalyticsProvider = analyticsSvc
	if rdb != nil {
		ttl := time.Duration(cfg.Redis.AnalyticsTTLSeconds) * time.Second
		reader = analytics.NewCachedService(analyticsSvc, rdb, ttl)
	}

	handler := tracking.NewHandler(engagementSvc, reader, tracking.Config{
		AllowedRedirectHosts: cfg.Tracking.AllowedRedirectHosts,
		DefaultLandingURL:    cfg.Tracking.DefaultLandingURL,
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://brandmonkz.com", "https://sandbox.brandmonkz.com", "http://localhost:5173"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Mount("/", handler.Routes())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("tracking server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
