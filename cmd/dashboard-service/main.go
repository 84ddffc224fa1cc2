package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careforward/aco-insights/pkg/common/config"
	"github.com/careforward/aco-insights/pkg/common/database"
	"github.com/careforward/aco-insights/pkg/common/kafka"
	"github.com/careforward/aco-insights/pkg/common/logger"
	"github.com/careforward/aco-insights/pkg/dashboard"
	"github.com/careforward/aco-insights/pkg/gateway/auth"
	"github.com/careforward/aco-insights/pkg/gateway/middleware"
	"github.com/careforward/aco-insights/pkg/metrics"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	catalog, err := metrics.Load(cfg.MetricCatalogPath)
	if err != nil {
		logger.Log.WithError(err).WithField("path", cfg.MetricCatalogPath).
			Warn("Metric catalog unreadable, using built-in definitions")
	}

	cache := dashboard.NewCache(database.GetRedis(), cfg.ResponseCacheTTL)
	producer := kafka.NewProducer(cfg.DataQualityTopic)
	defer producer.Close()

	repo := dashboard.NewRepository(db)
	service := dashboard.NewService(repo, catalog, cache, producer)
	handler := dashboard.NewHandler(service)

	var oidcAuth *auth.OIDCAuthenticator
	if cfg.OIDCIssuer != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to configure OIDC")
		}
	}
	handler.WithAuth(middleware.RequireAuth(oidcAuth))

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	handler.Register(router.PathPrefix("/api/v1").Subrouter())

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Dashboard Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Dashboard Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("Failed to close database")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Error("Failed to close Redis")
	}

	logger.Log.Info("Dashboard Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
