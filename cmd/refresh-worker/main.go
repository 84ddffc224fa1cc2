package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/careforward/aco-insights/pkg/common/config"
	"github.com/careforward/aco-insights/pkg/common/database"
	"github.com/careforward/aco-insights/pkg/common/kafka"
	"github.com/careforward/aco-insights/pkg/common/logger"
	"github.com/careforward/aco-insights/pkg/common/models"
	"github.com/careforward/aco-insights/pkg/dashboard"
	"github.com/careforward/aco-insights/pkg/metrics"
)

// The refresh worker reacts to upstream ETL loads: it drops stale cached
// dashboard payloads and re-runs the recommendation impact reconciliation,
// reporting any drift as data-quality events. It never mutates stored data.
func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	catalog, err := metrics.Load(cfg.MetricCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Metric catalog unreadable, using built-in definitions")
	}

	cache := dashboard.NewCache(database.GetRedis(), cfg.ResponseCacheTTL)
	producer := kafka.NewProducer(cfg.DataQualityTopic)
	defer producer.Close()

	repo := dashboard.NewRepository(db)
	service := dashboard.NewService(repo, catalog, cache, producer)

	consumer := kafka.NewConsumer(cfg.DataUpdatedTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Log.Info("Shutting down refresh worker...")
		cancel()
	}()

	logger.Log.WithField("topic", cfg.DataUpdatedTopic).Info("Refresh worker started")

	err = consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
			"source":     event.Source,
		}).Info("Store update received")

		if err := service.InvalidateCache(ctx); err != nil {
			return err
		}

		drifts, err := service.ReconcileImpacts(ctx)
		if err != nil {
			return err
		}
		if len(drifts) > 0 {
			logger.Log.WithField("drift_count", len(drifts)).
				Warn("Recommendation impacts diverge from category variances")
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Log.WithError(err).Fatal("Consumer stopped")
	}

	logger.Log.Info("Refresh worker stopped")
}
