package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/soumil-kumar17/MailMaven/internal/delivery"
	"github.com/soumil-kumar17/MailMaven/internal/email"
	"github.com/soumil-kumar17/MailMaven/pkg/config"
	"github.com/soumil-kumar17/MailMaven/pkg/db"
	"github.com/soumil-kumar17/MailMaven/pkg/instance"
	"github.com/soumil-kumar17/MailMaven/pkg/logger"
	"github.com/soumil-kumar17/MailMaven/pkg/metrics"
	"github.com/soumil-kumar17/MailMaven/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "delivery-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "delivery-worker"

	logg = logger.New(logger.Options{
		ServiceName: "delivery-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeAll(dbClient); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	emailClient, err := email.NewClient(cfg.Email)
	if err != nil {
		logg.Error(context.Background(), "failed to create email client", err)
		os.Exit(1)
	}

	queue, err := delivery.NewQueue(dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery queue", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deliveryMetrics := metrics.NewDeliveryMetrics(registry)

	count := cfg.Delivery.Workers
	if count <= 0 {
		count = 1
	}
	instanceID := instance.GetID()
	workers := make([]workerLoop, 0, count)
	for i := 0; i < count; i++ {
		w, err := delivery.NewWorker(delivery.WorkerParams{
			Name:              fmt.Sprintf("%s-%d", instanceID, i),
			Queue:             queue,
			Sender:            emailClient,
			Logger:            logg,
			Metrics:           deliveryMetrics,
			EmptyQueueBackoff: cfg.Delivery.EmptyQueueBackoff,
			ErrorBackoff:      cfg.Delivery.ErrorBackoff,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create delivery worker", err)
			os.Exit(1)
		}
		workers = append(workers, w)
	}

	service, err := NewService(ServiceParams{
		Logger:         logg,
		DB:             dbClient,
		Workers:        workers,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MetricsAddr:    cfg.Delivery.MetricsAddr,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "delivery-worker",
		"workers":     count,
		"instance":    instanceID,
	})
	logg.Info(ctx, "starting delivery worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "delivery worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "delivery worker shutting down gracefully")
}

type closer interface {
	Close() error
}

func closeAll(resources ...closer) error {
	var err error
	for _, r := range resources {
		err = multierr.Append(err, r.Close())
	}
	return err
}
