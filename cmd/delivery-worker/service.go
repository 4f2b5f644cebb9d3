package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soumil-kumar17/MailMaven/pkg/logger"
)

const metricsShutdownTimeout = 5 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type workerLoop interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger         *logger.Logger
	DB             pinger
	Workers        []workerLoop
	MetricsHandler http.Handler
	MetricsAddr    string
}

// Service runs the delivery worker loops side by side with the metrics
// endpoint. The first loop to fail stops the others.
type Service struct {
	logg           *logger.Logger
	db             pinger
	workers        []workerLoop
	metricsHandler http.Handler
	metricsAddr    string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if len(params.Workers) == 0 {
		return nil, errors.New("at least one worker is required")
	}
	return &Service{
		logg:           params.Logger,
		db:             params.DB,
		workers:        params.Workers,
		metricsHandler: params.MetricsHandler,
		metricsAddr:    params.MetricsAddr,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if s.metricsHandler != nil && s.metricsAddr != "" {
		listener, err := net.Listen("tcp", s.metricsAddr)
		if err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metricsHandler)
		server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			s.logg.Info(s.logg.WithField(gctx, "addr", listener.Addr().String()), "metrics server listening")
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
