package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jonathan/lead-tracker/internal/apiclient"
	"github.com/jonathan/lead-tracker/internal/config"
	"github.com/jonathan/lead-tracker/internal/db"
	"github.com/jonathan/lead-tracker/internal/events"
	"github.com/jonathan/lead-tracker/internal/lifecycle"
	"github.com/jonathan/lead-tracker/internal/observability"
	"github.com/jonathan/lead-tracker/internal/pipeline"
	"github.com/jonathan/lead-tracker/internal/session"
	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/timers"
)

// app holds everything a command needs, built from the effective config.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	database  *db.DB // set for the postgres store
	backend   store.Backend
	hub       *events.Hub
	amqp      *events.AMQPPublisher
	service   *lifecycle.Service
	scheduler *timers.Scheduler
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, observability.NewLogger(os.Stderr, cfg.LogLevel), nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, *db.DB, error) {
	switch cfg.Store {
	case config.StorePostgres:
		userID, err := uuid.Parse(cfg.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid user_id: %w", err)
		}
		database, err := db.Connect(ctx, cfg.DatabaseURL, userID)
		if err != nil {
			return nil, nil, err
		}
		return database, database, nil
	case config.StoreHTTP:
		client, err := apiclient.New(apiclient.Config{
			BaseURL: cfg.StoreBaseURL,
			Session: session.NewStatic(cfg.StoreToken, nil),
			Logger:  logger.With("component", "apiclient"),
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case config.StoreMemory:
		return store.NewMemory(), nil, nil
	default:
		// Degraded mode: only local actions on unmaterialized leads work.
		return nil, nil, nil
	}
}

// newApp wires the store, pipeline, lifecycle service and timer scheduler,
// then loads the pipeline once.
func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	backend, database, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, database: database, backend: backend, hub: events.NewHub()}

	pubs := events.Multi{a.hub}
	if cfg.AMQPURL != "" {
		a.amqp, err = events.DialAMQP(cfg.AMQPURL)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		pubs = append(pubs, a.amqp)
	}

	var (
		loader store.Loader
		rs     store.RecordStore
	)
	if backend != nil {
		loader, rs = backend, backend
	}

	clock := clockwork.NewRealClock()
	windows := timers.Windows{Apply: cfg.ApplyWindow.Duration, FollowUp: cfg.FollowUpWindow.Duration}

	leads := pipeline.NewAggregator(loader, logger.With("component", "pipeline"))
	a.service = lifecycle.New(leads, rs, lifecycle.Config{
		Quiet:   cfg.DebounceQuiet.Duration,
		Windows: windows,
		Clock:   clock,
		Logger:  logger.With("component", "lifecycle"),
		Events:  pubs,
	})
	a.scheduler = timers.NewScheduler(leads, a.service, timers.Config{
		ApplyTick:    cfg.ApplyTick.Duration,
		FollowUpTick: cfg.FollowUpTick.Duration,
		Windows:      windows,
		Clock:        clock,
		Logger:       logger.With("component", "timers"),
	})

	if err := a.service.Refresh(ctx); err != nil {
		logger.Warn("initial pipeline load failed, starting empty", "error", err)
	}
	return a, nil
}

// close flushes pending field saves and releases connections.
func (a *app) close(ctx context.Context) {
	if a.service != nil {
		a.service.Close(ctx)
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("failed to close RabbitMQ publisher", "error", err)
		}
	}
	if a.database != nil {
		a.database.Close()
	}
}
