package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/leshachaplin/loginpipe/app/waiter"
	"github.com/leshachaplin/loginpipe/internal/config"
	appServer "github.com/leshachaplin/loginpipe/internal/server/http"
	"github.com/leshachaplin/loginpipe/internal/service"
	"github.com/leshachaplin/loginpipe/internal/storage/login/clickhouse"
	"github.com/leshachaplin/loginpipe/internal/storage/login/postgres"
	"github.com/leshachaplin/loginpipe/internal/storage/login/sqlite"
	"github.com/leshachaplin/loginpipe/internal/transform"
	"github.com/leshachaplin/loginpipe/internal/worker"
	"github.com/leshachaplin/loginpipe/internal/worker/redpanda/producer"
	"github.com/leshachaplin/loginpipe/internal/worker/sqs"
)

type LoadConfigFn func() (config.Config, error)

type Option func(*App)

// WithQueue replaces the configured SQS queue.
func WithQueue(q worker.Queue) Option {
	return func(a *App) {
		a.queue = q
	}
}

type store interface {
	worker.Sink
	Close() error
}

type App struct {
	cfg      config.Config
	logger   zerolog.Logger
	runID    string
	queue    worker.Queue
	server   *appServer.Server
	waiter   waiter.Waiter
	ctx      context.Context
	cancelFn context.CancelFunc
}

func New(loadConfigFn LoadConfigFn, opts ...Option) (*App, error) {
	cfg, err := loadConfigFn()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, cancelFn := context.WithCancel(context.Background())
	runID := uuid.NewString()
	logger := NewZeroLogger(Level(cfg.LogLevel), cfg.LogPretty).
		With().
		Str("run_id", runID).
		Logger()

	a := &App{
		cfg:      cfg,
		logger:   logger,
		runID:    runID,
		waiter:   waiter.NewWaiter(ctx, cancelFn),
		ctx:      ctx,
		cancelFn: cancelFn,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Start drains the queue once and returns when the run is over. A nil
// error means the queue was emptied or the run was stopped by a signal.
func (a *App) Start() error {
	defer a.cancelFn()

	if a.queue == nil {
		q, err := sqs.New(a.ctx, a.cfg.Queue)
		if err != nil {
			return fmt.Errorf("setup queue: %w", err)
		}
		a.queue = q
	}

	loginStore, err := a.newStore()
	if err != nil {
		return fmt.Errorf("setup %s store: %w", a.cfg.Store.Driver, err)
	}
	defer func() {
		if err := loginStore.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Could not close login storage.")
		}
	}()

	workerOpts := []worker.Option{worker.WithRunID(a.runID)}
	if a.cfg.Notifier.Enabled() {
		reportProducer, err := producer.NewProducer(
			a.ctx,
			a.cfg.Notifier,
			a.logger.With().Str("batch producer", "Publish").Logger(),
		)
		if err != nil {
			return fmt.Errorf("setup batch notifier: %w", err)
		}
		defer reportProducer.Close()
		workerOpts = append(workerOpts, worker.WithNotifier(reportProducer))
	}

	accumulator := service.NewAccumulator(
		transform.New(),
		a.logger.With().Str("component", "accumulator").Logger(),
	)
	loginWorker := worker.New(
		a.cfg.Worker,
		a.queue,
		accumulator,
		loginStore,
		a.logger.With().Str("WORKER", "LOGIN").Logger(),
		workerOpts...,
	)

	if a.cfg.Server.Addr != "" {
		handler := appServer.NewHandler(loginWorker, a.logger)
		a.server = appServer.New(a.cfg.Server.Addr, handler, middleware.Recoverer)
		a.waitForServer()
	}
	a.waitForWorker(loginWorker)

	if err = a.waiter.Wait(); err != nil {
		a.logger.Error().Err(err).Msg("Pipeline run failed.")
		return err
	}
	return nil
}

func (a *App) Stop() {
	a.cancelFn()
}

func (a *App) newStore() (store, error) {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		return postgres.New(a.ctx, a.cfg.Store.Postgres)
	case config.DriverClickhouse:
		return clickhouse.New(a.ctx, a.cfg.Store.Clickhouse, a.logger.With().Str("storage", "clickhouse").Logger())
	case config.DriverSQLite:
		return sqlite.New(a.ctx, a.cfg.Store.SQLite)
	default:
		return nil, fmt.Errorf("unknown driver %q", a.cfg.Store.Driver)
	}
}

func (a *App) waitForServer() {
	a.waiter.Add(func(ctx context.Context) error {
		defer a.logger.Debug().Msg("server has been shutdown")

		group, gCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			defer a.logger.Debug().Msg("public server exited")
			a.logger.Info().Str("addr", a.cfg.Server.Addr).Msg("Starting ops server.")
			err := a.server.ServePublic()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		group.Go(func() error {
			<-gCtx.Done()
			a.logger.Debug().Msg("shutting down the server")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := a.server.ShutdownPublic(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("error while shutting down the server")
			}
			return nil
		})

		return group.Wait()
	})
}

// waitForWorker ends the whole run once the worker returns.
func (a *App) waitForWorker(loginWorker *worker.Worker) {
	a.waiter.Add(func(ctx context.Context) error {
		defer a.waiter.CancelFunc()()

		if err := loginWorker.Run(ctx); err != nil && !loginWorker.Stopped() {
			return err
		}
		return nil
	})
}
