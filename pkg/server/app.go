package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	apimetrics "AaveRisk/internal/service/metrics"
	"AaveRisk/internal/usecase"
	"AaveRisk/pkg/config"
	xhttp "AaveRisk/pkg/http"
	pkgkafka "AaveRisk/pkg/kafka"
	applogger "AaveRisk/pkg/logger"
	"AaveRisk/pkg/queue"
	"AaveRisk/pkg/scheduler"
)

// DailyOHLCTask is the scheduler entry of the daily ingestion.
const DailyOHLCTask = "daily-ohlc"

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *scheduler.Scheduler
	ingestion  *usecase.OHLCIngestion
	queue      *queue.RedisQueue
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	closers    []closer

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	ingestion *usecase.OHLCIngestion,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		cfg:        cfg,
		logger:     l,
		httpServer: httpServer,
		scheduler:  sched,
		ingestion:  ingestion,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetQueue attaches the refresh job queue.
func (a *App) SetQueue(q *queue.RedisQueue) { a.queue = q }

// SetConsumer attaches the candle consumer and its handler.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// AddCloser registers an infrastructure client closed on shutdown, in order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Start brings every component up without blocking.
func (a *App) Start() error {
	apimetrics.Register()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return err
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.logger.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.cfg.Ingestion.Enabled {
		if err := a.scheduler.Register(DailyOHLCTask, a.cfg.Ingestion.Schedule, a.ingestion.Scheduled); err != nil {
			return err
		}
		a.scheduler.Start()
		if next, ok := a.scheduler.Next(DailyOHLCTask); ok {
			a.logger.Info("daily ingestion scheduled",
				applogger.String("spec", a.cfg.Ingestion.Schedule),
				applogger.Time("next_run", next),
			)
		}
		if a.cfg.Ingestion.RunOnStart {
			go func() {
				if _, err := a.ingestion.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Warn("startup ingestion run", applogger.Error(err))
				}
			}()
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("application started",
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Int("markets", len(a.cfg.Markets)),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	return a.Shutdown(ctx)
}

// IngestOnce runs a single ingestion pass without serving HTTP, then releases
// the infrastructure clients. A run that stored nothing but failed some
// markets is an error.
func (a *App) IngestOnce(ctx context.Context) (*usecase.RunReport, error) {
	defer a.closeClients()
	report, err := a.ingestion.Run(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("one-shot ingestion finished",
		applogger.String("outcome", report.Outcome),
		applogger.Int("stored", report.Stored),
		applogger.Int("failed", report.Failed),
	)
	if report.Stored == 0 && report.Failed > 0 {
		return report, fmt.Errorf("ingestion stored nothing, %d markets failed", report.Failed)
	}
	return report, nil
}

// Shutdown stops intake first, then workers, then infrastructure clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")
	a.cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.logger.Warn("scheduler stop error", applogger.Error(err))
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.closeClients()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeClients() {
	// flush aggregated error logs while the producer is still open
	a.logger.RemoveCollector()
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.logger.Warn("close error", applogger.String("component", c.name), applogger.Error(err))
		}
	}
	a.closers = nil
}
