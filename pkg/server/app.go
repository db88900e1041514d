package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"FinEdge/internal/repository"
	"FinEdge/internal/usecase"
	"FinEdge/pkg/config"
	xhttp "FinEdge/pkg/http"
	pkgkafka "FinEdge/pkg/kafka"
	applogger "FinEdge/pkg/logger"
)

// Closer is an infrastructure client released last during shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// Deps are the components App starts and stops. Collector and Consumer are
// mutually exclusive; which one is set depends on feed.source.
type Deps struct {
	Engine     *usecase.TradingEngine
	Collector  *usecase.MarketCollector
	Consumer   *pkgkafka.Consumer
	Ticks      pkgkafka.MessageHandler
	HTTP       *xhttp.Server
	Persist    *repository.AsyncGateway
	Events     io.Closer
	Closers    []Closer
	Logger     *applogger.Logger
	SignalChan <-chan os.Signal
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	Deps
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = applogger.Nop()
	}
	return &App{cfg: cfg, Deps: deps}
}

// Run starts the application and blocks until interrupted or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l := a.Logger

	if err := a.Engine.RestoreArms(ctx); err != nil {
		l.Warn("starting with fresh bandit arms", applogger.Error(err))
	}
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		a.Engine.Run(ctx)
	}()

	if err := a.startFeed(ctx); err != nil {
		return errors.Join(err, a.shutdown(cancel, engineDone))
	}

	if a.HTTP != nil {
		if err := a.HTTP.Start(); err != nil {
			l.Error("http server start error", applogger.Error(err))
			return errors.Join(err, a.shutdown(cancel, engineDone))
		}
	}

	sigCh := a.SignalChan
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}
	select {
	case s := <-sigCh:
		l.Info("shutdown signal received", applogger.String("signal", s.String()))
	case <-ctx.Done():
		l.Info("context cancelled")
	}

	return a.shutdown(cancel, engineDone)
}

func (a *App) startFeed(ctx context.Context) error {
	switch {
	case a.Consumer != nil && a.Ticks != nil:
		a.Consumer.RegisterHandler(a.Ticks)
		if err := a.Consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.Logger.Info("kafka consumer started", applogger.String("topic", a.Ticks.Topic()))
	case a.Collector != nil:
		if err := a.Collector.Start(ctx); err != nil {
			return fmt.Errorf("start market collector: %w", err)
		}
		a.Logger.Info("market collector started", applogger.Strings("symbols", a.cfg.Feed.Symbols))
	default:
		return errors.New("no market feed configured")
	}
	return nil
}

// shutdown stops intake first, then the engine, then drains persistence.
func (a *App) shutdown(cancel context.CancelFunc, engineDone <-chan struct{}) error {
	l := a.Logger
	l.Info("shutting down...")

	ctx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer stop()

	var errs []error
	if a.Collector != nil {
		if err := a.Collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.HTTP != nil {
		if err := a.HTTP.Stop(ctx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	cancel()
	<-engineDone

	if pending := a.Engine.PendingEvents(); pending > 0 {
		l.Info("flushing engine events", applogger.Int("pending", pending))
	}
	if err := a.Engine.Close(ctx); err != nil {
		l.Warn("engine events not flushed", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.Persist != nil {
		pending := a.Persist.Pending()
		if err := a.Persist.Close(ctx); err != nil {
			l.Warn("persistence queue not drained", applogger.Int("pending", pending), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			l.Warn("event publisher close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.release()

	l.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) release() {
	for _, c := range a.Closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn("close error", applogger.String("component", c.Name), applogger.Error(err))
		}
	}
}
