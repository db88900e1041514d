package repository

import (
	"context"
	"sync"
	"time"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
	applogger "FinEdge/pkg/logger"
)

type writeOp struct {
	name string
	fn   func(ctx context.Context) error
}

// AsyncGateway turns the synchronous Gateway into the best-effort sinks the
// engines write to. Submissions never block: when the queue is full the write
// is dropped and counted. Each write is attempted once.
type AsyncGateway struct {
	gw      domrepo.Gateway
	arms    domrepo.ArmStore
	metrics domrepo.Metrics
	log     *applogger.Logger

	workers int
	timeout time.Duration
	queue   chan writeOp

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type AsyncOption func(*AsyncGateway)

func WithQueueSize(n int) AsyncOption {
	return func(g *AsyncGateway) {
		if n > 0 {
			g.queue = make(chan writeOp, n)
		}
	}
}

func WithWorkers(n int) AsyncOption {
	return func(g *AsyncGateway) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithWriteTimeout bounds each individual write.
func WithWriteTimeout(d time.Duration) AsyncOption {
	return func(g *AsyncGateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithArmSnapshots mirrors bandit arm state into s on every performance update.
func WithArmSnapshots(s domrepo.ArmStore) AsyncOption {
	return func(g *AsyncGateway) { g.arms = s }
}

func WithAsyncMetrics(m domrepo.Metrics) AsyncOption {
	return func(g *AsyncGateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

func WithAsyncLogger(l *applogger.Logger) AsyncOption {
	return func(g *AsyncGateway) {
		if l != nil {
			g.log = l
		}
	}
}

// NewAsyncGateway starts the background writers.
func NewAsyncGateway(gw domrepo.Gateway, opts ...AsyncOption) *AsyncGateway {
	g := &AsyncGateway{
		gw:      gw,
		metrics: domrepo.Noop{},
		log:     applogger.Nop(),
		workers: 1,
		timeout: 5 * time.Second,
		queue:   make(chan writeOp, 1024),
	}
	for _, opt := range opts {
		opt(g)
	}
	for i := 0; i < g.workers; i++ {
		g.wg.Add(1)
		go g.worker()
	}
	return g
}

func (g *AsyncGateway) worker() {
	defer g.wg.Done()
	for op := range g.queue {
		g.run(op)
	}
}

func (g *AsyncGateway) run(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	start := time.Now()
	err := op.fn(ctx)
	g.metrics.RecordLatency("persist_"+op.name, time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordError("persist_" + op.name)
		g.log.Warn("async write failed",
			applogger.String("op", op.name),
			applogger.Error(err),
		)
	}
}

func (g *AsyncGateway) submit(name string, fn func(ctx context.Context) error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		g.metrics.RecordDropped("persist_closed")
		return
	}
	select {
	case g.queue <- writeOp{name: name, fn: fn}:
	default:
		g.metrics.RecordDropped("persist_" + name)
		g.log.Debug("persist queue full", applogger.String("op", name))
	}
}

// Pending reports queued writes.
func (g *AsyncGateway) Pending() int { return len(g.queue) }

// Close stops accepting writes and waits for queued ones to finish or ctx to end.
func (g *AsyncGateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.queue)
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *AsyncGateway) RecordFeatures(symbol string, fs models.FeatureSet, r models.MarketRegime) {
	g.submit("features", func(ctx context.Context) error {
		return g.gw.SaveMarketFeatures(ctx, symbol, fs, r)
	})
}

func (g *AsyncGateway) PositionOpened(p models.Position, signalID string) {
	g.submit("position_open", func(ctx context.Context) error {
		return g.gw.SavePosition(ctx, p, signalID)
	})
}

func (g *AsyncGateway) PositionUpdated(p models.Position) {
	g.submit("position_update", func(ctx context.Context) error {
		return g.gw.UpdatePosition(ctx, p)
	})
}

func (g *AsyncGateway) PositionClosed(p models.Position, reason string) {
	g.submit("position_close", func(ctx context.Context) error {
		return g.gw.ClosePosition(ctx, p, reason)
	})
}

func (g *AsyncGateway) PerformanceUpdated(perf models.StrategyPerformance) {
	g.submit("performance", func(ctx context.Context) error {
		return g.gw.UpdateStrategyPerformance(ctx, perf)
	})
	if g.arms == nil {
		return
	}
	arm := models.BanditArm{
		StrategyID: perf.StrategyID,
		Wins:       perf.Wins,
		Trials:     perf.Trials,
		Alpha:      perf.Alpha,
		Beta:       perf.Beta,
	}
	g.submit("arm", func(ctx context.Context) error {
		return g.arms.SaveArm(ctx, arm)
	})
}

var (
	_ domrepo.FeatureSink     = (*AsyncGateway)(nil)
	_ domrepo.PositionSink    = (*AsyncGateway)(nil)
	_ domrepo.PerformanceSink = (*AsyncGateway)(nil)
)
