package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"FinEdge/internal/domain/models"
	drepo "FinEdge/internal/domain/repository"
	"FinEdge/internal/services/features"
	"FinEdge/internal/services/positions"
	"FinEdge/internal/services/strategy"
	applogger "FinEdge/pkg/logger"
)

// EngineConfig holds sizing and housekeeping settings for TradingEngine.
type EngineConfig struct {
	AccountEquity       float64
	RiskPerTrade        float64
	MaintenanceInterval time.Duration
	PublishTimeout      time.Duration
	// PublishQueueSize bounds events waiting for the publisher; overflow is dropped.
	PublishQueueSize int
	// Symbols is the active universe; buffers for anything else are dropped
	// by the maintenance loop.
	Symbols []string
}

// TradingEngine drives one market event through features, open positions,
// strategy selection and position entry.
type TradingEngine struct {
	cfg       EngineConfig
	features  *features.Engine
	orch      *strategy.Orchestrator
	positions *positions.Engine

	publisher drepo.EventPublisher
	arms      drepo.ArmStore
	metrics   drepo.Metrics
	log       *applogger.Logger

	outbox  chan publishOp
	outMu   sync.RWMutex
	outDone bool
	outWG   sync.WaitGroup
}

type publishOp struct {
	kind string
	fn   func(ctx context.Context) error
}

type EngineOption func(*TradingEngine)

func WithEventPublisher(p drepo.EventPublisher) EngineOption {
	return func(e *TradingEngine) {
		if p != nil {
			e.publisher = p
		}
	}
}

func WithArmStore(s drepo.ArmStore) EngineOption {
	return func(e *TradingEngine) { e.arms = s }
}

func WithEngineMetrics(m drepo.Metrics) EngineOption {
	return func(e *TradingEngine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithEngineLogger(l *applogger.Logger) EngineOption {
	return func(e *TradingEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewTradingEngine composes the three engines and registers the exit observer
// that feeds rewards back to the orchestrator.
func NewTradingEngine(cfg EngineConfig, fe *features.Engine, orch *strategy.Orchestrator, pe *positions.Engine, opts ...EngineOption) *TradingEngine {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.MaintenanceInterval <= 0 {
		cfg.MaintenanceInterval = time.Minute
	}
	if cfg.PublishQueueSize <= 0 {
		cfg.PublishQueueSize = 256
	}
	e := &TradingEngine{
		cfg:       cfg,
		features:  fe,
		orch:      orch,
		positions: pe,
		publisher: drepo.Noop{},
		metrics:   drepo.Noop{},
		log:       applogger.Nop(),
		outbox:    make(chan publishOp, cfg.PublishQueueSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	pe.OnPositionExit(e.onExit)
	e.outWG.Add(1)
	go e.publishLoop()
	return e
}

// Process implements the pipeline downstream.
func (e *TradingEngine) Process(ctx context.Context, ev models.MarketEvent) error {
	switch ev.Kind {
	case models.EventTicker:
		if ev.Ticker == nil {
			return fmt.Errorf("ticker event without payload")
		}
		e.onTicker(ctx, *ev.Ticker)
	case models.EventOrderBook:
		if ev.OrderBook == nil {
			return fmt.Errorf("orderbook event without payload")
		}
		e.features.UpdateOrderBook(*ev.OrderBook)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}

func (e *TradingEngine) onTicker(ctx context.Context, t models.Ticker) {
	start := time.Now()
	defer func() { e.metrics.RecordLatency("engine_tick", time.Since(start).Seconds()) }()

	e.features.UpdateTicker(t)
	e.metrics.RecordLastPrice(t.Symbol, t.Price)
	e.positions.UpdatePositions(map[string]float64{t.Symbol: t.Price})

	regime, ok := e.features.DetectRegime(t.Symbol)
	if !ok {
		return
	}
	sig, ok := e.orch.GenerateSignal(ctx, t.Symbol, t.Price, regime.Features, regime)
	if !ok {
		return
	}
	e.publish("signal", func(ctx context.Context) error { return e.publisher.PublishSignal(ctx, sig) })

	if !sig.Persisted() {
		e.log.Warn("skipping position for unpersisted signal",
			applogger.String("symbol", sig.Symbol),
			applogger.String("strategy", sig.StrategyID),
		)
		return
	}
	size := e.positionSize(t.Price)
	if _, err := e.positions.AddPosition(sig, size); err != nil {
		if errors.Is(err, positions.ErrSymbolLimit) || errors.Is(err, positions.ErrMaxPositions) {
			e.log.Debug("position rejected", applogger.String("symbol", sig.Symbol), applogger.Error(err))
			return
		}
		e.metrics.RecordError("add_position")
		e.log.Warn("position not opened", applogger.String("symbol", sig.Symbol), applogger.Error(err))
	}
}

// positionSize risks a fixed fraction of equity per trade.
func (e *TradingEngine) positionSize(price float64) float64 {
	if !(price > 0) || math.IsInf(price, 0) {
		return 0
	}
	return e.cfg.AccountEquity * e.cfg.RiskPerTrade / price
}

func (e *TradingEngine) onExit(ev models.ExitEvent) error {
	e.orch.UpdateReward(ev.Position.OriginalSignal, ev.RealizedPnL)
	e.publish("exit", func(ctx context.Context) error { return e.publisher.PublishExit(ctx, ev) })
	return nil
}

// publish queues fn for the publisher goroutine. It never blocks: a full or
// closed outbox drops the event.
func (e *TradingEngine) publish(kind string, fn func(context.Context) error) {
	e.outMu.RLock()
	defer e.outMu.RUnlock()
	if e.outDone {
		e.metrics.RecordDropped("publish_closed")
		return
	}
	select {
	case e.outbox <- publishOp{kind: kind, fn: fn}:
	default:
		e.metrics.RecordDropped("publish_" + kind)
		e.log.Debug("publish queue full", applogger.String("kind", kind))
	}
}

func (e *TradingEngine) publishLoop() {
	defer e.outWG.Done()
	for op := range e.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PublishTimeout)
		err := op.fn(ctx)
		cancel()
		if err != nil {
			e.metrics.RecordError("publish_" + op.kind)
			e.log.Warn("event not published", applogger.String("kind", op.kind), applogger.Error(err))
		}
	}
}

// PendingEvents reports events queued for the publisher.
func (e *TradingEngine) PendingEvents() int { return len(e.outbox) }

// Close stops accepting events and waits for queued ones to be published or
// ctx to end.
func (e *TradingEngine) Close(ctx context.Context) error {
	e.outMu.Lock()
	if !e.outDone {
		e.outDone = true
		close(e.outbox)
	}
	e.outMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.outWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RestoreArms reloads bandit state from the arm store, if one is configured.
func (e *TradingEngine) RestoreArms(ctx context.Context) error {
	if e.arms == nil {
		return nil
	}
	arms, err := e.arms.LoadArms(ctx)
	if err != nil {
		return fmt.Errorf("restore arms: %w", err)
	}
	n := e.orch.RestoreArms(arms)
	e.log.Info("bandit arms restored", applogger.Int("arms", n))
	return nil
}

// Run blocks until ctx is done, periodically dropping buffers for symbols
// outside the configured universe.
func (e *TradingEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Maintain()
		}
	}
}

// Maintain runs one housekeeping pass.
func (e *TradingEngine) Maintain() {
	if len(e.cfg.Symbols) == 0 {
		return
	}
	e.features.CleanupOldSymbols(e.cfg.Symbols)
	e.positions.CleanupOldSymbols(e.cfg.Symbols)
	e.metrics.SetOpenPositions(len(e.positions.OpenPositions()))
}

func (e *TradingEngine) Features() *features.Engine           { return e.features }
func (e *TradingEngine) Orchestrator() *strategy.Orchestrator { return e.orch }
func (e *TradingEngine) Positions() *positions.Engine         { return e.positions }
