package strategy

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"FinEdge/internal/domain/models"
	"FinEdge/internal/domain/repository"
	"FinEdge/internal/service/ratelimit"
	applogger "FinEdge/pkg/logger"
)

type Config struct {
	ExplorationRate     float64
	MinConfidence       float64
	MaxSignalsPerSymbol int
	SignalCooldown      time.Duration
	SignalWindow        time.Duration
	SaveTimeout         time.Duration
	RecentCap           int
	HistoryCap          int
}

func DefaultConfig() Config {
	return Config{
		ExplorationRate:     0.1,
		MinConfidence:       0.6,
		MaxSignalsPerSymbol: 3,
		SignalCooldown:      30 * time.Second,
		SignalWindow:        5 * time.Minute,
		SaveTimeout:         2 * time.Second,
		RecentCap:           100,
		HistoryCap:          50,
	}
}

// Orchestrator arbitrates between strategies with Thompson Sampling and turns
// the winner's candidate into a persisted signal.
type Orchestrator struct {
	cfg        Config
	strategies []Strategy
	byID       map[string]Strategy
	ctxTable   ContextTable

	mu     sync.Mutex
	arms   map[string]*models.BanditArm
	perf   map[string]*models.StrategyPerformance
	recent []models.TradingSignal
	rng    RandomSource

	limiter *ratelimit.Window
	store   repository.SignalStore
	sink    repository.PerformanceSink
	metrics repository.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

type Option func(*Orchestrator)

// WithRandomSource replaces the sampler's random source. Tests pass a seeded *rand.Rand.
func WithRandomSource(r RandomSource) Option {
	return func(o *Orchestrator) { o.rng = r }
}

func WithStrategies(s []Strategy) Option {
	return func(o *Orchestrator) {
		if len(s) > 0 {
			o.strategies = s
		}
	}
}

func WithContextTable(t ContextTable) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.ctxTable = t
		}
	}
}

func WithPerformanceSink(s repository.PerformanceSink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(cfg Config, store repository.SignalStore, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.RecentCap <= 0 {
		cfg.RecentCap = def.RecentCap
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = def.HistoryCap
	}
	if cfg.SignalWindow <= 0 {
		cfg.SignalWindow = def.SignalWindow
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}

	o := &Orchestrator{
		cfg:        cfg,
		strategies: DefaultStrategies(),
		ctxTable:   DefaultContextTable(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		store:      store,
		sink:       repository.Noop{},
		metrics:    repository.Noop{},
		log:        applogger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.limiter = ratelimit.NewWindow(cfg.SignalCooldown, cfg.SignalWindow, cfg.MaxSignalsPerSymbol)
	o.byID = make(map[string]Strategy, len(o.strategies))
	o.arms = make(map[string]*models.BanditArm, len(o.strategies))
	o.perf = make(map[string]*models.StrategyPerformance, len(o.strategies))
	for _, s := range o.strategies {
		arm := models.NewBanditArm(s.ID)
		o.byID[s.ID] = s
		o.arms[s.ID] = &arm
		o.perf[s.ID] = &models.StrategyPerformance{
			StrategyID: s.ID,
			Name:       s.Name,
			Wins:       arm.Wins,
			Trials:     arm.Trials,
			Alpha:      arm.Alpha,
			Beta:       arm.Beta,
		}
	}
	return o
}

// SelectStrategy samples every arm, scales the samples by the regime context
// and returns the best one. With probability ExplorationRate a uniformly
// random strategy is returned instead.
func (o *Orchestrator) SelectStrategy(_ models.FeatureSet, regime models.MarketRegime) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	best, bestScore := "", math.Inf(-1)
	for _, s := range o.strategies {
		arm := o.arms[s.ID]
		score := Beta(o.rng, arm.Alpha, arm.Beta) * o.ctxTable.Multiplier(s.ID, regime.Kind)
		if score > bestScore {
			best, bestScore = s.ID, score
		}
	}
	if o.cfg.ExplorationRate > 0 && o.rng.Float64() < o.cfg.ExplorationRate {
		best = o.strategies[o.rng.Intn(len(o.strategies))].ID
	}
	return best
}

// GenerateSignal runs one evaluation cycle for symbol. It reports false when
// the symbol is rate limited or the selected heuristic produced nothing above
// MinConfidence. An accepted signal whose save failed is returned with an
// empty ID and must not back a position.
func (o *Orchestrator) GenerateSignal(ctx context.Context, symbol string, price float64, fs models.FeatureSet, regime models.MarketRegime) (models.TradingSignal, bool) {
	now := o.now()
	if !o.limiter.Allow(symbol, now) {
		return models.TradingSignal{}, false
	}

	id := o.SelectStrategy(fs, regime)
	c := o.byID[id].Run(fs, regime)
	if c.Action == models.ActionHold || c.Confidence < o.cfg.MinConfidence {
		return models.TradingSignal{}, false
	}
	if !o.limiter.Acquire(symbol, now) {
		return models.TradingSignal{}, false
	}

	sig := models.TradingSignal{
		Symbol:     symbol,
		Action:     c.Action,
		Confidence: math.Max(0, math.Min(1, c.Confidence)),
		StrategyID: id,
		Price:      price,
		Timestamp:  now,
		Reasoning:  c.Reasoning,
	}
	sig.ID = o.save(ctx, sig, fs, regime)

	o.mu.Lock()
	o.recent = append(o.recent, sig)
	if over := len(o.recent) - o.cfg.RecentCap; over > 0 {
		o.recent = append(o.recent[:0], o.recent[over:]...)
	}
	o.mu.Unlock()

	o.metrics.RecordSignal(id, sig.Action)
	o.log.Info("signal generated",
		applogger.String("symbol", symbol),
		applogger.String("strategy", id),
		applogger.String("action", string(sig.Action)),
		applogger.Float64("confidence", sig.Confidence),
		applogger.Bool("persisted", sig.Persisted()),
	)
	return sig, true
}

func (o *Orchestrator) save(ctx context.Context, sig models.TradingSignal, fs models.FeatureSet, regime models.MarketRegime) string {
	if o.store == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SaveTimeout)
	defer cancel()

	start := time.Now()
	id, err := o.store.SaveSignal(ctx, sig.Clamped(), fs.Clamped(), regime)
	o.metrics.RecordLatency("save_signal", time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordError("save_signal")
		o.log.Warn("signal not persisted",
			applogger.String("symbol", sig.Symbol),
			applogger.String("strategy", sig.StrategyID),
			applogger.Error(err),
		)
		return ""
	}
	return id
}

// UpdateReward feeds a closed trade back to the strategy that produced it.
func (o *Orchestrator) UpdateReward(signal models.TradingSignal, profit float64) {
	o.mu.Lock()
	arm, ok := o.arms[signal.StrategyID]
	if !ok {
		o.mu.Unlock()
		o.log.Warn("reward for unknown strategy", applogger.String("strategy", signal.StrategyID))
		return
	}

	arm.Trials++
	if profit > 0 {
		arm.Wins++
		arm.Alpha++
	} else {
		arm.Beta++
	}

	p := o.perf[signal.StrategyID]
	p.Wins, p.Trials, p.Alpha, p.Beta = arm.Wins, arm.Trials, arm.Alpha, arm.Beta
	p.TotalPnL += profit
	p.History = append(p.History, profit)
	if over := len(p.History) - o.cfg.HistoryCap; over > 0 {
		p.History = append(p.History[:0], p.History[over:]...)
	}
	snapshot := copyPerformance(*p)
	o.mu.Unlock()

	o.sink.PerformanceUpdated(snapshot.Clamped())
}

// RestoreArms loads previously saved arm state. Unknown strategies and
// snapshots below the prior are ignored.
func (o *Orchestrator) RestoreArms(arms map[string]models.BanditArm) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	restored := 0
	for id, a := range arms {
		cur, ok := o.arms[id]
		if !ok || a.Trials < 1 || a.Alpha < 1 || a.Beta < 1 {
			continue
		}
		*cur = a
		cur.StrategyID = id
		p := o.perf[id]
		p.Wins, p.Trials, p.Alpha, p.Beta = a.Wins, a.Trials, a.Alpha, a.Beta
		restored++
	}
	return restored
}

// Arms returns a copy of every arm in sampling order.
func (o *Orchestrator) Arms() []models.BanditArm {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.BanditArm, 0, len(o.strategies))
	for _, s := range o.strategies {
		out = append(out, *o.arms[s.ID])
	}
	return out
}

func (o *Orchestrator) Performance() []models.StrategyPerformance {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.StrategyPerformance, 0, len(o.strategies))
	for _, s := range o.strategies {
		out = append(out, copyPerformance(*o.perf[s.ID]))
	}
	return out
}

// RecentSignals returns up to limit signals, newest first. Empty symbol matches all.
func (o *Orchestrator) RecentSignals(symbol string, limit int) []models.TradingSignal {
	if limit <= 0 {
		limit = o.cfg.RecentCap
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.TradingSignal, 0, min(limit, len(o.recent)))
	for i := len(o.recent) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol == "" || o.recent[i].Symbol == symbol {
			out = append(out, o.recent[i])
		}
	}
	return out
}

func copyPerformance(p models.StrategyPerformance) models.StrategyPerformance {
	p.History = append([]float64(nil), p.History...)
	return p
}
