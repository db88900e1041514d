package positions

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"FinEdge/internal/domain/models"
	"FinEdge/internal/domain/repository"
	"FinEdge/internal/services/features"
	applogger "FinEdge/pkg/logger"
	"FinEdge/pkg/util"
)

var (
	ErrMaxPositions  = errors.New("positions: open position limit reached")
	ErrSymbolLimit   = errors.New("positions: per-symbol position limit reached")
	ErrInvalidSignal = errors.New("positions: signal cannot open a position")
	ErrInvalidSize   = errors.New("positions: size must be positive")
)

// atrFallbackPct is the ATR proxy, as a fraction of price, used until the
// lookback window is full.
const atrFallbackPct = 0.02

type Config struct {
	MaxPositions          int
	MaxPerSymbol          int
	StopLossPct           float64
	TakeProfitMultiplier  float64
	ATRPeriod             int
	TrailingStopPct       float64
	EdgeDecayRate         float64
	MinPositionAge        time.Duration
	EdgeDecayGrace        time.Duration
	UpdatePersistInterval time.Duration
	ClosedHistory         int
}

func DefaultConfig() Config {
	return Config{
		MaxPositions:          50,
		MaxPerSymbol:          3,
		StopLossPct:           0.02,
		TakeProfitMultiplier:  2,
		ATRPeriod:             14,
		TrailingStopPct:       0.02,
		EdgeDecayRate:         0.1,
		MinPositionAge:        30 * time.Second,
		EdgeDecayGrace:        5 * time.Minute,
		UpdatePersistInterval: 10 * time.Second,
		ClosedHistory:         500,
	}
}

// ExitHandler observes closed positions. Errors and panics are logged and
// never reach the engine or other handlers.
type ExitHandler func(models.ExitEvent) error

// Engine owns the live set of paper positions.
type Engine struct {
	cfg             Config
	methods         MethodTable
	strategyMethods StrategyMethods

	mu          sync.Mutex
	positions   map[string]*models.Position
	prices      map[string]*features.Window[float64]
	lastPersist map[string]time.Time
	closed      []models.ExitEvent
	handlers    []ExitHandler

	sink    repository.PositionSink
	metrics repository.Metrics
	log     *applogger.Logger
	now     func() time.Time
}

type Option func(*Engine)

func WithMethods(m MethodTable) Option {
	return func(e *Engine) {
		if len(m) > 0 {
			e.methods = m
		}
	}
}

func WithStrategyMethods(m StrategyMethods) Option {
	return func(e *Engine) {
		if m != nil {
			e.strategyMethods = m
		}
	}
}

func WithPositionSink(s repository.PositionSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = def.MaxPositions
	}
	if cfg.MaxPerSymbol <= 0 {
		cfg.MaxPerSymbol = def.MaxPerSymbol
	}
	if cfg.TakeProfitMultiplier <= 0 {
		cfg.TakeProfitMultiplier = def.TakeProfitMultiplier
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.ClosedHistory <= 0 {
		cfg.ClosedHistory = def.ClosedHistory
	}

	e := &Engine{
		cfg:             cfg,
		methods:         DefaultMethods(),
		strategyMethods: DefaultStrategyMethods(),
		positions:       make(map[string]*models.Position),
		prices:          make(map[string]*features.Window[float64]),
		lastPersist:     make(map[string]time.Time),
		sink:            repository.Noop{},
		metrics:         repository.Noop{},
		log:             applogger.Nop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnPositionExit registers an exit observer. Handlers run in registration order.
func (e *Engine) OnPositionExit(h ExitHandler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	e.handlers = append(e.handlers, h)
	e.mu.Unlock()
}

// AddPosition opens a paper position backed by signal and returns its id.
func (e *Engine) AddPosition(signal models.TradingSignal, size float64) (string, error) {
	side, ok := models.SideFor(signal.Action)
	if !ok || !(signal.Price > 0) || math.IsInf(signal.Price, 0) {
		return "", ErrInvalidSignal
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return "", ErrInvalidSize
	}
	now := e.now()
	mc := e.resolve(signal.StrategyID)

	e.mu.Lock()
	if len(e.positions) >= e.cfg.MaxPositions {
		e.mu.Unlock()
		return "", ErrMaxPositions
	}
	if e.countLocked(signal.Symbol) >= e.cfg.MaxPerSymbol {
		e.mu.Unlock()
		return "", ErrSymbolLimit
	}

	entry := signal.Price
	atr := e.atrLocked(signal.Symbol, entry)
	dir := direction(side)
	tp := entry + dir*atr*mc.ATRMultiplier*e.cfg.TakeProfitMultiplier

	pos := &models.Position{
		ID:                e.nextIDLocked(signal.Symbol, now),
		SignalID:          signal.ID,
		Symbol:            signal.Symbol,
		Side:              side,
		Size:              size,
		EntryPrice:        entry,
		CurrentPrice:      entry,
		TrailingStopPrice: entry * (1 - dir*e.cfg.StopLossPct),
		TakeProfitPrice:   math.Max(tp, 0),
		ProfitLockMethod:  mc.Method,
		TimeHeld:          util.FormatHeld(0),
		EntryTime:         now,
		LastUpdate:        now,
		EdgeDecayScore:    1,
		ATRValue:          atr,
		OriginalSignal:    signal,
	}
	e.positions[pos.ID] = pos
	e.lastPersist[pos.ID] = now
	snapshot := *pos
	open := len(e.positions)
	e.mu.Unlock()

	e.sink.PositionOpened(snapshot.Clamped(), signal.ID)
	e.metrics.SetOpenPositions(open)
	e.log.Info("position opened",
		applogger.String("id", snapshot.ID),
		applogger.String("side", string(side)),
		applogger.String("method", string(mc.Method)),
		applogger.Float64("entry", entry),
		applogger.Float64("stop", snapshot.TrailingStopPrice),
		applogger.Float64("take_profit", snapshot.TakeProfitPrice),
	)
	return snapshot.ID, nil
}

func (e *Engine) countLocked(symbol string) int {
	n := 0
	for _, p := range e.positions {
		if p.Symbol == symbol {
			n++
		}
	}
	return n
}

func (e *Engine) nextIDLocked(symbol string, now time.Time) string {
	id := fmt.Sprintf("%s_%d", symbol, now.UnixNano())
	for i := 1; ; i++ {
		if _, taken := e.positions[id]; !taken {
			return id
		}
		id = fmt.Sprintf("%s_%d_%d", symbol, now.UnixNano(), i)
	}
}

// atrLocked averages absolute price changes over the lookback, falling back
// to a fixed fraction of price while the window is short or flat.
func (e *Engine) atrLocked(symbol string, price float64) float64 {
	fallback := price * atrFallbackPct
	w, ok := e.prices[symbol]
	if !ok || w.Len() < e.cfg.ATRPeriod+1 {
		return fallback
	}
	p := w.Values()
	sum := 0.0
	for i := 1; i < len(p); i++ {
		sum += math.Abs(p[i] - p[i-1])
	}
	atr := sum / float64(len(p)-1)
	if !(atr > 0) {
		return fallback
	}
	return atr
}

func (e *Engine) observeLocked(symbol string, price float64) {
	w, ok := e.prices[symbol]
	if !ok {
		w = features.NewWindow[float64](e.cfg.ATRPeriod + 1)
		e.prices[symbol] = w
	}
	w.Push(price)
}

// CleanupOldSymbols drops the ATR window of every symbol outside active that
// has no live position. It returns the number of windows dropped.
func (e *Engine) CleanupOldSymbols(active []string) int {
	keep := make(map[string]struct{}, len(active))
	for _, s := range active {
		keep[s] = struct{}{}
	}

	e.mu.Lock()
	for _, pos := range e.positions {
		keep[pos.Symbol] = struct{}{}
	}
	removed := 0
	for sym := range e.prices {
		if _, ok := keep[sym]; !ok {
			delete(e.prices, sym)
			removed++
		}
	}
	e.mu.Unlock()

	if removed > 0 {
		e.log.Debug("dropped price windows", applogger.Int("count", removed))
	}
	return removed
}

type pendingExit struct {
	id     string
	reason string
}

// UpdatePositions marks every live position whose symbol is in prices to
// market, then closes those that meet an exit condition.
func (e *Engine) UpdatePositions(prices map[string]float64) {
	now := e.now()
	var (
		exits   []pendingExit
		updates []models.Position
	)

	e.mu.Lock()
	for sym, px := range prices {
		if px > 0 && !math.IsInf(px, 0) {
			e.observeLocked(sym, px)
		}
	}
	for id, pos := range e.positions {
		px, ok := prices[pos.Symbol]
		if !ok || !(px > 0) || math.IsInf(px, 0) {
			continue
		}
		mc := e.methodFor(pos)
		e.refreshLocked(pos, mc, px, now)

		if reasons := e.exitReasons(pos, mc, now); len(reasons) > 0 {
			exits = append(exits, pendingExit{id: id, reason: strings.Join(reasons, ", ")})
			continue
		}
		if now.Sub(e.lastPersist[id]) >= e.cfg.UpdatePersistInterval {
			e.lastPersist[id] = now
			updates = append(updates, pos.Clamped())
		}
	}
	e.mu.Unlock()

	for _, u := range updates {
		e.sink.PositionUpdated(u)
	}
	sort.Slice(exits, func(i, j int) bool { return exits[i].id < exits[j].id })
	for _, x := range exits {
		e.ExitPosition(x.id, x.reason)
	}
}

func (e *Engine) methodFor(pos *models.Position) models.ProfitLockConfig {
	if c, ok := e.methods[pos.ProfitLockMethod]; ok {
		return c
	}
	return e.resolve(pos.OriginalSignal.StrategyID)
}

// refreshLocked recomputes PnL, peak, drawdown, trailing stop and edge decay.
func (e *Engine) refreshLocked(pos *models.Position, mc models.ProfitLockConfig, price float64, now time.Time) {
	dir := direction(pos.Side)
	pos.CurrentPrice = price
	pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Size * dir
	if notional := pos.EntryPrice * pos.Size; notional > 0 {
		pos.UnrealizedPnLPct = pos.UnrealizedPnL / notional * 100
	}

	if pos.UnrealizedPnL > pos.PeakPnL {
		pos.PeakPnL = pos.UnrealizedPnL
	}
	if pos.PeakPnL > 0 {
		dd := (pos.PeakPnL - pos.UnrealizedPnL) / pos.PeakPnL
		dd = math.Max(0, math.Min(models.MaxDrawdownCap, dd))
		if dd > pos.MaxDrawdownFromPeak {
			pos.MaxDrawdownFromPeak = dd
		}
	}

	if mc.Method == models.MethodVolatilityAdaptive {
		pos.ATRValue = e.atrLocked(pos.Symbol, price)
	}
	e.ratchet(pos, mc, price)

	held := now.Sub(pos.EntryTime)
	score := math.Exp(-e.cfg.EdgeDecayRate * held.Hours())
	pos.EdgeDecayScore = math.Max(models.MinEdgeDecay, math.Min(1, score))
	pos.TimeHeld = util.FormatHeld(held)
	pos.LastUpdate = now
}

func direction(s models.Side) float64 {
	if s == models.SideShort {
		return -1
	}
	return 1
}
