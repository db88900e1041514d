package features

import (
	"sort"
	"sync"
	"time"

	"FinEdge/internal/domain/models"
	"FinEdge/internal/domain/repository"
	applogger "FinEdge/pkg/logger"
)

const (
	// MinPrices is the number of price samples required before any feature is computed.
	MinPrices = 10

	DefaultMaxHistory = 200
	DefaultBaseSymbol = "BTCUSDT"
)

type history struct {
	prices  *Window[float64]
	volumes *Window[float64]
	books   *Window[models.OrderBook]
}

// Engine keeps bounded per-symbol history and derives features and regimes from it.
type Engine struct {
	mu         sync.Mutex
	maxHistory int
	baseSymbol string
	symbols    map[string]*history
	regimes    map[string]models.MarketRegime

	sink repository.FeatureSink
	log  *applogger.Logger
	now  func() time.Time
}

type Option func(*Engine)

func WithMaxHistory(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHistory = n
		}
	}
}

// WithBaseSymbol sets the reference symbol used for correlation.
func WithBaseSymbol(s string) Option {
	return func(e *Engine) {
		if s != "" {
			e.baseSymbol = s
		}
	}
}

func WithFeatureSink(s repository.FeatureSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
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

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		maxHistory: DefaultMaxHistory,
		baseSymbol: DefaultBaseSymbol,
		symbols:    make(map[string]*history),
		regimes:    make(map[string]models.MarketRegime),
		sink:       repository.Noop{},
		log:        applogger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ensure returns the history for symbol, creating it on first use. Caller holds mu.
func (e *Engine) ensure(symbol string) *history {
	h, ok := e.symbols[symbol]
	if !ok {
		h = &history{
			prices:  NewWindow[float64](e.maxHistory),
			volumes: NewWindow[float64](e.maxHistory),
			books:   NewWindow[models.OrderBook](e.maxHistory),
		}
		e.symbols[symbol] = h
		e.log.Debug("tracking new symbol", applogger.String("symbol", symbol))
	}
	return h
}

// Update routes a market event to the matching buffer.
func (e *Engine) Update(ev models.MarketEvent) {
	switch ev.Kind {
	case models.EventTicker:
		if ev.Ticker != nil {
			e.UpdateTicker(*ev.Ticker)
		}
	case models.EventOrderBook:
		if ev.OrderBook != nil {
			e.UpdateOrderBook(*ev.OrderBook)
		}
	}
}

func (e *Engine) UpdateTicker(t models.Ticker) {
	if t.Symbol == "" || finite(t.Price) != t.Price {
		return
	}
	e.mu.Lock()
	h := e.ensure(t.Symbol)
	h.prices.Push(t.Price)
	h.volumes.Push(finite(t.Volume))
	e.mu.Unlock()
}

func (e *Engine) UpdateOrderBook(b models.OrderBook) {
	if b.Symbol == "" {
		return
	}
	e.mu.Lock()
	e.ensure(b.Symbol).books.Push(b)
	e.mu.Unlock()
}

type snapshot struct {
	prices     []float64
	volumes    []float64
	books      []models.OrderBook
	basePrices []float64
	isBase     bool
}

func (e *Engine) snapshot(symbol string) (snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.symbols[symbol]
	if !ok || h.prices.Len() < MinPrices {
		return snapshot{}, false
	}
	s := snapshot{
		prices:  h.prices.Values(),
		volumes: h.volumes.Values(),
		books:   h.books.Last(2),
		isBase:  symbol == e.baseSymbol,
	}
	if base, ok := e.symbols[e.baseSymbol]; ok && !s.isBase {
		s.basePrices = base.prices.Values()
	}
	return s, true
}

// ExtractFeatures computes the feature set for symbol. It reports false until
// MinPrices price samples have been recorded.
func (e *Engine) ExtractFeatures(symbol string) (models.FeatureSet, bool) {
	s, ok := e.snapshot(symbol)
	if !ok {
		return models.FeatureSet{}, false
	}

	fs := models.FeatureSet{
		VVIX:          VVIX(s.prices),
		VPIN:          VPIN(s.prices, s.volumes),
		Volatility:    Volatility(s.prices),
		Momentum:      Momentum(s.prices),
		MeanReversion: MeanReversion(s.prices),
		Trend:         Trend(s.prices),
		Timestamp:     e.now(),
	}
	if !s.isBase {
		fs.Correlation = Correlation(s.prices, s.basePrices)
	}
	if n := len(s.books); n >= 2 {
		fs.OFI = OFI(s.books[n-2], s.books[n-1])
	}
	if n := len(s.books); n >= 1 {
		fs.Liquidity = Liquidity(s.books[n-1])
	}
	return fs, true
}

// Classify applies the regime decision list to a feature set.
func Classify(fs models.FeatureSet) models.MarketRegime {
	r := models.MarketRegime{Features: fs}
	switch {
	case fs.Volatility > 0.7:
		r.Kind, r.Confidence = models.RegimeVolatile, fs.Volatility
	case abs(fs.Trend) > 0.6:
		r.Kind, r.Confidence = models.RegimeTrending, abs(fs.Trend)
	case fs.MeanReversion > 0.6:
		r.Kind, r.Confidence = models.RegimeRanging, fs.MeanReversion
	default:
		r.Kind, r.Confidence = models.RegimeStable, 0.5
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	return r
}

// DetectRegime extracts features, classifies them and hands the result to the
// feature sink. The sink never influences the returned regime.
func (e *Engine) DetectRegime(symbol string) (models.MarketRegime, bool) {
	fs, ok := e.ExtractFeatures(symbol)
	if !ok {
		return models.MarketRegime{}, false
	}
	r := Classify(fs)

	e.mu.Lock()
	if _, tracked := e.symbols[symbol]; tracked {
		e.regimes[symbol] = r
	}
	e.mu.Unlock()

	e.sink.RecordFeatures(symbol, fs, r)
	return r, true
}

// Latest returns the most recently detected regime for symbol.
func (e *Engine) Latest(symbol string) (models.MarketRegime, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.regimes[symbol]
	return r, ok
}

// SupportedSymbols lists symbols with enough history for extraction, sorted.
func (e *Engine) SupportedSymbols() []string {
	e.mu.Lock()
	out := make([]string, 0, len(e.symbols))
	for sym, h := range e.symbols {
		if h.prices.Len() >= MinPrices {
			out = append(out, sym)
		}
	}
	e.mu.Unlock()
	sort.Strings(out)
	return out
}

// CleanupOldSymbols drops every buffer of symbols not listed in active.
func (e *Engine) CleanupOldSymbols(active []string) int {
	keep := make(map[string]struct{}, len(active))
	for _, s := range active {
		keep[s] = struct{}{}
	}

	e.mu.Lock()
	removed := 0
	for sym := range e.symbols {
		if _, ok := keep[sym]; !ok {
			delete(e.symbols, sym)
			delete(e.regimes, sym)
			removed++
		}
	}
	e.mu.Unlock()

	if removed > 0 {
		e.log.Info("dropped inactive symbols", applogger.Int("count", removed))
	}
	return removed
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
