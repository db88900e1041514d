package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
	applogger "FinEdge/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, ev models.MarketEvent) error
}

// RealtimePipeline sits between a market feed and the trading engine.
// It validates events, throttles each (symbol, kind) stream and buffers
// events whose downstream call failed for a later retry.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	log     *applogger.Logger
	maxRPS  int
	bufSize int
	bufCh   chan models.MarketEvent
	stopCh  chan struct{}
	now     func() time.Time

	mu       sync.Mutex
	started  bool
	lastSeen map[streamKey]time.Time
}

type streamKey struct {
	symbol string
	kind   models.EventKind
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted events per second for each symbol and kind.
// Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *RealtimePipeline) { p.now = now }
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		log:      applogger.Nop(),
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		now:      time.Now,
		lastSeen: make(map[streamKey]time.Time),
	}
	if p.metrics == nil {
		p.metrics = domrepo.Noop{}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.MarketEvent, p.bufSize)
	return p
}

// Start launches the retry loop for buffered events.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.drain(ctx)
}

func (p *RealtimePipeline) drain(ctx context.Context) {
	const minBackoff = 50 * time.Millisecond
	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case ev := <-p.bufCh:
			if err := p.proc.Process(ctx, ev); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_flush")
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				case <-p.stopCh:
					return
				}
				p.enqueue(ev)
				continue
			}
			backoff = minBackoff
		}
	}
}

// Stop stops the retry loop. Buffered events are discarded.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Process validates, throttles and forwards ev downstream, buffering it when
// the downstream call fails.
func (p *RealtimePipeline) Process(ctx context.Context, ev models.MarketEvent) error {
	began := time.Now()
	if err := ValidateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(streamKey{symbol: ev.Symbol(), kind: ev.Kind}, p.now()) {
		p.metrics.RecordDropped("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.enqueue(ev)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(began).Seconds())
	return nil
}

func (p *RealtimePipeline) enqueue(ev models.MarketEvent) {
	select {
	case p.bufCh <- ev:
	default:
		p.metrics.RecordDropped("pipeline_buffer")
		p.log.Warn("pipeline buffer full", applogger.String("symbol", ev.Symbol()))
	}
}

// Buffered reports how many events wait for a retry.
func (p *RealtimePipeline) Buffered() int { return len(p.bufCh) }

// ValidateEvent rejects events the engines cannot use.
func ValidateEvent(ev models.MarketEvent) error {
	switch ev.Kind {
	case models.EventTicker:
		t := ev.Ticker
		if t == nil {
			return fmt.Errorf("ticker payload missing")
		}
		if t.Symbol == "" {
			return fmt.Errorf("symbol empty")
		}
		if !finitePositive(t.Price) {
			return fmt.Errorf("%s: invalid price %v", t.Symbol, t.Price)
		}
		if t.Volume < 0 || math.IsNaN(t.Volume) || math.IsInf(t.Volume, 0) {
			return fmt.Errorf("%s: invalid volume %v", t.Symbol, t.Volume)
		}
	case models.EventOrderBook:
		b := ev.OrderBook
		if b == nil {
			return fmt.Errorf("orderbook payload missing")
		}
		if b.Symbol == "" {
			return fmt.Errorf("symbol empty")
		}
		for _, side := range [][]models.Level{b.Bids, b.Asks} {
			for _, l := range side {
				if !finitePositive(l.Price) || l.Size < 0 || math.IsNaN(l.Size) || math.IsInf(l.Size, 0) {
					return fmt.Errorf("%s: invalid level %v@%v", b.Symbol, l.Size, l.Price)
				}
			}
		}
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}

func finitePositive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

func (p *RealtimePipeline) allow(key streamKey, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[key]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
