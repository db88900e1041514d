package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"FinEdge/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []models.MarketEvent
	fail   int
}

func (r *recorder) Process(_ context.Context, ev models.MarketEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 {
		r.fail--
		return errors.New("engine busy")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func tick(symbol string, price float64) models.MarketEvent {
	return models.NewTickerEvent(models.Ticker{Symbol: symbol, Price: price, Volume: 1})
}

func TestValidateEvent(t *testing.T) {
	cases := []struct {
		name string
		ev   models.MarketEvent
		ok   bool
	}{
		{"ticker", tick("BTCUSDT", 100), true},
		{"empty symbol", tick("", 100), false},
		{"zero price", tick("BTCUSDT", 0), false},
		{"nan price", tick("BTCUSDT", math.NaN()), false},
		{"inf price", tick("BTCUSDT", math.Inf(1)), false},
		{"negative volume", models.NewTickerEvent(models.Ticker{Symbol: "X", Price: 1, Volume: -1}), false},
		{"book", models.NewOrderBookEvent(models.OrderBook{Symbol: "X", Bids: []models.Level{{Price: 1, Size: 2}}}), true},
		{"bad level", models.NewOrderBookEvent(models.OrderBook{Symbol: "X", Asks: []models.Level{{Price: -1, Size: 2}}}), false},
		{"missing payload", models.MarketEvent{Kind: models.EventTicker}, false},
		{"unknown kind", models.MarketEvent{Kind: "trade"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEvent(tc.ev)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestThrottlePerSymbolAndKind(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rec := &recorder{}
	p := NewRealtimePipeline(rec, nil, WithMaxRPS(10), WithPipelineClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, tick("BTCUSDT", 1)))
	require.NoError(t, p.Process(ctx, tick("BTCUSDT", 2)), "throttled events are dropped quietly")
	require.NoError(t, p.Process(ctx, tick("ETHUSDT", 1)))
	require.NoError(t, p.Process(ctx, models.NewOrderBookEvent(models.OrderBook{Symbol: "BTCUSDT"})))
	assert.Equal(t, 3, rec.count())

	now = now.Add(100 * time.Millisecond)
	require.NoError(t, p.Process(ctx, tick("BTCUSDT", 3)))
	assert.Equal(t, 4, rec.count())
}

func TestFailedEventsAreRetried(t *testing.T) {
	rec := &recorder{fail: 1}
	p := NewRealtimePipeline(rec, nil, WithMaxRPS(0), WithBufferSize(4))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := p.Process(ctx, tick("BTCUSDT", 1))
	require.Error(t, err)
	assert.Equal(t, 1, p.Buffered())

	p.Start(ctx)
	defer p.Stop()
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBufferOverflowDrops(t *testing.T) {
	rec := &recorder{fail: 10}
	p := NewRealtimePipeline(rec, nil, WithMaxRPS(0), WithBufferSize(2))
	for i := 0; i < 5; i++ {
		_ = p.Process(context.Background(), tick("BTCUSDT", float64(i+1)))
	}
	assert.Equal(t, 2, p.Buffered())
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewRealtimePipeline(&recorder{}, nil)
	p.Stop()
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
