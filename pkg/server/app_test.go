package server

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"FinEdge/internal/domain/models"
	mid "FinEdge/internal/middleware"
	"FinEdge/internal/services/features"
	"FinEdge/internal/services/positions"
	"FinEdge/internal/services/strategy"
	"FinEdge/internal/usecase"
	"FinEdge/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleStream struct {
	connectErr error
	closed     atomic.Bool
}

func (s *idleStream) Connect(context.Context) error   { return s.connectErr }
func (s *idleStream) Subscribe(context.Context) error { return nil }
func (s *idleStream) Reconnect(context.Context) error { return nil }
func (s *idleStream) Close() error                    { s.closed.Store(true); return nil }
func (s *idleStream) IsConnected() bool               { return !s.closed.Load() }

func (s *idleStream) Read(context.Context) (<-chan models.MarketEvent, <-chan error) {
	return make(chan models.MarketEvent), make(chan error)
}

type idStore struct{}

func (idStore) SaveSignal(context.Context, models.TradingSignal, models.FeatureSet, models.MarketRegime) (string, error) {
	return "id", nil
}

type closeCounter struct{ n atomic.Int32 }

func (c *closeCounter) Close() error { c.n.Add(1); return nil }

func newApp(t *testing.T, stream *idleStream, sig chan os.Signal) (*App, *closeCounter, *atomic.Int32) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Feed.Symbols = []string{"BTCUSDT"}

	engine := usecase.NewTradingEngine(
		usecase.EngineConfig{AccountEquity: 1000, RiskPerTrade: 0.01},
		features.NewEngine(),
		strategy.NewOrchestrator(strategy.DefaultConfig(), idStore{}),
		positions.NewEngine(positions.DefaultConfig()),
	)
	pipe := mid.NewRealtimePipeline(engine, nil)
	events := &closeCounter{}
	released := &atomic.Int32{}
	store := Closer{Name: "store", Close: func() error {
		released.Add(1)
		return nil
	}}
	app := New(cfg, Deps{
		Engine:     engine,
		Collector:  usecase.NewMarketCollector(stream, pipe, nil, nil),
		Events:     events,
		Closers:    []Closer{store},
		SignalChan: sig,
	})
	return app, events, released
}

func TestRunShutsDownOnSignal(t *testing.T) {
	stream := &idleStream{}
	sig := make(chan os.Signal, 1)
	app, events, released := newApp(t, stream, sig)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	sig <- syscall.SIGTERM
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, stream.closed.Load())
	assert.EqualValues(t, 1, events.n.Load())
	assert.EqualValues(t, 1, released.Load())
}

func TestRunReleasesResourcesWhenFeedFails(t *testing.T) {
	stream := &idleStream{connectErr: errors.New("dial refused")}
	app, events, released := newApp(t, stream, make(chan os.Signal))

	err := app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial refused")
	assert.EqualValues(t, 1, events.n.Load())
	assert.EqualValues(t, 1, released.Load())
}
