package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"FinEdge/internal/domain/models"
	"FinEdge/internal/services/features"
	"FinEdge/internal/services/positions"
	"FinEdge/internal/services/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu  sync.Mutex
	err error
	n   int
}

func (m *memStore) SaveSignal(context.Context, models.TradingSignal, models.FeatureSet, models.MarketRegime) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.n++
	return fmt.Sprintf("sig-%d", m.n), nil
}

type memPublisher struct {
	mu      sync.Mutex
	signals []models.TradingSignal
	exits   []models.ExitEvent
	exitErr error
}

func (p *memPublisher) PublishSignal(_ context.Context, s models.TradingSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, s)
	return nil
}

func (p *memPublisher) PublishExit(_ context.Context, ev models.ExitEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exitErr != nil {
		return p.exitErr
	}
	p.exits = append(p.exits, ev)
	return nil
}

func (p *memPublisher) Close() error { return nil }

// stalledPublisher never completes a publish before its deadline.
type stalledPublisher struct{}

func (stalledPublisher) PublishSignal(ctx context.Context, _ models.TradingSignal) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) PublishExit(ctx context.Context, _ models.ExitEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

type memArms map[string]models.BanditArm

func (m memArms) LoadArms(context.Context) (map[string]models.BanditArm, error) { return m, nil }
func (m memArms) SaveArm(_ context.Context, a models.BanditArm) error          { m[a.StrategyID] = a; return nil }

func newTestOrchestrator(store *memStore) *strategy.Orchestrator {
	cfg := strategy.DefaultConfig()
	cfg.ExplorationRate = 0
	return strategy.NewOrchestrator(cfg, store,
		strategy.WithRandomSource(rand.New(rand.NewSource(7))),
		strategy.WithStrategies([]strategy.Strategy{{
			ID:   "always",
			Name: "Always",
			Run: func(models.FeatureSet, models.MarketRegime) strategy.Candidate {
				return strategy.Candidate{Action: models.ActionBuy, Confidence: 0.9, Reasoning: "test"}
			},
		}}),
	)
}

func newTestEngine(store *memStore, pub *memPublisher, opts ...EngineOption) *TradingEngine {
	opts = append([]EngineOption{WithEventPublisher(pub)}, opts...)
	return NewTradingEngine(
		EngineConfig{AccountEquity: 10000, RiskPerTrade: 0.02, Symbols: []string{"BTCUSDT"}},
		features.NewEngine(),
		newTestOrchestrator(store),
		positions.NewEngine(positions.DefaultConfig()),
		opts...,
	)
}

func feed(t *testing.T, e *TradingEngine, symbol string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ev := models.NewTickerEvent(models.Ticker{Symbol: symbol, Price: 100 + float64(i), Volume: 1})
		require.NoError(t, e.Process(context.Background(), ev))
	}
}

func TestTickerOpensPositionFromPersistedSignal(t *testing.T) {
	pub := &memPublisher{}
	e := newTestEngine(&memStore{}, pub)

	feed(t, e, "BTCUSDT", features.MinPrices-1)
	assert.Empty(t, e.Positions().OpenPositions(), "no regime before the history is warm")

	feed(t, e, "BTCUSDT", 1)
	open := e.Positions().OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, "sig-1", open[0].SignalID)
	assert.Equal(t, models.SideLong, open[0].Side)
	assert.InDelta(t, 10000*0.02/open[0].EntryPrice, open[0].Size, 1e-9)

	require.NoError(t, e.Close(context.Background()))
	require.Len(t, pub.signals, 1)
}

func TestUnpersistedSignalOpensNothing(t *testing.T) {
	pub := &memPublisher{}
	e := newTestEngine(&memStore{err: errors.New("clickhouse down")}, pub)

	feed(t, e, "BTCUSDT", features.MinPrices)
	assert.Empty(t, e.Positions().OpenPositions())

	require.NoError(t, e.Close(context.Background()))
	require.Len(t, pub.signals, 1, "the signal is still published")
	assert.Empty(t, pub.signals[0].ID)
}

func TestExitFeedsRewardAndPublishes(t *testing.T) {
	pub := &memPublisher{}
	e := newTestEngine(&memStore{}, pub)
	feed(t, e, "BTCUSDT", features.MinPrices)
	open := e.Positions().OpenPositions()
	require.Len(t, open, 1)

	e.Positions().UpdatePositions(map[string]float64{"BTCUSDT": open[0].EntryPrice + 10})
	require.True(t, e.Positions().ExitPosition(open[0].ID, "manual"))

	arms := e.Orchestrator().Arms()
	require.Len(t, arms, 1)
	assert.Equal(t, 2, arms[0].Trials, "prior plus one reward")
	assert.Equal(t, 2.0, arms[0].Alpha)
	assert.Equal(t, 1.0, arms[0].Beta)

	require.NoError(t, e.Close(context.Background()))
	require.Len(t, pub.exits, 1)
	assert.Equal(t, "manual", pub.exits[0].Reason)
}

func TestExitPublishFailureDoesNotBlockReward(t *testing.T) {
	pub := &memPublisher{exitErr: errors.New("broker gone")}
	e := newTestEngine(&memStore{}, pub)
	feed(t, e, "BTCUSDT", features.MinPrices)
	open := e.Positions().OpenPositions()
	require.Len(t, open, 1)

	assert.True(t, e.Positions().ExitPosition(open[0].ID, "manual"))
	arm := e.Orchestrator().Arms()[0]
	assert.Equal(t, 2, arm.Trials)
	assert.Equal(t, 1.0, arm.Alpha, "a flat exit is not a win")
	assert.Equal(t, 2.0, arm.Beta)

	require.NoError(t, e.Close(context.Background()))
	assert.Empty(t, pub.exits)
}

func TestStalledPublisherDoesNotDelayTicks(t *testing.T) {
	e := NewTradingEngine(
		EngineConfig{AccountEquity: 10000, RiskPerTrade: 0.02, PublishTimeout: time.Second},
		features.NewEngine(),
		newTestOrchestrator(&memStore{}),
		positions.NewEngine(positions.DefaultConfig()),
		WithEventPublisher(stalledPublisher{}),
	)

	start := time.Now()
	feed(t, e, "BTCUSDT", features.MinPrices)
	open := e.Positions().OpenPositions()
	require.Len(t, open, 1, "the signal still opens a position")
	require.True(t, e.Positions().ExitPosition(open[0].ID, "manual"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Close(ctx), context.DeadlineExceeded)
}

func TestFullOutboxDropsEvents(t *testing.T) {
	e := NewTradingEngine(
		EngineConfig{AccountEquity: 10000, RiskPerTrade: 0.02, PublishTimeout: time.Second, PublishQueueSize: 1},
		features.NewEngine(),
		newTestOrchestrator(&memStore{}),
		positions.NewEngine(positions.DefaultConfig()),
		WithEventPublisher(stalledPublisher{}),
	)
	for i := 0; i < 5; i++ {
		e.publish("signal", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() })
	}
	assert.LessOrEqual(t, e.PendingEvents(), 1)
}

func TestOrderBookEventsFeedFeatures(t *testing.T) {
	e := newTestEngine(&memStore{}, &memPublisher{})
	book := models.OrderBook{
		Symbol: "BTCUSDT",
		Bids:   []models.Level{{Price: 99, Size: 3}},
		Asks:   []models.Level{{Price: 101, Size: 1}},
	}
	require.NoError(t, e.Process(context.Background(), models.NewOrderBookEvent(book)))
	require.Error(t, e.Process(context.Background(), models.MarketEvent{Kind: "trade"}))
	require.Error(t, e.Process(context.Background(), models.MarketEvent{Kind: models.EventTicker}))
}

func TestRestoreArms(t *testing.T) {
	store := memArms{"always": {StrategyID: "always", Wins: 4, Trials: 5, Alpha: 5, Beta: 2}}
	e := newTestEngine(&memStore{}, &memPublisher{}, WithArmStore(store))

	require.NoError(t, e.RestoreArms(context.Background()))
	assert.Equal(t, 5, e.Orchestrator().Arms()[0].Trials)
}

func TestMaintainDropsInactiveSymbols(t *testing.T) {
	e := newTestEngine(&memStore{}, &memPublisher{})
	feed(t, e, "DOGEUSDT", features.MinPrices)
	feed(t, e, "BTCUSDT", features.MinPrices)
	require.Len(t, e.Features().SupportedSymbols(), 2)
	for _, p := range e.Positions().OpenPositions() {
		if p.Symbol == "DOGEUSDT" {
			require.True(t, e.Positions().ExitPosition(p.ID, "manual"))
		}
	}

	e.Maintain()
	assert.Equal(t, []string{"BTCUSDT"}, e.Features().SupportedSymbols())
	assert.Zero(t, e.Positions().CleanupOldSymbols([]string{"BTCUSDT"}), "price windows already dropped")
}
