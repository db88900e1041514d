package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"FinEdge/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	err   error
	saved []models.TradingSignal
}

func (f *fakeStore) SaveSignal(_ context.Context, s models.TradingSignal, _ models.FeatureSet, _ models.MarketRegime) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, s)
	return fmt.Sprintf("sig-%d", len(f.saved)), nil
}

type perfSink struct {
	mu      sync.Mutex
	updates []models.StrategyPerformance
}

func (p *perfSink) PerformanceUpdated(perf models.StrategyPerformance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, perf)
}

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(int) int     { return r.n }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func always(action models.Action, conf float64) []Strategy {
	return []Strategy{{
		ID:   "always",
		Name: "Always",
		Run: func(models.FeatureSet, models.MarketRegime) Candidate {
			return Candidate{Action: action, Confidence: conf, Reasoning: "test"}
		},
	}}
}

func seeded(seed int64) Option {
	return WithRandomSource(rand.New(rand.NewSource(seed)))
}

func TestSelectStrategyIsDeterministicForSeed(t *testing.T) {
	fs := models.FeatureSet{Trend: 0.1}
	regime := models.MarketRegime{Kind: models.RegimeTrending, Confidence: 0.7}

	a := NewOrchestrator(DefaultConfig(), nil, seeded(42))
	b := NewOrchestrator(DefaultConfig(), nil, seeded(42))
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.SelectStrategy(fs, regime), b.SelectStrategy(fs, regime))
	}
}

func TestSelectStrategyFollowsPosterior(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExplorationRate = 0
	o := NewOrchestrator(cfg, nil, seeded(1))

	arms := map[string]models.BanditArm{}
	for _, s := range DefaultStrategies() {
		arms[s.ID] = models.BanditArm{Wins: 1, Trials: 200, Alpha: 1, Beta: 200}
	}
	arms[TrendFollowing] = models.BanditArm{Wins: 200, Trials: 200, Alpha: 200, Beta: 1}
	require.Equal(t, 8, o.RestoreArms(arms))

	regime := models.MarketRegime{Kind: models.RegimeTrending}
	for i := 0; i < 100; i++ {
		assert.Equal(t, TrendFollowing, o.SelectStrategy(models.FeatureSet{}, regime))
	}
}

func TestSelectStrategyExplorationOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExplorationRate = 1
	o := NewOrchestrator(cfg, nil, WithRandomSource(fixedRand{f: 0.5, n: 5}))
	assert.Equal(t, SwingTrading, o.SelectStrategy(models.FeatureSet{}, models.MarketRegime{Kind: models.RegimeStable}))
}

func TestUpdateRewardAllProfitable(t *testing.T) {
	sink := &perfSink{}
	o := NewOrchestrator(DefaultConfig(), nil, WithPerformanceSink(sink))
	sig := models.TradingSignal{StrategyID: Momentum}

	const n = 7
	for i := 0; i < n; i++ {
		o.UpdateReward(sig, 1.5)
	}

	var arm models.BanditArm
	for _, a := range o.Arms() {
		if a.StrategyID == Momentum {
			arm = a
		}
	}
	assert.Equal(t, float64(1+n), arm.Alpha)
	assert.Equal(t, 1.0, arm.Beta)
	assert.Equal(t, 1+n, arm.Trials)
	assert.Equal(t, 1+n, arm.Wins)

	require.Len(t, sink.updates, n)
	last := sink.updates[n-1]
	assert.Equal(t, "Momentum", last.Name)
	assert.InDelta(t, 1.5*n, last.TotalPnL, 1e-9)
	assert.Len(t, last.History, n)
}

func TestUpdateRewardLossAndHistoryCap(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), nil)
	sig := models.TradingSignal{StrategyID: Breakout}

	o.UpdateReward(sig, 0)
	for i := 0; i < 60; i++ {
		o.UpdateReward(sig, float64(i))
	}

	for _, p := range o.Performance() {
		if p.StrategyID != Breakout {
			continue
		}
		require.Len(t, p.History, 50)
		assert.Equal(t, 10.0, p.History[0])
		assert.Equal(t, 59.0, p.History[49])
		assert.Equal(t, 62, p.Trials)
		// reward 0 and the i=0 reward both count as losses
		assert.Equal(t, 3.0, p.Beta)
	}

	o.UpdateReward(models.TradingSignal{StrategyID: "nope"}, 1)
}

func TestGenerateSignalPersistsAndRecords(t *testing.T) {
	store := &fakeStore{}
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	o := NewOrchestrator(DefaultConfig(), store,
		WithStrategies(always(models.ActionBuy, 0.8)), WithClock(clk.now), seeded(3))

	sig, ok := o.GenerateSignal(context.Background(), "BTCUSDT", 101.5, models.FeatureSet{}, models.MarketRegime{})
	require.True(t, ok)
	assert.Equal(t, "sig-1", sig.ID)
	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.Equal(t, "always", sig.StrategyID)
	assert.Equal(t, 101.5, sig.Price)
	assert.Equal(t, clk.t, sig.Timestamp)

	recent := o.RecentSignals("", 10)
	require.Len(t, recent, 1)
	assert.Equal(t, sig, recent[0])
}

func TestGenerateSignalCooldownAndCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SignalCooldown = 10 * time.Second
	cfg.MaxSignalsPerSymbol = 2
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	o := NewOrchestrator(cfg, &fakeStore{},
		WithStrategies(always(models.ActionSell, 0.9)), WithClock(clk.now), seeded(3))
	ctx := context.Background()

	_, ok := o.GenerateSignal(ctx, "ETHUSDT", 10, models.FeatureSet{}, models.MarketRegime{})
	require.True(t, ok)

	clk.t = clk.t.Add(5 * time.Second)
	_, ok = o.GenerateSignal(ctx, "ETHUSDT", 10, models.FeatureSet{}, models.MarketRegime{})
	assert.False(t, ok, "inside cooldown")

	_, ok = o.GenerateSignal(ctx, "SOLUSDT", 10, models.FeatureSet{}, models.MarketRegime{})
	assert.True(t, ok, "other symbols are independent")

	clk.t = clk.t.Add(10 * time.Second)
	_, ok = o.GenerateSignal(ctx, "ETHUSDT", 10, models.FeatureSet{}, models.MarketRegime{})
	require.True(t, ok)

	clk.t = clk.t.Add(time.Minute)
	_, ok = o.GenerateSignal(ctx, "ETHUSDT", 10, models.FeatureSet{}, models.MarketRegime{})
	assert.False(t, ok, "window cap reached")

	clk.t = clk.t.Add(5 * time.Minute)
	_, ok = o.GenerateSignal(ctx, "ETHUSDT", 10, models.FeatureSet{}, models.MarketRegime{})
	assert.True(t, ok, "window has rolled over")
}

func TestGenerateSignalRejectsWeakCandidates(t *testing.T) {
	store := &fakeStore{}
	o := NewOrchestrator(DefaultConfig(), store, WithStrategies(always(models.ActionBuy, 0.59)), seeded(3))
	_, ok := o.GenerateSignal(context.Background(), "BTCUSDT", 1, models.FeatureSet{}, models.MarketRegime{})
	assert.False(t, ok)

	o = NewOrchestrator(DefaultConfig(), store, WithStrategies(always(models.ActionHold, 1)), seeded(3))
	_, ok = o.GenerateSignal(context.Background(), "BTCUSDT", 1, models.FeatureSet{}, models.MarketRegime{})
	assert.False(t, ok)
	assert.Empty(t, store.saved)
}

func TestGenerateSignalSaveFailureLeavesIDEmpty(t *testing.T) {
	store := &fakeStore{err: errors.New("clickhouse down")}
	o := NewOrchestrator(DefaultConfig(), store, WithStrategies(always(models.ActionBuy, 0.9)), seeded(3))

	sig, ok := o.GenerateSignal(context.Background(), "BTCUSDT", 1, models.FeatureSet{}, models.MarketRegime{})
	require.True(t, ok)
	assert.False(t, sig.Persisted())
	assert.Len(t, o.RecentSignals("BTCUSDT", 5), 1)
}

func TestRecentSignalsRingBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecentCap = 5
	cfg.SignalCooldown = 0
	cfg.MaxSignalsPerSymbol = 0
	o := NewOrchestrator(cfg, &fakeStore{}, WithStrategies(always(models.ActionBuy, 0.9)), seeded(3))

	for i := 0; i < 8; i++ {
		_, ok := o.GenerateSignal(context.Background(), fmt.Sprintf("S%d", i), float64(i), models.FeatureSet{}, models.MarketRegime{})
		require.True(t, ok)
	}
	recent := o.RecentSignals("", 0)
	require.Len(t, recent, 5)
	assert.Equal(t, "S7", recent[0].Symbol)
	assert.Equal(t, "S3", recent[4].Symbol)
	assert.Len(t, o.RecentSignals("S5", 10), 1)
	assert.Empty(t, o.RecentSignals("S0", 10))
}

func TestRewardsAndSelectionAreConsistentUnderConcurrency(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), nil, seeded(5))
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				o.UpdateReward(models.TradingSignal{StrategyID: DefaultStrategies()[(w+i)%8].ID}, float64(i%3-1))
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				o.SelectStrategy(models.FeatureSet{}, models.MarketRegime{Kind: models.RegimeStable})
				for _, a := range o.Arms() {
					assert.Equal(t, float64(a.Trials+1), a.Alpha+a.Beta)
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, a := range o.Arms() {
		total += a.Trials - 1
	}
	assert.Equal(t, 400, total)
}
