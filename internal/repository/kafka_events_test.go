package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"FinEdge/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	topic string
	key   string
	value any
}

type fakePublisher struct {
	sent   []sent
	closed bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, key []byte, value any) error {
	f.sent = append(f.sent, sent{topic: topic, key: string(key), value: value})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestKafkaEventsRouteByTopicAndSymbol(t *testing.T) {
	p := &fakePublisher{}
	k := NewKafkaEvents(p, "signals", "exits")

	sig := models.TradingSignal{ID: "s1", Symbol: "ETHUSDT", Confidence: 1.7, StrategyID: "momentum"}
	require.NoError(t, k.PublishSignal(context.Background(), sig))

	exit := models.ExitEvent{
		Position: models.Position{
			ID:             "p1",
			Symbol:         "ETHUSDT",
			EntryPrice:     100,
			OriginalSignal: sig,
		},
		Reason:      "take_profit",
		ExitPrice:   108,
		RealizedPnL: math.Inf(1),
		ExitTime:    time.UnixMilli(1_700_000_000_000),
	}
	require.NoError(t, k.PublishExit(context.Background(), exit))
	require.NoError(t, k.Close())

	require.Len(t, p.sent, 2)
	assert.Equal(t, "signals", p.sent[0].topic)
	assert.Equal(t, "ETHUSDT", p.sent[0].key)
	assert.Equal(t, 1.0, p.sent[0].value.(models.TradingSignal).Confidence)

	assert.Equal(t, "exits", p.sent[1].topic)
	msg := p.sent[1].value.(exitMessage)
	assert.Equal(t, "momentum", msg.StrategyID)
	assert.Equal(t, 0.0, msg.RealizedPnL, "non-finite pnl is zeroed")
	assert.Equal(t, int64(1_700_000_000_000), msg.ExitTime)
	assert.True(t, p.closed)
}
