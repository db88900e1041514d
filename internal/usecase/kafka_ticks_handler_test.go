package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinEdge/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type procFunc func(context.Context, models.MarketEvent) error

func (f procFunc) Process(ctx context.Context, ev models.MarketEvent) error { return f(ctx, ev) }

func TestKafkaHandlerDecodesMarketEvent(t *testing.T) {
	var got models.MarketEvent
	h := NewKafkaTicksHandler("market.ticks", procFunc(func(_ context.Context, ev models.MarketEvent) error {
		got = ev
		return nil
	}), nil)

	msg := `{"kind":"orderbook","orderbook":{"symbol":"ETHUSDT","bids":[{"price":10,"size":2}],"asks":[]}}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))
	assert.Equal(t, "market.ticks", h.Topic())
	assert.Equal(t, models.EventOrderBook, got.Kind)
	assert.Equal(t, "ETHUSDT", got.Symbol())
	assert.Equal(t, 10.0, got.OrderBook.BestBid().Price)
}

func TestKafkaHandlerAcceptsCompactTicker(t *testing.T) {
	var got models.MarketEvent
	h := NewKafkaTicksHandler("ticks", procFunc(func(_ context.Context, ev models.MarketEvent) error {
		got = ev
		return nil
	}), nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","t":1700000000123,"c":42000.5,"v":3}`)))
	require.NotNil(t, got.Ticker)
	assert.Equal(t, 42000.5, got.Ticker.Price)
	assert.Equal(t, 3.0, got.Ticker.Volume)
	assert.True(t, got.Ticker.Timestamp.Equal(time.UnixMilli(1700000000123)))
}

func TestKafkaHandlerErrors(t *testing.T) {
	boom := errors.New("engine down")
	h := NewKafkaTicksHandler("ticks", procFunc(func(context.Context, models.MarketEvent) error { return boom }), nil)

	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"foo":1}`)))
	assert.ErrorIs(t, h.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","c":1}`)), boom)
}
