package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FinEdge/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tickerFrame     = `{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","E":1700000000123,"s":"BTCUSDT","P":"-1.250","c":"64123.50000000","v":"1234.5"}}`
	fullTickerFrame = `{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","E":1700000000123,"s":"BTCUSDT","p":"-812.50000000","P":"-1.250","w":"64500.10000000","x":"64936.00000000","c":"64123.50000000","Q":"0.01200000","b":"64123.40000000","B":"1.50000000","a":"64123.60000000","A":"0.80000000","o":"64936.00000000","h":"65500.00000000","l":"63800.00000000","v":"1234.5","q":"79612345.12000000","O":1699913600123,"C":1700000000123,"F":3000000000,"L":3000123456,"n":123457}}`
	depthFrame      = `{"stream":"ethusdt@depth10@100ms","data":{"lastUpdateId":42,"bids":[["3000.10","1.5"],["3000.00","2"]],"asks":[["3000.20","0.7"]]}}`
)

func TestStreams(t *testing.T) {
	assert.Equal(t,
		[]string{"btcusdt@ticker", "ethusdt@ticker", "btcusdt@depth10@100ms"},
		Streams([]string{"BTCUSDT", "ETHUSDT"}, []string{"BTCUSDT"}))
}

func TestDecodeTicker(t *testing.T) {
	ev, ok, err := Decode([]byte(tickerFrame), time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.EventTicker, ev.Kind)
	assert.Equal(t, "BTCUSDT", ev.Ticker.Symbol)
	assert.Equal(t, 64123.5, ev.Ticker.Price)
	assert.Equal(t, 1234.5, ev.Ticker.Volume)
	assert.Equal(t, -1.25, ev.Ticker.Change24h)
	assert.Equal(t, int64(1700000000123), ev.Ticker.Timestamp.UnixMilli())
}

func TestDecodeFullTickerPayload(t *testing.T) {
	ev, ok, err := Decode([]byte(fullTickerFrame), time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.EventTicker, ev.Kind)
	assert.Equal(t, "BTCUSDT", ev.Ticker.Symbol)
	assert.Equal(t, 64123.5, ev.Ticker.Price)
	assert.Equal(t, 1234.5, ev.Ticker.Volume)
	assert.Equal(t, -1.25, ev.Ticker.Change24h)
	assert.Equal(t, int64(1700000000123), ev.Ticker.Timestamp.UnixMilli())
}

func TestDecodeDepth(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ev, ok, err := Decode([]byte(depthFrame), now)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.EventOrderBook, ev.Kind)
	assert.Equal(t, "ETHUSDT", ev.OrderBook.Symbol)
	assert.Equal(t, models.Level{Price: 3000.1, Size: 1.5}, ev.OrderBook.BestBid())
	assert.Equal(t, models.Level{Price: 3000.2, Size: 0.7}, ev.OrderBook.BestAsk())
	assert.Len(t, ev.OrderBook.Bids, 2)
	assert.Equal(t, now, ev.OrderBook.Timestamp)
}

func TestDecodeSkipsControlFrames(t *testing.T) {
	_, ok, err := Decode([]byte(`{"result":null,"id":1}`), time.Now())
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Decode([]byte(`{"stream":"btcusdt@aggTrade","data":{}}`), time.Now())
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Decode([]byte(`not json`), time.Now())
	assert.Error(t, err)

	_, _, err = Decode([]byte(`{"stream":"btcusdt@ticker","data":{"s":"BTCUSDT","c":"abc"}}`), time.Now())
	assert.Error(t, err)
}

func TestClientReadsFromServer(t *testing.T) {
	subscribed := make(chan subscribeRequest, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req subscribeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscribed <- req
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(tickerFrame))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(depthFrame))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"BTCUSDT"}, WithDepthSymbols([]string{"ETHUSDT"}))
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())

	req := <-subscribed
	assert.Equal(t, "SUBSCRIBE", req.Method)
	assert.Equal(t, []string{"btcusdt@ticker", "ethusdt@depth10@100ms"}, req.Params)

	events, _ := c.Read(ctx)
	first := <-events
	second := <-events
	assert.Equal(t, models.EventTicker, first.Kind)
	assert.Equal(t, models.EventOrderBook, second.Kind)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}

func TestClientReadStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// stay silent until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	c := New("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"BTCUSDT"})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, errs := c.Read(ctx)
	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel still open after cancel")
	}
	select {
	case err, open := <-errs:
		assert.False(t, open, "unexpected error %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("error channel still open after cancel")
	}
}
