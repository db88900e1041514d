package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FinEdge/internal/domain/models"
	"FinEdge/pkg/util"
)

const (
	tickerSuffix = "@ticker"
	depthSuffix  = "@depth10@100ms"
)

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// envelope is the combined-stream wrapper: {"stream": "...", "data": {...}}.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// tickerPayload declares every 24hrTicker key. encoding/json falls back to
// case-insensitive matching, so an undeclared "e" or "C" would land on "E" or "c".
type tickerPayload struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	PriceChange string `json:"p"`
	ChangePct   string `json:"P"`
	WeightedAvg string `json:"w"`
	PrevClose   string `json:"x"`
	Last        string `json:"c"`
	LastQty     string `json:"Q"`
	Bid         string `json:"b"`
	BidQty      string `json:"B"`
	Ask         string `json:"a"`
	AskQty      string `json:"A"`
	Open        string `json:"o"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	QuoteVol    string `json:"q"`
	OpenTime    int64  `json:"O"`
	CloseTime   int64  `json:"C"`
	FirstID     int64  `json:"F"`
	LastID      int64  `json:"L"`
	Count       int64  `json:"n"`
}

// depthPayload is a partial book snapshot; it carries no symbol, so the
// symbol comes from the stream name.
type depthPayload struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// Streams lists the combined-stream names for the given symbols.
func Streams(tickers, depth []string) []string {
	out := make([]string, 0, len(tickers)+len(depth))
	for _, s := range tickers {
		out = append(out, strings.ToLower(s)+tickerSuffix)
	}
	for _, s := range depth {
		out = append(out, strings.ToLower(s)+depthSuffix)
	}
	return out
}

// Decode converts one combined-stream frame into a market event. Control
// frames such as subscription acks report ok=false with a nil error.
func Decode(b []byte, now time.Time) (models.MarketEvent, bool, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return models.MarketEvent{}, false, fmt.Errorf("binance frame: %w", err)
	}
	if env.Stream == "" || len(env.Data) == 0 {
		return models.MarketEvent{}, false, nil
	}

	switch {
	case strings.HasSuffix(env.Stream, tickerSuffix):
		var p tickerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return models.MarketEvent{}, false, fmt.Errorf("binance ticker: %w", err)
		}
		price, ok := util.ParseFloat(p.Last)
		if !ok {
			return models.MarketEvent{}, false, fmt.Errorf("binance ticker %s: bad price %q", p.Symbol, p.Last)
		}
		vol, _ := util.ParseFloat(p.Volume)
		chg, _ := util.ParseFloat(p.ChangePct)
		ts := now
		if p.EventTime > 0 {
			ts = util.FromUnix(p.EventTime)
		}
		return models.NewTickerEvent(models.Ticker{
			Symbol:    strings.ToUpper(p.Symbol),
			Price:     price,
			Volume:    vol,
			Change24h: chg,
			Timestamp: ts,
		}), true, nil

	case strings.HasSuffix(env.Stream, depthSuffix):
		var p depthPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return models.MarketEvent{}, false, fmt.Errorf("binance depth: %w", err)
		}
		symbol := strings.ToUpper(strings.TrimSuffix(env.Stream, depthSuffix))
		bids, err := levels(p.Bids)
		if err != nil {
			return models.MarketEvent{}, false, fmt.Errorf("binance depth %s bids: %w", symbol, err)
		}
		asks, err := levels(p.Asks)
		if err != nil {
			return models.MarketEvent{}, false, fmt.Errorf("binance depth %s asks: %w", symbol, err)
		}
		return models.NewOrderBookEvent(models.OrderBook{
			Symbol:    symbol,
			Bids:      bids,
			Asks:      asks,
			Timestamp: now,
		}), true, nil
	}
	return models.MarketEvent{}, false, nil
}

func levels(raw [][2]string) ([]models.Level, error) {
	out := make([]models.Level, 0, len(raw))
	for _, r := range raw {
		price, ok := util.ParseFloat(r[0])
		if !ok {
			return nil, fmt.Errorf("bad price %q", r[0])
		}
		size, ok := util.ParseFloat(r[1])
		if !ok {
			return nil, fmt.Errorf("bad size %q", r[1])
		}
		out = append(out, models.Level{Price: price, Size: size})
	}
	return out, nil
}
