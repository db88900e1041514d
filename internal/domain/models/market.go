package models

import "time"

// Ticker is a normalized 24h ticker update for one symbol.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Change24h float64   `json:"change24h"`
	Timestamp time.Time `json:"timestamp"`
}

// Level is one price level of an order book side.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a depth snapshot; bids are sorted best first, asks likewise.
type OrderBook struct {
	Symbol    string    `json:"symbol"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
	Timestamp time.Time `json:"timestamp"`
}

// BestBid returns the top bid, or a zero level when the side is empty.
func (b OrderBook) BestBid() Level {
	if len(b.Bids) == 0 {
		return Level{}
	}
	return b.Bids[0]
}

// BestAsk returns the top ask, or a zero level when the side is empty.
func (b OrderBook) BestAsk() Level {
	if len(b.Asks) == 0 {
		return Level{}
	}
	return b.Asks[0]
}

type EventKind string

const (
	EventTicker    EventKind = "ticker"
	EventOrderBook EventKind = "orderbook"
)

// MarketEvent carries exactly one of Ticker or OrderBook depending on Kind.
type MarketEvent struct {
	Kind      EventKind  `json:"kind"`
	Ticker    *Ticker    `json:"ticker,omitempty"`
	OrderBook *OrderBook `json:"orderbook,omitempty"`
}

// Symbol returns the symbol of whichever payload is set.
func (e MarketEvent) Symbol() string {
	switch {
	case e.Ticker != nil:
		return e.Ticker.Symbol
	case e.OrderBook != nil:
		return e.OrderBook.Symbol
	}
	return ""
}

// Time returns the payload timestamp.
func (e MarketEvent) Time() time.Time {
	switch {
	case e.Ticker != nil:
		return e.Ticker.Timestamp
	case e.OrderBook != nil:
		return e.OrderBook.Timestamp
	}
	return time.Time{}
}

func NewTickerEvent(t Ticker) MarketEvent {
	return MarketEvent{Kind: EventTicker, Ticker: &t}
}

func NewOrderBookEvent(b OrderBook) MarketEvent {
	return MarketEvent{Kind: EventOrderBook, OrderBook: &b}
}
