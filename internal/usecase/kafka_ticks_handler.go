package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
	mid "FinEdge/internal/middleware"
	pkgkafka "FinEdge/pkg/kafka"
	"FinEdge/pkg/util"
)

// KafkaTicksHandler replays market events from Kafka into the pipeline.
type KafkaTicksHandler struct {
	topic   string
	proc    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaTicksHandler(topic string, proc mid.Proc, metrics domrepo.Metrics) *KafkaTicksHandler {
	if metrics == nil {
		metrics = domrepo.Noop{}
	}
	return &KafkaTicksHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle accepts a MarketEvent document or the compact ticker form
// {symbol, t, c, v} where t is unix seconds or milliseconds.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	ev, err := decodeMarketEvent(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if ts := ev.Time(); !ts.IsZero() {
		h.metrics.RecordLatency("ingest_e2e", time.Since(ts).Seconds())
	}

	start := time.Now()
	err = h.proc.Process(ctx, ev)
	h.metrics.RecordLatency("consumer_process", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

func decodeMarketEvent(b []byte) (models.MarketEvent, error) {
	var ev models.MarketEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return models.MarketEvent{}, fmt.Errorf("decode market event: %w", err)
	}
	if ev.Kind != "" {
		return ev, nil
	}

	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return models.MarketEvent{}, fmt.Errorf("decode ticker: %w", err)
	}
	if m.Symbol == "" {
		return models.MarketEvent{}, fmt.Errorf("message has neither kind nor symbol")
	}
	t := models.Ticker{Symbol: m.Symbol, Price: m.C, Volume: m.V}
	if m.T > 0 {
		t.Timestamp = util.FromUnix(m.T)
	}
	return models.NewTickerEvent(t), nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
