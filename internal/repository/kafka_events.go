package repository

import (
	"context"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
)

// Publisher is the part of pkg/kafka.Producer the event publisher uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	Close() error
}

// KafkaEvents publishes engine events keyed by symbol so each symbol keeps
// its order within a partition.
type KafkaEvents struct {
	producer     Publisher
	signalsTopic string
	exitsTopic   string
}

func NewKafkaEvents(p Publisher, signalsTopic, exitsTopic string) *KafkaEvents {
	return &KafkaEvents{producer: p, signalsTopic: signalsTopic, exitsTopic: exitsTopic}
}

// exitMessage flattens an exit event for downstream consumers.
type exitMessage struct {
	PositionID  string                  `json:"positionId"`
	SignalID    string                  `json:"signalId"`
	Symbol      string                  `json:"symbol"`
	Side        models.Side             `json:"side"`
	StrategyID  string                  `json:"strategyId"`
	Method      models.ProfitLockMethod `json:"method"`
	Reason      string                  `json:"reason"`
	EntryPrice  float64                 `json:"entryPrice"`
	ExitPrice   float64                 `json:"exitPrice"`
	Size        float64                 `json:"size"`
	RealizedPnL float64                 `json:"realizedPnl"`
	TimeHeld    string                  `json:"timeHeld"`
	ExitTime    int64                   `json:"exitTime"`
}

func (k *KafkaEvents) PublishSignal(ctx context.Context, s models.TradingSignal) error {
	return k.producer.Publish(ctx, k.signalsTopic, []byte(s.Symbol), s.Clamped())
}

func (k *KafkaEvents) PublishExit(ctx context.Context, ev models.ExitEvent) error {
	p := ev.Position.Clamped()
	msg := exitMessage{
		PositionID:  p.ID,
		SignalID:    p.SignalID,
		Symbol:      p.Symbol,
		Side:        p.Side,
		StrategyID:  p.OriginalSignal.StrategyID,
		Method:      p.ProfitLockMethod,
		Reason:      ev.Reason,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   models.Float(models.ClampAmount(ev.ExitPrice)),
		Size:        p.Size,
		RealizedPnL: models.Float(models.ClampAmount(ev.RealizedPnL)),
		TimeHeld:    p.TimeHeld,
		ExitTime:    ev.ExitTime.UnixMilli(),
	}
	return k.producer.Publish(ctx, k.exitsTopic, []byte(p.Symbol), msg)
}

func (k *KafkaEvents) Close() error { return k.producer.Close() }

var _ domrepo.EventPublisher = (*KafkaEvents)(nil)
