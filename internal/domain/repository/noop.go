package repository

import (
	"context"

	"FinEdge/internal/domain/models"
)

// Noop implements every sink and the metrics recorder by discarding input.
type Noop struct{}

var (
	_ FeatureSink     = Noop{}
	_ PositionSink    = Noop{}
	_ PerformanceSink = Noop{}
	_ Metrics         = Noop{}
	_ EventPublisher  = Noop{}
)

func (Noop) RecordFeatures(string, models.FeatureSet, models.MarketRegime) {}
func (Noop) PositionOpened(models.Position, string)                        {}
func (Noop) PositionUpdated(models.Position)                               {}
func (Noop) PositionClosed(models.Position, string)                        {}
func (Noop) PerformanceUpdated(models.StrategyPerformance)                 {}

func (Noop) RecordError(string)                                          {}
func (Noop) RecordLatency(string, float64)                               {}
func (Noop) RecordLastPrice(string, float64)                             {}
func (Noop) RecordSignal(string, models.Action)                          {}
func (Noop) RecordPositionExit(models.ProfitLockMethod, string, float64) {}
func (Noop) SetOpenPositions(int)                                        {}
func (Noop) RecordDropped(string)                                        {}

func (Noop) PublishSignal(context.Context, models.TradingSignal) error { return nil }
func (Noop) PublishExit(context.Context, models.ExitEvent) error       { return nil }
func (Noop) Close() error                                              { return nil }
