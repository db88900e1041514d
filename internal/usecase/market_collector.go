package usecase

import (
	"context"

	"FinEdge/internal/domain/models"
	drepo "FinEdge/internal/domain/repository"
	mid "FinEdge/internal/middleware"
	applogger "FinEdge/pkg/logger"
)

// MarketCollector pumps a market stream through the realtime pipeline.
type MarketCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.RealtimePipeline
	metrics drepo.Metrics
	log     *applogger.Logger
}

// NewMarketCollector creates a new MarketCollector instance.
func NewMarketCollector(stream drepo.MarketStream, pipe *mid.RealtimePipeline, metrics drepo.Metrics, log *applogger.Logger) *MarketCollector {
	if log == nil {
		log = applogger.Nop()
	}
	if metrics == nil {
		metrics = drepo.Noop{}
	}
	return &MarketCollector{stream: stream, pipe: pipe, metrics: metrics, log: log}
}

// IsConnected returns true if the market stream is connected.
func (c *MarketCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and consumes in the background until ctx is done.
func (c *MarketCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	go c.run(ctx)
	return nil
}

func (c *MarketCollector) run(ctx context.Context) {
	for ctx.Err() == nil {
		evCh, errCh := c.stream.Read(ctx)
		c.consume(ctx, evCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		for ctx.Err() == nil {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.log.Info("market stream reconnected")
				break
			}
			c.log.Warn("market stream reconnect failed", applogger.Error(err))
		}
	}
}

// consume returns when the stream closes its channels or fails.
func (c *MarketCollector) consume(ctx context.Context, evCh <-chan models.MarketEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.log.Warn("market stream error", applogger.Error(err))
			}
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			if err := c.pipe.Process(ctx, ev); err != nil {
				c.log.Debug("event not processed",
					applogger.String("symbol", ev.Symbol()),
					applogger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *MarketCollector) Shutdown(context.Context) error {
	c.pipe.Stop()
	return c.stream.Close()
}
