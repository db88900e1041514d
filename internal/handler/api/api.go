package api

import (
	"context"
	"errors"
	"time"

	"FinEdge/internal/domain/models"
	domrepo "FinEdge/internal/domain/repository"
	"FinEdge/internal/service/ratelimit"
	"FinEdge/internal/usecase"
	pkgcache "FinEdge/pkg/cache"
	xhttp "FinEdge/pkg/http"
	xlogger "FinEdge/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EngineHandler serves read-only views of the trading engine state.
type EngineHandler struct {
	logger    *xlogger.Logger
	engine    *usecase.TradingEngine
	analytics domrepo.Analytics
	cache     pkgcache.Service
	cacheTTL  time.Duration

	limiter *ratelimit.Limiter
	rps     float64
	burst   float64
}

type HandlerOption func(*EngineHandler)

// WithAnalytics enables the storage-backed routes. cache may be nil.
func WithAnalytics(a domrepo.Analytics, cache pkgcache.Service, ttl time.Duration) HandlerOption {
	return func(h *EngineHandler) {
		h.analytics = a
		h.cache = cache
		h.cacheTTL = ttl
	}
}

// WithRateLimit throttles each client IP with a token bucket. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) HandlerOption {
	return func(h *EngineHandler) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = ratelimit.New()
		h.rps = rps
		h.burst = float64(burst)
	}
}

func NewEngineHandler(logger *xlogger.Logger, engine *usecase.TradingEngine, opts ...HandlerOption) *EngineHandler {
	h := &EngineHandler{logger: logger, engine: engine}
	if h.logger == nil {
		h.logger = xlogger.Nop()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ xhttp.Handler = (*EngineHandler)(nil)

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.rateLimit)
	g.GET("/positions", h.Positions)
	g.GET("/positions/closed", h.ClosedPositions)
	g.GET("/signals", h.Signals)
	g.GET("/strategies", h.Strategies)
	g.GET("/regime", h.Regime)
	g.GET("/analytics/closed", h.AnalyticsClosed)
}

func (h *EngineHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter != nil && !h.limiter.Allow(c.RealIP(), h.burst, h.rps) {
			return xhttp.TooManyRequestsResponse(c)
		}
		return next(c)
	}
}

func (h *EngineHandler) Positions(c echo.Context) error {
	open := h.engine.Positions().OpenPositions()
	rows := make([]models.Position, 0, len(open))
	for _, p := range open {
		rows = append(rows, p.Clamped())
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// closedView is an exit event with every float made JSON-safe.
type closedView struct {
	Position    models.Position `json:"position"`
	Reason      string          `json:"reason"`
	ExitPrice   float64         `json:"exitPrice"`
	RealizedPnL float64         `json:"realizedPnl"`
	ExitTime    time.Time       `json:"exitTime"`
}

func (h *EngineHandler) ClosedPositions(c echo.Context) error {
	req := &models.ClosedPositionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	closed := h.engine.Positions().ClosedPositions(req.Symbol, req.Limit)
	rows := make([]closedView, 0, len(closed))
	for _, ev := range closed {
		rows = append(rows, closedView{
			Position:    ev.Position.Clamped(),
			Reason:      ev.Reason,
			ExitPrice:   models.Float(models.ClampAmount(ev.ExitPrice)),
			RealizedPnL: models.Float(models.ClampAmount(ev.RealizedPnL)),
			ExitTime:    ev.ExitTime,
		})
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	recent := h.engine.Orchestrator().RecentSignals(req.Symbol, req.Limit)
	rows := make([]models.TradingSignal, 0, len(recent))
	for _, s := range recent {
		rows = append(rows, s.Clamped())
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

type strategyView struct {
	models.StrategyPerformance
	WinRate float64 `json:"winRate"`
}

func (h *EngineHandler) Strategies(c echo.Context) error {
	perf := h.engine.Orchestrator().Performance()
	rows := make([]strategyView, 0, len(perf))
	for _, p := range perf {
		p = p.Clamped()
		rows = append(rows, strategyView{StrategyPerformance: p, WinRate: p.WinRate()})
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) Regime(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, ok := h.engine.Features().Latest(req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no regime for %s yet", req.Symbol))
	}
	r.Features = r.Features.Clamped()
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, r)
}

func (h *EngineHandler) AnalyticsClosed(c echo.Context) error {
	if h.analytics == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("analytics storage is disabled"))
	}
	req := &models.ClosedPositionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	rows, err := h.closedFromStorage(ctx, req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("analytics closed positions", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("closed positions unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *EngineHandler) closedFromStorage(ctx context.Context, symbol string, limit int) ([]domrepo.ClosedPositionRecord, error) {
	if h.cache == nil {
		return h.analytics.ClosedPositions(ctx, symbol, limit)
	}

	key := pkgcache.Key("analytics:closed", symbol, limit)
	var rows []domrepo.ClosedPositionRecord
	err := h.cache.Get(ctx, key, &rows)
	if err == nil {
		return rows, nil
	}
	if !errors.Is(err, pkgcache.ErrCacheMiss) {
		h.logger.Warn("analytics cache read", xlogger.String("key", key), xlogger.Error(err))
	}

	rows, err = h.analytics.ClosedPositions(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	if err := h.cache.Set(ctx, key, rows, h.cacheTTL); err != nil {
		h.logger.Warn("analytics cache write", xlogger.String("key", key), xlogger.Error(err))
	}
	return rows, nil
}
