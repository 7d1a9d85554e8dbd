package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/libris/server/internal/observability"
	"github.com/hrygo/libris/store/cache"
)

type cacheStatsResponse struct {
	cache.Stats
	Metrics *observability.Snapshot `json:"metrics,omitempty"`
}

// sweepResponse is returned by both sweep and clear.
type sweepResponse struct {
	Removed int         `json:"removed"`
	Stats   cache.Stats `json:"stats"`
}

func (s *APIV1Service) GetCacheStats(c echo.Context) error {
	resp := cacheStatsResponse{Stats: s.Library.Cache().Engine().Stats()}
	if s.Metrics != nil {
		snapshot := s.Metrics.Snapshot()
		resp.Metrics = &snapshot
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) SweepCache(c echo.Context) error {
	engine := s.Library.Cache().Engine()
	removed := engine.CleanupExpired()
	if reqCtx, ok := observability.FromContext(c.Request().Context()); ok {
		reqCtx.Info("cache swept", slog.Int("removed", removed))
	}
	return c.JSON(http.StatusOK, sweepResponse{Removed: removed, Stats: engine.Stats()})
}

func (s *APIV1Service) ClearCache(c echo.Context) error {
	engine := s.Library.Cache().Engine()
	removed := engine.Clear()
	if reqCtx, ok := observability.FromContext(c.Request().Context()); ok {
		reqCtx.Info("cache cleared", slog.Int("removed", removed))
	}
	return c.JSON(http.StatusOK, sweepResponse{Removed: removed, Stats: engine.Stats()})
}
