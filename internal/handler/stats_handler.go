package handler

import (
	"net/http"
	"strconv"

	"github.com/dushixiang/kestrel/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// StatsHandler 聚合视图与快照导出处理器
type StatsHandler struct {
	logger *zap.Logger
	stats  *service.StatsService
	export *service.ExportService
}

func NewStatsHandler(logger *zap.Logger, stats *service.StatsService, export *service.ExportService) *StatsHandler {
	return &StatsHandler{
		logger: logger,
		stats:  stats,
		export: export,
	}
}

// GetSummary 仪表盘汇总
// GET /api/stats/summary
func (h *StatsHandler) GetSummary(c echo.Context) error {
	summary, err := h.stats.GetDashboardSummary(c.Request().Context())
	if err != nil {
		h.logger.Error("查询仪表盘汇总失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, summary)
}

// GetCPURollups 最近7天每日平均CPU使用率
// GET /api/stats/cpu-7days
func (h *StatsHandler) GetCPURollups(c echo.Context) error {
	rollups, err := h.stats.GetDailyCPURollups(c.Request().Context())
	if err != nil {
		h.logger.Error("查询CPU日聚合失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, rollups)
}

// GetRAMRollups 最近7天每日平均内存使用率
// GET /api/stats/ram-7days
func (h *StatsHandler) GetRAMRollups(c echo.Context) error {
	rollups, err := h.stats.GetDailyRAMRollups(c.Request().Context())
	if err != nil {
		h.logger.Error("查询内存日聚合失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, rollups)
}

// GetWarningStats 最近7天告警类型占比
// GET /api/stats/warnings
func (h *StatsHandler) GetWarningStats(c echo.Context) error {
	stats, err := h.stats.GetWarningTypeBreakdown(c.Request().Context())
	if err != nil {
		h.logger.Error("查询告警类型占比失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, stats)
}

// GetOSStats 操作系统分布
// GET /api/stats/os
func (h *StatsHandler) GetOSStats(c echo.Context) error {
	stats, err := h.stats.GetOSDistribution(c.Request().Context())
	if err != nil {
		h.logger.Error("查询操作系统分布失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, stats)
}

// GetSnapshot 完整仪表盘快照
// GET /api/export
func (h *StatsHandler) GetSnapshot(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))
	snapshot, err := h.export.BuildSnapshot(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("构建仪表盘快照失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "导出失败"})
	}
	return c.JSON(http.StatusOK, snapshot)
}

// ListWarnings 最新告警列表
// GET /api/warnings
func (h *StatsHandler) ListWarnings(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))
	warnings, err := h.export.LatestWarnings(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("查询告警列表失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, warnings)
}

// ListMeasurements 最新测量列表
// GET /api/measurements
func (h *StatsHandler) ListMeasurements(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))
	measurements, err := h.export.LatestMeasurements(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("查询测量列表失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, measurements)
}

// parseLimit 解析列表条数，非法值回退缺省，超出上限截断到 100
func parseLimit(raw string) int {
	limit, _ := strconv.Atoi(raw)
	if limit < 1 {
		return service.DefaultSnapshotLimit
	}
	if limit > 100 {
		return 100
	}
	return limit
}
