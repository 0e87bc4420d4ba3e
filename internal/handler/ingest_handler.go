package handler

import (
	"errors"
	"net/http"

	"github.com/dushixiang/kestrel/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// IngestRequest 采集器上报的一次采样
type IngestRequest struct {
	Hostname        string  `json:"hostname" validate:"required"`
	IP              string  `json:"ip"`
	OS              string  `json:"os"`
	Timestamp       int64   `json:"timestamp"` // 毫秒，0 表示使用服务端时间
	CPUUsagePercent float64 `json:"cpuUsagePercent" validate:"gte=0,lte=100"`
	RAMUsedMB       uint64  `json:"ramUsedMB"`
	RAMTotalMB      uint64  `json:"ramTotalMB"`
	DiskUsedGB      float64 `json:"diskUsedGB" validate:"gte=0"`
	DiskTotalGB     float64 `json:"diskTotalGB" validate:"gte=0"`
	UptimeMinutes   uint64  `json:"uptimeMinutes"`
}

// IngestHandler 摄入接口处理器
type IngestHandler struct {
	logger   *zap.Logger
	validate *validator.Validate
	service  *service.IngestService
}

func NewIngestHandler(logger *zap.Logger, ingestService *service.IngestService) *IngestHandler {
	return &IngestHandler{
		logger:   logger,
		validate: validator.New(),
		service:  ingestService,
	}
}

// Ingest 接收一次测量上报
// POST /api/measurements
func (h *IngestHandler) Ingest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "请求参数错误",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	sample := service.Sample{
		Timestamp:       req.Timestamp,
		CPUUsagePercent: req.CPUUsagePercent,
		RAMUsedMB:       req.RAMUsedMB,
		RAMTotalMB:      req.RAMTotalMB,
		DiskUsedGB:      req.DiskUsedGB,
		DiskTotalGB:     req.DiskTotalGB,
		UptimeMinutes:   req.UptimeMinutes,
	}

	measurementID, err := h.service.Ingest(c.Request().Context(), req.Hostname, req.IP, req.OS, sample)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": ve.Error(),
			})
		}
		h.logger.Error("测量上报处理失败", zap.String("hostname", req.Hostname), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "摄入失败",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"measurementId": measurementID,
	})
}
