package handler

import (
	"errors"
	"net/http"

	"github.com/dushixiang/kestrel/internal/service"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ComputerHandler 机器管理处理器
type ComputerHandler struct {
	logger  *zap.Logger
	service *service.ComputerService
}

func NewComputerHandler(logger *zap.Logger, computerService *service.ComputerService) *ComputerHandler {
	return &ComputerHandler{
		logger:  logger,
		service: computerService,
	}
}

// List 列出所有机器
// GET /api/computers
func (h *ComputerHandler) List(c echo.Context) error {
	computers, err := h.service.List(c.Request().Context())
	if err != nil {
		h.logger.Error("查询机器列表失败", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, computers)
}

// Get 获取单台机器
// GET /api/computers/:id
func (h *ComputerHandler) Get(c echo.Context) error {
	id := c.Param("id")
	computer, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "机器不存在"})
		}
		h.logger.Error("查询机器失败", zap.String("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "查询失败"})
	}
	return c.JSON(http.StatusOK, computer)
}

// Delete 删除机器及其全部数据
// DELETE /api/computers/:id
func (h *ComputerHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		h.logger.Error("删除机器失败", zap.String("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "删除失败"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "删除成功"})
}
