package service

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/dushixiang/kestrel/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSnapshotLimit 快照中告警与测量列表的默认条数
const DefaultSnapshotLimit = 20

// SnapshotMeasurement 快照中的测量行，运行时间换算为小时（保留一位小数）
type SnapshotMeasurement struct {
	ID              string  `json:"id"`
	ComputerID      string  `json:"computerId"`
	Timestamp       int64   `json:"timestamp"`
	CPUUsagePercent float64 `json:"cpuUsagePercent"`
	RAMUsedMB       uint64  `json:"ramUsedMB"`
	RAMTotalMB      uint64  `json:"ramTotalMB"`
	DiskUsedGB      float64 `json:"diskUsedGB"`
	DiskTotalGB     float64 `json:"diskTotalGB"`
	UptimeHours     float64 `json:"uptimeHours"`
}

// Snapshot 仪表盘快照文档。这是唯一输出给外部消费者的持久化产物，
// 外部渲染器依赖这些字段名，结构必须保持稳定。
type Snapshot struct {
	LastUpdated  string                `json:"lastUpdated"`
	Summary      *DashboardSummary     `json:"summary"`
	OSStats      []OSStat              `json:"osStats"`
	Warnings     []models.Warning      `json:"warnings"`
	Measurements []SnapshotMeasurement `json:"measurements"`
	CPU7Days     []DailyRollup         `json:"cpu7Days"`
	RAM7Days     []DailyRollup         `json:"ram7Days"`
	WarningStats []WarningTypeStat     `json:"warningStats"`
}

// ExportService 组装仪表盘快照文档
type ExportService struct {
	logger          *zap.Logger
	stats           *StatsService
	warningRepo     *repo.WarningRepo
	measurementRepo *repo.MeasurementRepo
}

func NewExportService(logger *zap.Logger, db *gorm.DB, stats *StatsService) *ExportService {
	return &ExportService{
		logger:          logger,
		stats:           stats,
		warningRepo:     repo.NewWarningRepo(db),
		measurementRepo: repo.NewMeasurementRepo(db),
	}
}

// LatestWarnings 最新的N条告警，新的在前
func (s *ExportService) LatestWarnings(ctx context.Context, limit int) ([]models.Warning, error) {
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	warnings, err := s.warningRepo.FindLatest(ctx, limit)
	if err != nil {
		return nil, &AggregationError{View: "warnings", Err: err}
	}
	return warnings, nil
}

// LatestMeasurements 最新的N条测量，新的在前
func (s *ExportService) LatestMeasurements(ctx context.Context, limit int) ([]SnapshotMeasurement, error) {
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	measurements, err := s.measurementRepo.FindLatest(ctx, limit)
	if err != nil {
		return nil, &AggregationError{View: "measurements", Err: err}
	}

	rows := make([]SnapshotMeasurement, 0, len(measurements))
	for _, m := range measurements {
		rows = append(rows, SnapshotMeasurement{
			ID:              m.ID,
			ComputerID:      m.ComputerID,
			Timestamp:       m.Timestamp,
			CPUUsagePercent: m.CPUUsagePercent,
			RAMUsedMB:       m.RAMUsedMB,
			RAMTotalMB:      m.RAMTotalMB,
			DiskUsedGB:      m.DiskUsedGB,
			DiskTotalGB:     m.DiskTotalGB,
			UptimeHours:     uptimeHours(m.UptimeMinutes),
		})
	}
	return rows, nil
}

// BuildSnapshot 组装完整的仪表盘快照。任何一个视图失败则整体失败，不输出部分结果。
func (s *ExportService) BuildSnapshot(ctx context.Context, limit int) (*Snapshot, error) {
	summary, err := s.stats.GetDashboardSummary(ctx)
	if err != nil {
		return nil, err
	}
	osStats, err := s.stats.GetOSDistribution(ctx)
	if err != nil {
		return nil, err
	}
	warnings, err := s.LatestWarnings(ctx, limit)
	if err != nil {
		return nil, err
	}
	measurements, err := s.LatestMeasurements(ctx, limit)
	if err != nil {
		return nil, err
	}
	cpu7Days, err := s.stats.GetDailyCPURollups(ctx)
	if err != nil {
		return nil, err
	}
	ram7Days, err := s.stats.GetDailyRAMRollups(ctx)
	if err != nil {
		return nil, err
	}
	warningStats, err := s.stats.GetWarningTypeBreakdown(ctx)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		LastUpdated:  time.Now().Format(time.RFC3339),
		Summary:      summary,
		OSStats:      osStats,
		Warnings:     warnings,
		Measurements: measurements,
		CPU7Days:     cpu7Days,
		RAM7Days:     ram7Days,
		WarningStats: warningStats,
	}, nil
}

// WriteSnapshot 把快照序列化到文件，先写临时文件再改名，避免读到半个文档
func (s *ExportService) WriteSnapshot(ctx context.Context, path string, limit int) error {
	snapshot, err := s.BuildSnapshot(ctx, limit)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	s.logger.Info("仪表盘快照已导出", zap.String("path", path))
	return nil
}

// uptimeHours 分钟转小时，保留一位小数
func uptimeHours(minutes uint64) float64 {
	return math.Round(float64(minutes)/60*10) / 10
}
