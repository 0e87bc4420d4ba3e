package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/dushixiang/kestrel/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DashboardSummary 仪表盘汇总：当天与最近7天的整体状况
type DashboardSummary struct {
	ComputerCount        int64   `json:"computerCount"`        // 机器总数
	AvgCPUToday          float64 `json:"avgCpuToday"`          // 当天平均CPU使用率
	AvgRAMToday          float64 `json:"avgRamToday"`          // 当天平均内存使用率
	WarningsToday        int64   `json:"warningsToday"`        // 当天告警数
	AvgWarningsLast7Days float64 `json:"avgWarningsLast7Days"` // 此前7个整天的日均告警数（不含当天）
}

// DailyRollup 单日聚合，没有测量的日期直接省略
type DailyRollup struct {
	Day     string  `json:"day"` // YYYY-MM-DD
	Average float64 `json:"average"`
}

// WarningTypeStat 告警类型占比
type WarningTypeStat struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// OSStat 操作系统分布
type OSStat struct {
	OS         string  `json:"os"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// StatsService 聚合层：只读派生视图，每次查询即时重算，各查询互不影响
type StatsService struct {
	logger          *zap.Logger
	computerRepo    *repo.ComputerRepo
	measurementRepo *repo.MeasurementRepo
	warningRepo     *repo.WarningRepo
}

func NewStatsService(logger *zap.Logger, db *gorm.DB) *StatsService {
	return &StatsService{
		logger:          logger,
		computerRepo:    repo.NewComputerRepo(db),
		measurementRepo: repo.NewMeasurementRepo(db),
		warningRepo:     repo.NewWarningRepo(db),
	}
}

// GetDashboardSummary 计算仪表盘汇总，空库返回全零而不是错误
func (s *StatsService) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	summary := &DashboardSummary{}

	count, err := s.computerRepo.Count(ctx)
	if err != nil {
		return nil, &AggregationError{View: "summary", Err: err}
	}
	summary.ComputerCount = count

	todayStart := dayStart(time.Now())
	todayEnd := todayStart.AddDate(0, 0, 1)

	todays, err := s.measurementRepo.FindByTimeRange(ctx, todayStart.UnixMilli(), todayEnd.UnixMilli())
	if err != nil {
		return nil, &AggregationError{View: "summary", Err: err}
	}
	if len(todays) > 0 {
		var cpuSum, ramSum float64
		for _, m := range todays {
			cpuSum += m.CPUUsagePercent
			ramSum += m.RAMUsagePercent()
		}
		summary.AvgCPUToday = cpuSum / float64(len(todays))
		summary.AvgRAMToday = ramSum / float64(len(todays))
	}

	warningsToday, err := s.warningRepo.CountByMeasurementTimeRange(ctx, todayStart.UnixMilli(), todayEnd.UnixMilli())
	if err != nil {
		return nil, &AggregationError{View: "summary", Err: err}
	}
	summary.WarningsToday = warningsToday

	// 此前7个整天（不含当天）的告警总数除以7
	weekStart := todayStart.AddDate(0, 0, -7)
	priorWarnings, err := s.warningRepo.CountByMeasurementTimeRange(ctx, weekStart.UnixMilli(), todayStart.UnixMilli())
	if err != nil {
		return nil, &AggregationError{View: "summary", Err: err}
	}
	summary.AvgWarningsLast7Days = float64(priorWarnings) / 7

	return summary, nil
}

// GetDailyCPURollups 最近7个自然日（含当天）的每日平均CPU使用率，按日期升序
func (s *StatsService) GetDailyCPURollups(ctx context.Context) ([]DailyRollup, error) {
	rollups, err := s.dailyRollups(ctx, func(m *models.Measurement) float64 {
		return m.CPUUsagePercent
	})
	if err != nil {
		return nil, &AggregationError{View: "cpu7Days", Err: err}
	}
	return rollups, nil
}

// GetDailyRAMRollups 最近7个自然日（含当天）的每日平均内存使用率，按日期升序
func (s *StatsService) GetDailyRAMRollups(ctx context.Context) ([]DailyRollup, error) {
	rollups, err := s.dailyRollups(ctx, func(m *models.Measurement) float64 {
		return m.RAMUsagePercent()
	})
	if err != nil {
		return nil, &AggregationError{View: "ram7Days", Err: err}
	}
	return rollups, nil
}

// dailyRollups 在 Go 侧按自然日分桶求平均，保证 sqlite 与 postgres 行为一致
func (s *StatsService) dailyRollups(ctx context.Context, value func(m *models.Measurement) float64) ([]DailyRollup, error) {
	todayStart := dayStart(time.Now())
	windowStart := todayStart.AddDate(0, 0, -6)
	windowEnd := todayStart.AddDate(0, 0, 1)

	measurements, err := s.measurementRepo.FindByTimeRange(ctx, windowStart.UnixMilli(), windowEnd.UnixMilli())
	if err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	counts := make(map[string]int64)
	for i := range measurements {
		day := time.UnixMilli(measurements[i].Timestamp).Format("2006-01-02")
		sums[day] += value(&measurements[i])
		counts[day]++
	}

	days := make([]string, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	sort.Strings(days)

	rollups := make([]DailyRollup, 0, len(days))
	for _, day := range days {
		rollups = append(rollups, DailyRollup{
			Day:     day,
			Average: sums[day] / float64(counts[day]),
		})
	}
	return rollups, nil
}

// GetWarningTypeBreakdown 最近7天各告警类型的数量与占比。
// 占比的分母是窗口内告警总数加上隐含的 Healthy 数量（零告警的测量数）；
// Healthy 行只在窗口内存在零告警测量时出现。
func (s *StatsService) GetWarningTypeBreakdown(ctx context.Context) ([]WarningTypeStat, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -7).UnixMilli()
	end := now.UnixMilli() + 1

	typeCounts, err := s.warningRepo.CountByTypeInRange(ctx, start, end)
	if err != nil {
		return nil, &AggregationError{View: "warningStats", Err: err}
	}

	healthyCount, err := s.measurementRepo.CountWithoutWarnings(ctx, start, end)
	if err != nil {
		return nil, &AggregationError{View: "warningStats", Err: err}
	}

	var total int64
	for _, tc := range typeCounts {
		total += tc.Count
	}
	total += healthyCount

	stats := make([]WarningTypeStat, 0, len(typeCounts)+1)
	for _, tc := range typeCounts {
		stats = append(stats, WarningTypeStat{
			Type:       tc.Type,
			Count:      tc.Count,
			Percentage: percentage(tc.Count, total),
		})
	}
	if healthyCount > 0 {
		stats = append(stats, WarningTypeStat{
			Type:       models.CategoryHealthy,
			Count:      healthyCount,
			Percentage: percentage(healthyCount, total),
		})
	}
	return stats, nil
}

// GetOSDistribution 所有已注册机器的操作系统分布
func (s *StatsService) GetOSDistribution(ctx context.Context) ([]OSStat, error) {
	rows, err := s.computerRepo.CountByOS(ctx)
	if err != nil {
		return nil, &AggregationError{View: "osStats", Err: err}
	}

	var total int64
	for _, row := range rows {
		total += row.Count
	}

	stats := make([]OSStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, OSStat{
			OS:         row.OS,
			Count:      row.Count,
			Percentage: percentage(row.Count, total),
		})
	}
	return stats, nil
}

// dayStart 自然日起点（本地时区）
func dayStart(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// percentage 占比计算，分母为 0 时返回 0 而不是 NaN，保留两位小数
func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}
