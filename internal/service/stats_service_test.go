package service

import (
	"context"
	"testing"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"go.uber.org/zap"
)

func TestDashboardSummaryEmptyStore(t *testing.T) {
	db := newTestDB(t)
	stats := NewStatsService(zap.NewNop(), db)

	summary, err := stats.GetDashboardSummary(context.Background())
	if err != nil {
		t.Fatalf("空库不应报错: %v", err)
	}
	if summary.ComputerCount != 0 || summary.AvgCPUToday != 0 || summary.AvgRAMToday != 0 ||
		summary.WarningsToday != 0 || summary.AvgWarningsLast7Days != 0 {
		t.Errorf("空库汇总应全为零，实际 %+v", summary)
	}
}

func TestDashboardSummary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	stats := NewStatsService(zap.NewNop(), db)

	// cpu 90% 触发 HighCPU，cpu 50% 健康
	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{CPUUsagePercent: 90, RAMUsedMB: 500, RAMTotalMB: 1000}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}
	if _, err := svc.Ingest(ctx, "web-02", "10.0.0.2", "linux", Sample{CPUUsagePercent: 50, RAMUsedMB: 250, RAMTotalMB: 1000}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}

	summary, err := stats.GetDashboardSummary(ctx)
	if err != nil {
		t.Fatalf("查询汇总失败: %v", err)
	}
	if summary.ComputerCount != 2 {
		t.Errorf("机器数应为 2，实际 %d", summary.ComputerCount)
	}
	if summary.AvgCPUToday != 70 {
		t.Errorf("当天平均CPU应为 70，实际 %v", summary.AvgCPUToday)
	}
	if summary.AvgRAMToday != 37.5 {
		t.Errorf("当天平均内存应为 37.5，实际 %v", summary.AvgRAMToday)
	}
	if summary.WarningsToday != 1 {
		t.Errorf("当天告警数应为 1，实际 %d", summary.WarningsToday)
	}
	// 当天的告警不计入此前7天的日均
	if summary.AvgWarningsLast7Days != 0 {
		t.Errorf("此前7天日均告警应为 0，实际 %v", summary.AvgWarningsLast7Days)
	}
}

func TestDailyRollupsSparse(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	stats := NewStatsService(zap.NewNop(), db)

	// 只有当天有数据，更早的日期应直接省略而不是补零
	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{CPUUsagePercent: 30, RAMUsedMB: 200, RAMTotalMB: 1000}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}
	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{CPUUsagePercent: 50, RAMUsedMB: 400, RAMTotalMB: 1000}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}

	rollups, err := stats.GetDailyCPURollups(ctx)
	if err != nil {
		t.Fatalf("查询CPU聚合失败: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("应只有 1 天有数据，实际 %d 天", len(rollups))
	}
	today := time.Now().Format("2006-01-02")
	if rollups[0].Day != today {
		t.Errorf("日期应为 %s，实际 %s", today, rollups[0].Day)
	}
	if rollups[0].Average != 40 {
		t.Errorf("当天平均CPU应为 40，实际 %v", rollups[0].Average)
	}

	ramRollups, err := stats.GetDailyRAMRollups(ctx)
	if err != nil {
		t.Fatalf("查询内存聚合失败: %v", err)
	}
	if len(ramRollups) != 1 || ramRollups[0].Average != 30 {
		t.Errorf("当天平均内存应为 30，实际 %+v", ramRollups)
	}
}

func TestWarningTypeBreakdown(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	stats := NewStatsService(zap.NewNop(), db)

	// 一条测量触发 HighCPU+HighRAM，两条健康
	// 分母 = 2 条告警 + 2 条零告警测量 = 4
	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{CPUUsagePercent: 95, RAMUsedMB: 950, RAMTotalMB: 1000}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Ingest(ctx, "web-02", "10.0.0.2", "linux", Sample{CPUUsagePercent: 10, RAMUsedMB: 100, RAMTotalMB: 1000}); err != nil {
			t.Fatalf("摄入失败: %v", err)
		}
	}

	breakdown, err := stats.GetWarningTypeBreakdown(ctx)
	if err != nil {
		t.Fatalf("查询告警分布失败: %v", err)
	}

	got := make(map[string]WarningTypeStat)
	for _, stat := range breakdown {
		got[stat.Type] = stat
	}
	if len(got) != 3 {
		t.Fatalf("应有 HighCPU/HighRAM/Healthy 三行，实际 %+v", breakdown)
	}
	if s := got[models.CategoryHighCPU]; s.Count != 1 || s.Percentage != 25 {
		t.Errorf("HighCPU 应为 1 条 25%%，实际 %+v", s)
	}
	if s := got[models.CategoryHighRAM]; s.Count != 1 || s.Percentage != 25 {
		t.Errorf("HighRAM 应为 1 条 25%%，实际 %+v", s)
	}
	if s := got[models.CategoryHealthy]; s.Count != 2 || s.Percentage != 50 {
		t.Errorf("Healthy 应为 2 条 50%%，实际 %+v", s)
	}
}

func TestWarningTypeBreakdownNoHealthyRowWhenAllWarned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	stats := NewStatsService(zap.NewNop(), db)

	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{CPUUsagePercent: 95, RAMUsedMB: 100, RAMTotalMB: 1000}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}

	breakdown, err := stats.GetWarningTypeBreakdown(ctx)
	if err != nil {
		t.Fatalf("查询告警分布失败: %v", err)
	}
	for _, stat := range breakdown {
		if stat.Type == models.CategoryHealthy {
			t.Errorf("没有零告警测量时不应出现 Healthy 行: %+v", breakdown)
		}
	}
}

func TestOSDistribution(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	stats := NewStatsService(zap.NewNop(), db)

	for i, host := range []string{"web-01", "web-02"} {
		if _, err := svc.Ingest(ctx, host, "10.0.0.1", "linux", Sample{CPUUsagePercent: float64(10 + i)}); err != nil {
			t.Fatalf("摄入失败: %v", err)
		}
	}
	if _, err := svc.Ingest(ctx, "win-01", "10.0.0.3", "windows", Sample{CPUUsagePercent: 10}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}

	distribution, err := stats.GetOSDistribution(ctx)
	if err != nil {
		t.Fatalf("查询系统分布失败: %v", err)
	}

	got := make(map[string]OSStat)
	for _, stat := range distribution {
		got[stat.OS] = stat
	}
	if s := got["linux"]; s.Count != 2 || s.Percentage != 66.67 {
		t.Errorf("linux 应为 2 台 66.67%%，实际 %+v", s)
	}
	if s := got["windows"]; s.Count != 1 || s.Percentage != 33.33 {
		t.Errorf("windows 应为 1 台 33.33%%，实际 %+v", s)
	}
}

func TestOSDistributionEmptyStore(t *testing.T) {
	db := newTestDB(t)
	stats := NewStatsService(zap.NewNop(), db)

	distribution, err := stats.GetOSDistribution(context.Background())
	if err != nil {
		t.Fatalf("空库不应报错: %v", err)
	}
	if len(distribution) != 0 {
		t.Errorf("空库分布应为空，实际 %+v", distribution)
	}
}
