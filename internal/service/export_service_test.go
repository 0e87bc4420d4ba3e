package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBuildSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	export := NewExportService(zap.NewNop(), db, NewStatsService(zap.NewNop(), db))

	now := time.Now().UnixMilli()
	// 旧测量健康，新测量触发 HighCPU，运行时间 90 分钟
	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{
		Timestamp:       now - 60_000,
		CPUUsagePercent: 20,
		RAMUsedMB:       100,
		RAMTotalMB:      1000,
		UptimeMinutes:   30,
	}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}
	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{
		Timestamp:       now,
		CPUUsagePercent: 95,
		RAMUsedMB:       100,
		RAMTotalMB:      1000,
		UptimeMinutes:   90,
	}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}

	snapshot, err := export.BuildSnapshot(ctx, 0)
	if err != nil {
		t.Fatalf("组装快照失败: %v", err)
	}

	if snapshot.LastUpdated == "" {
		t.Error("lastUpdated 不应为空")
	}
	if snapshot.Summary == nil || snapshot.Summary.ComputerCount != 1 {
		t.Errorf("汇总机器数应为 1，实际 %+v", snapshot.Summary)
	}
	if len(snapshot.OSStats) != 1 || snapshot.OSStats[0].OS != "linux" {
		t.Errorf("系统分布应只有 linux，实际 %+v", snapshot.OSStats)
	}
	if len(snapshot.Warnings) != 1 {
		t.Fatalf("应有 1 条告警，实际 %d 条", len(snapshot.Warnings))
	}
	if len(snapshot.Measurements) != 2 {
		t.Fatalf("应有 2 条测量，实际 %d 条", len(snapshot.Measurements))
	}
	// 测量按时间倒序，最新的在前
	if snapshot.Measurements[0].Timestamp != now {
		t.Error("测量应按时间倒序排列")
	}
	if snapshot.Measurements[0].UptimeHours != 1.5 {
		t.Errorf("90 分钟应换算为 1.5 小时，实际 %v", snapshot.Measurements[0].UptimeHours)
	}
	if snapshot.Measurements[1].UptimeHours != 0.5 {
		t.Errorf("30 分钟应换算为 0.5 小时，实际 %v", snapshot.Measurements[1].UptimeHours)
	}
	if len(snapshot.CPU7Days) != 1 || len(snapshot.RAM7Days) != 1 {
		t.Errorf("7天聚合应各有 1 天数据，实际 cpu=%d ram=%d", len(snapshot.CPU7Days), len(snapshot.RAM7Days))
	}
	if len(snapshot.WarningStats) == 0 {
		t.Error("告警分布不应为空")
	}
}

func TestWriteSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	export := NewExportService(zap.NewNop(), db, NewStatsService(zap.NewNop(), db))

	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{CPUUsagePercent: 42, RAMUsedMB: 100, RAMTotalMB: 1000}); err != nil {
		t.Fatalf("摄入失败: %v", err)
	}

	path := filepath.Join(t.TempDir(), "dashboard", "snapshot.json")
	if err := export.WriteSnapshot(ctx, path, 10); err != nil {
		t.Fatalf("导出快照失败: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取快照文件失败: %v", err)
	}

	// 外部渲染器依赖的字段名必须存在
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("快照不是合法JSON: %v", err)
	}
	for _, field := range []string{"lastUpdated", "summary", "osStats", "warnings", "measurements", "cpu7Days", "ram7Days", "warningStats"} {
		if _, ok := doc[field]; !ok {
			t.Errorf("快照缺少字段 %s", field)
		}
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("临时文件应在改名后消失")
	}
}
