package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/dushixiang/kestrel/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newIngestService(db *gorm.DB) *IngestService {
	return NewIngestService(zap.NewNop(), db, NewRuleEvaluator(zap.NewNop()))
}

func TestIngestCreatesComputerAndMeasurement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)

	id, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{
		CPUUsagePercent: 42,
		RAMUsedMB:       2048,
		RAMTotalMB:      8192,
		DiskUsedGB:      100,
		DiskTotalGB:     500,
		UptimeMinutes:   90,
	})
	if err != nil {
		t.Fatalf("摄入失败: %v", err)
	}
	if id == "" {
		t.Fatal("应该返回测量ID")
	}

	m, err := repo.NewMeasurementRepo(db).FindById(ctx, id)
	if err != nil {
		t.Fatalf("查询测量失败: %v", err)
	}
	if m.CPUUsagePercent != 42 {
		t.Errorf("CPU使用率应为 42，实际 %v", m.CPUUsagePercent)
	}
	if m.Timestamp == 0 {
		t.Error("未指定采样时间时应默认为入库时间")
	}

	computer, err := repo.NewComputerRepo(db).FindByHostname(ctx, "web-01")
	if err != nil {
		t.Fatalf("查询机器失败: %v", err)
	}
	if m.ComputerID != computer.ID {
		t.Error("测量应关联到对应机器")
	}
}

func TestIngestUpsertOnlyTouchesLastSeen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)
	computerRepo := repo.NewComputerRepo(db)

	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{CPUUsagePercent: 10, RAMTotalMB: 1000, RAMUsedMB: 100}); err != nil {
		t.Fatalf("首次摄入失败: %v", err)
	}
	first, err := computerRepo.FindByHostname(ctx, "web-01")
	if err != nil {
		t.Fatalf("查询机器失败: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	// 同一主机名再次上报，即使元数据变了也只更新最后上报时间
	if _, err := svc.Ingest(ctx, "web-01", "10.0.0.99", "windows", Sample{CPUUsagePercent: 20, RAMTotalMB: 1000, RAMUsedMB: 100}); err != nil {
		t.Fatalf("二次摄入失败: %v", err)
	}

	count, err := computerRepo.Count(ctx)
	if err != nil {
		t.Fatalf("统计机器数失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("同一主机名不应重复注册，实际 %d 台", count)
	}

	second, err := computerRepo.FindByHostname(ctx, "web-01")
	if err != nil {
		t.Fatalf("查询机器失败: %v", err)
	}
	if second.ID != first.ID {
		t.Error("机器ID不应变化")
	}
	if second.OS != "linux" || second.IP != "10.0.0.1" {
		t.Errorf("已注册机器的元数据不应被覆盖，实际 os=%s ip=%s", second.OS, second.IP)
	}
	if second.LastSeenAt <= first.LastSeenAt {
		t.Errorf("最后上报时间应更新，之前 %d 现在 %d", first.LastSeenAt, second.LastSeenAt)
	}
}

func TestIngestRejectsInvalidCPU(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)

	_, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{
		CPUUsagePercent: 150,
		RAMTotalMB:      1000,
		RAMUsedMB:       100,
	})
	if err == nil {
		t.Fatal("CPU 超出范围应被拒绝")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("应返回 ValidationError，实际 %T: %v", err, err)
	}

	// 校验失败不应留下任何痕迹
	computerCount, _ := repo.NewComputerRepo(db).Count(ctx)
	if computerCount != 0 {
		t.Errorf("不应注册机器，实际 %d 台", computerCount)
	}
	measurementCount, _ := repo.NewMeasurementRepo(db).Count(ctx)
	if measurementCount != 0 {
		t.Errorf("不应写入测量，实际 %d 条", measurementCount)
	}
}

func TestIngestRejectsEmptyHostname(t *testing.T) {
	db := newTestDB(t)
	svc := newIngestService(db)

	_, err := svc.Ingest(context.Background(), "", "10.0.0.1", "linux", Sample{CPUUsagePercent: 10})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("空主机名应返回 ValidationError，实际 %T: %v", err, err)
	}
}

func TestIngestRollbackOnRuleFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	svc := newIngestService(db)

	// 删掉告警表，规则评估必然失败，整个事务应回滚
	if err := db.Migrator().DropTable(&models.Warning{}); err != nil {
		t.Fatalf("删除告警表失败: %v", err)
	}

	_, err := svc.Ingest(ctx, "web-01", "10.0.0.1", "linux", Sample{
		CPUUsagePercent: 95,
		RAMTotalMB:      1000,
		RAMUsedMB:       100,
	})
	if err == nil {
		t.Fatal("规则评估失败时摄入应报错")
	}
	var ie *IngestionError
	if !errors.As(err, &ie) {
		t.Fatalf("应返回 IngestionError，实际 %T: %v", err, err)
	}

	// 机器注册和测量写入都应随事务一起回滚
	computerCount, _ := repo.NewComputerRepo(db).Count(ctx)
	if computerCount != 0 {
		t.Errorf("回滚后不应有机器，实际 %d 台", computerCount)
	}
	measurementCount, _ := repo.NewMeasurementRepo(db).Count(ctx)
	if measurementCount != 0 {
		t.Errorf("回滚后不应有测量，实际 %d 条", measurementCount)
	}
}
