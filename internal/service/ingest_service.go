package service

import (
	"context"
	"errors"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/dushixiang/kestrel/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sample 一次硬件健康采样的原始值
type Sample struct {
	Timestamp       int64   // 采样时间（毫秒），0 表示使用入库时间
	CPUUsagePercent float64
	RAMUsedMB       uint64
	RAMTotalMB      uint64
	DiskUsedGB      float64
	DiskTotalGB     float64
	UptimeMinutes   uint64
}

// validate 校验数值范围。CPU 超出 [0,100] 直接拒绝而不是修正，
// 避免规则评估器面对不可能的数据。
func (s Sample) validate() error {
	if s.CPUUsagePercent < 0 || s.CPUUsagePercent > 100 {
		return &ValidationError{Field: "cpuUsagePercent", Reason: "必须在 0 到 100 之间"}
	}
	if s.DiskUsedGB < 0 {
		return &ValidationError{Field: "diskUsedGB", Reason: "不能为负数"}
	}
	if s.DiskTotalGB < 0 {
		return &ValidationError{Field: "diskTotalGB", Reason: "不能为负数"}
	}
	return nil
}

// IngestService 摄入网关：注册机器、写入测量、评估规则，三步一个事务
type IngestService struct {
	logger    *zap.Logger
	db        *gorm.DB
	evaluator *RuleEvaluator
}

func NewIngestService(logger *zap.Logger, db *gorm.DB, evaluator *RuleEvaluator) *IngestService {
	return &IngestService{
		logger:    logger,
		db:        db,
		evaluator: evaluator,
	}
}

// Ingest 处理一次上报：注册或触活机器（已存在时只更新最后上报时间），
// 写入测量记录，并同步评估告警规则。整个过程在一个事务内完成，
// 任何一步失败都会整体回滚——包括机器的注册与触活——状态如同调用从未发生。
// 成功时返回新测量的ID。
func (s *IngestService) Ingest(ctx context.Context, hostname, ip, osName string, sample Sample) (string, error) {
	if hostname == "" {
		return "", &ValidationError{Field: "hostname", Reason: "不能为空"}
	}
	if err := sample.validate(); err != nil {
		return "", err
	}

	var measurementID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UnixMilli()

		computer, err := repo.NewComputerRepo(tx).Upsert(ctx, hostname, ip, osName, now)
		if err != nil {
			return err
		}

		measurement := &models.Measurement{
			ComputerID:      computer.ID,
			Timestamp:       sample.Timestamp,
			CPUUsagePercent: sample.CPUUsagePercent,
			RAMUsedMB:       sample.RAMUsedMB,
			RAMTotalMB:      sample.RAMTotalMB,
			DiskUsedGB:      sample.DiskUsedGB,
			DiskTotalGB:     sample.DiskTotalGB,
			UptimeMinutes:   sample.UptimeMinutes,
		}
		if err := repo.NewMeasurementRepo(tx).Create(ctx, measurement); err != nil {
			return err
		}

		if err := s.evaluator.Evaluate(ctx, tx, measurement); err != nil {
			return err
		}

		measurementID = measurement.ID
		return nil
	})
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return "", err
		}
		s.logger.Error("测量摄入失败",
			zap.String("hostname", hostname),
			zap.Error(err))
		return "", &IngestionError{Err: err}
	}

	s.logger.Debug("测量摄入成功",
		zap.String("hostname", hostname),
		zap.String("measurementId", measurementID))
	return measurementID, nil
}
