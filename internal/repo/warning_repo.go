package repo

import (
	"context"
	"errors"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateWarning 同一测量同一类型的告警已存在，由唯一约束兜底产生。
// 依赖 gorm 的 TranslateError 把驱动层的约束冲突翻译成 ErrDuplicatedKey。
var ErrDuplicateWarning = errors.New("该测量已存在同类型告警")

// WarningRepo 告警数据访问层
type WarningRepo struct {
	db *gorm.DB
}

func NewWarningRepo(db *gorm.DB) *WarningRepo {
	return &WarningRepo{db: db}
}

// Create 写入一条告警记录，(measurement_id, type) 唯一约束保证去重，
// 冲突时返回 ErrDuplicateWarning
func (r *WarningRepo) Create(ctx context.Context, w *models.Warning) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.CreatedAt == 0 {
		w.CreatedAt = time.Now().UnixMilli()
	}
	err := r.db.WithContext(ctx).Create(w).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateWarning
	}
	return err
}

// ExistsByMeasurement 该测量是否已有任何告警
func (r *WarningRepo) ExistsByMeasurement(ctx context.Context, measurementID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Warning{}).
		Where("measurement_id = ?", measurementID).
		Count(&count).Error
	return count > 0, err
}

// ExistsByMeasurementAndType 该测量是否已有同类型的告警
func (r *WarningRepo) ExistsByMeasurementAndType(ctx context.Context, measurementID, warningType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Warning{}).
		Where("measurement_id = ? AND type = ?", measurementID, warningType).
		Count(&count).Error
	return count > 0, err
}

// FindByMeasurement 查询某个测量的所有告警
func (r *WarningRepo) FindByMeasurement(ctx context.Context, measurementID string) ([]models.Warning, error) {
	var rows []models.Warning
	err := r.db.WithContext(ctx).
		Where("measurement_id = ?", measurementID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// FindLatest 查询最新的N条告警（按创建时间倒序）
func (r *WarningRepo) FindLatest(ctx context.Context, limit int) ([]models.Warning, error) {
	var rows []models.Warning
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Count 统计告警数量
func (r *WarningRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Warning{}).Count(&count).Error
	return count, err
}

// CountByMeasurementTimeRange 统计归属测量的采样时间落在窗口内的告警数量
func (r *WarningRepo) CountByMeasurementTimeRange(ctx context.Context, start, end int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Warning{}).
		Joins("JOIN measurements ON measurements.id = warnings.measurement_id").
		Where("measurements.timestamp >= ? AND measurements.timestamp < ?", start, end).
		Count(&count).Error
	return count, err
}

// CountByTypeInRange 按告警类型分组统计窗口内的告警
func (r *WarningRepo) CountByTypeInRange(ctx context.Context, start, end int64) ([]TypeCount, error) {
	var rows []TypeCount
	err := r.db.WithContext(ctx).
		Model(&models.Warning{}).
		Select("warnings.type as type, count(*) as count").
		Joins("JOIN measurements ON measurements.id = warnings.measurement_id").
		Where("measurements.timestamp >= ? AND measurements.timestamp < ?", start, end).
		Group("warnings.type").
		Find(&rows).Error
	return rows, err
}

// TypeCount 告警类型分组统计结果
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}
