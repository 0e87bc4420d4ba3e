package repo

import (
	"context"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MeasurementRepo 测量数据访问层
type MeasurementRepo struct {
	db *gorm.DB
}

func NewMeasurementRepo(db *gorm.DB) *MeasurementRepo {
	return &MeasurementRepo{db: db}
}

// Create 写入一条测量记录，写入后不可变更
func (r *MeasurementRepo) Create(ctx context.Context, m *models.Measurement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// FindById 按ID查找测量记录
func (r *MeasurementRepo) FindById(ctx context.Context, id string) (*models.Measurement, error) {
	var m models.Measurement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByTimeRange 查询时间窗口内的测量记录 [start, end)
func (r *MeasurementRepo) FindByTimeRange(ctx context.Context, start, end int64) ([]models.Measurement, error) {
	var rows []models.Measurement
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&rows).Error
	return rows, err
}

// FindLatest 查询最新的N条测量记录（按采样时间倒序）
func (r *MeasurementRepo) FindLatest(ctx context.Context, limit int) ([]models.Measurement, error) {
	var rows []models.Measurement
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Count 统计测量记录数量
func (r *MeasurementRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Measurement{}).Count(&count).Error
	return count, err
}

// CountWithoutWarnings 统计时间窗口内没有任何告警的测量数量
func (r *MeasurementRepo) CountWithoutWarnings(ctx context.Context, start, end int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Measurement{}).
		Joins("LEFT JOIN warnings ON warnings.measurement_id = measurements.id").
		Where("measurements.timestamp >= ? AND measurements.timestamp < ?", start, end).
		Where("warnings.id IS NULL").
		Count(&count).Error
	return count, err
}

// DeleteByComputerId 删除机器的所有测量记录及其告警和分类关联
func (r *MeasurementRepo) DeleteByComputerId(ctx context.Context, computerID string) error {
	measurementIDs := func() *gorm.DB {
		return r.db.Model(&models.Measurement{}).
			Select("id").
			Where("computer_id = ?", computerID)
	}

	if err := r.db.WithContext(ctx).
		Where("measurement_id IN (?)", measurementIDs()).
		Delete(&models.MeasurementCategory{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("measurement_id IN (?)", measurementIDs()).
		Delete(&models.Warning{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("computer_id = ?", computerID).
		Delete(&models.Measurement{}).Error
}
