package repo

import (
	"context"
	"time"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ComputerRepo 机器数据访问层
type ComputerRepo struct {
	db *gorm.DB
}

func NewComputerRepo(db *gorm.DB) *ComputerRepo {
	return &ComputerRepo{db: db}
}

// Upsert 注册或触活机器：主机名未见过则插入，已存在则仅更新最后上报时间。
// 通过 ON CONFLICT 完成，同一机器的并发上报按 last-writer-wins 处理。
func (r *ComputerRepo) Upsert(ctx context.Context, hostname, ip, osName string, now int64) (*models.Computer, error) {
	computer := &models.Computer{
		ID:         uuid.New().String(),
		Hostname:   hostname,
		IP:         ip,
		OS:         osName,
		LastSeenAt: now,
		CreatedAt:  time.Now().UnixMilli(),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hostname"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at"}),
		}).
		Create(computer).Error
	if err != nil {
		return nil, err
	}

	// 冲突时插入的 UUID 不会生效，回查拿到权威记录
	return r.FindByHostname(ctx, hostname)
}

// FindByHostname 按主机名查找机器
func (r *ComputerRepo) FindByHostname(ctx context.Context, hostname string) (*models.Computer, error) {
	var computer models.Computer
	err := r.db.WithContext(ctx).Where("hostname = ?", hostname).First(&computer).Error
	if err != nil {
		return nil, err
	}
	return &computer, nil
}

// FindById 按ID查找机器
func (r *ComputerRepo) FindById(ctx context.Context, id string) (*models.Computer, error) {
	var computer models.Computer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&computer).Error
	if err != nil {
		return nil, err
	}
	return &computer, nil
}

// FindAll 列出所有机器
func (r *ComputerRepo) FindAll(ctx context.Context) ([]models.Computer, error) {
	var computers []models.Computer
	err := r.db.WithContext(ctx).Order("hostname ASC").Find(&computers).Error
	return computers, err
}

// Count 统计机器数量
func (r *ComputerRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Computer{}).Count(&count).Error
	return count, err
}

// CountByOS 按操作系统分组统计
func (r *ComputerRepo) CountByOS(ctx context.Context) ([]OSCount, error) {
	var rows []OSCount
	err := r.db.WithContext(ctx).
		Model(&models.Computer{}).
		Select("os, count(*) as count").
		Group("os").
		Find(&rows).Error
	return rows, err
}

// DeleteById 删除机器本身（级联数据由调用方在同一事务内处理）
func (r *ComputerRepo) DeleteById(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Computer{}).Error
}

// OSCount 操作系统分组统计结果
type OSCount struct {
	OS    string `json:"os"`
	Count int64  `json:"count"`
}
