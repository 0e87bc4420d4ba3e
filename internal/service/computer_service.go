package service

import (
	"context"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/dushixiang/kestrel/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ComputerService 机器管理
type ComputerService struct {
	logger       *zap.Logger
	db           *gorm.DB
	computerRepo *repo.ComputerRepo
}

func NewComputerService(logger *zap.Logger, db *gorm.DB) *ComputerService {
	return &ComputerService{
		logger:       logger,
		db:           db,
		computerRepo: repo.NewComputerRepo(db),
	}
}

// List 列出所有机器
func (s *ComputerService) List(ctx context.Context) ([]models.Computer, error) {
	return s.computerRepo.FindAll(ctx)
}

// Get 获取单台机器
func (s *ComputerService) Get(ctx context.Context, id string) (*models.Computer, error) {
	return s.computerRepo.FindById(ctx, id)
}

// Delete 删除机器及其全部测量、告警和分类关联，在一个事务内完成。
// 核心流程本身从不删除机器，这是留给外部保留策略的入口。
func (s *ComputerService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.NewMeasurementRepo(tx).DeleteByComputerId(ctx, id); err != nil {
			s.logger.Error("删除机器测量数据失败", zap.String("computerId", id), zap.Error(err))
			return err
		}
		if err := repo.NewComputerRepo(tx).DeleteById(ctx, id); err != nil {
			s.logger.Error("删除机器失败", zap.String("computerId", id), zap.Error(err))
			return err
		}
		s.logger.Info("机器删除成功", zap.String("computerId", id))
		return nil
	})
}
