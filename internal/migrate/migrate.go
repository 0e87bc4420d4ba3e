package migrate

import (
	"context"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/dushixiang/kestrel/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate 建表并写入固定的分类集合
func Migrate(logger *zap.Logger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Computer{},
		&models.Measurement{},
		&models.Category{},
		&models.Warning{},
		&models.MeasurementCategory{},
	); err != nil {
		logger.Error("数据库迁移失败", zap.Error(err))
		return err
	}

	categoryRepo := repo.NewCategoryRepo(db)
	for _, name := range models.SeedCategories {
		if _, err := categoryRepo.EnsureByName(context.Background(), name); err != nil {
			logger.Error("初始化分类失败", zap.String("name", name), zap.Error(err))
			return err
		}
	}

	logger.Info("数据库迁移完成")
	return nil
}
