package repo

import (
	"context"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryRepo 分类数据访问层
type CategoryRepo struct {
	db *gorm.DB
}

func NewCategoryRepo(db *gorm.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// FindByName 按名称查找分类
func (r *CategoryRepo) FindByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// FindAll 列出所有分类
func (r *CategoryRepo) FindAll(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

// EnsureByName 不存在时创建分类，返回权威记录
func (r *CategoryRepo) EnsureByName(ctx context.Context, name string) (*models.Category, error) {
	category := models.Category{ID: uuid.New().String(), Name: name}
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Attrs(models.Category{ID: category.ID}).
		FirstOrCreate(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateLink 建立测量与分类的关联，重复关联直接忽略
func (r *CategoryRepo) CreateLink(ctx context.Context, measurementID, categoryID string) error {
	link := &models.MeasurementCategory{
		MeasurementID: measurementID,
		CategoryID:    categoryID,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link).Error
}

// FindCategoriesByMeasurement 查询某个测量关联的全部分类
func (r *CategoryRepo) FindCategoriesByMeasurement(ctx context.Context, measurementID string) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Joins("JOIN measurement_categories ON measurement_categories.category_id = categories.id").
		Where("measurement_categories.measurement_id = ?", measurementID).
		Order("categories.name ASC").
		Find(&categories).Error
	return categories, err
}
