package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dushixiang/kestrel/internal/models"
	"github.com/dushixiang/kestrel/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LevelHigh 阈值规则统一的告警级别
const LevelHigh = "high"

// Rule 阈值规则。规则之间相互独立，顺序只决定告警的产生顺序；
// 兜底的 Healthy 规则不在此表内，必须在所有阈值规则之后单独执行。
type Rule struct {
	Type     string
	Category string
	Level    string
	Match    func(m *models.Measurement) bool
	Describe func(m *models.Measurement) string
}

// defaultRules 固定的规则表。规则与分类的映射是静态的，不支持用户自定义。
func defaultRules() []Rule {
	return []Rule{
		{
			Type:     models.CategoryHighCPU,
			Category: models.CategoryHighCPU,
			Level:    LevelHigh,
			Match: func(m *models.Measurement) bool {
				return m.CPUUsagePercent > 80
			},
			Describe: func(m *models.Measurement) string {
				return fmt.Sprintf("CPU使用率%.2f%%，超过80%%", m.CPUUsagePercent)
			},
		},
		{
			Type:     models.CategoryHighRAM,
			Category: models.CategoryHighRAM,
			Level:    LevelHigh,
			Match: func(m *models.Measurement) bool {
				// 总量为 0 时视为不命中，避免除零
				return m.RAMTotalMB > 0 && m.RAMUsagePercent() > 80
			},
			Describe: func(m *models.Measurement) string {
				return fmt.Sprintf("内存使用率%.2f%%，超过80%%", m.RAMUsagePercent())
			},
		},
		{
			Type:     models.CategoryLowDisk,
			Category: models.CategoryLowDisk,
			Level:    LevelHigh,
			Match: func(m *models.Measurement) bool {
				return m.DiskTotalGB > 0 && m.DiskUsagePercent() > 90
			},
			Describe: func(m *models.Measurement) string {
				return fmt.Sprintf("磁盘使用率%.2f%%，超过90%%", m.DiskUsagePercent())
			},
		},
	}
}

// RuleEvaluator 规则评估器：把一条新入库的测量转换为零到多条告警和分类关联
type RuleEvaluator struct {
	logger *zap.Logger
	rules  []Rule
}

func NewRuleEvaluator(logger *zap.Logger) *RuleEvaluator {
	return &RuleEvaluator{
		logger: logger,
		rules:  defaultRules(),
	}
}

// Evaluate 在调用方的事务内评估一条测量记录。
// 先按固定顺序评估阈值规则，每条命中的规则写入一条告警并关联对应分类；
// 随后执行兜底规则：仅当该测量没有任何告警时打上 Healthy 标签。
// 兜底规则必须看到阈值规则的结果，否则一条测量可能同时带有告警和 Healthy 标签。
// 重复评估同一测量不会产生重复的告警或关联。
func (e *RuleEvaluator) Evaluate(ctx context.Context, tx *gorm.DB, m *models.Measurement) error {
	warningRepo := repo.NewWarningRepo(tx)
	categoryRepo := repo.NewCategoryRepo(tx)

	for _, rule := range e.rules {
		if !rule.Match(m) {
			continue
		}
		if err := e.apply(ctx, warningRepo, categoryRepo, m, rule); err != nil {
			return err
		}
	}

	hasWarnings, err := warningRepo.ExistsByMeasurement(ctx, m.ID)
	if err != nil {
		return err
	}
	if !hasWarnings {
		return e.link(ctx, categoryRepo, m.ID, models.CategoryHealthy)
	}
	return nil
}

// apply 执行单条命中的规则：写入告警并关联分类
func (e *RuleEvaluator) apply(ctx context.Context, warningRepo *repo.WarningRepo, categoryRepo *repo.CategoryRepo, m *models.Measurement, rule Rule) error {
	exists, err := warningRepo.ExistsByMeasurementAndType(ctx, m.ID, rule.Type)
	if err != nil {
		return err
	}
	if !exists {
		warning := &models.Warning{
			MeasurementID: m.ID,
			Type:          rule.Type,
			Description:   rule.Describe(m),
			Level:         rule.Level,
		}
		if err := warningRepo.Create(ctx, warning); err != nil {
			// 唯一约束兜底：并发重复评估时吸收冲突，不向上传播
			if !errors.Is(err, ErrDuplicateWarning) {
				return err
			}
			e.logger.Debug("告警已存在，跳过",
				zap.String("measurementId", m.ID),
				zap.String("type", rule.Type))
		} else {
			e.logger.Info("规则命中，记录告警",
				zap.String("measurementId", m.ID),
				zap.String("type", rule.Type),
				zap.String("level", rule.Level))
		}
	}

	return e.link(ctx, categoryRepo, m.ID, rule.Category)
}

// link 建立测量与命名分类的关联
func (e *RuleEvaluator) link(ctx context.Context, categoryRepo *repo.CategoryRepo, measurementID, categoryName string) error {
	category, err := categoryRepo.FindByName(ctx, categoryName)
	if err != nil {
		return fmt.Errorf("查找分类 %s 失败: %w", categoryName, err)
	}
	return categoryRepo.CreateLink(ctx, measurementID, category.ID)
}
