package models

import (
	"time"

	"gorm.io/gorm"
)

// 分类名称是封闭集合：规则与分类的映射是静态的，表本身仍是普通的参照表
const (
	CategoryHighCPU = "HighCPU"
	CategoryHighRAM = "HighRAM"
	CategoryLowDisk = "LowDisk"
	CategoryHealthy = "Healthy"
)

// SeedCategories 初始化时写入的固定分类集合
var SeedCategories = []string{
	CategoryHighCPU,
	CategoryHighRAM,
	CategoryLowDisk,
	CategoryHealthy,
}

// Computer 被监控的机器，首次上报时自动注册
type Computer struct {
	ID         string `gorm:"primaryKey" json:"id"`                 // 机器ID (UUID)
	Hostname   string `gorm:"uniqueIndex;not null" json:"hostname"` // 主机名（唯一）
	IP         string `json:"ip"`                                   // IP地址
	OS         string `json:"os"`                                   // 操作系统
	LastSeenAt int64  `json:"lastSeenAt"`                           // 最后上报时间（毫秒）
	CreatedAt  int64  `json:"createdAt"`                            // 创建时间（毫秒）
}

func (Computer) TableName() string {
	return "computers"
}

// BeforeCreate GORM钩子：设置创建时间
func (c *Computer) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}

// Measurement 一次硬件健康采样，写入后不可变更
type Measurement struct {
	ID              string    `gorm:"primaryKey" json:"id"`          // 测量ID (UUID)
	ComputerID      string    `gorm:"index;not null" json:"computerId"`
	Computer        *Computer `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Timestamp       int64     `gorm:"index" json:"timestamp"`        // 采样时间（毫秒），缺省为入库时间
	CPUUsagePercent float64   `json:"cpuUsagePercent"`               // CPU使用率 [0,100]
	RAMUsedMB       uint64    `json:"ramUsedMB"`                     // 已用内存(MB)
	RAMTotalMB      uint64    `json:"ramTotalMB"`                    // 总内存(MB)
	DiskUsedGB      float64   `json:"diskUsedGB"`                    // 已用磁盘(GB)
	DiskTotalGB     float64   `json:"diskTotalGB"`                   // 总磁盘(GB)
	UptimeMinutes   uint64    `json:"uptimeMinutes"`                 // 运行时间(分钟)
	CreatedAt       int64     `json:"createdAt"`                     // 入库时间（毫秒）
}

func (Measurement) TableName() string {
	return "measurements"
}

// BeforeCreate GORM钩子：设置入库时间
func (m *Measurement) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}

// RAMUsagePercent 计算内存使用率，总量为 0 时返回 0
func (m *Measurement) RAMUsagePercent() float64 {
	if m.RAMTotalMB == 0 {
		return 0
	}
	return float64(m.RAMUsedMB) / float64(m.RAMTotalMB) * 100
}

// DiskUsagePercent 计算磁盘使用率，总量为 0 时返回 0
func (m *Measurement) DiskUsagePercent() float64 {
	if m.DiskTotalGB == 0 {
		return 0
	}
	return m.DiskUsedGB / m.DiskTotalGB * 100
}

// Category 分类标签
type Category struct {
	ID   string `gorm:"primaryKey" json:"id"`             // 分类ID (UUID)
	Name string `gorm:"uniqueIndex;not null" json:"name"` // 分类名称（唯一）
}

func (Category) TableName() string {
	return "categories"
}

// Warning 规则命中后记录的告警，同一测量同一类型最多一条
type Warning struct {
	ID            string       `gorm:"primaryKey" json:"id"` // 告警ID (UUID)
	MeasurementID string       `gorm:"uniqueIndex:ux_warning_measurement_type;not null" json:"measurementId"`
	Measurement   *Measurement `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Type          string       `gorm:"uniqueIndex:ux_warning_measurement_type;not null" json:"type"` // 规则标识
	Description   string       `json:"description"`                                                  // 告警描述
	Level         string       `json:"level"`                                                        // 告警级别
	CreatedAt     int64        `gorm:"index" json:"createdAt"`                                       // 创建时间（毫秒）
}

func (Warning) TableName() string {
	return "warnings"
}

// BeforeCreate GORM钩子：设置创建时间
func (w *Warning) BeforeCreate(tx *gorm.DB) error {
	if w.CreatedAt == 0 {
		w.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}

// MeasurementCategory 测量与分类的多对多关联
type MeasurementCategory struct {
	MeasurementID string       `gorm:"primaryKey" json:"measurementId"`
	CategoryID    string       `gorm:"primaryKey" json:"categoryId"`
	Measurement   *Measurement `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Category      *Category    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (MeasurementCategory) TableName() string {
	return "measurement_categories"
}
