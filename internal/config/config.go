package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 应用配置，启动时从 yaml 文件加载并显式传入各组件
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Export   ExportConfig   `yaml:"export"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr string `yaml:"addr"` // 监听地址，如 :8080
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `yaml:"type"` // 数据库类型，目前支持 sqlite
	DSN  string `yaml:"dsn"`  // 连接串
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`      // debug/info/warn/error
	File       string `yaml:"file"`       // 日志文件路径，为空时输出到标准输出
	MaxSize    int    `yaml:"maxSize"`    // 单文件上限(MB)
	MaxBackups int    `yaml:"maxBackups"` // 保留的旧日志文件数
	MaxAge     int    `yaml:"maxAge"`     // 保留天数
	Compress   bool   `yaml:"compress"`   // 是否压缩
}

// ExportConfig 仪表盘快照定时导出配置
type ExportConfig struct {
	Enabled bool   `yaml:"enabled"` // 是否启用定时导出
	Cron    string `yaml:"cron"`    // cron 表达式
	Path    string `yaml:"path"`    // 快照输出路径
	Limit   int    `yaml:"limit"`   // 告警/测量列表条数
}

// Default 缺省配置
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Type: "sqlite", DSN: "kestrel.db"},
		Log:      LogConfig{Level: "info", MaxSize: 100, MaxBackups: 3, MaxAge: 30},
		Export:   ExportConfig{Cron: "@every 5m", Path: "snapshot.json", Limit: 20},
	}
}

// Load 从文件加载配置，文件不存在时返回缺省配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if cfg.Database.Type != "sqlite" {
		return nil, fmt.Errorf("不支持的数据库类型: %s", cfg.Database.Type)
	}
	return cfg, nil
}
