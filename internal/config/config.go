package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Folders 流水线使用的目录树根
type Folders struct {
	Incoming   string
	Raw        string
	Validated  string
	Failed     string
	Duplicates string
}

// All 返回启动时需要确保存在的全部目录
func (f Folders) All() []string {
	return []string{f.Incoming, f.Raw, f.Validated, f.Failed, f.Duplicates}
}

// Scheduler 调度配置
type Scheduler struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// Database 存储后端配置
type Database struct {
	Type   string
	SQLite struct {
		Path string
	}
	MongoDB struct {
		URI      string
		Database string
	}
}

// Dedup 去重配置
type Dedup struct {
	Algorithm string
	FailOpen  bool `mapstructure:"fail_open"`
}

// Config 应用配置
type Config struct {
	Folders     Folders
	Scheduler   Scheduler
	Database    Database
	Dedup       Dedup
	Performance struct {
		Workers int
	}
	Logging struct {
		Level string
		File  string
	}
}

// Load 加载 YAML 配置文件
// 配置文件不存在时使用默认值
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.file-ingest")
	v.AddConfigPath("/etc/file-ingest")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFile 从指定路径加载配置文件，主要用于测试和 --config 参数
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置项的合法性
func (c *Config) Validate() error {
	if c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("调度间隔必须为正数: %d", c.Scheduler.IntervalMinutes)
	}

	switch c.Database.Type {
	case "sqlite", "mongodb":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("folders.incoming", "./data/incoming")
	v.SetDefault("folders.raw", "./data/raw")
	v.SetDefault("folders.validated", "./data/validated")
	v.SetDefault("folders.failed", "./data/failed")
	v.SetDefault("folders.duplicates", "./data/duplicates")

	v.SetDefault("scheduler.interval_minutes", 60)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "./data/file_ingest.db")
	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.database", "file_ingestion")

	v.SetDefault("dedup.algorithm", "sha256")
	v.SetDefault("dedup.fail_open", false)

	v.SetDefault("performance.workers", 4)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}
