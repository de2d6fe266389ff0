// Package config 加载账号配置
// 优先级：命令行参数 > 配置文件 > 环境变量；敏感项也可以放进 secretstore
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AccountConfig 单个账号的配置
type AccountConfig struct {
	APIKey           string  `yaml:"api_key"`
	APISecret        string  `yaml:"api_secret"`
	Proxy            string  `yaml:"proxy"`
	PerRoundAmount   float64 `yaml:"per_round_amount"`
	TargetAmount     float64 `yaml:"target_amount"`
	RetryWaitSeconds int     `yaml:"retry_wait_seconds"`
	MustProfit       *bool   `yaml:"must_profit"` // 指针区分「未配置」与「显式 false」
}

// File 配置文件结构
type File struct {
	LockDir   string                   `yaml:"lock_dir"`
	DataDir   string                   `yaml:"data_dir"`
	LogLevel  string                   `yaml:"log_level"`
	LogFile   string                   `yaml:"log_file"`
	UseStream bool                     `yaml:"use_stream"`
	Accounts  map[string]AccountConfig `yaml:"accounts"`
}

// LoadDotenv 加载 .env 文件（不存在时静默忽略）
func LoadDotenv() {
	_ = godotenv.Load()
}

// LoadFile 从 yaml 文件加载配置
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "读取配置文件 %s 失败", path)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrapf(err, "解析配置文件 %s 失败", path)
	}
	return &f, nil
}

// Account 按账号 ID 取配置
func (f *File) Account(id string) (AccountConfig, bool) {
	if f == nil || f.Accounts == nil {
		return AccountConfig{}, false
	}
	account, ok := f.Accounts[id]
	return account, ok
}

// GetEnv 获取环境变量，如果不存在则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FirstNonEmpty 按优先级返回第一个非空值
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
