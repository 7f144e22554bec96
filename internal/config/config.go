package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	DevTools struct {
		URL    string `yaml:"url"`
		Target string `yaml:"target"`
	} `yaml:"devtools"`

	Sqlite struct {
		Dsn string `yaml:"dsn"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Inject struct {
		Concurrency  int `yaml:"concurrency"`  // 拦截处理并发度
		DebounceMS   int `yaml:"debounceMS"`   // 同一 URL 的去抖窗口
		FlushDelayMS int `yaml:"flushDelayMS"` // 统计批量落盘延迟
	} `yaml:"inject"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.DevTools.URL = "http://localhost:9222"
	cfg.Log.Level = "info"
	cfg.Log.Writer = []string{"console"}
	cfg.Inject.Concurrency = 8
	cfg.Inject.DebounceMS = 1000
	cfg.Inject.FlushDelayMS = 3000
	return cfg
}

// Load 读取配置文件并覆盖默认值；文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
