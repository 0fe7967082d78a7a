// Package config 读取 TOML 配置文件，再用环境变量覆盖
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Server HTTP 服务
type Server struct {
	Bind           string `toml:"bind"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	RequestTimeout int    `toml:"request_timeout"` // 秒
}

// Isolation 主体隔离服务
type Isolation struct {
	Provider     string `toml:"provider"` // gemini | none
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	Endpoint     string `toml:"endpoint"`
	Timeout      int    `toml:"timeout"` // 秒
	MaxInputSize int    `toml:"max_input_size"`
}

// Keying 抠像阈值
type Keying struct {
	Detector          string `toml:"detector"` // corner | border
	BorderWidth       int    `toml:"border_width"`
	Workers           int    `toml:"workers"`
	MagentaMinRB      int    `toml:"magenta_min_rb"`
	MagentaMaxG       int    `toml:"magenta_max_g"`
	HardCutMinRB      int    `toml:"hard_cut_min_rb"`
	HardCutMaxG       int    `toml:"hard_cut_max_g"`
	HardCutBalance    int    `toml:"hard_cut_balance"`
	DespillOffset     int    `toml:"despill_offset"`
	FallbackTolerance int    `toml:"fallback_tolerance"`
}

// Export 导出结果的存放位置
type Export struct {
	Sink           string `toml:"sink"` // file | azure
	Dir            string `toml:"dir"`
	RetentionHours int    `toml:"retention_hours"`
	SweepSchedule  string `toml:"sweep_schedule"`
}

type Azure struct {
	ConnectionString string `toml:"connection_string"`
	Container        string `toml:"container"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Server    Server    `toml:"server"`
	Isolation Isolation `toml:"isolation"`
	Keying    Keying    `toml:"keying"`
	Export    Export    `toml:"export"`
	Azure     Azure     `toml:"azure"`
	Logging   Logging   `toml:"logging"`
}

// Load 读取配置文件（path 为空时只用默认值），然后应用环境变量并校验
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config file %q not found", path)
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Isolation.APIKey = firstEnv(c.Isolation.APIKey, "REMOVEBG_API_KEY", "GEMINI_API_KEY", "API_KEY")
	c.Isolation.Model = getEnvOrDefault("REMOVEBG_MODEL", c.Isolation.Model)
	c.Isolation.Provider = getEnvOrDefault("REMOVEBG_PROVIDER", c.Isolation.Provider)
	c.Server.Bind = getEnvOrDefault("REMOVEBG_BIND", c.Server.Bind)
	c.Export.Sink = getEnvOrDefault("REMOVEBG_EXPORT_SINK", c.Export.Sink)
	c.Export.Dir = getEnvOrDefault("REMOVEBG_EXPORT_DIR", c.Export.Dir)
	c.Azure.ConnectionString = getEnvOrDefault("AZURE_STORAGE_CONNECTION_STRING", c.Azure.ConnectionString)
	c.Azure.Container = getEnvOrDefault("AZURE_STORAGE_CONTAINER", c.Azure.Container)
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)
	c.Isolation.MaxInputSize = parseIntOrDefault("REMOVEBG_MAX_INPUT_SIZE", c.Isolation.MaxInputSize)
}

func (c *Config) normalize() {
	c.Isolation.Provider = strings.ToLower(strings.TrimSpace(c.Isolation.Provider))
	c.Keying.Detector = strings.ToLower(strings.TrimSpace(c.Keying.Detector))
	c.Export.Sink = strings.ToLower(strings.TrimSpace(c.Export.Sink))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Isolation.APIKey = strings.TrimSpace(c.Isolation.APIKey)
}

// RequestTimeout 单个 HTTP 请求的处理时限
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// IsolationTimeout 调用隔离服务的时限
func (c *Config) IsolationTimeout() time.Duration {
	return time.Duration(c.Isolation.Timeout) * time.Second
}

// Retention 本地导出文件的保留时长
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Export.RetentionHours) * time.Hour
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
