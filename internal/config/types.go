package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DatabaseFileName 是元数据文件在 StoragePath 下的文件名。
const DatabaseFileName = "db.sqlite3"

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数。
type GlobalConfig struct {
	ListenHost     string   `mapstructure:"ListenHost"`
	ListenPort     int      `mapstructure:"ListenPort"`
	LogLevel       string   `mapstructure:"LogLevel"`
	LogFormat      string   `mapstructure:"LogFormat"`
	LogFilePath    string   `mapstructure:"LogFilePath"`
	LogMaxSize     int      `mapstructure:"LogMaxSize"`
	LogMaxBackups  int      `mapstructure:"LogMaxBackups"`
	LogCompress    bool     `mapstructure:"LogCompress"`
	StoragePath    string   `mapstructure:"StoragePath"`
	StagingPrefix  string   `mapstructure:"StagingPrefix"`
	FetchTimeout   Duration `mapstructure:"FetchTimeout"`
	CoalesceMisses bool     `mapstructure:"CoalesceMisses"`
}

// S3Config 描述 s3:// 标识使用的远端连接参数，凭证留空时走 SDK 默认凭证链。
type S3Config struct {
	Region          string `mapstructure:"Region"`
	Endpoint        string `mapstructure:"Endpoint"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	UsePathStyle    bool   `mapstructure:"UsePathStyle"`
}

// HTTPConfig 控制是否接受 http:// 与 https:// 标识。
type HTTPConfig struct {
	Enabled bool `mapstructure:"Enabled"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	S3     S3Config     `mapstructure:"S3"`
	HTTP   HTTPConfig   `mapstructure:"HTTP"`
}

// DatabasePath 返回元数据文件的完整路径。
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Global.StoragePath, DatabaseFileName)
}

// ListenAddress 返回 HTTP 服务监听地址。
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Global.ListenHost, c.Global.ListenPort)
}

// EnabledSchemes 返回当前配置会注册的标识 scheme。
func (c *Config) EnabledSchemes() []string {
	schemes := []string{"s3"}
	if c.HTTP.Enabled {
		schemes = append(schemes, "http", "https")
	}
	return schemes
}

// HasCredentials 表示是否配置了完整的静态凭证。
func (s S3Config) HasCredentials() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// AuthMode 输出 `static` 或 `default-chain`，供日志字段使用。
func (s S3Config) AuthMode() string {
	if s.HasCredentials() {
		return "static"
	}
	return "default-chain"
}
