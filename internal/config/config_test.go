package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath("valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.ListenPort != 5000 {
		t.Fatalf("ListenPort 应当被解析, got %d", cfg.Global.ListenPort)
	}
	if cfg.Global.ListenHost != "127.0.0.1" {
		t.Fatalf("ListenHost 应自动填充默认值, got %q", cfg.Global.ListenHost)
	}
	if !filepath.IsAbs(cfg.Global.StoragePath) {
		t.Fatalf("StoragePath 应被转换为绝对路径: %s", cfg.Global.StoragePath)
	}
	if cfg.Global.FetchTimeout.DurationValue() != 10*time.Minute {
		t.Fatalf("FetchTimeout 解析错误: %s", cfg.Global.FetchTimeout.DurationValue())
	}
	if cfg.Global.StagingPrefix != "obj-" {
		t.Fatalf("StagingPrefix 默认值错误: %q", cfg.Global.StagingPrefix)
	}
	if cfg.Global.LogFormat != "json" {
		t.Fatalf("LogFormat 默认值错误: %q", cfg.Global.LogFormat)
	}
	if cfg.Global.CoalesceMisses {
		t.Fatalf("CoalesceMisses 默认应关闭")
	}
	if cfg.S3.Region != "eu-west-1" || !cfg.S3.UsePathStyle {
		t.Fatalf("S3 分节解析错误: %+v", cfg.S3)
	}
	if cfg.S3.AuthMode() != "default-chain" {
		t.Fatalf("未配置凭证时应使用默认凭证链")
	}
	if cfg.HTTP.Enabled {
		t.Fatalf("HTTP 默认应关闭")
	}
}

func TestDatabasePathUnderStorage(t *testing.T) {
	cfg := validConfig()
	cfg.Global.StoragePath = "/var/lib/objcache"
	if got := cfg.DatabasePath(); got != "/var/lib/objcache/db.sqlite3" {
		t.Fatalf("unexpected database path %s", got)
	}
}

func TestListenAddress(t *testing.T) {
	cfg := validConfig()
	if got := cfg.ListenAddress(); got != "127.0.0.1:5000" {
		t.Fatalf("unexpected listen address %s", got)
	}
}

func TestEnabledSchemes(t *testing.T) {
	cfg := validConfig()
	if got := cfg.EnabledSchemes(); len(got) != 1 || got[0] != "s3" {
		t.Fatalf("默认只启用 s3, got %v", got)
	}
	cfg.HTTP.Enabled = true
	if got := cfg.EnabledSchemes(); len(got) != 3 {
		t.Fatalf("启用 HTTP 后应包含 http/https, got %v", got)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateRequiresCredentialPairs(t *testing.T) {
	cfg := validConfig()
	cfg.S3.AccessKeyID = "foo"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("仅提供 AccessKeyID 时应报错")
	}
	fieldErr, ok := err.(FieldError)
	if !ok {
		t.Fatalf("expected FieldError, got %T", err)
	}
	if fieldErr.Field != "S3.AccessKeyID/SecretAccessKey" {
		t.Fatalf("unexpected field %s", fieldErr.Field)
	}

	cfg.S3.SecretAccessKey = "bar"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("完整凭证应通过校验: %v", err)
	}
	if cfg.S3.AuthMode() != "static" {
		t.Fatalf("完整凭证应使用 static 模式")
	}
}

func TestValidateEndpoint(t *testing.T) {
	testCases := []struct {
		name      string
		endpoint  string
		shouldErr bool
	}{
		{"empty ok", "", false},
		{"http ok", "http://127.0.0.1:9000", false},
		{"https ok", "https://s3.example.com", false},
		{"bad scheme", "ftp://s3.example.com", true},
		{"missing host", "http://", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.S3.Endpoint = tc.endpoint
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for endpoint %q", tc.endpoint)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for endpoint %q: %v", tc.endpoint, err)
			}
		})
	}
}

func TestValidateRejectsStagingPrefixWithSeparator(t *testing.T) {
	cfg := validConfig()
	cfg.Global.StagingPrefix = "../obj-"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("包含路径分隔符的前缀应报错")
	}
}

func TestValidateRequiresPositiveFetchTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Global.FetchTimeout = Duration(0)
	if err := cfg.Validate(); err == nil {
		t.Fatalf("FetchTimeout 为 0 时应报错")
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90")); err != nil {
		t.Fatalf("纯秒值应可解析: %v", err)
	}
	if d.DurationValue() != 90*time.Second {
		t.Fatalf("unexpected duration %s", d.DurationValue())
	}
	if err := d.UnmarshalText([]byte("2m")); err != nil || d.DurationValue() != 2*time.Minute {
		t.Fatalf("Go Duration 字符串应可解析: %v", err)
	}
	if err := d.UnmarshalText([]byte("boom")); err == nil {
		t.Fatalf("非法值应报错")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenHost:    "127.0.0.1",
			ListenPort:    5000,
			StoragePath:   "./data",
			StagingPrefix: "obj-",
			FetchTimeout:  Duration(time.Minute),
		},
		S3: S3Config{Region: "us-east-1"},
	}
}
