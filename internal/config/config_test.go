package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv 屏蔽宿主机上可能存在的配置变量
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "GCS_BUCKET", "GATEWAY_USER", "GATEWAY_PASS", "PORT",
		"STORAGE_DRIVER", "JWT_SECRET", "REDIS_ADDR", "MYSQL_DSN", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
  mode: debug
auth:
  username: ops
  password: pw
storage:
  driver: gcs
  root: /tenant-a/
  gcs:
    bucket: gs://my-bucket/
watch:
  interval: 500ms
  timeout: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Mode != "debug" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Auth.Username != "ops" || cfg.Auth.Password != "pw" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.BucketName() != "my-bucket" {
		t.Errorf("BucketName() = %q", cfg.BucketName())
	}
	if cfg.Storage.Root != "tenant-a" {
		t.Errorf("Root = %q", cfg.Storage.Root)
	}
	if cfg.Watch.Interval != 500*time.Millisecond || cfg.Watch.Timeout != time.Minute {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	// 未配置的项使用默认值
	if cfg.Storage.Codec != "edn" || cfg.JWT.Expire != 24 || !cfg.Metrics.Enabled {
		t.Errorf("defaults not applied: codec=%q expire=%d metrics=%v", cfg.Storage.Codec, cfg.JWT.Expire, cfg.Metrics.Enabled)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
auth:
  password: from-file
storage:
  driver: file
`)
	t.Setenv("GCS_BUCKET", "env-bucket")
	t.Setenv("GATEWAY_USER", "env-user")
	t.Setenv("GATEWAY_PASS", "env-pass")
	t.Setenv("PORT", "7000")
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Username != "env-user" || cfg.Auth.Password != "env-pass" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != DriverRedis || cfg.RedisAddr() != "cache:6380" {
		t.Errorf("driver = %q addr = %q", cfg.Storage.Driver, cfg.RedisAddr())
	}
	if cfg.Storage.GCS.Bucket != "env-bucket" || cfg.Log.Level != "debug" {
		t.Errorf("bucket = %q level = %q", cfg.Storage.GCS.Bucket, cfg.Log.Level)
	}
}

func TestLoad_EnvPasswordReplacesHash(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
auth:
  password_hash: "$2a$10$abc"
storage:
  driver: memory
`)
	t.Setenv("GATEWAY_PASS", "fromenv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Password != "fromenv" || cfg.Auth.PasswordHash != "" {
		t.Errorf("auth = %+v, want env password without hash", cfg.Auth)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("GCS_BUCKET", "b")
	t.Setenv("GATEWAY_PASS", "pw")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without file: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Auth.Username != "claude" || cfg.Storage.Driver != DriverGCS {
		t.Errorf("defaults = port %d user %q driver %q", cfg.Server.Port, cfg.Auth.Username, cfg.Storage.Driver)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing explicit config file accepted")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server: [oops")
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.Auth.Password = "pw"
		c.Storage.Driver = DriverMemory
		c.Storage.Codec = "edn"
		c.Server.Mode = "release"
		return c
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]struct {
		mutate func(c *Config)
		want   string
	}{
		"no password":   {func(c *Config) { c.Auth.Password = "" }, "GATEWAY_PASS"},
		"gcs no bucket": {func(c *Config) { c.Storage.Driver = DriverGCS }, "GCS_BUCKET"},
		"mysql no dsn":  {func(c *Config) { c.Storage.Driver = DriverMySQL }, "MYSQL_DSN"},
		"bad driver":    {func(c *Config) { c.Storage.Driver = "s3" }, "s3"},
		"bad codec":     {func(c *Config) { c.Storage.Codec = "xml" }, "xml"},
		"bad mode":      {func(c *Config) { c.Server.Mode = "prod" }, "prod"},
		"tls no files":  {func(c *Config) { c.Server.TLS.Enabled = true }, "cert_file"},
	}
	for name, tc := range cases {
		c := valid()
		tc.mutate(c)
		err := c.Validate()
		if err == nil {
			t.Errorf("%s: accepted", name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", name, err, tc.want)
		}
	}

	c := valid()
	c.Auth.Password = ""
	c.Auth.PasswordHash = "$2a$10$abc"
	if err := c.Validate(); err != nil {
		t.Errorf("hash-only config rejected: %v", err)
	}
}
