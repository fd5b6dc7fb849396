// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	// 不指定配置文件，应该返回默认值
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	// 创建临时配置文件
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  max_upload_bytes: 1048576

models:
  generation:
    model: "gpt-4o"
    temperature: 0.2
  analysis:
    model: "gpt-4o-mini"

sandbox:
  image: "python:3.12-alpine"
  container_port: 9000
  settle_delay: 1s
  probe_deadline: 20s

pipeline:
  workers: 8
  queue_size: 128

redis:
  enabled: true
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	// 加载配置
	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	// 验证 YAML 值覆盖了默认值
	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1048576), cfg.Server.MaxUploadBytes)

	assert.Equal(t, "gpt-4o", cfg.Models.Generation.Model)
	assert.InDelta(t, 0.2, cfg.Models.Generation.Temperature, 0.001)
	assert.Equal(t, "gpt-4o-mini", cfg.Models.Analysis.Model)

	assert.Equal(t, "python:3.12-alpine", cfg.Sandbox.Image)
	assert.Equal(t, 9000, cfg.Sandbox.ContainerPort)
	assert.Equal(t, time.Second, cfg.Sandbox.SettleDelay)
	assert.Equal(t, 20*time.Second, cfg.Sandbox.ProbeDeadline)

	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 128, cfg.Pipeline.QueueSize)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// 未覆盖的值保持默认
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/nonexistent/config.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("DEMOFORGE_SERVER_HTTP_PORT", "7070")
	t.Setenv("DEMOFORGE_DATABASE_DRIVER", "sqlite")
	t.Setenv("DEMOFORGE_DATABASE_NAME", "test.db")
	t.Setenv("DEMOFORGE_SANDBOX_SETTLE_DELAY", "2s")
	t.Setenv("DEMOFORGE_MODELS_GENERATION_API_KEY", "sk-test")
	t.Setenv("DEMOFORGE_PIPELINE_WORKERS", "2")
	t.Setenv("DEMOFORGE_REDIS_ENABLED", "true")
	t.Setenv("DEMOFORGE_LOG_OUTPUT_PATHS", "stdout, /var/log/demoforge.log")
	t.Setenv("DEMOFORGE_SERVER_CORS_ALLOWED_ORIGINS", "https://app.demoforge.dev,https://staging.demoforge.dev")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "test.db", cfg.Database.Name)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.SettleDelay)
	assert.Equal(t, "sk-test", cfg.Models.Generation.APIKey)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"stdout", "/var/log/demoforge.log"}, cfg.Log.OutputPaths)
	assert.Equal(t, []string{"https://app.demoforge.dev", "https://staging.demoforge.dev"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8888\n"), 0644))

	t.Setenv("DEMOFORGE_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	// 环境变量优先于 YAML
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("DF_SERVER_HTTP_PORT", "6060")

	cfg, err := NewLoader().WithEnvPrefix("DF").Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.HTTPPort)
}

func TestLoader_ValidatorFailure(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

// --- 校验测试 ---

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	t.Run("invalid http port", func(t *testing.T) {
		c := DefaultConfig()
		c.Server.HTTPPort = 0
		assert.Error(t, c.Validate())
	})

	t.Run("zero workers", func(t *testing.T) {
		c := DefaultConfig()
		c.Pipeline.Workers = 0
		assert.Error(t, c.Validate())
	})

	t.Run("missing sandbox image", func(t *testing.T) {
		c := DefaultConfig()
		c.Sandbox.Image = ""
		assert.Error(t, c.Validate())
	})

	t.Run("probe backoff below one", func(t *testing.T) {
		c := DefaultConfig()
		c.Sandbox.ProbeBackoff = 0.5
		assert.Error(t, c.Validate())
	})

	t.Run("auth enabled without secret", func(t *testing.T) {
		c := DefaultConfig()
		c.Auth.Enabled = true
		c.Auth.JWTSecret = ""
		assert.Error(t, c.Validate())
	})

	t.Run("auth enabled with public key only", func(t *testing.T) {
		c := DefaultConfig()
		c.Auth.Enabled = true
		c.Auth.JWTPublicKey = "-----BEGIN PUBLIC KEY-----\n...\n-----END PUBLIC KEY-----"
		assert.NoError(t, c.Validate())
	})

	t.Run("prompt budget ratio out of range", func(t *testing.T) {
		c := DefaultConfig()
		c.Models.PromptBudgetRatio = 1.5
		assert.Error(t, c.Validate())
	})
}

// --- DSN 测试 ---

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "demoforge", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=demoforge sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "demoforge"}
	assert.Equal(t, "u:p@tcp(db:3306)/demoforge?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "demoforge.db"}
	assert.Equal(t, "demoforge.db", lite.DSN())

	unknown := DatabaseConfig{Driver: "oracle"}
	assert.Equal(t, "", unknown.DSN())
}

func TestDatabaseConfig_MigrationURL(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "demoforge", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/demoforge?sslmode=disable", pg.MigrationURL())

	lite := DatabaseConfig{Driver: "sqlite", Name: "demoforge.db"}
	assert.Equal(t, "file:demoforge.db?mode=rwc", lite.MigrationURL())
}
