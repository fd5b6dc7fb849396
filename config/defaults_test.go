package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	// Each sub-config should be non-zero
	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, MongoConfig{}, cfg.Mongo)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, BlobConfig{}, cfg.Blob)
	assert.NotEqual(t, ModelsConfig{}, cfg.Models)
	assert.NotEqual(t, SandboxConfig{}, cfg.Sandbox)
	assert.NotEqual(t, PipelineConfig{}, cfg.Pipeline)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Positive(t, cfg.ReadTimeout)
	assert.Positive(t, cfg.WriteTimeout)
	assert.Positive(t, cfg.ShutdownTimeout)
	assert.Positive(t, cfg.MaxUploadBytes)
}

func TestDefaultModelsConfig(t *testing.T) {
	cfg := DefaultModelsConfig()

	assert.Equal(t, "gpt-4o", cfg.Generation.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.Analysis.Model)
	assert.Positive(t, cfg.Generation.MaxTokens)
	assert.Positive(t, cfg.Analysis.Timeout)
	assert.InDelta(t, 0.6, cfg.PromptBudgetRatio, 0.001)
}

func TestDefaultSandboxConfig(t *testing.T) {
	cfg := DefaultSandboxConfig()

	assert.Equal(t, "docker", cfg.DockerBinary)
	assert.NotEmpty(t, cfg.Image)
	assert.Equal(t, 8000, cfg.ContainerPort)
	assert.Positive(t, cfg.SettleDelay)
	assert.Positive(t, cfg.ProbeInterval)
	assert.Positive(t, cfg.ProbeDeadline)
	assert.GreaterOrEqual(t, cfg.ProbeBackoff, 1.0)
	// 探测时限必须大于初始等待，否则退避毫无意义
	assert.Greater(t, cfg.ProbeDeadline, cfg.SettleDelay)
}

func TestDefaultAuthConfig(t *testing.T) {
	cfg := DefaultAuthConfig()

	// 默认关闭认证，使用开发者身份
	assert.False(t, cfg.Enabled)
	assert.NotEmpty(t, cfg.DevSubjectKey)
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.Positive(t, cfg.ExtractionTimeout)
	assert.Positive(t, cfg.ExecutionTimeout)
	assert.Positive(t, cfg.DrainTimeout)
}
