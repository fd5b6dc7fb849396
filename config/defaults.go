// =============================================================================
// 📦 DemoForge 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Mongo:     DefaultMongoConfig(),
		Redis:     DefaultRedisConfig(),
		Blob:      DefaultBlobConfig(),
		Models:    DefaultModelsConfig(),
		Sandbox:   DefaultSandboxConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Auth:      DefaultAuthConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		MaxUploadBytes:  32 << 20, // 32 MB
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "demoforge",
		Password:        "",
		Name:            "demoforge",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Enabled:        false,
		URI:            "mongodb://localhost:27017",
		Database:       "demoforge",
		ConnectTimeout: 10 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		RecordTTL:    30 * time.Second,
	}
}

// DefaultBlobConfig 返回默认文件存储配置
func DefaultBlobConfig() BlobConfig {
	return BlobConfig{
		Dir:     "data/blobs",
		BaseURL: "http://localhost:8080",
	}
}

// DefaultModelsConfig 返回默认模型配置
func DefaultModelsConfig() ModelsConfig {
	return ModelsConfig{
		Analysis: ModelEndpointConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Timeout:     2 * time.Minute,
			MaxTokens:   8192,
			Temperature: 0.0,
		},
		Generation: ModelEndpointConfig{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Timeout:     3 * time.Minute,
			MaxTokens:   16384,
			Temperature: 0.4,
		},
		PromptBudgetRatio: 0.6,
	}
}

// DefaultSandboxConfig 返回默认沙箱配置
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		DockerBinary:  "docker",
		Image:         "python:3.12-slim",
		ContainerPort: 8000,
		MemoryLimit:   "256m",
		CPULimit:      "0.5",
		ExecTimeout:   30 * time.Second,
		SettleDelay:   500 * time.Millisecond,
		ProbeInterval: 250 * time.Millisecond,
		ProbeBackoff:  1.5,
		ProbeDeadline: 15 * time.Second,
	}
}

// DefaultPipelineConfig 返回默认流水线配置
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:           4,
		QueueSize:         64,
		ExtractionTimeout: 3 * time.Minute,
		ExecutionTimeout:  5 * time.Minute,
		DrainTimeout:      30 * time.Second,
	}
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:       false,
		JWTSecret:     "",
		DevSubjectKey: "dev|local",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "demoforge",
		SampleRate:   0.1,
	}
}
