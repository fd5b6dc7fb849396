package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"

	"github.com/BaSui01/demoforge/api/handlers"
	"github.com/BaSui01/demoforge/blob"
	"github.com/BaSui01/demoforge/config"
	"github.com/BaSui01/demoforge/internal/cache"
	"github.com/BaSui01/demoforge/internal/database"
	"github.com/BaSui01/demoforge/internal/metrics"
	"github.com/BaSui01/demoforge/internal/server"
	"github.com/BaSui01/demoforge/internal/telemetry"
	"github.com/BaSui01/demoforge/llm"
	"github.com/BaSui01/demoforge/llm/providers/openaicompat"
	"github.com/BaSui01/demoforge/pipeline"
	"github.com/BaSui01/demoforge/sandbox"
	"github.com/BaSui01/demoforge/store"
)

// =============================================================================
// 🚀 DemoForge 服务器
// =============================================================================

// Server 把配置装配成可运行的服务进程：状态存储、Blob 存储、
// 模型客户端、沙箱、流水线与 HTTP/Metrics 双端口。
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	collector *metrics.Collector

	// 存储层
	poolManager  *database.PoolManager
	mongoClient  *mongo.Client
	cacheManager *cache.Manager
	stateStore   store.Store
	blobs        blob.Store

	// 流水线
	hub        *pipeline.Hub
	dispatcher *pipeline.Dispatcher
	sandboxes  *sandbox.DockerProvider

	// HTTP
	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器实例。otelProviders 可为 nil（遥测未启用或初始化失败）。
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otelProviders,
	}
}

// Start 装配并启动所有组件。启动顺序：指标采集器 → 存储层 →
// 流水线与处理器 → HTTP 服务器 → Metrics 服务器。
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("demoforge", s.logger)

	if err := s.initStorage(); err != nil {
		return err
	}

	handler := s.buildHandler()

	// HTTP 服务器
	httpCfg := server.FromServerConfig(s.cfg.Server, s.cfg.Server.HTTPPort)
	s.httpManager = server.NewManager(handler, httpCfg, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// Metrics 服务器（独立端口，不过中间件链）
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", promhttp.Handler())
	metricsCfg := server.FromServerConfig(s.cfg.Server, s.cfg.Server.MetricsPort)
	s.metricsManager = server.NewManager(metricsMux, metricsCfg, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		// 回滚已启动的 HTTP 服务器
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpManager.Shutdown(ctx)
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("DemoForge server started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("auth_enabled", s.cfg.Auth.Enabled),
	)
	return nil
}

// initStorage 按配置装配 Blob 存储与状态存储。
// 状态存储优先级：Mongo（显式启用）→ 内存（driver=memory）→ GORM。
func (s *Server) initStorage() error {
	blobs, err := blob.NewFileStore(s.cfg.Blob.Dir, s.cfg.Blob.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to init blob store: %w", err)
	}
	s.blobs = blobs

	switch {
	case s.cfg.Mongo.Enabled:
		client, err := store.DialMongo(s.cfg.Mongo.URI, s.cfg.Mongo.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect mongo: %w", err)
		}
		s.mongoClient = client
		ms := store.NewMongoStore(client, s.cfg.Mongo.Database)
		// 唯一索引是 Ensure 幂等性的底座，启动时必须建好
		idxCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = ms.EnsureIndexes(idxCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to ensure mongo indexes: %w", err)
		}
		s.stateStore = ms
		s.logger.Info("state store ready", zap.String("backend", "mongo"))

	case s.cfg.Database.Driver == "memory":
		s.stateStore = store.NewMemoryStore()
		s.logger.Warn("memory state store configured; records will not survive restarts")

	default:
		db, err := database.Open(s.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		// AutoMigrate 兜底建表；生产模式下 migrate 子命令才是权威迁移路径
		if err := store.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
		pm, err := database.NewPoolManager(db, database.PoolConfigFromDatabase(s.cfg.Database), s.logger)
		if err != nil {
			return fmt.Errorf("failed to init connection pool: %w", err)
		}
		pm.SetCollector(s.collector)
		s.poolManager = pm
		s.stateStore = store.NewGormStore(db)
		s.logger.Info("state store ready", zap.String("backend", s.cfg.Database.Driver))
	}

	// Redis 终态记录读缓存（可选）
	if s.cfg.Redis.Enabled {
		manager, err := cache.NewManager(cache.FromRedisConfig(s.cfg.Redis), s.logger)
		if err != nil {
			return fmt.Errorf("failed to init redis cache: %w", err)
		}
		s.cacheManager = manager
		records := cache.NewRecordCache(manager, s.cfg.Redis.RecordTTL, s.logger)
		s.stateStore = cache.WrapStore(s.stateStore, records, s.collector)
		s.logger.Info("record read cache enabled", zap.String("addr", s.cfg.Redis.Addr))
	}

	return nil
}

// buildHandler 装配模型客户端、沙箱、流水线与全部 HTTP 处理器，
// 返回套好中间件链的根 Handler。
func (s *Server) buildHandler() http.Handler {
	cfg := s.cfg
	logger := s.logger

	// 模型客户端：分析与生成各一个端点
	analysisProvider := openaicompat.New(openaicompat.Config{
		ProviderName: cfg.Models.Analysis.Provider,
		APIKey:       cfg.Models.Analysis.APIKey,
		BaseURL:      cfg.Models.Analysis.BaseURL,
		DefaultModel: cfg.Models.Analysis.Model,
		Timeout:      cfg.Models.Analysis.Timeout,
	}, logger.With(zap.String("model_role", "analysis")))

	generationProvider := openaicompat.New(openaicompat.Config{
		ProviderName: cfg.Models.Generation.Provider,
		APIKey:       cfg.Models.Generation.APIKey,
		BaseURL:      cfg.Models.Generation.BaseURL,
		DefaultModel: cfg.Models.Generation.Model,
		Timeout:      cfg.Models.Generation.Timeout,
	}, logger.With(zap.String("model_role", "generation")))

	analyzer := llm.NewModelAnalyzer(analysisProvider, llm.AnalyzerOptions{
		Model:       cfg.Models.Analysis.Model,
		MaxTokens:   cfg.Models.Analysis.MaxTokens,
		Temperature: cfg.Models.Analysis.Temperature,
	}, logger)

	// 沙箱与流水线
	s.sandboxes = sandbox.NewDockerProvider(cfg.Sandbox.DockerBinary, logger)
	s.hub = pipeline.NewHub(logger)

	ingestor := pipeline.NewIngestor(s.stateStore.Documents(), s.blobs, analyzer, s.hub, s.collector, logger)
	executor := pipeline.NewExecutor(s.stateStore.Artifacts(), s.blobs, s.sandboxes, cfg.Sandbox, s.hub, s.collector, logger)
	s.dispatcher = pipeline.NewDispatcher(cfg.Pipeline, ingestor, executor, s.collector, logger)

	generator := pipeline.NewGenerator(
		s.stateStore.Documents(),
		s.stateStore.Artifacts(),
		generationProvider,
		s.dispatcher,
		cfg.Models.Generation,
		cfg.Models.PromptBudgetRatio,
		s.hub,
		s.collector,
		logger,
	)

	ensurer := store.NewOwnerEnsurer(s.stateStore.Owners())

	// 处理器
	documentsHandler := handlers.NewDocumentsHandler(
		s.stateStore.Documents(), s.blobs, ensurer, s.dispatcher,
		cfg.Server.MaxUploadBytes, logger,
	)
	artifactsHandler := handlers.NewArtifactsHandler(
		s.stateStore.Artifacts(), s.stateStore.Documents(), s.blobs,
		ensurer, generator, logger,
	)
	blobsHandler := handlers.NewBlobsHandler(s.blobs, logger)
	statusHandler := handlers.NewStatusHandler(s.hub, ensurer, wsOriginPatterns(cfg.Server.CORSAllowedOrigins), logger)

	healthHandler := handlers.NewHealthHandler(logger)
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("database", s.stateStore.HealthCheck))
	if s.cacheManager != nil {
		healthHandler.RegisterCheck(handlers.NewPingHealthCheck("cache", s.cacheManager.Ping))
	}
	healthHandler.RegisterCheck(handlers.NewPingHealthCheck("sandbox", s.sandboxes.Ping))

	// 路由
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", healthHandler.HandleReady)
	mux.HandleFunc("GET /version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/v1/documents", documentsHandler.HandleUpload)
	mux.HandleFunc("GET /api/v1/documents", documentsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/documents/{id}", documentsHandler.HandleGet)

	mux.HandleFunc("POST /api/v1/artifacts", artifactsHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/artifacts", artifactsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/artifacts/{id}", artifactsHandler.HandleGet)

	mux.HandleFunc("GET /api/v1/blobs/{id}", blobsHandler.HandleGet)
	mux.HandleFunc("GET /api/v1/status/ws", statusHandler.HandleStatusWS)

	// 中间件链
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	// Blob 路径按前缀放行认证：演示页在浏览器中直接打开，无法携带
	// Authorization 头；内容寻址 ID（sha256）本身即为不可猜测的能力凭证
	skipAuthPaths := []string{
		"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics",
		"/api/v1/blobs/",
	}

	return Chain(mux,
		Recovery(logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
		CORS(cfg.Server.CORSAllowedOrigins),
		Identity(cfg.Auth, skipAuthPaths, logger),
		RateLimiter(rateLimiterCtx, float64(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst, logger),
	)
}

// wsOriginPatterns 把配置的完整跨域来源（含 scheme）转换成
// WebSocket 握手校验使用的主机名模式。
func wsOriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			patterns = append(patterns, origin)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// WaitForShutdown 阻塞到收到终止信号，然后按依赖反序优雅关闭。
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown incomplete", zap.Error(err))
	}
}

// Shutdown 按依赖反序关闭：先停止接收请求，再排空流水线，
// 最后释放存储连接与遥测。
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server...")

	var firstErr error
	record := func(stage string, err error) {
		if err == nil {
			return
		}
		s.logger.Warn("shutdown stage failed", zap.String("stage", stage), zap.Error(err))
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", stage, err)
		}
	}

	// 停掉限流器的后台清理协程
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 停止接收新请求（Manager.Shutdown 幂等，信号路径下 HTTP 服务器已关闭）
	if s.httpManager != nil {
		record("http server", s.httpManager.Shutdown(ctx))
	}
	if s.metricsManager != nil {
		record("metrics server", s.metricsManager.Shutdown(ctx))
	}

	// 2. 排空流水线：在途的提取/执行任务在 DrainTimeout 内跑完
	if s.dispatcher != nil {
		record("pipeline drain", s.dispatcher.Shutdown(ctx))
	}

	// 3. 断开状态推送连接
	if s.hub != nil {
		s.hub.Close()
	}

	// 4. 清理残留沙箱容器
	if s.sandboxes != nil {
		record("sandbox cleanup", s.sandboxes.Cleanup())
	}

	// 5. 释放存储连接
	if s.cacheManager != nil {
		record("cache close", s.cacheManager.Close())
	}
	if s.poolManager != nil {
		record("database close", s.poolManager.Close())
	}
	if s.mongoClient != nil {
		record("mongo disconnect", s.mongoClient.Disconnect(ctx))
	}

	// 6. 关闭遥测导出器
	if s.otel != nil {
		record("telemetry shutdown", s.otel.Shutdown(ctx))
	}

	s.logger.Info("server stopped")
	return firstErr
}
