package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/BaSui01/agentchat/agent/conversation"
	"github.com/BaSui01/agentchat/api/handlers"
	"github.com/BaSui01/agentchat/config"
	"github.com/BaSui01/agentchat/internal/cache"
	"github.com/BaSui01/agentchat/internal/metrics"
	"github.com/BaSui01/agentchat/internal/server"
	"github.com/BaSui01/agentchat/internal/telemetry"
	"github.com/BaSui01/agentchat/llm"
	llmfactory "github.com/BaSui01/agentchat/llm/factory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 组装 AgentChat 的全部组件
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers

	collector     *metrics.Collector
	registry      *llm.ProviderRegistry
	conversations *conversation.Manager
	cache         *cache.Manager
	presets       *cache.PresetStore

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 创建服务器实例；组件在 Init 中构建
func NewServer(cfg *config.Config, logger *zap.Logger, tel *telemetry.Providers) *Server {
	return &Server{cfg: cfg, logger: logger, telemetry: tel}
}

// =============================================================================
// 🔧 组件初始化
// =============================================================================

// Init 构建 provider registry、会话管理器与可选的 Redis 预设存储。
// collector 为 nil 时跳过 Prometheus 指标。
func (s *Server) Init(collector *metrics.Collector) error {
	s.collector = collector

	var regOpts []llmfactory.RegistryOption
	if collector != nil {
		regOpts = append(regOpts, llmfactory.WithMetricsRecorder(collector))
	}
	s.registry = llmfactory.NewRegistryFromConfig(s.cfg.LLM.Registry(), s.logger, regOpts...)
	if s.registry.Len() == 0 {
		return errors.New("no llm provider could be initialized")
	}

	newSelector, err := s.selectorFactory()
	if err != nil {
		return err
	}

	opts := conversation.ManagerOptions{
		NewSelector: newSelector,
		Generator: conversation.NewLLMGenerator(s.registry, s.logger,
			conversation.WithContextTokenLimit(s.cfg.Scheduler.MaxContextTokens),
			conversation.WithMaxReplyTokens(s.cfg.Scheduler.MaxReplyTokens),
		),
		TickInterval:  s.cfg.Scheduler.TickInterval,
		CommandPrefix: s.cfg.Scheduler.CommandPrefix,
		Tracer:        s.telemetry.Tracer(),
		Logger:        s.logger,
	}
	if collector != nil {
		opts.Observer = collector
	}
	s.conversations = conversation.NewManager(opts)

	if s.cfg.Redis.Enabled {
		if err := s.initPresets(); err != nil {
			return err
		}
	}

	s.logger.Info("components initialized",
		zap.Strings("providers", s.registry.List()),
		zap.String("selector", s.cfg.Scheduler.Selector),
		zap.Bool("presets", s.presets != nil))
	return nil
}

// selectorFactory 按配置返回每个会话的 SpeakerSelector 构造函数。
// 主持人调用使用会话自带的凭据（若提供）。
func (s *Server) selectorFactory() (func(conversation.ConversationConfig) conversation.SpeakerSelector, error) {
	if s.cfg.Scheduler.Selector != config.SelectorLLM {
		return func(conversation.ConversationConfig) conversation.SpeakerSelector {
			return conversation.RoundRobinSelector{}
		}, nil
	}

	mod := s.cfg.LLM.Moderator
	kind, err := conversation.ParseProviderKind(mod.Provider)
	if err != nil {
		return nil, fmt.Errorf("moderator: %w", err)
	}
	provider, ok := s.registry.Get(string(kind))
	if !ok {
		return nil, fmt.Errorf("moderator provider %q is not registered", kind)
	}
	return func(cfg conversation.ConversationConfig) conversation.SpeakerSelector {
		return conversation.NewLLMSelector(provider, s.logger,
			conversation.WithSelectorModel(mod.Model),
			conversation.WithSelectorCredential(cfg.Credentials.APIKey(kind)),
		)
	}, nil
}

func (s *Server) initPresets() error {
	rc := s.cfg.Redis
	cc := cache.DefaultConfig()
	cc.Addr = rc.Addr
	cc.Password = rc.Password
	cc.DB = rc.DB
	cc.PoolSize = rc.PoolSize
	cc.TLS = rc.TLS
	cc.KeyPrefix = rc.KeyPrefix
	cc.DefaultTTL = rc.PresetTTL

	m, err := cache.NewManager(cc, s.logger)
	if err != nil {
		return fmt.Errorf("preset store: %w", err)
	}
	s.cache = m

	var recorder cache.HitRecorder
	if s.collector != nil {
		recorder = s.collector
	}
	s.presets = cache.NewPresetStore(m, rc.PresetTTL, recorder, s.logger)
	return nil
}

// =============================================================================
// 🌐 HTTP
// =============================================================================

// Handler 注册全部路由并包装中间件链。ctx 控制限流器后台清理的生命周期。
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(s.logger)
	health.RegisterOptionalCheck(handlers.NewProviderHealthCheck(s.registry))
	if s.cache != nil {
		health.RegisterCheck(handlers.NewFuncCheck("redis", s.cache.Ping))
	}
	health.RegisterRoutes(mux, Version, BuildTime, GitCommit)

	var gauge handlers.ActiveGauge
	if s.collector != nil {
		gauge = s.collector
	}
	var presets handlers.PresetReader
	if s.presets != nil {
		presets = s.presets
		handlers.NewPresetHandler(s.presets, s.logger).RegisterRoutes(mux)
	}
	handlers.NewConversationHandler(s.conversations, presets, gauge, s.logger).RegisterRoutes(mux)
	handlers.NewStreamHandler(s.conversations, originHosts(s.cfg.Server.CORSAllowedOrigins), s.logger).RegisterRoutes(mux)

	sc := s.cfg.Server
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
	}
	if s.collector != nil {
		chain = append(chain, MetricsMiddleware(s.collector))
	}
	chain = append(chain,
		OTelTracing(),
		CORS(sc.CORSAllowedOrigins),
		RateLimiter(ctx, float64(sc.RateLimitRPS), sc.RateLimitBurst, s.logger),
	)
	if sc.JWTSecret != "" {
		chain = append(chain, JWTAuth(JWTConfig{
			Secret:   sc.JWTSecret,
			Issuer:   sc.JWTIssuer,
			Required: len(sc.APIKeys) == 0,
		}, publicPaths, s.logger))
	}
	if len(sc.APIKeys) > 0 {
		chain = append(chain, APIKeyAuth(sc.APIKeys, publicPaths, s.logger))
	}
	if sc.JWTSecret == "" && len(sc.APIKeys) == 0 {
		s.logger.Warn("no api keys or jwt secret configured, API is unauthenticated")
	}

	return Chain(mux, chain...)
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动 API 与指标服务并阻塞到 ctx 结束。关闭时先停止接收请求，
// 再并发执行关闭钩子（会话、Redis、指标服务、遥测）。
func (s *Server) Run(ctx context.Context) error {
	limiterCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := s.cfg.Server
	s.httpManager = server.NewManager("api", s.Handler(limiterCtx), server.Config{
		Addr:            fmt.Sprintf(":%d", sc.HTTPPort),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     2 * sc.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: sc.ShutdownTimeout,
	}, s.logger)

	s.httpManager.OnShutdown("conversations", s.conversations.Close)
	if s.cache != nil {
		s.httpManager.OnShutdown("redis", func(context.Context) error { return s.cache.Close() })
	}

	if s.collector != nil {
		if err := s.startMetricsServer(); err != nil {
			return err
		}
		s.httpManager.OnShutdown("metrics", s.metricsManager.Shutdown)
	}
	s.httpManager.OnShutdown("telemetry", s.telemetry.Shutdown)

	s.logger.Info("agentchat serving",
		zap.Int("http_port", sc.HTTPPort),
		zap.Int("metrics_port", sc.MetricsPort))
	return s.httpManager.Run(ctx)
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	sc := s.cfg.Server
	s.metricsManager = server.NewManager("metrics", mux, server.Config{
		Addr:            fmt.Sprintf(":%d", sc.MetricsPort),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.ReadTimeout,
		ShutdownTimeout: sc.ShutdownTimeout,
	}, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// originHosts 把 CORS 来源（https://app.example.com）转换为 WebSocket
// 接受的 host 模式（app.example.com）
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}
