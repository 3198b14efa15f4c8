package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"harvest-engine/internal/api/handlers"
	"harvest-engine/internal/api/routes"
	"harvest-engine/internal/background"
	"harvest-engine/internal/config"
	"harvest-engine/internal/dedup"
	"harvest-engine/internal/grpc/server"
	"harvest-engine/internal/llm"
	"harvest-engine/internal/logging"
	"harvest-engine/internal/mux"
	"harvest-engine/internal/orchestrator"
	"harvest-engine/internal/scheduler"
	"harvest-engine/internal/scraper"
	"harvest-engine/internal/scraper/captcha"
	"harvest-engine/internal/scraper/engines/firecrawl"
	"harvest-engine/internal/scraper/engines/headed"
	"harvest-engine/internal/scraper/fetcher"
	"harvest-engine/internal/scraper/workers"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeLogging(cfg); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting harvest engine", map[string]interface{}{"version": handlers.Version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared outbound plumbing
	limiter := workers.NewRateLimiter(cfg)
	defer limiter.Stop()
	pool := workers.NewWorkerPool(cfg)
	httpFetcher := fetcher.New(cfg, limiter)

	llmManager := llm.NewManager(cfg)
	llmManager.Start(ctx)

	deps := scraper.Dependencies{
		Fetcher: httpFetcher,
		Solver:  captcha.NewTwoCaptchaSolver(cfg),
	}
	if llmManager.IsConfigured() {
		deps.LLM = llmManager
	}
	if renderer := firecrawl.NewRenderer(cfg); renderer.Enabled() {
		deps.Renderer = renderer
	}
	var browserPool *headed.RodPool
	if cfg.Browser.Enabled {
		browserPool = headed.NewRodPool(cfg)
		deps.Browser = browserPool
	}

	strategies, skipped := scraper.NewStrategyFactory(cfg, deps).BuildAll()
	for _, err := range skipped {
		logger.Warn("Strategy unavailable", map[string]interface{}{"reason": err.Error()})
	}
	engine := scraper.NewEngine(cfg, pool, strategies...)

	var seen dedup.SeenStore
	if cfg.Dedup.UseRedis {
		redisStore := dedup.NewRedisSeenStore(cfg)
		if err := redisStore.Ping(ctx); err != nil {
			logger.Warn("Redis unavailable, cross-instance dedup disabled", map[string]interface{}{"error": err.Error()})
			_ = redisStore.Close()
		} else {
			seen = redisStore
			defer redisStore.Close()
		}
	}

	probes := orchestrator.Probes{LLM: llmManager, QueueDepth: pool.QueueDepth}
	if browserPool != nil {
		probes.Browser = browserPool
	}
	orch := orchestrator.New(cfg, engine, dedup.New(cfg, seen), probes)

	taskManager := background.NewTaskManager(orch, 24*time.Hour)
	if err := taskManager.Start(ctx); err != nil {
		logger.Fatal("Failed to start task manager", map[string]interface{}{"error": err.Error()})
	}

	var cronScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		cronScheduler = scheduler.New(cfg, orch)
		if err := cronScheduler.Start(ctx); err != nil {
			logger.Fatal("Failed to start scheduler", map[string]interface{}{"error": err.Error()})
		}
	}

	grpcServer := server.NewServer(cfg, orch)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	routeDeps := routes.Dependencies{
		Config:       cfg,
		Orchestrator: orch,
		Tasks:        taskManager,
		Pool:         pool,
		Limiter:      limiter,
		GRPCMetrics:  grpcServer.Metrics(),
	}
	if browserPool != nil {
		routeDeps.Browser = browserPool
	}
	routes.SetupRoutes(e, routeDeps)

	multiplexer := mux.NewMultiplexer(cfg, grpcServer, e)
	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := multiplexer.Start(address); err != nil {
		logger.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...", nil)
	case err := <-multiplexer.Errors():
		logger.Error("Server failed, shutting down", map[string]interface{}{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// no new batches first, then drain requests, then background work, then the browser
	if cronScheduler != nil {
		cronScheduler.Stop(shutdownCtx)
	}
	if err := multiplexer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping server", map[string]interface{}{"error": err.Error()})
	}
	if err := taskManager.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping task manager", map[string]interface{}{"error": err.Error()})
	}
	if browserPool != nil {
		if err := browserPool.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down browser pool", map[string]interface{}{"error": err.Error()})
		}
	}

	logger.Info("Server shutdown complete", nil)
}
