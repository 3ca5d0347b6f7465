// RollingStock 车辆调度引擎服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/paiban/rollingstock/internal/broker"
	"github.com/paiban/rollingstock/internal/config"
	"github.com/paiban/rollingstock/internal/database"
	"github.com/paiban/rollingstock/internal/metrics"
	"github.com/paiban/rollingstock/internal/repository"
	"github.com/paiban/rollingstock/internal/security"
	"github.com/paiban/rollingstock/pkg/demo"
	"github.com/paiban/rollingstock/pkg/logger"
	"github.com/paiban/rollingstock/pkg/scheduler/constraint/builtin"
	"github.com/paiban/rollingstock/pkg/scheduler/session"
	"github.com/paiban/rollingstock/pkg/scheduler/solver"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// .env 不存在时忽略，.env.local 覆盖已有值
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if Version == "dev" && cfg.App.Version != "" {
		Version = cfg.App.Version
	}

	// 初始化日志
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.App.LogLevel
	logCfg.Format = cfg.App.LogFormat
	logger.Init(logCfg)

	fmt.Printf("RollingStock 车辆调度引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	if cfg.Metrics.Enabled {
		metrics.RegisterDefault()
	}

	// 运行归档（可选）
	var db *database.DB
	var runs *repository.RunRepository
	if cfg.Database.Enabled() {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库连接失败")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}
		runs = repository.NewRunRepository(db)
	}

	events := newBroker(&cfg.Redis)

	// 求解会话
	weights := cfg.Solver.Weights
	sessions := session.NewManager(func() *solver.Solver {
		return solver.NewSolver(builtin.NewDefaultManager(weights), cfg.Solver.OptimizerConfig())
	}, cfg.Solver.StopTimeout)

	dataset, err := demo.ParseDataset(cfg.Solver.Dataset)
	if err != nil {
		logger.Fatal().Err(err).Msg("无效的演示数据集")
	}

	keys := security.NewAPIKeyManager()
	keys.LoadSpecs(cfg.API.Auth.Keys)

	var limiter *security.RateLimiter
	stopCleanup := make(chan struct{})
	if cfg.API.RateLimit > 0 {
		limiter = security.NewRateLimiter(cfg.API.RateLimit, cfg.API.Burst)
		go limiter.Run(stopCleanup)
	}

	router := newRouter(routerDeps{
		cfg:      cfg,
		sessions: sessions,
		broker:   events,
		runs:     runs,
		db:       db,
		keys:     keys,
		limiter:  limiter,
		demo:     demo.NewGenerator(cfg.Solver.DemoSeed),
		dataset:  dataset,
	})

	port := fmt.Sprintf("%d", cfg.App.Port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Str("port", port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("archive", runs != nil).
			Bool("redis", cfg.Redis.Enabled).
			Bool("auth", cfg.API.Auth.Enabled).
			Str("url", fmt.Sprintf("http://localhost:%s", port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	if err := sessions.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("求解运行未能按时停止")
	}
	close(stopCleanup)
	if err := events.Close(); err != nil {
		logger.Error().Err(err).Msg("关闭事件分发失败")
	}
	if db != nil {
		db.Close()
	}

	logger.Info().Msg("服务器已关闭")
}

// newBroker Redis 可用时跨实例分发事件，否则退回进程内分发
func newBroker(cfg *config.RedisConfig) broker.Broker {
	if !cfg.Enabled {
		return broker.NewMemoryBroker()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr()).Msg("Redis 不可用，使用进程内事件分发")
		_ = rdb.Close()
		return broker.NewMemoryBroker()
	}

	logger.Info().Str("addr", cfg.Addr()).Str("channel", cfg.Channel).Msg("Redis 事件分发已启用")
	return broker.NewAsyncBroker(broker.NewRedisBroker(rdb, cfg.Channel), cfg.PublishBuffer)
}
