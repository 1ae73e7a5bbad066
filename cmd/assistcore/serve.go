package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AssistBotPlatform/AssistCore/ai"
	"github.com/AssistBotPlatform/AssistCore/platform/web"
)

const (
	shutdownTimeout  = 10 * time.Second
	cleanupInterval  = time.Minute
	redisDialTimeout = 5 * time.Second
)

// newServeCmd 构建 serve 子命令：加载配置并启动 HTTP 服务。
func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动对话后端 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/assistcore.yaml", "配置文件路径")

	return cmd
}

// runServe 完成全部装配并阻塞运行，收到 SIGINT/SIGTERM 后优雅退出。
//
// 装配顺序：
//
//	[加载配置] -> [构建存储与分配器] -> [构建拼装器]
//	     |
//	     v
//	[初始化模型后端] --失败--> [记录日志，携带 nil 继续服务]
//	     |
//	     v
//	[启动 HTTP + 内存存储清扫器] -> [等待信号] -> [优雅关停]
func runServe(ctx context.Context, configPath string) error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := ai.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, allocator, sweep, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	assembler := ai.NewAssembler(cfg.Persona, cfg.Shots)

	// 模型初始化失败不阻止启动：进程照常服务，
	// 对话请求会得到 "model not initialized"。
	var invoker ai.Invoker
	modelCfg := cfg.FindModel(cfg.DefaultModel)
	client, err := ai.NewBackendClient(ctx, *modelCfg)
	if err != nil {
		logger.Error().Err(err).Str("model", cfg.DefaultModel).Msg("model backend init failed")
	} else {
		invoker = client
	}

	service := ai.NewService(store, allocator, assembler, invoker)
	server, err := web.NewServer(service,
		web.WithLogger(logger),
		web.WithAllowedOrigins(cfg.AllowedOrigins),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sweep != nil {
		go sweep(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("store", cfg.Store.Backend).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

// buildStore 按配置构建历史存储与会话 ID 分配器。
// 返回的 sweep 在内存后端配置了 session_ttl 时非空，由调用方周期执行。
func buildStore(ctx context.Context, cfg *ai.Config, logger zerolog.Logger) (ai.HistoryStore, ai.Allocator, func(context.Context), error) {
	switch cfg.Store.Backend {
	case ai.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Store.Redis.Addr,
			Password:    resolveSecret(cfg.Store.Redis.Password),
			DB:          cfg.Store.Redis.DB,
			DialTimeout: redisDialTimeout,
		})
		// 启动期探活只告警不中断：Redis 恢复后服务自动可用。
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Store.Redis.Addr).Msg("redis unreachable at startup")
		}

		var storeOpts []ai.RedisStoreOption
		if cfg.Store.Redis.HistoryPrefix != "" {
			storeOpts = append(storeOpts, ai.WithHistoryPrefix(cfg.Store.Redis.HistoryPrefix))
		}
		var allocOpts []ai.CounterAllocatorOption
		if cfg.Store.Redis.CounterKey != "" {
			allocOpts = append(allocOpts, ai.WithCounterKey(cfg.Store.Redis.CounterKey))
		}
		return ai.NewRedisStore(client, storeOpts...), ai.NewCounterAllocator(client, allocOpts...), nil, nil

	case ai.StoreBackendFile:
		store, err := ai.NewFileStore(cfg.Store.FileDir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("file store: %w", err)
		}
		return store, ai.NewMemoryAllocator(), nil, nil

	default:
		ttl := time.Duration(cfg.Store.SessionTTL)
		store := ai.NewMemoryStore(ai.WithSessionTTL(ttl))
		var sweep func(context.Context)
		if ttl > 0 {
			sweep = func(ctx context.Context) {
				ticker := time.NewTicker(cleanupInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						store.Cleanup()
					}
				}
			}
		}
		return store, ai.NewMemoryAllocator(), sweep, nil
	}
}

// resolveSecret 解析 "env:NAME" 形式的敏感配置。
func resolveSecret(value string) string {
	const prefix = "env:"
	if len(value) > len(prefix) && value[:len(prefix)] == prefix {
		return os.Getenv(value[len(prefix):])
	}
	return value
}
