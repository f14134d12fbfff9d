package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mailboxgw/internal/config"
	"mailboxgw/internal/logger"
	"mailboxgw/internal/router"
	"mailboxgw/internal/server"
	"mailboxgw/internal/service"
)

func newServeCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 网关",
		RunE: func(cmd *cobra.Command, args []string) error {
			// 读取配置
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "监听端口，覆盖配置")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceMgr, err := service.NewManager(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	r := router.SetupRouter(cfg, serviceMgr.GetMailboxClient(), log)
	httpServer := server.NewHTTPServer(cfg, r, log)
	errCh, err := httpServer.Start()
	if err != nil {
		_ = serviceMgr.Shutdown()
		return err
	}

	printBanner(log, cfg)

	// 等待退出信号或监听失败
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = serviceMgr.Shutdown()
			return fmt.Errorf("服务器启动失败: %w", err)
		}
	}

	log.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP 服务器关闭失败")
	}

	if err := serviceMgr.Shutdown(); err != nil {
		return err
	}

	log.Info().Msg("服务器已安全关闭")
	return nil
}

// printBanner 打印存储位置、用户和接口列表，密码只显示掩码
func printBanner(log zerolog.Logger, cfg *config.Config) {
	masked := strings.Repeat("*", len(cfg.Auth.Password))
	if cfg.Auth.PasswordHash != "" {
		masked = "(bcrypt)"
	}

	log.Info().
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Storage.Driver).
		Str("bucket", cfg.Storage.GCS.Bucket).
		Str("user", cfg.Auth.Username).
		Str("password", masked).
		Msg("邮箱网关已启动")

	endpoints := []string{
		"GET  /health                    - 健康检查",
		"POST /request                   - 提交请求",
		"GET  /status/<session>/<req>    - 查询请求状态",
		"GET  /requests                  - 列出待处理请求",
		"GET  /responses/<session>       - 列出会话的响应",
		"GET  /watch/<session>/<req>     - 订阅请求状态 (WebSocket)",
	}
	if cfg.JWT.Secret != "" {
		endpoints = append(endpoints, "POST /token                     - 签发 bearer token")
	}
	if cfg.Metrics.Enabled {
		endpoints = append(endpoints, "GET  /metrics                   - Prometheus 指标")
	}
	for _, e := range endpoints {
		log.Info().Msg("  " + e)
	}
}
