package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mailboxgw/internal/config"
	"mailboxgw/internal/gateway"
	"mailboxgw/internal/mailbox"
	"mailboxgw/internal/middleware"
	"mailboxgw/internal/server"
)

// SetupRouter 配置所有路由
func SetupRouter(cfg *config.Config, client *mailbox.Client, log zerolog.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	// CORS 配置
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	auth := middleware.NewAuthenticator(cfg, log)
	h := gateway.NewHandler(client, auth, bucketLocation(cfg, client), log)

	// ----- 无需认证的路由 -----
	r.GET("/health", h.Health)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// ----- 需要认证的路由 -----
	protected := r.Group("/")
	protected.Use(auth.Require())
	{
		if auth.TokensEnabled() {
			protected.POST("/token", h.IssueToken)
		}

		protected.POST("/request", h.Submit)
		protected.GET("/status/:session/:id", h.CheckStatus)
		protected.GET("/requests", h.ListRequests)
		protected.GET("/responses/:session", h.ListResponses)

		protected.GET("/watch/:session/:id", server.StatusWatchHandler(client, server.WatchConfig{
			Interval:       cfg.Watch.Interval,
			Timeout:        cfg.Watch.Timeout,
			AllowedOrigins: cfg.Server.CORSOrigins,
		}, log))
	}

	return r
}

// bucketLocation 健康检查中展示的桶地址
func bucketLocation(cfg *config.Config, client *mailbox.Client) string {
	if cfg.Storage.Driver == config.DriverGCS {
		return "gs://" + cfg.BucketName()
	}
	return client.Store().URL("")
}
