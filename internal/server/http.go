package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mailboxgw/internal/config"
)

// HTTPServer 网关 HTTP/HTTPS 服务器
type HTTPServer struct {
	srv *http.Server
	tls *TLSConfig
	log zerolog.Logger
}

// NewHTTPServer 创建服务器；watch 连接是长连接，因此不设置 WriteTimeout
func NewHTTPServer(cfg *config.Config, handler http.Handler, log zerolog.Logger) *HTTPServer {
	tlsCfg := NewTLSConfig(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, cfg.Server.TLS.Enabled)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if tlsCfg.Enabled {
		srv.TLSConfig = tlsCfg.GetTLSConfig()
	}

	return &HTTPServer{srv: srv, tls: tlsCfg, log: log}
}

// Start 在后台启动，监听失败通过返回的通道报告
func (s *HTTPServer) Start() (<-chan error, error) {
	if err := s.tls.ValidateCertificates(); err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.tls.Enabled {
			s.log.Info().Str("addr", s.srv.Addr).Str("cert", s.tls.CertFile).Msg("HTTPS服务器已启动")
			err = s.srv.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		} else {
			s.log.Info().Str("addr", s.srv.Addr).Msg("HTTP服务器已启动")
			err = s.srv.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
