package server

import (
	"crypto/tls"
	"fmt"
)

// TLSConfig TLS配置
type TLSConfig struct {
	CertFile string `json:"cert_file"` // 证书文件路径
	KeyFile  string `json:"key_file"`  // 私钥文件路径
	Enabled  bool   `json:"enabled"`   // 是否启用TLS
}

// NewTLSConfig 创建TLS配置
func NewTLSConfig(certFile, keyFile string, enabled bool) *TLSConfig {
	return &TLSConfig{
		CertFile: certFile,
		KeyFile:  keyFile,
		Enabled:  enabled,
	}
}

// GetTLSConfig 获取标准TLS配置
func (c *TLSConfig) GetTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12, // 最低TLS 1.2
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// ValidateCertificates 验证证书文件
func (c *TLSConfig) ValidateCertificates() error {
	if !c.Enabled {
		return nil
	}

	if _, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile); err != nil {
		return fmt.Errorf("验证TLS证书失败: %w", err)
	}
	return nil
}
