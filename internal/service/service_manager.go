package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mailboxgw/internal/config"
	"mailboxgw/internal/mailbox"
	"mailboxgw/internal/protocol"
	"mailboxgw/internal/storage"
)

// Manager 统一服务管理器：持有对象存储和邮箱客户端
type Manager struct {
	cfg    *config.Config
	store  storage.ObjectStore
	client *mailbox.Client
	log    zerolog.Logger
}

// NewManager 按配置打开存储并创建邮箱客户端
func NewManager(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Manager, error) {
	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	m, err := NewManagerWithStore(cfg, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return m, nil
}

// NewManagerWithStore 使用现成的存储，测试和工具使用
func NewManagerWithStore(cfg *config.Config, store storage.ObjectStore, log zerolog.Logger) (*Manager, error) {
	encoder, err := protocol.NewEncoderFactory().GetEncoder(protocol.EncodingType(cfg.Storage.Codec))
	if err != nil {
		return nil, fmt.Errorf("初始化编码器失败: %w", err)
	}

	client := mailbox.NewClient(store, encoder,
		mailbox.WithRoot(cfg.Storage.Root),
		mailbox.WithLogger(log.With().Str("component", "mailbox").Logger()),
	)

	log.Info().
		Str("driver", store.Driver()).
		Str("codec", string(encoder.EncodingType())).
		Str("root", cfg.Storage.Root).
		Msg("服务管理器初始化完成")

	return &Manager{
		cfg:    cfg,
		store:  store,
		client: client,
		log:    log,
	}, nil
}

// GetMailboxClient 获取邮箱客户端
func (m *Manager) GetMailboxClient() *mailbox.Client {
	return m.client
}

// GetStore 获取对象存储
func (m *Manager) GetStore() storage.ObjectStore {
	return m.store
}

// Shutdown 关闭所有服务
func (m *Manager) Shutdown() error {
	m.log.Info().Msg("正在关闭服务管理器...")

	if err := m.store.Close(); err != nil {
		return fmt.Errorf("关闭对象存储失败: %w", err)
	}

	m.log.Info().Msg("服务管理器已关闭")
	return nil
}
