package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mailboxgw/internal/constants"
	"mailboxgw/internal/model"
	"mailboxgw/internal/protocol"
	"mailboxgw/internal/storage"
)

// Client 邮箱客户端，用 put/get/list 三种原语实现提交、状态查询和列举。
// 无进程内共享可变状态，可被并发调用；同步点是对象存储本身。
type Client struct {
	store   storage.ObjectStore
	encoder protocol.MessageEncoder
	scheme  Scheme
	ids     IDSource
	now     func() time.Time
	log     zerolog.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithRoot 设置桶内前缀
func WithRoot(root string) Option {
	return func(c *Client) {
		c.scheme.Root = NewScheme(root, "").Root
	}
}

// WithClock 设置时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithIDSource 设置 id 生成器
func WithIDSource(ids IDSource) Option {
	return func(c *Client) {
		c.ids = ids
	}
}

// WithLogger 设置日志器
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient 创建邮箱客户端
func NewClient(store storage.ObjectStore, encoder protocol.MessageEncoder, opts ...Option) *Client {
	c := &Client{
		store:   store,
		encoder: encoder,
		scheme:  NewScheme("", encoder.Extension()),
		ids:     timestampIDs{},
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scheme 客户端使用的路径方案
func (c *Client) Scheme() Scheme {
	return c.scheme
}

// Store 底层对象存储
func (c *Client) Store() storage.ObjectStore {
	return c.store
}

// SubmissionResult submit 结果
type SubmissionResult struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	SessionID string `json:"session_id"`
	GCSPath   string `json:"gcs_path"`
	BundleID  string `json:"bundle_id"`
}

// Submit 在 requests 区域写入一条新请求。
// 不幂等：每次调用都是新的工作项，生成新的 message id。
func (c *Client) Submit(ctx context.Context, bundleID, sessionID string) (*SubmissionResult, error) {
	if bundleID == "" {
		return nil, &ValidationError{Field: "bundle_id", Reason: "required"}
	}

	now := c.now().UTC()
	if sessionID == "" {
		sessionID = c.ids.SessionID(now)
	} else if err := ValidateIdentifier("session_id", sessionID); err != nil {
		return nil, err
	}
	requestID := c.ids.MessageID(now)

	key, err := c.scheme.Path(RegionRequests, sessionID, requestID)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		SchemaVersion: constants.SchemaVersion,
		Timestamp:     now,
		From:          sessionID,
		SessionID:     sessionID,
		MessageID:     requestID,
		Type:          model.MessageTypeRequest,
		Payload: model.RequestPayload{
			BundleID: bundleID,
			Priority: model.PriorityNormal,
		},
	}
	data, err := c.encoder.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	if err := c.store.Put(ctx, key, data); err != nil {
		c.log.Error().Err(err).Str("path", key).Msg("请求上传失败")
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	c.log.Info().
		Str("session_id", sessionID).
		Str("request_id", requestID).
		Str("bundle_id", bundleID).
		Msg("请求已提交")

	return &SubmissionResult{
		Status:    constants.StatusSubmitted,
		RequestID: requestID,
		SessionID: sessionID,
		GCSPath:   c.store.URL(key),
		BundleID:  bundleID,
	}, nil
}

// CheckStatus 按决策表依次探测各区域，第一个存在的对象决定状态
func (c *Client) CheckStatus(ctx context.Context, sessionID, messageID string) (*StatusResult, error) {
	for _, p := range statusProbes {
		key, err := c.scheme.Path(p.region, sessionID, messageID)
		if err != nil {
			return nil, err
		}

		data, err := c.store.Get(ctx, key)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		result := &StatusResult{
			SessionID: sessionID,
			MessageID: messageID,
			State:     p.state,
			Message:   p.message,
		}
		if p.state == StateCompleted {
			result.Response = data
			result.ResponsePath = c.store.URL(key)
		}
		return result, nil
	}

	return &StatusResult{
		SessionID: sessionID,
		MessageID: messageID,
		State:     StateNotFound,
		Message:   constants.MsgNotFound,
	}, nil
}

// Request 读取并解码 requests 区域中的原始请求；不存在时返回 storage.ErrObjectNotFound
func (c *Client) Request(ctx context.Context, sessionID, requestID string) (*model.Message, error) {
	key, err := c.scheme.Path(RegionRequests, sessionID, requestID)
	if err != nil {
		return nil, err
	}

	data, err := c.store.Get(ctx, key)
	if storage.IsNotFound(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	msg, err := c.encoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("解析请求 %s 失败: %w", key, err)
	}
	return msg, nil
}

// RequestEntry 待处理请求
type RequestEntry struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	GCSPath   string `json:"gcs_path"`
}

// RequestList list_requests 结果
type RequestList struct {
	Count    int            `json:"count"`
	Requests []RequestEntry `json:"requests"`
}

// ListRequests 列举所有会话的请求，顺序为存储的列举顺序
func (c *Client) ListRequests(ctx context.Context) (*RequestList, error) {
	prefix := c.scheme.RegionPrefix(RegionRequests)
	keys, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entries := make([]RequestEntry, 0, len(keys))
	for _, key := range keys {
		sessionID, requestID, ok := c.scheme.Parse(RegionRequests, key)
		if !ok {
			continue
		}
		entries = append(entries, RequestEntry{
			SessionID: sessionID,
			RequestID: requestID,
			GCSPath:   c.store.URL(key),
		})
	}

	return &RequestList{Count: len(entries), Requests: entries}, nil
}

// ResponseEntry 会话下的一条响应
type ResponseEntry struct {
	RequestID string `json:"request_id"`
	GCSPath   string `json:"gcs_path"`
}

// ResponseList list_responses 结果
type ResponseList struct {
	SessionID string          `json:"session_id"`
	Count     int             `json:"count"`
	Responses []ResponseEntry `json:"responses"`
}

// ListResponses 列举单个会话的响应
func (c *Client) ListResponses(ctx context.Context, sessionID string) (*ResponseList, error) {
	if sessionID == "" {
		return nil, &ValidationError{Field: "session_id", Reason: "required"}
	}

	keys, err := c.store.List(ctx, c.scheme.SessionPrefix(RegionResponses, sessionID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entries := make([]ResponseEntry, 0, len(keys))
	for _, key := range keys {
		sid, requestID, ok := c.scheme.Parse(RegionResponses, key)
		if !ok || sid != sessionID {
			continue
		}
		entries = append(entries, ResponseEntry{
			RequestID: requestID,
			GCSPath:   c.store.URL(key),
		})
	}

	return &ResponseList{SessionID: sessionID, Count: len(entries), Responses: entries}, nil
}
