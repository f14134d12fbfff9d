// Package gateway 把邮箱客户端的操作暴露为 HTTP 接口。
// 只做翻译：参数校验、调用客户端、把结果和错误映射为状态码，不缓存也不重试。
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"mailboxgw/internal/constants"
	"mailboxgw/internal/mailbox"
	"mailboxgw/internal/metrics"
	"mailboxgw/internal/middleware"
	"mailboxgw/internal/model"
)

// Handler HTTP 处理器
type Handler struct {
	client *mailbox.Client
	auth   *middleware.Authenticator
	bucket string
	log    zerolog.Logger
}

// NewHandler 创建处理器；bucket 为健康检查中展示的存储位置
func NewHandler(client *mailbox.Client, auth *middleware.Authenticator, bucket string, log zerolog.Logger) *Handler {
	return &Handler{
		client: client,
		auth:   auth,
		bucket: bucket,
		log:    log,
	}
}

// SubmitRequest 提交请求体
type SubmitRequest struct {
	BundleID  string `json:"bundle_id"`
	SessionID string `json:"session_id"`
}

// Health 健康检查，无需认证
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    constants.StatusHealthy,
		"service":   constants.ServiceName,
		"bucket":    h.bucket,
		"storage":   h.client.Store().Driver(),
		"timestamp": model.FormatTimestamp(time.Now()),
	})
}

// IssueToken 用 Basic 凭据换取 bearer token
func (h *Handler) IssueToken(c *gin.Context) {
	principal := c.GetString(constants.ContextKeyPrincipal)

	token, expiresAt, err := h.auth.GenerateToken(principal)
	if err != nil {
		h.log.Error().Err(err).Msg("生成令牌失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// Submit POST /request
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BundleID == "" {
		metrics.MailboxOperations.WithLabelValues("submit", "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrBundleIDRequired})
		return
	}

	if req.SessionID != "" {
		if err := mailbox.ValidateIdentifier("session_id", req.SessionID); err != nil {
			h.respondError(c, "submit", err)
			return
		}
	}

	res, err := h.client.Submit(c.Request.Context(), req.BundleID, req.SessionID)
	if err != nil {
		h.respondError(c, "submit", err)
		return
	}

	metrics.MailboxOperations.WithLabelValues("submit", "ok").Inc()
	c.JSON(http.StatusOK, res)
}

// CheckStatus GET /status/:session/:id
func (h *Handler) CheckStatus(c *gin.Context) {
	sessionID := c.Param("session")
	requestID := c.Param("id")
	if err := validatePair(sessionID, requestID); err != nil {
		h.respondError(c, "status", err)
		return
	}

	res, err := h.client.CheckStatus(c.Request.Context(), sessionID, requestID)
	if err != nil {
		h.respondError(c, "status", err)
		return
	}

	metrics.MailboxOperations.WithLabelValues("status", string(res.State)).Inc()
	code, body := StatusBody(res)
	c.JSON(code, body)
}

// StatusBody 状态结果的 HTTP 表示；not_found 对应 404
func StatusBody(res *mailbox.StatusResult) (int, gin.H) {
	switch res.State {
	case mailbox.StateCompleted:
		return http.StatusOK, gin.H{
			"status":        res.State,
			"response_edn":  string(res.Response),
			"response_path": res.ResponsePath,
		}
	case mailbox.StateNotFound:
		return http.StatusNotFound, gin.H{
			"status":  res.State,
			"message": res.Message,
		}
	default:
		return http.StatusOK, gin.H{
			"status":  res.State,
			"message": res.Message,
		}
	}
}

// ListRequests GET /requests
func (h *Handler) ListRequests(c *gin.Context) {
	res, err := h.client.ListRequests(c.Request.Context())
	if err != nil {
		h.respondError(c, "list_requests", err)
		return
	}

	metrics.MailboxOperations.WithLabelValues("list_requests", "ok").Inc()
	c.JSON(http.StatusOK, res)
}

// ListResponses GET /responses/:session
func (h *Handler) ListResponses(c *gin.Context) {
	sessionID := c.Param("session")
	if err := mailbox.ValidateIdentifier("session_id", sessionID); err != nil {
		h.respondError(c, "list_responses", err)
		return
	}

	res, err := h.client.ListResponses(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, "list_responses", err)
		return
	}

	metrics.MailboxOperations.WithLabelValues("list_responses", "ok").Inc()
	c.JSON(http.StatusOK, res)
}

// respondError 错误映射：校验 -> 400，上传失败/存储不可用 -> 500
func (h *Handler) respondError(c *gin.Context, op string, err error) {
	var ve *mailbox.ValidationError
	switch {
	case errors.As(err, &ve):
		metrics.MailboxOperations.WithLabelValues(op, "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrInvalidParams, "field": ve.Field, "reason": ve.Reason})
	case errors.Is(err, mailbox.ErrUploadFailed):
		metrics.MailboxOperations.WithLabelValues(op, "error").Inc()
		h.log.Error().Err(err).Str("op", op).Msg("上传请求失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": constants.ErrUploadFailed})
	default:
		metrics.MailboxOperations.WithLabelValues(op, "error").Inc()
		h.log.Error().Err(err).Str("op", op).Msg("对象存储操作失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": constants.ErrStoreUnavailable})
	}
}

func validatePair(sessionID, requestID string) error {
	if err := mailbox.ValidateIdentifier("session_id", sessionID); err != nil {
		return err
	}
	return mailbox.ValidateIdentifier("request_id", requestID)
}
