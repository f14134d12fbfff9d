package constants

// 服务标识
const (
	ServiceName   = "gcs-mailbox-gateway"
	SchemaVersion = "1.0.0"
)

// 邮箱区域常量
const (
	MailboxDir      = "mailbox"
	RegionRequests  = "requests"
	RegionResponses = "responses"
	RegionProcessed = "processed"
)

// 派生状态常量
const (
	StatusSubmitted = "submitted"
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusNotFound  = "not_found"
	StatusHealthy   = "healthy"
)

// 状态说明，与旧网关保持一致
const (
	MsgPending   = "Request is still being processed"
	MsgProcessed = "Request was processed but response not found"
	MsgNotFound  = "Request not found"
)

// ID 前缀
const (
	SessionIDPrefix = "gateway-session-"
	RequestIDPrefix = "req-"
)

// 占位文件，列表时忽略
const PlaceholderSuffix = ".gitkeep"

// 标识符最大长度
const MaxIdentifierLength = 256

// 上下文键
const (
	ContextKeyRequestID = "requestID"
	ContextKeyPrincipal = "principal"
)

// 错误信息
const (
	ErrAuthRequired     = "Authentication required"
	ErrBundleIDRequired = "bundle_id required"
	ErrUploadFailed     = "Failed to upload request to object store"
	ErrStoreUnavailable = "Object store unavailable"
	ErrInvalidParams    = "Invalid parameters"
)
