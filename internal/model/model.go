package model

import "time"

// MessageType 消息类型
type MessageType string

const (
	MessageTypeRequest  MessageType = "request"
	MessageTypeResponse MessageType = "response"
)

// Priority 请求优先级
type Priority string

const PriorityNormal Priority = "normal"

// Message 邮箱中的一条消息，写入后不可修改；
// 状态流转通过在不同区域写入对象来表达
type Message struct {
	SchemaVersion string         `json:"schema-version"`
	Timestamp     time.Time      `json:"timestamp"`
	From          string         `json:"from"`
	SessionID     string         `json:"session-id"`
	MessageID     string         `json:"message-id"`
	Type          MessageType    `json:"type"`
	Payload       RequestPayload `json:"payload"`
}

// RequestPayload 请求负载，只对后端 worker 有意义
type RequestPayload struct {
	BundleID string   `json:"bundle-id"`
	Priority Priority `json:"priority"`
}

// TimestampLayout ISO-8601 UTC，微秒精度
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp 格式化为 ISO-8601 UTC
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
