package protocol

import (
	"fmt"
	"path"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"olympos.io/encoding/edn"

	"mailboxgw/internal/model"
)

// EncodingType 编码类型
type EncodingType string

const (
	EncodingEDN  EncodingType = "edn"
	EncodingJSON EncodingType = "json"
)

// MessageEncoder 消息编码器接口
type MessageEncoder interface {
	Encode(msg *model.Message) ([]byte, error)
	Decode(data []byte) (*model.Message, error)
	ContentType() string
	Extension() string
	EncodingType() EncodingType
}

// ednMessage EDN 线上格式，type 和 priority 以关键字写出
type ednMessage struct {
	SchemaVersion string      `edn:"schema-version"`
	Timestamp     string      `edn:"timestamp"`
	From          string      `edn:"from"`
	SessionID     string      `edn:"session-id"`
	MessageID     string      `edn:"message-id"`
	Type          edn.Keyword `edn:"type"`
	Payload       ednPayload  `edn:"payload"`
}

type ednPayload struct {
	BundleID string      `edn:"bundle-id"`
	Priority edn.Keyword `edn:"priority"`
}

// EDNEncoder EDN编码器，后端 worker 读取的默认格式
type EDNEncoder struct{}

func NewEDNEncoder() *EDNEncoder {
	return &EDNEncoder{}
}

func (e *EDNEncoder) Encode(msg *model.Message) ([]byte, error) {
	return edn.Marshal(ednMessage{
		SchemaVersion: msg.SchemaVersion,
		Timestamp:     model.FormatTimestamp(msg.Timestamp),
		From:          msg.From,
		SessionID:     msg.SessionID,
		MessageID:     msg.MessageID,
		Type:          edn.Keyword(msg.Type),
		Payload: ednPayload{
			BundleID: msg.Payload.BundleID,
			Priority: edn.Keyword(msg.Payload.Priority),
		},
	})
}

func (e *EDNEncoder) Decode(data []byte) (*model.Message, error) {
	var wire ednMessage
	if err := edn.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("解析EDN消息失败: %w", err)
	}
	ts, err := parseTimestamp(wire.Timestamp)
	if err != nil {
		return nil, err
	}
	return &model.Message{
		SchemaVersion: wire.SchemaVersion,
		Timestamp:     ts,
		From:          wire.From,
		SessionID:     wire.SessionID,
		MessageID:     wire.MessageID,
		Type:          model.MessageType(wire.Type),
		Payload: model.RequestPayload{
			BundleID: wire.Payload.BundleID,
			Priority: model.Priority(wire.Payload.Priority),
		},
	}, nil
}

func (e *EDNEncoder) ContentType() string {
	return "application/edn"
}

func (e *EDNEncoder) Extension() string {
	return ".edn"
}

func (e *EDNEncoder) EncodingType() EncodingType {
	return EncodingEDN
}

// jsonMessage JSON 线上格式，字段名与 EDN 相同
type jsonMessage struct {
	SchemaVersion string               `json:"schema-version"`
	Timestamp     string               `json:"timestamp"`
	From          string               `json:"from"`
	SessionID     string               `json:"session-id"`
	MessageID     string               `json:"message-id"`
	Type          model.MessageType    `json:"type"`
	Payload       model.RequestPayload `json:"payload"`
}

// JSONEncoder JSON编码器
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) Encode(msg *model.Message) ([]byte, error) {
	return json.Marshal(jsonMessage{
		SchemaVersion: msg.SchemaVersion,
		Timestamp:     model.FormatTimestamp(msg.Timestamp),
		From:          msg.From,
		SessionID:     msg.SessionID,
		MessageID:     msg.MessageID,
		Type:          msg.Type,
		Payload:       msg.Payload,
	})
}

func (e *JSONEncoder) Decode(data []byte) (*model.Message, error) {
	var wire jsonMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("解析JSON消息失败: %w", err)
	}
	ts, err := parseTimestamp(wire.Timestamp)
	if err != nil {
		return nil, err
	}
	return &model.Message{
		SchemaVersion: wire.SchemaVersion,
		Timestamp:     ts,
		From:          wire.From,
		SessionID:     wire.SessionID,
		MessageID:     wire.MessageID,
		Type:          wire.Type,
		Payload:       wire.Payload,
	}, nil
}

func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

func (e *JSONEncoder) Extension() string {
	return ".json"
}

func (e *JSONEncoder) EncodingType() EncodingType {
	return EncodingJSON
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的时间戳 %q: %w", s, err)
	}
	return ts, nil
}

// EncoderFactory 编码器工厂
type EncoderFactory struct {
	encoders map[EncodingType]MessageEncoder
}

func NewEncoderFactory() *EncoderFactory {
	factory := &EncoderFactory{
		encoders: make(map[EncodingType]MessageEncoder),
	}

	// 注册默认编码器
	factory.RegisterEncoder(EncodingEDN, NewEDNEncoder())
	factory.RegisterEncoder(EncodingJSON, NewJSONEncoder())

	return factory
}

func (f *EncoderFactory) RegisterEncoder(encodingType EncodingType, encoder MessageEncoder) {
	f.encoders[encodingType] = encoder
}

func (f *EncoderFactory) GetEncoder(encodingType EncodingType) (MessageEncoder, error) {
	encoder, ok := f.encoders[encodingType]
	if !ok {
		return nil, fmt.Errorf("不支持的编码类型: %s", encodingType)
	}
	return encoder, nil
}

func (f *EncoderFactory) GetSupportedTypes() []EncodingType {
	types := make([]EncodingType, 0, len(f.encoders))
	for t := range f.encoders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ContentTypeFor 按对象键的扩展名查找对应编码器的内容类型
func (f *EncoderFactory) ContentTypeFor(key string) string {
	ext := path.Ext(key)
	for _, t := range f.GetSupportedTypes() {
		if enc := f.encoders[t]; enc.Extension() == ext {
			return enc.ContentType()
		}
	}
	return "application/octet-stream"
}

var defaultFactory = NewEncoderFactory()

// ContentTypeFor 使用默认编码器集合
func ContentTypeFor(key string) string {
	return defaultFactory.ContentTypeFor(key)
}
