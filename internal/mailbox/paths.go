package mailbox

import (
	"strings"

	"mailboxgw/internal/constants"
)

// Region 邮箱区域，按消息状态划分命名空间
type Region string

const (
	RegionRequests  Region = constants.RegionRequests
	RegionResponses Region = constants.RegionResponses
	RegionProcessed Region = constants.RegionProcessed
)

// Valid 是否为已知区域
func (r Region) Valid() bool {
	switch r {
	case RegionRequests, RegionResponses, RegionProcessed:
		return true
	}
	return false
}

// Scheme 邮箱路径方案：<root>/mailbox/<region>/<session>/<id><ext>
type Scheme struct {
	Root string
	Ext  string
}

// NewScheme 创建路径方案，root 为桶内前缀，可为空
func NewScheme(root, ext string) Scheme {
	return Scheme{Root: strings.Trim(root, "/"), Ext: ext}
}

// Path 消息在某区域中的对象路径
func (s Scheme) Path(region Region, sessionID, messageID string) (string, error) {
	if !region.Valid() {
		return "", &ValidationError{Field: "region", Reason: "unknown region " + string(region)}
	}
	if sessionID == "" {
		return "", &ValidationError{Field: "session_id", Reason: "required"}
	}
	if messageID == "" {
		return "", &ValidationError{Field: "message_id", Reason: "required"}
	}
	return s.SessionPrefix(region, sessionID) + messageID + s.Ext, nil
}

// RegionPrefix 区域列举前缀，以 / 结尾
func (s Scheme) RegionPrefix(region Region) string {
	base := constants.MailboxDir + "/" + string(region) + "/"
	if s.Root == "" {
		return base
	}
	return s.Root + "/" + base
}

// SessionPrefix 会话列举前缀，以 / 结尾
func (s Scheme) SessionPrefix(region Region, sessionID string) string {
	return s.RegionPrefix(region) + sessionID + "/"
}

// Parse Path 的逆映射：倒数第二段为 session，最后一段去掉扩展名为 message id。
// 不在区域内、扩展名不符、占位文件或层级不是 <session>/<id> 的键返回 ok=false。
func (s Scheme) Parse(region Region, key string) (sessionID, messageID string, ok bool) {
	rest, found := strings.CutPrefix(key, s.RegionPrefix(region))
	if !found {
		return "", "", false
	}
	if strings.HasSuffix(rest, constants.PlaceholderSuffix) {
		return "", "", false
	}

	name, found := strings.CutSuffix(rest, s.Ext)
	if !found {
		return "", "", false
	}

	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
