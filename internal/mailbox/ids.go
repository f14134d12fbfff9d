package mailbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailboxgw/internal/constants"
)

// IDSource 生成 session 和 message id
type IDSource interface {
	SessionID(now time.Time) string
	MessageID(now time.Time) string
}

// timestampIDs 毫秒时间戳加随机后缀，同一毫秒内的并发提交也不会冲突
type timestampIDs struct{}

func (timestampIDs) SessionID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", constants.SessionIDPrefix, now.UnixMilli(), randomSuffix())
}

func (timestampIDs) MessageID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", constants.RequestIDPrefix, now.UnixMilli(), randomSuffix())
}

// randomSuffix uuid 的前 8 位十六进制
func randomSuffix() string {
	id := uuid.NewString()
	return id[:strings.IndexByte(id, '-')]
}
