package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrUploadFailed 请求写入对象存储失败
	ErrUploadFailed = errors.New("mailbox: upload failed")

	// ErrStoreUnavailable 读取或列举失败，无法判断邮箱状态
	ErrStoreUnavailable = errors.New("mailbox: object store unavailable")
)

// ValidationError 输入缺失或格式错误，未进行任何 I/O
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
