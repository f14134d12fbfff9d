package mailbox

import (
	"strings"
	"unicode"

	"mailboxgw/internal/constants"
)

// ValidateIdentifier 校验外部传入的 session / message id。
// 路径方案本身不做清洗，传输层在调用前用它拒绝路径穿越。
func ValidateIdentifier(field, id string) error {
	switch {
	case id == "":
		return &ValidationError{Field: field, Reason: "required"}
	case id == "." || id == "..":
		return &ValidationError{Field: field, Reason: "must not be a relative path segment"}
	case len(id) > constants.MaxIdentifierLength:
		return &ValidationError{Field: field, Reason: "too long"}
	case strings.ContainsAny(id, `/\`):
		return &ValidationError{Field: field, Reason: "must not contain path separators"}
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return &ValidationError{Field: field, Reason: "must not contain control characters"}
		}
	}
	return nil
}
