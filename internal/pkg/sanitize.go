package pkg

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// SanitizeRich 帖子/评论正文，保留安全的富文本标签
func SanitizeRich(input string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(input))
}

// SanitizePlain 标题、规则名、社区描述等纯文本字段
func SanitizePlain(input string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}
