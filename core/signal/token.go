package signal

import (
	"fmt"
	"regexp"
	"strings"
)

// RecentWindow 提示词中"最近使用过"的关键词数量
const RecentWindow = 2

// 单独一行的 [bgm: keyword]，兼容全角冒号
var tokenPattern = regexp.MustCompile(`(?im)^[ \t]*\[[ \t]*bgm[ \t]*[:：][ \t]*([^\]\r\n]+?)[ \t]*\][ \t]*$`)

// ParseToken 提取文本中的 bgm 标记，多个时取最后一个
func ParseToken(text string) (string, bool) {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	kw := strings.ToLower(strings.TrimSpace(matches[len(matches)-1][1]))
	if kw == "" {
		return "", false
	}
	return kw, true
}

// StripTokens 去掉文本中的 bgm 标记行
func StripTokens(text string) string {
	return strings.TrimSpace(tokenPattern.ReplaceAllString(text, ""))
}

// PushRecent 把新选中的关键词放到最前面，只保留 RecentWindow 个
func PushRecent(recent []string, keyword string) []string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return recent
	}
	out := make([]string, 0, RecentWindow)
	out = append(out, keyword)
	for _, k := range recent {
		if len(out) >= RecentWindow {
			break
		}
		out = append(out, k)
	}
	return out
}

// BuildKeywordPrompt 生成注入给模型的提示词，要求在回复末尾单独输出一行标记
func BuildKeywordPrompt(keywords []string, recent []string) string {
	if len(keywords) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Choose background music for your reply. ")
	sb.WriteString("At the very end, on its own line, output exactly one token in the form [bgm: keyword], ")
	sb.WriteString("where keyword is taken from this list:\n")
	sb.WriteString(strings.Join(keywords, ", "))
	sb.WriteString("\n")
	if len(recent) > 0 {
		fmt.Fprintf(&sb, "Recently used: %s. Avoid emitting these again unless the scene clearly calls for it.\n", strings.Join(recent, ", "))
	}
	sb.WriteString("Output nothing else inside the token.")
	return sb.String()
}
