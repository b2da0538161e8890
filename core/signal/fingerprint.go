package signal

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint 消息指纹，空文本返回 0（表示"没有消息"）
func Fingerprint(text string) uint64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	sum := xxhash.Sum64String(text)
	if sum == 0 {
		return 1
	}
	return sum
}
