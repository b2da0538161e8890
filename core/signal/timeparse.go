package signal

import (
	"regexp"
	"strconv"
	"time"

	"ChatBGM/logger"
	"ChatBGM/model"
)

// TimeParser 自然语言时间解析器，*naturaltime.Parser 满足该接口
type TimeParser interface {
	ParseDate(text string, now time.Time) (*time.Time, error)
}

var (
	timeTokenPattern = regexp.MustCompile(`(?i)\[\s*time\s*[:：]\s*(\d{1,2})\s*[:：]\s*(\d{2})\s*\]`)
	bareClockPattern = regexp.MustCompile(`(?:^|[^\d])([01]?\d|2[0-3])[:：]([0-5]\d)(?:[^\d]|$)`)
)

// TimeExtractor 求出当前所处的一天中的分钟数
type TimeExtractor struct {
	Parser TimeParser       // 可为 nil
	Now    func() time.Time // 为 nil 时使用 time.Now
}

func (x *TimeExtractor) now() time.Time {
	if x != nil && x.Now != nil {
		return x.Now()
	}
	return time.Now()
}

// MinuteOfDay 按来源取时间：clock 直接用时钟；
// chat 依次尝试 [time: HH:MM] 标记、裸 HH:MM、自然语言解析，最后回退到时钟
func (x *TimeExtractor) MinuteOfDay(source model.TimeSource, text string) int {
	now := x.now()
	if source == model.TimeSourceChat {
		if m, ok := clockFromPattern(timeTokenPattern, text); ok {
			return m
		}
		if m, ok := clockFromPattern(bareClockPattern, text); ok {
			return m
		}
		if x != nil && x.Parser != nil && text != "" {
			t, err := x.Parser.ParseDate(text, now)
			if err != nil {
				logger.Debug("聊天时间解析失败", logger.ErrorField(err))
			} else if t != nil {
				return t.Hour()*60 + t.Minute()
			}
		}
	}
	return now.Hour()*60 + now.Minute()
}

func clockFromPattern(re *regexp.Regexp, text string) (int, bool) {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	h, err := strconv.Atoi(last[1])
	if err != nil || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(last[2])
	if err != nil || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
