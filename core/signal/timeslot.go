package signal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ChatBGM/model"
)

const minutesPerDay = 24 * 60

var (
	ErrInvalidClock = errors.New("invalid clock value")
	ErrSlotGap      = errors.New("time slots leave a gap")
	ErrSlotOverlap  = errors.New("time slots overlap")
)

// Slot 编译后的时段，Start/End 为一天中的分钟数，闭区间
type Slot struct {
	Name     string
	Start    int
	End      int
	Keywords []string
}

// Contains 判断分钟数是否落在时段内，Start > End 表示跨越午夜
func (s Slot) Contains(minute int) bool {
	if s.Start <= s.End {
		return minute >= s.Start && minute <= s.End
	}
	return minute >= s.Start || minute <= s.End
}

// ParseClock 解析 "HH:MM"，兼容全角冒号
func ParseClock(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "：", ":")
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// FormatClock 分钟数转 "HH:MM"
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// CompileSlots 把配置中的时段转换为分钟区间
func CompileSlots(slots []model.TimeSlot) ([]Slot, error) {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		start, err := ParseClock(s.Start)
		if err != nil {
			return nil, fmt.Errorf("slot %q start: %w", s.Name, err)
		}
		end, err := ParseClock(s.End)
		if err != nil {
			return nil, fmt.Errorf("slot %q end: %w", s.Name, err)
		}
		out = append(out, Slot{
			Name:     s.Name,
			Start:    start,
			End:      end,
			Keywords: model.SplitKeywords(s.Keywords),
		})
	}
	return out, nil
}

// ResolveSlot 返回包含该分钟数的第一个时段
func ResolveSlot(slots []Slot, minute int) (Slot, bool) {
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay
	for _, s := range slots {
		if s.Contains(minute) {
			return s, true
		}
	}
	return Slot{}, false
}

// ValidatePartition 检查时段是否恰好覆盖一天的每一分钟，配置时调用
func ValidatePartition(slots []model.TimeSlot) error {
	compiled, err := CompileSlots(slots)
	if err != nil {
		return err
	}
	for m := 0; m < minutesPerDay; m++ {
		hits := 0
		for _, s := range compiled {
			if s.Contains(m) {
				hits++
			}
		}
		switch {
		case hits == 0:
			return fmt.Errorf("%w at %s", ErrSlotGap, FormatClock(m))
		case hits > 1:
			return fmt.Errorf("%w at %s", ErrSlotOverlap, FormatClock(m))
		}
	}
	return nil
}

// DefaultSlots 各方案的默认时段表
func DefaultSlots(scheme model.TimeScheme) []model.TimeSlot {
	if scheme == model.TimeSchemeAmPm2 {
		return []model.TimeSlot{
			{Name: "am", Start: "00:00", End: "11:59", Keywords: "morning,am"},
			{Name: "pm", Start: "12:00", End: "23:59", Keywords: "afternoon,evening,pm"},
		}
	}
	return []model.TimeSlot{
		{Name: "morning", Start: "05:00", End: "10:59", Keywords: "morning,dawn,sunrise"},
		{Name: "day", Start: "11:00", End: "16:59", Keywords: "day,noon,afternoon"},
		{Name: "evening", Start: "17:00", End: "20:59", Keywords: "evening,dusk,sunset"},
		{Name: "night", Start: "21:00", End: "04:59", Keywords: "night,midnight"},
	}
}
