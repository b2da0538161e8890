// Package selection 提供对预设曲目列表的纯函数：排序、查找、随机与循环索引
package selection

import (
	"math/rand/v2"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"ChatBGM/model"
)

// randIntN 可在测试中替换
var randIntN = rand.IntN

// sortCycle CycleSortMode 的固定循环顺序
var sortCycle = []model.SortMode{
	model.SortAddedAsc,
	model.SortAddedDesc,
	model.SortNameAsc,
	model.SortNameDesc,
	model.SortPriorityDesc,
	model.SortPriorityAsc,
}

// newNameCollator 名称比较器：忽略大小写，数字按数值比较。
// collate.Collator 不是并发安全的，每次排序单独创建。
func newNameCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase, collate.Numeric)
}

// SortEntries 按排序方式返回新的有序列表，不修改输入
func SortEntries(preset *model.Preset, mode model.SortMode) []model.TrackEntry {
	if preset == nil || len(preset.Tracks) == 0 {
		return nil
	}
	return SortTracks(preset.Tracks, mode)
}

// SortTracks 对任意曲目切片排序，结果为稳定排序的副本
func SortTracks(tracks []model.TrackEntry, mode model.SortMode) []model.TrackEntry {
	out := slices.Clone(tracks)
	if len(out) < 2 {
		return out
	}

	col := newNameCollator()
	byName := func(a, b *model.TrackEntry) int {
		return col.CompareString(a.DisplayName(), b.DisplayName())
	}

	switch mode {
	case model.SortAddedDesc:
		slices.Reverse(out)
	case model.SortNameAsc:
		slices.SortStableFunc(out, func(a, b model.TrackEntry) int { return byName(&a, &b) })
	case model.SortNameDesc:
		slices.SortStableFunc(out, func(a, b model.TrackEntry) int { return byName(&b, &a) })
	case model.SortPriorityAsc, model.SortPriorityDesc:
		desc := mode == model.SortPriorityDesc
		slices.SortStableFunc(out, func(a, b model.TrackEntry) int {
			if a.Priority != b.Priority {
				if desc {
					return b.Priority - a.Priority
				}
				return a.Priority - b.Priority
			}
			// 同优先级始终按名称升序
			return byName(&a, &b)
		})
	default:
		// added_asc 与未知值保持插入顺序
	}
	return out
}

// SortedKeys 排序后过滤空 fileKey，只返回键
func SortedKeys(preset *model.Preset, mode model.SortMode) []string {
	return keysOf(SortEntries(preset, mode), false)
}

// SortedBGMKeys 与 SortedKeys 相同，但排除 SFX 曲目
func SortedBGMKeys(preset *model.Preset, mode model.SortMode) []string {
	return keysOf(SortEntries(preset, mode), true)
}

func keysOf(entries []model.TrackEntry, skipSFX bool) []string {
	keys := make([]string, 0, len(entries))
	for i := range entries {
		if !entries[i].Selectable() {
			continue
		}
		if skipSFX && entries[i].IsSFX() {
			continue
		}
		keys = append(keys, entries[i].FileKey)
	}
	return keys
}

// FindByKey 按 fileKey 查找曲目，找不到返回 nil
func FindByKey(preset *model.Preset, fileKey string) *model.TrackEntry {
	if preset == nil || fileKey == "" {
		return nil
	}
	for i := range preset.Tracks {
		if preset.Tracks[i].FileKey == fileKey {
			return &preset.Tracks[i]
		}
	}
	return nil
}

// CycleSortMode 返回循环中的下一个排序方式，未知值回到第一个
func CycleSortMode(current model.SortMode) model.SortMode {
	i := slices.Index(sortCycle, model.SortMode(strings.ToLower(string(current))))
	if i < 0 {
		return sortCycle[0]
	}
	return sortCycle[(i+1)%len(sortCycle)]
}

// PickRandomKey 从 keys 中均匀随机选择，多于一个候选时排除 exclude。
// 只有一个键时即使等于 exclude 也直接返回。
func PickRandomKey(keys []string, exclude string) string {
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return keys[0]
	}

	candidates := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != exclude {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return keys[0]
	}
	return candidates[randIntN(len(candidates))]
}

// Wrap 将索引折回 [0, n)
func Wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Step 在循环列表中从 current 移动 delta 步，返回新索引与键
func Step(keys []string, current string, delta int) (int, string) {
	if len(keys) == 0 {
		return -1, ""
	}
	i := slices.Index(keys, current)
	if i < 0 {
		if delta >= 0 {
			return 0, keys[0]
		}
		return len(keys) - 1, keys[len(keys)-1]
	}
	next := Wrap(i+delta, len(keys))
	return next, keys[next]
}
