// Package signal 从聊天文本或时钟中提取"想要的关键词/时段"信号
package signal

import (
	"strings"

	"ChatBGM/core/selection"
	"ChatBGM/model"
)

// Candidate 一条命中的曲目及命中的关键词
type Candidate struct {
	Track   model.TrackEntry
	Keyword string
}

type vocabEntry struct {
	track    model.TrackEntry
	keywords []string
}

// Vocabulary 预设的关键词表：曲目 -> 小写关键词列表
type Vocabulary struct {
	entries []vocabEntry
}

// NewVocabulary 只收录可选且配置了关键词的曲目
func NewVocabulary(tracks []model.TrackEntry) *Vocabulary {
	v := &Vocabulary{entries: make([]vocabEntry, 0, len(tracks))}
	for i := range tracks {
		if !tracks[i].Selectable() {
			continue
		}
		v.entries = append(v.entries, vocabEntry{
			track:    tracks[i],
			keywords: tracks[i].KeywordList(),
		})
	}
	return v
}

// Keywords 全部关键词，去重并保持出现顺序
func (v *Vocabulary) Keywords() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range v.entries {
		for _, kw := range e.keywords {
			if !seen[kw] {
				seen[kw] = true
				out = append(out, kw)
			}
		}
	}
	return out
}

// Match 在文本中做不区分大小写的子串匹配，每个曲目最多产生一个候选
func (v *Vocabulary) Match(text string) []Candidate {
	haystack := strings.ToLower(text)
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	var out []Candidate
	for _, e := range v.entries {
		for _, kw := range e.keywords {
			if strings.Contains(haystack, kw) {
				out = append(out, Candidate{Track: e.track, Keyword: kw})
				break
			}
		}
	}
	return out
}

// MatchExact 用给定关键词与曲目关键词做整词比较，每个曲目最多产生一个候选
func (v *Vocabulary) MatchExact(keywords []string) []Candidate {
	if len(keywords) == 0 {
		return nil
	}
	want := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		want[strings.ToLower(strings.TrimSpace(kw))] = true
	}

	var out []Candidate
	for _, e := range v.entries {
		for _, kw := range e.keywords {
			if want[kw] {
				out = append(out, Candidate{Track: e.track, Keyword: kw})
				break
			}
		}
	}
	return out
}

// mergeCandidates 合并两组候选，同一曲目只保留先出现的一条
func mergeCandidates(a, b []Candidate) []Candidate {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a))
	out := make([]Candidate, 0, len(a)+len(b))
	for _, group := range [][]Candidate{a, b} {
		for _, c := range group {
			if seen[c.Track.FileKey] {
				continue
			}
			seen[c.Track.FileKey] = true
			out = append(out, c)
		}
	}
	return out
}

// Lookup 按关键词精确查找曲目，找不到时再按显示名称查找
func (v *Vocabulary) Lookup(keyword string) (Candidate, bool) {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return Candidate{}, false
	}
	for _, e := range v.entries {
		for _, k := range e.keywords {
			if k == kw {
				return Candidate{Track: e.track, Keyword: k}, true
			}
		}
	}
	for _, e := range v.entries {
		if strings.EqualFold(e.track.DisplayName(), kw) {
			return Candidate{Track: e.track, Keyword: kw}, true
		}
	}
	return Candidate{}, false
}

// Pick 选出优先级最高的候选；同优先级的子集按预设排序方式排序后取第一个
func Pick(cands []Candidate, mode model.SortMode) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}

	best := cands[0].Track.Priority
	for _, c := range cands[1:] {
		if c.Track.Priority > best {
			best = c.Track.Priority
		}
	}

	tied := make([]model.TrackEntry, 0, len(cands))
	byKey := make(map[string]Candidate, len(cands))
	for _, c := range cands {
		if c.Track.Priority == best {
			tied = append(tied, c.Track)
			byKey[c.Track.FileKey] = c
		}
	}
	if len(tied) == 1 {
		return byKey[tied[0].FileKey], true
	}

	sorted := selection.SortTracks(tied, mode)
	return byKey[sorted[0].FileKey], true
}
