package signal

import (
	"context"
	"strings"

	"ChatBGM/logger"
	"ChatBGM/model"
)

// 信号来源
const (
	SourceToken     = "token"
	SourceMatching  = "matching"
	SourceRecommend = "recommend"
)

// Recommender 外部推荐服务：根据文本从候选关键词中挑一个
type Recommender interface {
	Recommend(ctx context.Context, text string, keywords []string) (string, error)
}

// Signal 提取结果
type Signal struct {
	Track   model.TrackEntry
	Keyword string
	Source  string
	Slot    string // 时段模式开启时命中的时段名
}

// Request 一次提取所需的输入
type Request struct {
	Text     string
	Tracks   []model.TrackEntry
	SortMode model.SortMode
	SubMode  model.KeywordSubMode
	TimeMode model.TimeMode
}

// Extractor 组合关键词、标记、时段与推荐四种信号
type Extractor struct {
	Time        *TimeExtractor
	Recommender Recommender
}

// NewExtractor 创建提取器，recommender 可为 nil
func NewExtractor(parser TimeParser, recommender Recommender) *Extractor {
	return &Extractor{
		Time:        &TimeExtractor{Parser: parser},
		Recommender: recommender,
	}
}

// Extract 按子模式提取信号，没有命中时返回 false
func (e *Extractor) Extract(ctx context.Context, req Request) (Signal, bool) {
	vocab := NewVocabulary(req.Tracks)
	slotName, slotKeywords := e.timeSignal(req)
	// 时段关键词只与曲目关键词整词比较，"noon" 不会被 "afternoon" 命中
	slotCands := vocab.MatchExact(slotKeywords)

	switch req.SubMode {
	case model.KeywordSubModeToken:
		if sig, ok := e.fromToken(vocab, req.Text, slotName); ok {
			return sig, true
		}
		return e.fromMatching(slotCands, req.SortMode, slotName)
	case model.KeywordSubModeHybrid:
		if sig, ok := e.fromToken(vocab, req.Text, slotName); ok {
			return sig, true
		}
	case model.KeywordSubModeRecommend:
		if sig, ok := e.fromRecommender(ctx, vocab, req.Text, slotName); ok {
			return sig, true
		}
	}
	return e.fromMatching(mergeCandidates(vocab.Match(req.Text), slotCands), req.SortMode, slotName)
}

func (e *Extractor) timeSignal(req Request) (string, []string) {
	if !req.TimeMode.Enabled {
		return "", nil
	}
	slots, err := CompileSlots(req.TimeMode.ActiveSlots())
	if err != nil {
		logger.Warn("时段配置无效，忽略时段信号", logger.ErrorField(err))
		return "", nil
	}
	minute := e.Time.MinuteOfDay(req.TimeMode.Source, req.Text)
	slot, ok := ResolveSlot(slots, minute)
	if !ok {
		return "", nil
	}
	return slot.Name, slot.Keywords
}

func (e *Extractor) fromToken(vocab *Vocabulary, text, slot string) (Signal, bool) {
	kw, ok := ParseToken(text)
	if !ok {
		return Signal{}, false
	}
	cand, ok := vocab.Lookup(kw)
	if !ok {
		logger.Debug("bgm 标记未匹配到曲目", logger.String("keyword", kw))
		return Signal{}, false
	}
	return Signal{Track: cand.Track, Keyword: cand.Keyword, Source: SourceToken, Slot: slot}, true
}

func (e *Extractor) fromRecommender(ctx context.Context, vocab *Vocabulary, text, slot string) (Signal, bool) {
	if e.Recommender == nil || strings.TrimSpace(text) == "" {
		return Signal{}, false
	}
	keywords := vocab.Keywords()
	if len(keywords) == 0 {
		return Signal{}, false
	}
	kw, err := e.Recommender.Recommend(ctx, text, keywords)
	if err != nil {
		logger.Warn("推荐服务调用失败，回退到关键词匹配", logger.ErrorField(err))
		return Signal{}, false
	}
	cand, ok := vocab.Lookup(kw)
	if !ok {
		return Signal{}, false
	}
	return Signal{Track: cand.Track, Keyword: cand.Keyword, Source: SourceRecommend, Slot: slot}, true
}

func (e *Extractor) fromMatching(cands []Candidate, mode model.SortMode, slot string) (Signal, bool) {
	cand, ok := Pick(cands, mode)
	if !ok {
		return Signal{}, false
	}
	return Signal{Track: cand.Track, Keyword: cand.Keyword, Source: SourceMatching, Slot: slot}, true
}
