package signal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ChatBGM/model"
)

func scenarioTracks() []model.TrackEntry {
	return []model.TrackEntry{
		{FileKey: "a.mp3", Keywords: "rain,storm", Priority: 0},
		{FileKey: "b.mp3", Keywords: "battle", Priority: 5},
	}
}

func TestMatchHighestPriorityWins(t *testing.T) {
	e := NewExtractor(nil, nil)
	sig, ok := e.Extract(context.Background(), Request{
		Text:    "the storm and the battle begin",
		Tracks:  scenarioTracks(),
		SubMode: model.KeywordSubModeMatching,
	})
	if !ok || sig.Track.FileKey != "b.mp3" || sig.Keyword != "battle" {
		t.Fatalf("unexpected signal %+v ok=%v", sig, ok)
	}
}

func TestMatchNoHit(t *testing.T) {
	e := NewExtractor(nil, nil)
	if _, ok := e.Extract(context.Background(), Request{
		Text:    "a calm afternoon",
		Tracks:  scenarioTracks(),
		SubMode: model.KeywordSubModeMatching,
	}); ok {
		t.Fatal("expected no match")
	}
}

func TestPickTieUsesSortMode(t *testing.T) {
	cands := []Candidate{
		{Track: model.TrackEntry{FileKey: "z", Name: "Zeta", Priority: 3}},
		{Track: model.TrackEntry{FileKey: "a", Name: "Alpha", Priority: 3}},
		{Track: model.TrackEntry{FileKey: "low", Name: "Aardvark", Priority: 1}},
	}
	cases := []struct {
		mode model.SortMode
		want string
	}{
		{model.SortNameAsc, "a"},
		{model.SortNameDesc, "z"},
		{model.SortAddedAsc, "z"},
		{model.SortAddedDesc, "a"},
	}
	for _, c := range cases {
		t.Run(string(c.mode), func(t *testing.T) {
			got, ok := Pick(cands, c.mode)
			if !ok || got.Track.FileKey != c.want {
				t.Fatalf("got %q, want %q", got.Track.FileKey, c.want)
			}
		})
	}
}

func TestMatchIsCaseInsensitiveAndSkipsInert(t *testing.T) {
	v := NewVocabulary([]model.TrackEntry{
		{FileKey: "", Keywords: "ghost"},
		{FileKey: "x", Keywords: "Sword, 戦闘"},
	})
	if got := v.Match("A SWORD appears"); len(got) != 1 || got[0].Track.FileKey != "x" {
		t.Fatalf("unexpected candidates %+v", got)
	}
	if got := v.Match("ghost"); len(got) != 0 {
		t.Fatalf("inert track matched: %+v", got)
	}
	if kws := v.Keywords(); strings.Join(kws, "|") != "sword|戦闘" {
		t.Fatalf("unexpected keywords %v", kws)
	}
}

func TestParseToken(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"simple", "hello\n[bgm: Battle]", "battle", true},
		{"fullwidth colon", "[BGM：rain]", "rain", true},
		{"last wins", "[bgm: rain]\ntext\n[bgm: storm]", "storm", true},
		{"inline ignored", "say [bgm: rain] now", "", false},
		{"absent", "nothing here", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ParseToken(c.text)
			if got != c.want || ok != c.ok {
				t.Fatalf("ParseToken(%q) = %q,%v want %q,%v", c.text, got, ok, c.want, c.ok)
			}
		})
	}
	if got := StripTokens("line one\n[bgm: rain]"); got != "line one" {
		t.Fatalf("StripTokens = %q", got)
	}
}

func TestTokenAndHybridModes(t *testing.T) {
	tracks := []model.TrackEntry{
		{FileKey: "a.mp3", Name: "Calm", Keywords: "rain"},
		{FileKey: "b.mp3", Keywords: "battle", Priority: 5},
	}
	e := NewExtractor(nil, nil)
	ctx := context.Background()

	sig, ok := e.Extract(ctx, Request{Text: "battle!\n[bgm: calm]", Tracks: tracks, SubMode: model.KeywordSubModeToken})
	if !ok || sig.Track.FileKey != "a.mp3" || sig.Source != SourceToken {
		t.Fatalf("token lookup by name failed: %+v", sig)
	}

	if _, ok := e.Extract(ctx, Request{Text: "battle!", Tracks: tracks, SubMode: model.KeywordSubModeToken}); ok {
		t.Fatal("token mode must not fall back to text matching")
	}

	sig, ok = e.Extract(ctx, Request{Text: "battle!", Tracks: tracks, SubMode: model.KeywordSubModeHybrid})
	if !ok || sig.Track.FileKey != "b.mp3" || sig.Source != SourceMatching {
		t.Fatalf("hybrid should fall back to matching: %+v", sig)
	}
}

type stubRecommender struct {
	keyword string
	err     error
}

func (s stubRecommender) Recommend(context.Context, string, []string) (string, error) {
	return s.keyword, s.err
}

func TestRecommendMode(t *testing.T) {
	ctx := context.Background()
	req := Request{Text: "storm", Tracks: scenarioTracks(), SubMode: model.KeywordSubModeRecommend}

	e := NewExtractor(nil, stubRecommender{keyword: "battle"})
	if sig, ok := e.Extract(ctx, req); !ok || sig.Track.FileKey != "b.mp3" || sig.Source != SourceRecommend {
		t.Fatalf("unexpected recommend signal %+v", sig)
	}

	e = NewExtractor(nil, stubRecommender{err: errors.New("offline")})
	if sig, ok := e.Extract(ctx, req); !ok || sig.Track.FileKey != "a.mp3" || sig.Source != SourceMatching {
		t.Fatalf("recommend failure should fall back to matching: %+v", sig)
	}
}

func TestTimeSlotKeywordsActAsChatKeywords(t *testing.T) {
	e := NewExtractor(nil, nil)
	e.Time.Now = func() time.Time { return time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC) }

	tracks := []model.TrackEntry{
		{FileKey: "night.mp3", Keywords: "midnight"},
		{FileKey: "day.mp3", Keywords: "noon"},
	}
	sig, ok := e.Extract(context.Background(), Request{
		Text:    "nothing special",
		Tracks:  tracks,
		SubMode: model.KeywordSubModeMatching,
		TimeMode: model.TimeMode{
			Enabled: true,
			Source:  model.TimeSourceClock,
			Scheme:  model.TimeSchemeDay4,
			Day4:    DefaultSlots(model.TimeSchemeDay4),
		},
	})
	if !ok || sig.Track.FileKey != "night.mp3" || sig.Slot != "night" {
		t.Fatalf("unexpected time signal %+v ok=%v", sig, ok)
	}
}

func TestSlotKeywordsMatchWholeKeywords(t *testing.T) {
	e := NewExtractor(nil, nil)
	tracks := []model.TrackEntry{
		{FileKey: "noon.mp3", Keywords: "noon"},
		{FileKey: "even.mp3", Keywords: "even"},
	}
	req := Request{
		Text:    "nothing special",
		Tracks:  tracks,
		SubMode: model.KeywordSubModeMatching,
		TimeMode: model.TimeMode{
			Enabled: true,
			Source:  model.TimeSourceClock,
			Scheme:  model.TimeSchemeAmPm2,
			AmPm2:   DefaultSlots(model.TimeSchemeAmPm2),
		},
	}

	// pm 时段的 afternoon/evening 不能命中 noon/even
	e.Time.Now = func() time.Time { return time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC) }
	if sig, ok := e.Extract(context.Background(), req); ok {
		t.Fatalf("slot keyword matched a substring: %+v", sig)
	}

	req.TimeMode.Scheme = model.TimeSchemeDay4
	req.TimeMode.Day4 = DefaultSlots(model.TimeSchemeDay4)
	sig, ok := e.Extract(context.Background(), req)
	if !ok || sig.Track.FileKey != "noon.mp3" || sig.Slot != "day" {
		t.Fatalf("expected the day slot to pick noon.mp3, got %+v ok=%v", sig, ok)
	}

	// token 模式没有标记时只看时段关键词
	req.SubMode = model.KeywordSubModeToken
	if sig, ok := e.Extract(context.Background(), req); !ok || sig.Track.FileKey != "noon.mp3" {
		t.Fatalf("token mode should fall back to slot keywords, got %+v ok=%v", sig, ok)
	}
}

func TestSlotContainsWrap(t *testing.T) {
	night := Slot{Start: 21 * 60, End: 4*60 + 59}
	cases := []struct {
		minute int
		want   bool
	}{
		{21 * 60, true},
		{0, true},
		{4*60 + 59, true},
		{5 * 60, false},
		{20*60 + 59, false},
	}
	for _, c := range cases {
		if got := night.Contains(c.minute); got != c.want {
			t.Fatalf("Contains(%s) = %v", FormatClock(c.minute), got)
		}
	}
}

func TestValidatePartition(t *testing.T) {
	for _, scheme := range []model.TimeScheme{model.TimeSchemeDay4, model.TimeSchemeAmPm2} {
		if err := ValidatePartition(DefaultSlots(scheme)); err != nil {
			t.Fatalf("default %s slots invalid: %v", scheme, err)
		}
	}

	gap := []model.TimeSlot{{Name: "a", Start: "00:00", End: "11:00"}, {Name: "b", Start: "12:00", End: "23:59"}}
	if err := ValidatePartition(gap); !errors.Is(err, ErrSlotGap) {
		t.Fatalf("expected gap error, got %v", err)
	}

	overlap := []model.TimeSlot{{Name: "a", Start: "00:00", End: "12:00"}, {Name: "b", Start: "12:00", End: "23:59"}}
	if err := ValidatePartition(overlap); !errors.Is(err, ErrSlotOverlap) {
		t.Fatalf("expected overlap error, got %v", err)
	}

	bad := []model.TimeSlot{{Name: "a", Start: "25:00", End: "01:00"}}
	if err := ValidatePartition(bad); !errors.Is(err, ErrInvalidClock) {
		t.Fatalf("expected clock error, got %v", err)
	}
}

type stubParser struct {
	at  *time.Time
	err error
}

func (s stubParser) ParseDate(string, time.Time) (*time.Time, error) { return s.at, s.err }

func TestMinuteOfDay(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 15, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 1, 19, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		source model.TimeSource
		text   string
		parser TimeParser
		want   int
	}{
		{"clock ignores text", model.TimeSourceClock, "[time: 22:00]", nil, 8*60 + 15},
		{"token", model.TimeSourceChat, "at 10:00 then [time: 22:05]", nil, 22*60 + 5},
		{"bare clock", model.TimeSourceChat, "meet at 13：45 sharp", nil, 13*60 + 45},
		{"natural language", model.TimeSourceChat, "this evening", stubParser{at: &evening}, 19 * 60},
		{"parser error falls back", model.TimeSourceChat, "whenever", stubParser{err: errors.New("no")}, 8*60 + 15},
		{"nothing falls back", model.TimeSourceChat, "whenever", nil, 8*60 + 15},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			x := &TimeExtractor{Parser: c.parser, Now: func() time.Time { return now }}
			if got := x.MinuteOfDay(c.source, c.text); got != c.want {
				t.Fatalf("got %s, want %s", FormatClock(got), FormatClock(c.want))
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("  ") != 0 {
		t.Fatal("blank text should have zero fingerprint")
	}
	if Fingerprint("hello") == Fingerprint("hellp") {
		t.Fatal("different texts should differ")
	}
	if Fingerprint("hello") != Fingerprint("hello\n") {
		t.Fatal("surrounding whitespace should not matter")
	}
}

func TestPushRecentAndPrompt(t *testing.T) {
	recent := PushRecent(nil, "Rain")
	recent = PushRecent(recent, "battle")
	recent = PushRecent(recent, "storm")
	if strings.Join(recent, ",") != "storm,battle" {
		t.Fatalf("unexpected recent window %v", recent)
	}

	prompt := BuildKeywordPrompt([]string{"rain", "battle"}, recent)
	if !strings.Contains(prompt, "rain, battle") || !strings.Contains(prompt, "storm, battle") || !strings.Contains(prompt, "[bgm: keyword]") {
		t.Fatalf("prompt missing parts: %s", prompt)
	}
	if BuildKeywordPrompt(nil, nil) != "" {
		t.Fatal("empty vocabulary should give empty prompt")
	}
}
