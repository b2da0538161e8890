package selection

import (
	"slices"
	"testing"

	"ChatBGM/model"
)

func names(entries []model.TrackEntry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].DisplayName()
	}
	return out
}

func TestSortEntries(t *testing.T) {
	preset := &model.Preset{Tracks: []model.TrackEntry{
		{Name: "B", FileKey: "b", Priority: 1},
		{Name: "A", FileKey: "a", Priority: 1},
		{Name: "C", FileKey: "c", Priority: 2},
	}}

	cases := []struct {
		mode model.SortMode
		want []string
	}{
		{model.SortPriorityDesc, []string{"C", "A", "B"}},
		{model.SortPriorityAsc, []string{"A", "B", "C"}},
		{model.SortNameAsc, []string{"A", "B", "C"}},
		{model.SortNameDesc, []string{"C", "B", "A"}},
		{model.SortAddedAsc, []string{"B", "A", "C"}},
		{model.SortAddedDesc, []string{"C", "A", "B"}},
	}

	for _, c := range cases {
		t.Run(string(c.mode), func(t *testing.T) {
			got := names(SortEntries(preset, c.mode))
			if !slices.Equal(got, c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}

	if preset.Tracks[0].Name != "B" {
		t.Fatalf("input was mutated: %v", names(preset.Tracks))
	}
}

func TestSortEntriesNumericCaseInsensitive(t *testing.T) {
	preset := &model.Preset{Tracks: []model.TrackEntry{
		{Name: "track10", FileKey: "10"},
		{Name: "Track2", FileKey: "2"},
		{Name: "track1", FileKey: "1"},
	}}
	got := names(SortEntries(preset, model.SortNameAsc))
	want := []string{"track1", "Track2", "track10"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSortedKeysSkipsInert(t *testing.T) {
	preset := &model.Preset{Tracks: []model.TrackEntry{
		{Name: "a", FileKey: "a.mp3"},
		{Name: "blank"},
		{Name: "s", FileKey: "s.mp3", Type: model.TrackTypeSFX},
	}}
	if got := SortedKeys(preset, model.SortAddedAsc); !slices.Equal(got, []string{"a.mp3", "s.mp3"}) {
		t.Fatalf("unexpected keys %v", got)
	}
	if got := SortedBGMKeys(preset, model.SortAddedAsc); !slices.Equal(got, []string{"a.mp3"}) {
		t.Fatalf("unexpected bgm keys %v", got)
	}
}

func TestFindByKey(t *testing.T) {
	preset := &model.Preset{Tracks: []model.TrackEntry{{FileKey: "x"}, {FileKey: "y", Name: "why"}}}
	if e := FindByKey(preset, "y"); e == nil || e.Name != "why" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if FindByKey(preset, "z") != nil || FindByKey(nil, "x") != nil || FindByKey(preset, "") != nil {
		t.Fatal("expected nil for missing lookups")
	}
}

func TestCycleSortMode(t *testing.T) {
	mode := model.SortAddedAsc
	seen := map[model.SortMode]bool{}
	for i := 0; i < len(sortCycle); i++ {
		seen[mode] = true
		mode = CycleSortMode(mode)
	}
	if mode != model.SortAddedAsc || len(seen) != 6 {
		t.Fatalf("cycle did not return to start: %v (%d states)", mode, len(seen))
	}
	if CycleSortMode("bogus") != model.SortAddedAsc {
		t.Fatal("unknown mode should restart the cycle")
	}
}

func TestPickRandomKey(t *testing.T) {
	keys := []string{"k1", "k2", "k3"}
	for i := 0; i < 200; i++ {
		if got := PickRandomKey(keys, "k2"); got == "k2" {
			t.Fatalf("excluded key returned on iteration %d", i)
		}
	}
	if got := PickRandomKey([]string{"k1"}, "k1"); got != "k1" {
		t.Fatalf("single key should be returned, got %q", got)
	}
	if got := PickRandomKey(nil, "k1"); got != "" {
		t.Fatalf("empty list should yield empty key, got %q", got)
	}
}

func TestPickRandomKeyUsesAllCandidates(t *testing.T) {
	orig := randIntN
	defer func() { randIntN = orig }()

	randIntN = func(n int) int { return n - 1 }
	if got := PickRandomKey([]string{"k1", "k2", "k3"}, "k3"); got != "k2" {
		t.Fatalf("got %q, want k2", got)
	}
}

func TestStep(t *testing.T) {
	keys := []string{"k1", "k2", "k3"}
	cases := []struct {
		name    string
		current string
		delta   int
		wantIdx int
		wantKey string
	}{
		{"next wraps", "k3", 1, 0, "k1"},
		{"prev wraps", "k1", -1, 2, "k3"},
		{"next middle", "k1", 1, 1, "k2"},
		{"unknown next starts first", "", 1, 0, "k1"},
		{"unknown prev starts last", "", -1, 2, "k3"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			idx, key := Step(keys, c.current, c.delta)
			if idx != c.wantIdx || key != c.wantKey {
				t.Fatalf("Step(%q,%d) = %d,%q want %d,%q", c.current, c.delta, idx, key, c.wantIdx, c.wantKey)
			}
		})
	}
	if idx, key := Step(nil, "k1", 1); idx != -1 || key != "" {
		t.Fatalf("empty list: got %d,%q", idx, key)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(-1, 3) != 2 || Wrap(3, 3) != 0 || Wrap(5, 0) != 0 {
		t.Fatal("unexpected wrap result")
	}
}
