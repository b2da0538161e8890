package preset

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ChatBGM/model"
)

type memRepo struct {
	mu      sync.Mutex
	presets map[string]*model.Preset
	order   []string
}

func newMemRepo(seed ...*model.Preset) *memRepo {
	r := &memRepo{presets: map[string]*model.Preset{}}
	for _, p := range seed {
		r.presets[p.ID] = p.Clone()
		r.order = append(r.order, p.ID)
	}
	return r
}

func (r *memRepo) Create(_ context.Context, p *model.Preset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.ID] = p.Clone()
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*model.Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presets[id].Clone(), nil
}

func (r *memRepo) List(context.Context) ([]*model.Preset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Preset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.presets[id].Clone())
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, p *model.Preset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.ID] = p.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.presets, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.order)), nil
}

type memSettings struct {
	mu sync.Mutex
	s  model.Settings
}

func (m *memSettings) Snapshot() model.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s.Clone()
}

func (m *memSettings) Update(fn func(*model.Settings)) model.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.s)
	return m.s.Clone()
}

func TestNewCatalogCreatesDefaultPreset(t *testing.T) {
	settings := &memSettings{}
	c, err := NewCatalog(context.Background(), newMemRepo(), settings)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	list := c.List()
	if len(list) != 1 || list[0].Name != DefaultPresetName {
		t.Fatalf("expected one default preset, got %+v", list)
	}
	if settings.Snapshot().ActivePresetID != list[0].ID {
		t.Fatal("default preset should become active")
	}
}

func TestNormalize(t *testing.T) {
	p := &model.Preset{
		Name:          "  ",
		DefaultBgmKey: "gone.mp3",
		Tracks: []model.TrackEntry{
			{FileKey: " music/Rainy Day.mp3 "},
			{FileKey: "music/Rainy Day.mp3", Name: "dup"},
			{FileKey: "", Name: "inert"},
			{FileKey: "https://cdn.example/x.ogg?sig=1", Volume: 3},
		},
	}
	if !Normalize(p) {
		t.Fatal("expected changes")
	}
	if p.ID == "" || p.Name != DefaultPresetName {
		t.Fatalf("id/name not filled: %+v", p)
	}
	if len(p.Tracks) != 3 {
		t.Fatalf("duplicate fileKey should be dropped: %+v", p.Tracks)
	}
	if p.Tracks[0].Name != "Rainy Day" || p.Tracks[0].ID == "" || p.Tracks[0].Type != model.TrackTypeBGM {
		t.Fatalf("track not normalized: %+v", p.Tracks[0])
	}
	if p.Tracks[2].Name != "x" || p.Tracks[2].Volume != 1 {
		t.Fatalf("url track not normalized: %+v", p.Tracks[2])
	}
	if p.DefaultBgmKey != "" {
		t.Fatal("dangling default should be cleared")
	}
	if Normalize(p) {
		t.Fatal("second pass should be a no-op")
	}
}

func TestDeleteProtectsLastPreset(t *testing.T) {
	settings := &memSettings{}
	c, _ := NewCatalog(context.Background(), newMemRepo(), settings)
	only := c.List()[0]

	if err := c.Delete(context.Background(), only.ID); !errors.Is(err, ErrLastPreset) {
		t.Fatalf("expected ErrLastPreset, got %v", err)
	}
	if err := c.Delete(context.Background(), "missing"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
}

func TestDeleteActiveFallsBackToFirst(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(
		&model.Preset{ID: "p1", Name: "one"},
		&model.Preset{ID: "p2", Name: "two"},
	)
	settings := &memSettings{s: model.Settings{ActivePresetID: "p2"}}
	c, err := NewCatalog(ctx, repo, settings)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if err := c.Bind("alice", "p2"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if err := c.Delete(ctx, "p2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap := settings.Snapshot()
	if snap.ActivePresetID != "p1" {
		t.Fatalf("active should fall back to p1, got %q", snap.ActivePresetID)
	}
	if _, ok := snap.CharacterBindings["alice"]; ok {
		t.Fatal("binding to deleted preset should be removed")
	}
	if c.Get("p2") != nil {
		t.Fatal("deleted preset still cached")
	}
}

func TestImportAssignsFreshIDs(t *testing.T) {
	ctx := context.Background()
	src := &model.Preset{ID: "p1", Name: "one", DefaultBgmKey: "a.mp3", Tracks: []model.TrackEntry{{ID: "t1", FileKey: "a.mp3"}}}
	c, _ := NewCatalog(ctx, newMemRepo(src), &memSettings{})

	imported, err := c.Import(ctx, src)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.ID == "p1" || imported.Tracks[0].ID == "t1" {
		t.Fatalf("import should not reuse ids: %+v", imported)
	}
	if imported.DefaultKey() != "a.mp3" {
		t.Fatalf("default key lost on import: %q", imported.DefaultBgmKey)
	}
	if len(c.List()) != 2 {
		t.Fatalf("expected 2 presets, got %d", len(c.List()))
	}
}

func TestBindings(t *testing.T) {
	settings := &memSettings{}
	c, _ := NewCatalog(context.Background(), newMemRepo(&model.Preset{ID: "p1", Name: "one"}), settings)

	if err := c.Bind("bob", "missing"); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
	if err := c.Bind("bob", "p1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got := c.BoundPresetID("bob"); got != "p1" {
		t.Fatalf("bound preset = %q", got)
	}
	c.Unbind("bob")
	if got := c.BoundPresetID("bob"); got != "" {
		t.Fatalf("binding should be removed, got %q", got)
	}
}

func TestSaveNormalizes(t *testing.T) {
	ctx := context.Background()
	c, _ := NewCatalog(ctx, newMemRepo(&model.Preset{ID: "p1", Name: "one"}), &memSettings{})

	p := c.Get("p1")
	p.Tracks = append(p.Tracks, model.TrackEntry{FileKey: "b.mp3"})
	p.DefaultBgmKey = "b.mp3"
	saved, err := c.Save(ctx, p)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Tracks[0].Name != "b" || c.Get("p1").DefaultKey() != "b.mp3" {
		t.Fatalf("unexpected saved preset %+v", saved)
	}
	if _, err := c.Save(ctx, &model.Preset{ID: "zzz"}); !errors.Is(err, ErrPresetNotFound) {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
}
