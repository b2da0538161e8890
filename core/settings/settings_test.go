package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ChatBGM/model"
)

type memBackend struct {
	mu    sync.Mutex
	saved *model.Settings
	saves int
}

func (m *memBackend) Load(context.Context) (*model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return nil, nil
	}
	cp := m.saved.Clone()
	return &cp, nil
}

func (m *memBackend) Save(_ context.Context, s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = &s
	m.saves++
	return nil
}

func TestEnsureDefaults(t *testing.T) {
	s := model.Settings{
		PlayMode:     "shuffle",
		GlobalVolume: 1.7,
		TimeMode: model.TimeMode{
			Day4: []model.TimeSlot{{Name: "half", Start: "00:00", End: "11:59"}},
		},
	}
	if !EnsureDefaults(&s) {
		t.Fatal("expected changes")
	}
	if s.PlayMode != model.PlayModeLoopList || s.KeywordSubMode != model.KeywordSubModeMatching {
		t.Fatalf("enum defaults not applied: %+v", s)
	}
	if s.GlobalVolume != 1 {
		t.Fatalf("volume not clamped: %v", s.GlobalVolume)
	}
	if len(s.TimeMode.Day4) != 4 || len(s.TimeMode.AmPm2) != 2 {
		t.Fatalf("slot tables not restored: %+v", s.TimeMode)
	}
	if s.CharacterBindings == nil {
		t.Fatal("bindings map should be initialised")
	}
	if EnsureDefaults(&s) {
		t.Fatal("second pass should be a no-op")
	}
}

func TestStoreDefaultsWhenEmpty(t *testing.T) {
	backend := &memBackend{}
	store, err := NewStore(context.Background(), backend, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	snap := store.Snapshot()
	if !snap.Enabled || snap.GlobalVolume != DefaultGlobalVolume {
		t.Fatalf("unexpected defaults %+v", snap)
	}
	if err := store.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if backend.saved == nil {
		t.Fatal("defaults should be persisted")
	}
}

func TestStoreUpdateNotifiesAndPersists(t *testing.T) {
	backend := &memBackend{}
	store, err := NewStore(context.Background(), backend, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_ = store.Flush()

	var got []model.Settings
	store.Subscribe(func(s model.Settings) { got = append(got, s) })

	store.Update(func(s *model.Settings) { s.KeywordMode = true })
	store.Update(func(s *model.Settings) { s.PlayMode = "bogus" })

	if len(got) != 2 || !got[1].KeywordMode || got[1].PlayMode != model.PlayModeLoopList {
		t.Fatalf("unexpected notifications %+v", got)
	}
	if backend.saves != 1 {
		t.Fatalf("updates should be debounced, saves=%d", backend.saves)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if backend.saves != 2 || !backend.saved.KeywordMode {
		t.Fatalf("close should flush pending update, saves=%d", backend.saves)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store, _ := NewStore(context.Background(), &memBackend{}, time.Hour)
	snap := store.Snapshot()
	snap.CharacterBindings["c1"] = "p1"
	if _, ok := store.Snapshot().CharacterBindings["c1"]; ok {
		t.Fatal("snapshot mutation leaked into store")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	fb := NewFileBackend(path)

	s, err := fb.Load(context.Background())
	if err != nil || s != nil {
		t.Fatalf("missing file should load as nil, got %+v, %v", s, err)
	}

	want := Defaults()
	want.ActivePresetID = "p1"
	want.CharacterBindings["alice"] = "p2"
	if err := fb.Save(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := fb.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ActivePresetID != "p1" || got.CharacterBindings["alice"] != "p2" || len(got.TimeMode.Day4) != 4 {
		t.Fatalf("unexpected round trip %+v", got)
	}
}

func TestFileBackendWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	fb := NewFileBackend(path)
	if err := fb.Save(context.Background(), Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *model.Settings, 4)
	if err := fb.Watch(ctx, func(s *model.Settings) { changes <- s }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("enabled: true\nplayMode: random\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case s := <-changes:
		if s.PlayMode != model.PlayModeRandom {
			t.Fatalf("unexpected reloaded settings %+v", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("external edit was not observed")
	}
}
