package bus

import (
	"errors"
	"testing"
	"time"
)

func playing(t *testing.T, key string, vol float64) *MemoryHandle {
	t.Helper()
	h := NewMemoryHandle()
	if err := h.Load(Source{Key: key, URL: "http://example/" + key}); err != nil {
		t.Fatalf("load: %v", err)
	}
	h.SetVolume(vol)
	if err := h.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	return h
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	return New(WithFade(20*time.Millisecond, 2*time.Millisecond))
}

func TestFreeSrcFadesEngine(t *testing.T) {
	b := newTestBus(t)
	engine := playing(t, "bgm", 0.8)
	freesrc := NewMemoryHandle()
	_ = b.Register(RoleEngine, engine)
	_ = b.Register(RoleFreeSrc, freesrc)

	b.RequestExclusive(RoleFreeSrc)
	b.Wait()

	if !engine.Paused() {
		t.Fatal("engine should be faded to pause")
	}
	if engine.Position() != 0 {
		t.Fatalf("engine should be rewound, position=%d", engine.Position())
	}
	if engine.Volume() != 0.8 {
		t.Fatalf("engine volume should be restored, got %v", engine.Volume())
	}
	if b.PreviewEnded() {
		t.Fatal("freesrc must not leave engine resumable")
	}
}

func TestPreviewPausesEngineInPlace(t *testing.T) {
	b := newTestBus(t)
	engine := playing(t, "bgm", 1)
	free := playing(t, "free", 1)
	_ = b.Register(RoleEngine, engine)
	_ = b.Register(RoleFreeSrc, free)

	b.RequestExclusive(RolePreview)
	b.Wait()

	if !engine.Paused() {
		t.Fatal("engine should be paused by preview")
	}
	if engine.Position() == 0 {
		t.Fatal("engine position should be preserved")
	}
	if !free.Paused() {
		t.Fatal("freesrc should be faded out")
	}
	if !b.PausedByPreview() {
		t.Fatal("paused-by-preview flag not set")
	}
	if !b.PreviewEnded() {
		t.Fatal("preview end should report resumable engine")
	}
	if b.PreviewEnded() {
		t.Fatal("flag should clear after preview end")
	}
}

func TestPreviewDoesNotFlagIdleEngine(t *testing.T) {
	b := newTestBus(t)
	engine := NewMemoryHandle()
	_ = b.Register(RoleEngine, engine)

	b.RequestExclusive(RolePreview)
	if b.PausedByPreview() {
		t.Fatal("idle engine should not be marked paused by preview")
	}
}

func TestEngineLeavesPreviewAlone(t *testing.T) {
	b := newTestBus(t)
	preview := playing(t, "p", 1)
	free := playing(t, "f", 1)
	_ = b.Register(RolePreview, preview)
	_ = b.Register(RoleFreeSrc, free)

	b.RequestExclusive(RoleEngine)
	b.Wait()

	if preview.Paused() {
		t.Fatal("engine activation must not touch preview")
	}
	if !free.Paused() {
		t.Fatal("freesrc should be faded out")
	}
}

func TestSFXOverlayTouchesNothing(t *testing.T) {
	b := newTestBus(t)
	engine := playing(t, "bgm", 1)
	_ = b.Register(RoleEngine, engine)

	b.RequestExclusive(RoleSFX)
	b.Wait()
	if engine.Paused() {
		t.Fatal("sfx overlay should leave engine playing")
	}
}

func TestReactivationCancelsFade(t *testing.T) {
	b := New(WithFade(time.Second, 5*time.Millisecond))
	engine := playing(t, "bgm", 0.5)
	_ = b.Register(RoleEngine, engine)

	b.FadeOut(RoleEngine)
	b.RequestExclusive(RoleEngine)
	b.Wait()

	if engine.Paused() {
		t.Fatal("cancelled fade must not pause the handle")
	}
	if engine.Volume() != 0.5 {
		t.Fatalf("volume should be restored to 0.5, got %v", engine.Volume())
	}
}

func TestHardStopWhenPausedOrSilent(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *MemoryHandle)
	}{
		{"paused", func(h *MemoryHandle) { h.Pause() }},
		{"silent", func(h *MemoryHandle) { h.SetVolume(0) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := New(WithFade(time.Hour, time.Hour))
			h := playing(t, "x", 1)
			c.setup(h)
			_ = b.Register(RoleFreeSrc, h)

			b.FadeOut(RoleFreeSrc)
			// no goroutine should be pending; Wait must return immediately
			b.Wait()
			if !h.Paused() || h.Position() != 0 {
				t.Fatalf("expected immediate hard stop, paused=%v pos=%d", h.Paused(), h.Position())
			}
		})
	}
}

func TestNilHandlesAreNoops(t *testing.T) {
	b := newTestBus(t)
	for _, r := range Roles {
		b.RequestExclusive(r)
		b.Stop(r)
		b.FadeOut(r)
	}
	b.StopAll()
	b.Wait()
}

func TestRegisterUnknownRole(t *testing.T) {
	b := newTestBus(t)
	if err := b.Register(Role("tts"), NewMemoryHandle()); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestStopAll(t *testing.T) {
	b := newTestBus(t)
	engine := playing(t, "a", 1)
	sfx := playing(t, "b", 1)
	_ = b.Register(RoleEngine, engine)
	_ = b.Register(RoleSFX, sfx)

	b.StopAll()
	if !engine.Paused() || !sfx.Paused() {
		t.Fatal("all roles should be stopped")
	}
}
