package main

import (
	"path/filepath"
	"strings"
	"testing"

	"openidle.dev/internal/persistence/journal"
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/engine"
	"openidle.dev/internal/sim/tuning"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune := tuning.Defaults()
	r, err := engine.NewReducer(cats, engine.ConfigFromTuning(tune))
	if err != nil {
		t.Fatalf("reducer: %v", err)
	}
	return engine.New(r, engine.OptionsFromTuning(tune))
}

func record(t *testing.T, dir string) string {
	t.Helper()
	e := newEngine(t)
	w := journal.NewWriter(dir)
	e.SetJournal(w)
	e.Step([]engine.Command{engine.TriggerAction("trash_search")}, 100)
	e.Step([]engine.Command{engine.ToggleTask("doom_scroll")}, 100)
	for i := 0; i < 50; i++ {
		e.Step(nil, 100)
	}
	e.Step([]engine.Command{engine.Reset()}, 100)
	if err := w.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}
	return engine.Digest(e.State())
}

func TestReplay_ReproducesDigests(t *testing.T) {
	dir := t.TempDir()
	final := record(t, dir)

	e := newEngine(t)
	checked, err := replay(e, dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 53 {
		t.Fatalf("checked=%d want 53", checked)
	}
	if got := engine.Digest(e.State()); got != final {
		t.Fatalf("final digest mismatch")
	}
}

func TestReplay_StopsAtTick(t *testing.T) {
	dir := t.TempDir()
	record(t, dir)

	e := newEngine(t)
	checked, err := replay(e, dir, 10)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 10 || e.CurrentTick() != 10 {
		t.Fatalf("checked=%d tick=%d", checked, e.CurrentTick())
	}
}

func TestReplay_DetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	w := journal.NewWriter(dir)
	_ = w.WriteTick(engine.TickEntry{Tick: 1, DtMs: 100, Digest: "bogus"})
	_ = w.Close()

	_, err := replay(newEngine(t), dir, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 1") {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestReplay_DetectsGap(t *testing.T) {
	dir := t.TempDir()
	w := journal.NewWriter(dir)
	_ = w.WriteTick(engine.TickEntry{Tick: 3, DtMs: 100})
	_ = w.Close()

	_, err := replay(newEngine(t), dir, 0)
	if err == nil || !strings.Contains(err.Error(), "journal gap") {
		t.Fatalf("expected gap error, got %v", err)
	}
}
