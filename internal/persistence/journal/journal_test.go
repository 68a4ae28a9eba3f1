package journal

import (
	"path/filepath"
	"testing"
	"time"

	"openidle.dev/internal/sim/engine"
)

func TestWriteRead_RotatesHourly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	w := NewWriter(dir)
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.WriteTick(engine.TickEntry{Tick: 1, Commands: []engine.Command{engine.TriggerAction("earn")}, DtMs: 100, Digest: "a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteTick(engine.TickEntry{Tick: 2, DtMs: 100, Digest: "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.WriteTick(engine.TickEntry{Tick: 3, DtMs: 100, Digest: "c"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "journal-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}

	var got []engine.TickEntry
	if err := Read(dir, func(e engine.TickEntry) error { got = append(got, e); return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 || got[0].Commands[0].ID != "earn" || got[2].Digest != "c" {
		t.Fatalf("entries=%+v", got)
	}
}

func TestReopenAppends(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := uint64(1); i <= 2; i++ {
		w := NewWriter(dir)
		w.now = func() time.Time { return now }
		if err := w.WriteTick(engine.TickEntry{Tick: i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	n := 0
	if err := Read(dir, func(engine.TickEntry) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("entries=%d want 2", n)
	}
}

func TestRead_MissingDir(t *testing.T) {
	if err := Read(filepath.Join(t.TempDir(), "nope"), func(engine.TickEntry) error { return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
}
