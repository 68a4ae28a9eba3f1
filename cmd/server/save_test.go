package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"openidle.dev/internal/persistence/savefile"
	"openidle.dev/internal/sim/state"
)

func gameState(totalMs int64) *state.GameState {
	return &state.GameState{
		Resources:          map[string]state.Resource{},
		Actions:            map[string]state.Action{},
		Tasks:              map[string]state.Task{},
		Converters:         map[string]state.Converter{},
		Inventory:          []string{},
		Equipment:          map[string]string{},
		Modifiers:          []state.Modifier{},
		Log:                []string{},
		TotalTimeMs:        totalMs,
		ActiveTaskIDs:      []string{},
		MaxConcurrentTasks: 1,
	}
}

func TestSaveWriter_PreResetIsArchived(t *testing.T) {
	dir := t.TempDir()
	w := &saveWriter{
		dataDir:  dir,
		savePath: filepath.Join(dir, "saves", "current.save.zst"),
		logger:   log.New(io.Discard, "", 0),
	}

	w.persist(savefile.Save{
		Header: savefile.Header{Version: savefile.Version, Tick: 40, Reason: "autosave"},
		State:  gameState(4000),
	})
	if _, err := os.Stat(w.savePath); err != nil {
		t.Fatalf("autosave not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("autosave must not create an archive (err=%v)", err)
	}

	w.persist(savefile.Save{
		Header: savefile.Header{Version: savefile.Version, Tick: 41, Reason: "pre_reset"},
		State:  gameState(4100),
	})
	for _, p := range []string{
		filepath.Join(dir, "saves", "pre_reset.save.zst"),
		filepath.Join(dir, "archives", "run_001", "pre_reset.save.zst"),
		filepath.Join(dir, "archives", "run_001", "meta.json"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
	}

	h, _, err := savefile.Read(w.savePath)
	if err != nil {
		t.Fatalf("read current: %v", err)
	}
	if h.Tick != 40 {
		t.Fatalf("pre_reset save must not replace the current save, tick=%d", h.Tick)
	}
}
