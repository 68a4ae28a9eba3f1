package main

import (
	"context"
	"errors"
	"path/filepath"

	"openidle.dev/internal/persistence/indexdb"
	"openidle.dev/internal/persistence/savefile"
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/engine"
	"openidle.dev/internal/sim/tuning"
)

type runtimeIndex interface {
	engine.Journal
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordSave(path string, h savefile.Header)
	RecordRun(run int, endTick uint64, archivedPath string)
	CommandCounts(ctx context.Context) (map[string]int, error)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "game.sqlite"))
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// multiJournal fans a tick out to every journal; a nil entry is skipped.
type multiJournal []engine.Journal

func (m multiJournal) WriteTick(entry engine.TickEntry) error {
	var errs []error
	for _, j := range m {
		if j == nil {
			continue
		}
		if err := j.WriteTick(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
