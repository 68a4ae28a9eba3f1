package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"openidle.dev/internal/persistence/journal"
	"openidle.dev/internal/persistence/savefile"
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/engine"
	"openidle.dev/internal/sim/tuning"
)

func main() {
	var (
		savePath   = flag.String("save", "", "save to start from (optional; default: a new game)")
		journalDir = flag.String("journal", "./data/journal", "journal dir containing journal-*.jsonl.zst")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	r, err := engine.NewReducer(cats, engine.ConfigFromTuning(tune))
	if err != nil {
		fmt.Fprintln(os.Stderr, "reducer:", err)
		os.Exit(1)
	}
	e := engine.New(r, engine.OptionsFromTuning(tune))

	if *savePath != "" {
		h, raw, err := savefile.Read(*savePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read save:", err)
			os.Exit(1)
		}
		if h.CatalogDigest != cats.Digest {
			fmt.Fprintln(os.Stderr, "warning: save catalog digest differs from", *configDir)
		}
		if err := e.Restore(h, raw); err != nil {
			fmt.Fprintln(os.Stderr, "restore:", err)
			os.Exit(1)
		}
		fmt.Printf("save v%d tick=%d reason=%s played=%dms\n", h.Version, h.Tick, h.Reason, h.TotalTimeMs)
	}

	files, err := journal.Files(*journalDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files found in", *journalDir)
		os.Exit(1)
	}
	var size uint64
	for _, p := range files {
		if fi, err := os.Stat(p); err == nil {
			size += uint64(fi.Size())
		}
	}

	start := e.CurrentTick()
	checked, err := replay(e, *journalDir, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%s ticks from tick=%d across %d files (%s)\n",
		humanize.Comma(int64(checked)), start, len(files), humanize.Bytes(size))
}

var errDone = errors.New("done")

// replay steps e through every journaled tick after its current one and
// checks each digest. Entries at or before the current tick are skipped;
// a gap in tick numbers is an error.
func replay(e *engine.Engine, dir string, toTick uint64) (uint64, error) {
	var checked uint64
	err := journal.Read(dir, func(entry engine.TickEntry) error {
		if entry.Tick <= e.CurrentTick() {
			return nil
		}
		if toTick != 0 && entry.Tick > toTick {
			return errDone
		}
		if want := e.CurrentTick() + 1; entry.Tick != want {
			return fmt.Errorf("journal gap: want tick %d, got %d", want, entry.Tick)
		}
		tick, digest := e.Step(entry.Commands, entry.DtMs)
		if digest != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got %s want %s", tick, digest, entry.Digest)
		}
		checked++
		return nil
	})
	if errors.Is(err, errDone) {
		err = nil
	}
	return checked, err
}
