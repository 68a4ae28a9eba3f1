package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"openidle.dev/internal/persistence/archive"
	"openidle.dev/internal/persistence/journal"
	"openidle.dev/internal/persistence/savefile"
	"openidle.dev/internal/protocol"
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/engine"
	"openidle.dev/internal/sim/tuning"
	"openidle.dev/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadServerConfig(os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}
	if tune.ProtocolVersion != protocol.Version {
		logger.Fatalf("tuning protocol_version %q does not match server %q", tune.ProtocolVersion, protocol.Version)
	}

	r, err := engine.NewReducer(cats, engine.ConfigFromTuning(tune))
	if err != nil {
		logger.Fatalf("reducer: %v", err)
	}
	e := engine.New(r, engine.OptionsFromTuning(tune))
	e.SetLogger(logger)

	if !cfg.FreshStart {
		resume(e, cfg.SavePath, logger)
	}

	idx, err := openRuntimeIndex(cfg.DataDir, cfg.DisableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cfg.ConfigDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	jw := journal.NewWriter(filepath.Join(cfg.DataDir, "journal"))
	defer jw.Close()
	if idx != nil {
		e.SetJournal(multiJournal{jw, idx})
	} else {
		e.SetJournal(jw)
	}

	ctx, cancel := signalContext()
	defer cancel()

	saver := &saveWriter{dataDir: cfg.DataDir, savePath: cfg.SavePath, idx: idx, logger: logger}
	saveCh := make(chan savefile.Save, 4)
	e.SetSaveSink(saveCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-saveCh:
				saver.persist(s)
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	wsSrv := ws.NewServer(e, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/stats", func(rw http.ResponseWriter, r *http.Request) {
		st := e.State()
		out := map[string]any{
			"tick":           e.CurrentTick(),
			"total_time_ms":  st.TotalTimeMs,
			"catalog_digest": cats.Digest,
			"sessions":       wsSrv.Sessions(),
			"active_tasks":   st.ActiveTaskIDs,
		}
		if idx != nil {
			out["index"] = idx.Stats()
			qctx, qcancel := context.WithTimeout(r.Context(), 2*time.Second)
			if counts, err := idx.CommandCounts(qctx); err == nil {
				out["command_counts"] = counts
			}
			qcancel()
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(out)
	})
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (tick=%s, catalogs=%s)", cfg.Addr, e.TickDuration(), cats.Digest[:12])
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	cancel()
	<-runDone
	saver.persist(e.Snapshot("shutdown"))
}

// resume loads the save at path into e when one exists. A save written
// against other catalogs still loads; unknown ids are dropped on decode.
func resume(e *engine.Engine, path string, logger *log.Logger) {
	if _, err := os.Stat(path); err != nil {
		logger.Printf("no save at %s; starting a new game", path)
		return
	}
	h, raw, err := savefile.Read(path)
	if err != nil {
		logger.Fatalf("read save: %v", err)
	}
	if h.CatalogDigest != e.Reducer().Catalogs().Digest {
		logger.Printf("save %s was written against other catalogs; normalizing", path)
	}
	if err := e.Restore(h, raw); err != nil {
		logger.Fatalf("restore save: %v", err)
	}
	logger.Printf("resumed %s at tick %d (%s played)", path, h.Tick, time.Duration(h.TotalTimeMs)*time.Millisecond)
}

type saveWriter struct {
	dataDir  string
	savePath string
	idx      runtimeIndex
	logger   *log.Logger
}

// persist writes s. A pre_reset save is kept beside the current one and
// archived as a finished run.
func (w *saveWriter) persist(s savefile.Save) {
	path := w.savePath
	if s.Header.Reason == "pre_reset" {
		path = filepath.Join(filepath.Dir(w.savePath), "pre_reset.save.zst")
	}
	if err := savefile.Write(path, s); err != nil {
		w.logger.Printf("save write: %v", err)
		return
	}
	if fi, err := os.Stat(path); err == nil {
		w.logger.Printf("saved %s tick=%d size=%s", s.Header.Reason, s.Header.Tick, humanize.Bytes(uint64(fi.Size())))
	}
	if w.idx != nil {
		w.idx.RecordSave(path, s.Header)
	}
	if s.Header.Reason != "pre_reset" {
		return
	}
	run, archived, err := archive.ArchiveRun(w.dataDir, path, s.Header)
	if err != nil {
		w.logger.Printf("archive run: %v", err)
		return
	}
	w.logger.Printf("archived run %d to %s", run, archived)
	if w.idx != nil {
		w.idx.RecordRun(run, s.Header.Tick, archived)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
