// Package indexdb maintains a SQLite read model of what the engine did:
// applied commands, saves, archived runs and the content that was loaded.
// The journal stays the source of truth; the index may drop rows under load.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"openidle.dev/internal/persistence/savefile"
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/engine"
	"openidle.dev/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick atomic.Uint64
	dropSave atomic.Uint64
	dropRun  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSave
	reqRun
)

type req struct {
	kind reqKind

	tick engine.TickEntry
	save saveRow
	run  runRow
}

type saveRow struct {
	Tick          uint64
	Path          string
	Reason        string
	TotalTimeMs   int64
	CatalogDigest string
	RecordedAt    string
}

type runRow struct {
	Run        int
	EndTick    uint64
	Path       string
	RecordedAt string
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
	DropSaveTotal uint64 `json:"drop_save_total"`
	DropRunTotal  uint64 `json:"drop_run_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			dt_ms INTEGER NOT NULL,
			commands INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			target_id TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_kind_target ON commands(kind, target_id);`,
		`CREATE TABLE IF NOT EXISTS saves (
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			reason TEXT NOT NULL,
			total_time_ms INTEGER NOT NULL,
			catalog_digest TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (tick, reason)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run INTEGER PRIMARY KEY,
			end_tick INTEGER NOT NULL,
			save_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTick.Load(),
		DropSaveTotal: s.dropSave.Load(),
		DropRunTotal:  s.dropRun.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

// WriteTick queues a journal entry. It never blocks the engine.
func (s *SQLiteIndex) WriteTick(entry engine.TickEntry) error {
	if s == nil {
		return nil
	}
	// Ticks without commands only matter to the journal.
	if len(entry.Commands) == 0 {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) RecordSave(path string, h savefile.Header) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqSave, save: saveRow{
		Tick:          h.Tick,
		Path:          path,
		Reason:        h.Reason,
		TotalTimeMs:   h.TotalTimeMs,
		CatalogDigest: h.CatalogDigest,
		RecordedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropSave)
}

func (s *SQLiteIndex) RecordRun(run int, endTick uint64, archivedPath string) {
	if s == nil || run <= 0 || archivedPath == "" {
		return
	}
	s.enqueue(req{kind: reqRun, run: runRow{
		Run:        run,
		EndTick:    endTick,
		Path:       archivedPath,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropRun)
}

// UpsertCatalogs stores the raw catalog files with their digests, plus the
// tuning values actually applied.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	add := func(name, file, digest string) {
		if configDir == "" {
			return
		}
		b, err := os.ReadFile(filepath.Join(configDir, file))
		if err != nil {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	add("resources", "resources.json", cats.Resources.Digest)
	add("actions", "actions.json", cats.Actions.Digest)
	add("tasks", "tasks.json", cats.Tasks.Digest)
	add("converters", "converters.json", cats.Converters.Digest)
	add("items", "items.json", cats.Items.Digest)
	add("slots", "slots.json", cats.Slots.Digest)
	add("categories", "categories.json", cats.Categories.Digest)
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('catalog_digest',?)`, cats.Digest); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CommandCounts reports how often each command kind was applied.
func (s *SQLiteIndex) CommandCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM commands GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,dt_ms,commands) VALUES(?,?,?,?)`)
	insertCommand, _ := s.db.Prepare(`INSERT OR REPLACE INTO commands(tick,seq,kind,target_id,raw_json) VALUES(?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(tick,path,reason,total_time_ms,catalog_digest,recorded_at) VALUES(?,?,?,?,?,?)`)
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run,end_tick,save_path,recorded_at) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertCommand, insertSave, insertRun} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			if !exec(insertTick, int64(t.Tick), t.Digest, t.DtMs, len(t.Commands)) {
				continue
			}
			for i, c := range t.Commands {
				raw, _ := json.Marshal(c)
				if !exec(insertCommand, int64(t.Tick), i, string(c.Kind), c.ID, string(raw)) {
					break
				}
			}

		case reqSave:
			sv := r.save
			if !exec(insertSave, int64(sv.Tick), sv.Path, sv.Reason, sv.TotalTimeMs, sv.CatalogDigest, sv.RecordedAt) {
				continue
			}

		case reqRun:
			ru := r.run
			if !exec(insertRun, ru.Run, int64(ru.EndTick), ru.Path, ru.RecordedAt) {
				continue
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
