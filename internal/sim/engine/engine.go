package engine

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"openidle.dev/internal/persistence/savefile"
	"openidle.dev/internal/sim/logic/rng"
	"openidle.dev/internal/sim/state"
	"openidle.dev/internal/sim/tuning"
)

type Options struct {
	TickDuration       time.Duration
	AutosaveEveryTicks int
	Seed               int64
	InboxSize          int
}

func OptionsFromTuning(t tuning.Tuning) Options {
	return Options{
		TickDuration:       time.Duration(t.TickDurationMs) * time.Millisecond,
		AutosaveEveryTicks: t.AutosaveEveryTicks,
		Seed:               t.Seed,
	}
}

// TickEntry records one simulated tick: the commands applied in order, the
// time advanced after them and the digest of the resulting state.
type TickEntry struct {
	Tick     uint64    `json:"tick"`
	Commands []Command `json:"commands,omitempty"`
	DtMs     int64     `json:"dt_ms"`
	Digest   string    `json:"digest"`
}

type Journal interface {
	WriteTick(entry TickEntry) error
}

// Frame is what subscribers receive. State must be treated as read-only.
type Frame struct {
	Tick  uint64
	State *state.GameState
}

// Engine owns one game: its state, its random source and the tick counter.
// All transitions happen on the goroutine running Run (or the caller of Step
// when Run is not in use); other goroutines read the latest published state.
type Engine struct {
	r      *Reducer
	opts   Options
	logger *log.Logger

	tick atomic.Uint64
	cur  atomic.Pointer[state.GameState]
	rnd  *rng.SplitMix

	inbox    chan Command
	stop     chan struct{}
	stopOnce sync.Once

	journal  Journal
	saveSink chan<- savefile.Save

	subsMu sync.Mutex
	subs   map[string]chan Frame
}

func New(r *Reducer, opts Options) *Engine {
	if opts.TickDuration <= 0 {
		opts.TickDuration = 100 * time.Millisecond
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 1024
	}
	e := &Engine{
		r:      r,
		opts:   opts,
		logger: log.New(io.Discard, "", 0),
		rnd:    rng.New(opts.Seed),
		inbox:  make(chan Command, opts.InboxSize),
		stop:   make(chan struct{}),
		subs:   map[string]chan Frame{},
	}
	e.cur.Store(r.Initial())
	return e
}

func (e *Engine) SetLogger(l *log.Logger) {
	if l != nil {
		e.logger = l
	}
}

func (e *Engine) SetJournal(j Journal)                { e.journal = j }
func (e *Engine) SetSaveSink(ch chan<- savefile.Save) { e.saveSink = ch }

func (e *Engine) Reducer() *Reducer           { return e.r }
func (e *Engine) State() *state.GameState     { return e.cur.Load() }
func (e *Engine) CurrentTick() uint64         { return e.tick.Load() }
func (e *Engine) TickDuration() time.Duration { return e.opts.TickDuration }
func (e *Engine) Inbox() chan<- Command       { return e.inbox }
func (e *Engine) RNGState() uint64            { return e.rnd.State() }
func (e *Engine) Query() *Query               { return e.r.Query(e.State()) }

// Restore replaces the game with a saved one. It must be called before Run
// or from the loop goroutine.
func (e *Engine) Restore(h savefile.Header, raw json.RawMessage) error {
	st, err := e.r.Decode(raw)
	if err != nil {
		return err
	}
	e.rnd = rng.Restore(h.RNGState)
	e.tick.Store(h.Tick)
	e.cur.Store(st)
	return nil
}

// Submit queues cmd for the next tick. Time is driven by the loop, so
// advance_time is refused, as is anything when the inbox is full.
func (e *Engine) Submit(cmd Command) bool {
	if !cmd.Kind.Valid() || cmd.Kind == CmdAdvanceTime {
		return false
	}
	select {
	case e.inbox <- cmd:
		return true
	default:
		e.logger.Printf("inbox full, dropping %s", cmd.Kind)
		return false
	}
}

// Export renders the current state in the portable text form.
func (e *Engine) Export() (string, error) {
	return savefile.EncodeText(e.State())
}

// Import decodes a portable save and queues it as a load. A malformed save
// reports false and leaves the current game alone.
func (e *Engine) Import(text string) bool {
	raw, err := savefile.DecodeText(text)
	if err != nil {
		e.logger.Printf("import rejected: %v", err)
		return false
	}
	st, err := e.r.Decode(raw)
	if err != nil {
		e.logger.Printf("import rejected: %v", err)
		return false
	}
	return e.Submit(LoadState(st))
}

func (e *Engine) Subscribe(id string) <-chan Frame {
	ch := make(chan Frame, 1)
	e.subsMu.Lock()
	if old, ok := e.subs[id]; ok {
		close(old)
	}
	e.subs[id] = ch
	e.subsMu.Unlock()
	ch <- Frame{Tick: e.CurrentTick(), State: e.State()}
	return ch
}

func (e *Engine) Unsubscribe(id string) {
	e.subsMu.Lock()
	if ch, ok := e.subs[id]; ok {
		close(ch)
		delete(e.subs, id)
	}
	e.subsMu.Unlock()
}

func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.TickDuration)
	defer ticker.Stop()
	dtMs := e.opts.TickDuration.Milliseconds()

	var pending []Command
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case cmd := <-e.inbox:
			pending = append(pending, cmd)
		case <-ticker.C:
			e.step(pending, dtMs)
			pending = pending[:0]
		}
	}
}

func (e *Engine) Stop() { e.stopOnce.Do(func() { close(e.stop) }) }

// Step applies cmds in order, then advances time by dtMs, as one tick. It is
// the synchronous form of the loop, for tests and replays.
func (e *Engine) Step(cmds []Command, dtMs int64) (tick uint64, digest string) {
	return e.step(cmds, dtMs)
}

func (e *Engine) step(cmds []Command, dtMs int64) (uint64, string) {
	st := e.cur.Load()
	var applied []Command
	for _, cmd := range cmds {
		if !cmd.Kind.Valid() {
			continue
		}
		if cmd.Kind == CmdReset {
			e.emitSave("pre_reset", st)
		}
		st = e.r.Reduce(st, cmd, e.rnd)
		applied = append(applied, cmd)
	}
	if dtMs > 0 {
		st = e.r.Reduce(st, AdvanceTime(dtMs), e.rnd)
	}

	tick := e.tick.Add(1)
	e.cur.Store(st)
	digest := Digest(st)

	if e.journal != nil {
		if err := e.journal.WriteTick(TickEntry{Tick: tick, Commands: applied, DtMs: dtMs, Digest: digest}); err != nil {
			e.logger.Printf("journal: %v", err)
		}
	}
	if every := e.opts.AutosaveEveryTicks; every > 0 && tick%uint64(every) == 0 {
		e.emitSave("autosave", st)
	}
	e.broadcast(Frame{Tick: tick, State: st})
	return tick, digest
}

// Snapshot captures the current game as a save.
func (e *Engine) Snapshot(reason string) savefile.Save {
	return e.snapshot(reason, e.State())
}

func (e *Engine) snapshot(reason string, st *state.GameState) savefile.Save {
	return savefile.Save{
		Header: savefile.Header{
			Version:       savefile.Version,
			Tick:          e.tick.Load(),
			TotalTimeMs:   st.TotalTimeMs,
			CatalogDigest: e.r.cats.Digest,
			RNGState:      e.rnd.State(),
			Reason:        reason,
			SavedAtUnixMs: time.Now().UnixMilli(),
		},
		State: st,
	}
}

func (e *Engine) emitSave(reason string, st *state.GameState) {
	if e.saveSink == nil {
		return
	}
	select {
	case e.saveSink <- e.snapshot(reason, st):
	default:
		e.logger.Printf("save sink full, dropping %s save at tick %d", reason, e.tick.Load())
	}
}

func (e *Engine) broadcast(f Frame) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		sendLatest(ch, f)
	}
}

// sendLatest delivers v, displacing an undelivered older value if needed.
func sendLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
