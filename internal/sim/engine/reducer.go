package engine

import (
	"fmt"

	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/logic/modifiers"
	"openidle.dev/internal/sim/logic/rng"
	"openidle.dev/internal/sim/logic/unlock"
	"openidle.dev/internal/sim/state"
	"openidle.dev/internal/sim/tuning"
)

type Config struct {
	LogCapacity               int
	DefaultMaxConcurrentTasks int
	DefaultRestTask           string
	WelcomeMessage            string
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		LogCapacity:               t.LogCapacity,
		DefaultMaxConcurrentTasks: t.DefaultMaxConcurrentTasks,
		DefaultRestTask:           t.DefaultRestTask,
		WelcomeMessage:            t.WelcomeMessage,
	}
}

// Reducer is the state-transition function. It holds only immutable content
// and configuration, so one Reducer can serve any number of states.
type Reducer struct {
	cats  *catalogs.Catalogs
	cfg   Config
	locks *unlock.Locks
}

func NewReducer(cats *catalogs.Catalogs, cfg Config) (*Reducer, error) {
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = 50
	}
	if cfg.DefaultMaxConcurrentTasks <= 0 {
		cfg.DefaultMaxConcurrentTasks = 1
	}
	if id := cfg.DefaultRestTask; id != "" {
		t, ok := cats.Tasks.Get(id)
		if !ok {
			return nil, fmt.Errorf("default rest task %q not in catalog", id)
		}
		if !t.IsRest() {
			return nil, fmt.Errorf("default rest task %q is not a rest task", id)
		}
	}
	return &Reducer{cats: cats, cfg: cfg, locks: unlock.NewLocks(cats)}, nil
}

func (r *Reducer) Catalogs() *catalogs.Catalogs { return r.cats }
func (r *Reducer) Config() Config               { return r.cfg }

// Reduce applies cmd to st and returns the next state. st is never modified.
// Draws from rnd happen in a fixed order, so the same state, command and
// source always produce the same result.
func (r *Reducer) Reduce(st *state.GameState, cmd Command, rnd rng.Source) *state.GameState {
	switch cmd.Kind {
	case CmdReset:
		return r.Initial()
	case CmdLoadState:
		if cmd.State == nil {
			return st
		}
		next := r.Normalize(cmd.State.Clone())
		x := r.begin(next, rnd)
		x.finalize()
		return x.st
	}

	x := r.begin(st.Clone(), rnd)
	switch cmd.Kind {
	case CmdAdvanceTime:
		x.advance(cmd.DtMs)
	case CmdTriggerAction:
		x.triggerAction(cmd.ID)
	case CmdToggleTask:
		x.toggleTask(cmd.ID)
	case CmdSetRestTask:
		x.setRestTask(cmd.ID)
	case CmdEquipItem:
		x.equip(cmd.ID)
	case CmdUnequipItem:
		x.unequip(cmd.ID)
	case CmdBuyConverter:
		x.buyConverter(cmd.ID)
	case CmdToggleConverter:
		x.toggleConverter(cmd.ID)
	default:
		return st
	}
	x.finalize()
	return x.st
}

// txn is one transition in flight. mods is captured once at the start and
// consulted by every subsystem; it is not refreshed when effects add
// permanent modifiers mid-transition.
type txn struct {
	r    *Reducer
	cats *catalogs.Catalogs
	st   *state.GameState
	mods modifiers.Set
	rnd  rng.Source
}

func (r *Reducer) begin(st *state.GameState, rnd rng.Source) *txn {
	if rnd == nil {
		rnd = rng.Never()
	}
	return &txn{
		r:    r,
		cats: r.cats,
		st:   st,
		mods: modifiers.Active(st, r.cats.Items),
		rnd:  rnd,
	}
}

func (x *txn) logf(format string, args ...any) {
	x.st.AddLog(fmt.Sprintf(format, args...), x.r.cfg.LogCapacity)
}

// max is the effective cap under the modifiers captured at transition start.
func (x *txn) max(resourceID string) float64 {
	def, ok := x.cats.Resources.Get(resourceID)
	if !ok {
		return 0
	}
	return x.mods.Max(resourceID, def.BaseMax)
}

func (x *txn) amount(resourceID string) float64 {
	return x.st.Resources[resourceID].Current
}

// add changes a resource by delta, capped at its effective max. Negative
// results are left for finalize to clamp.
func (x *txn) add(resourceID string, delta float64) {
	r, ok := x.st.Resources[resourceID]
	if !ok {
		return
	}
	v := r.Current + delta
	if m := x.max(resourceID); v > m {
		v = m
	}
	r.Current = v
	x.st.Resources[resourceID] = r
}

func (x *txn) spend(resourceID string, amount float64) {
	r, ok := x.st.Resources[resourceID]
	if !ok {
		return
	}
	r.Current -= amount
	x.st.Resources[resourceID] = r
}

func (x *txn) resourceName(id string) string {
	if d, ok := x.cats.Resources.Get(id); ok && d.Name != "" {
		return d.Name
	}
	return id
}

func (x *txn) taskName(id string) string {
	if d, ok := x.cats.Tasks.Get(id); ok && d.Name != "" {
		return d.Name
	}
	return id
}

func (x *txn) itemName(id string) string {
	if d, ok := x.cats.Items.Get(id); ok && d.Name != "" {
		return d.Name
	}
	return id
}

// finalize runs at the end of every transition: it clamps resources to the
// caps implied by the final state, enforces the task limit, and promotes
// unlock latches.
func (x *txn) finalize() {
	st := x.st
	live := modifiers.Active(st, x.cats.Items)
	maxOf := func(id string) float64 {
		def, ok := x.cats.Resources.Get(id)
		if !ok {
			return 0
		}
		return live.Max(id, def.BaseMax)
	}

	x.cats.Resources.Each(func(id string, _ catalogs.ResourceDef) {
		r := st.Resources[id]
		if m := maxOf(id); r.Current > m {
			r.Current = m
		}
		if r.Current < 0 {
			r.Current = 0
		}
		st.Resources[id] = r
	})

	x.reconcileActive()
	if st.MaxConcurrentTasks < 1 {
		st.MaxConcurrentTasks = 1
	}
	for len(st.ActiveTaskIDs) > st.MaxConcurrentTasks {
		oldest := st.ActiveTaskIDs[0]
		t := st.Tasks[oldest]
		t.Active = false
		st.Tasks[oldest] = t
		st.ActiveTaskIDs = st.ActiveTaskIDs[1:]
		x.logf("Stopped %s (too many tasks).", x.taskName(oldest))
	}

	x.cats.Tasks.Each(func(id string, d catalogs.TaskDef) {
		if t := st.Tasks[id]; !t.Unlocked && unlock.Satisfied(d.Prerequisites, st, maxOf) {
			t.Unlocked = true
			st.Tasks[id] = t
		}
	})
	x.cats.Actions.Each(func(id string, d catalogs.ActionDef) {
		if a := st.Actions[id]; !a.Unlocked && unlock.Satisfied(d.Prerequisites, st, maxOf) {
			a.Unlocked = true
			st.Actions[id] = a
		}
	})
	x.cats.Converters.Each(func(id string, d catalogs.ConverterDef) {
		if c := st.Converters[id]; !c.Unlocked && unlock.Satisfied(d.Prerequisites, st, maxOf) {
			c.Unlocked = true
			st.Converters[id] = c
		}
	})
}

// reconcileActive makes ActiveTaskIDs agree with the task records: ids of
// inactive or unknown tasks are dropped (order kept, duplicates removed) and
// active tasks missing from the list are appended in catalog order.
func (x *txn) reconcileActive() {
	st := x.st
	seen := make(map[string]bool, len(st.ActiveTaskIDs))
	out := make([]string, 0, len(st.ActiveTaskIDs))
	for _, id := range st.ActiveTaskIDs {
		if seen[id] || !x.cats.Tasks.Has(id) || !st.Tasks[id].Active {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	x.cats.Tasks.Each(func(id string, _ catalogs.TaskDef) {
		if st.Tasks[id].Active && !seen[id] {
			out = append(out, id)
		}
	})
	st.ActiveTaskIDs = out
}
