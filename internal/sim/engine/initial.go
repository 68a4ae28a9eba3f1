package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/state"
)

var ErrMalformedSave = errors.New("malformed save")

// Initial builds a fresh game. Entities without prerequisites start unlocked.
func (r *Reducer) Initial() *state.GameState {
	st := &state.GameState{
		Resources:          map[string]state.Resource{},
		Actions:            map[string]state.Action{},
		Tasks:              map[string]state.Task{},
		Converters:         map[string]state.Converter{},
		Inventory:          []string{},
		Equipment:          map[string]string{},
		Modifiers:          []state.Modifier{},
		Log:                []string{},
		ActiveTaskIDs:      []string{},
		MaxConcurrentTasks: r.cfg.DefaultMaxConcurrentTasks,
		RestTaskID:         r.cfg.DefaultRestTask,
	}
	r.cats.Resources.Each(func(id string, d catalogs.ResourceDef) {
		st.Resources[id] = initialResource(d)
	})
	r.cats.Actions.Each(func(id string, d catalogs.ActionDef) {
		st.Actions[id] = state.Action{Unlocked: len(d.Prerequisites) == 0}
	})
	r.cats.Tasks.Each(func(id string, d catalogs.TaskDef) {
		st.Tasks[id] = initialTask(d)
	})
	r.cats.Converters.Each(func(id string, d catalogs.ConverterDef) {
		st.Converters[id] = state.Converter{Unlocked: len(d.Prerequisites) == 0}
	})
	if r.cfg.WelcomeMessage != "" {
		st.Log = append(st.Log, r.cfg.WelcomeMessage)
	}
	return st
}

func initialResource(d catalogs.ResourceDef) state.Resource {
	v := d.InitialAmount
	if v > d.BaseMax {
		v = d.BaseMax
	}
	return state.Resource{Current: v, Unlocked: true}
}

func initialTask(d catalogs.TaskDef) state.Task {
	return state.Task{Level: 1, Unlocked: len(d.Prerequisites) == 0}
}

// Decode reads a saved GameState with a defaulting merge: the JSON is laid
// over a fresh initial state, so anything the save lacks keeps its initial
// value. The result is normalized against the current catalogs.
func (r *Reducer) Decode(raw []byte) (*state.GameState, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSave, err)
	}
	if probe == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedSave)
	}
	st := r.Initial()
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSave, err)
	}
	return r.Normalize(st), nil
}

// Normalize repairs a state that did not come out of Reduce: catalog entries
// missing from the save get initial records, ids the catalogs no longer know
// are dropped, and out-of-range scalars are pulled back in range.
func (r *Reducer) Normalize(st *state.GameState) *state.GameState {
	c := r.cats
	st.Resources = normalizeMap(st.Resources, c.Resources, func(d catalogs.ResourceDef) state.Resource { return initialResource(d) })
	st.Actions = normalizeMap(st.Actions, c.Actions, func(d catalogs.ActionDef) state.Action {
		return state.Action{Unlocked: len(d.Prerequisites) == 0}
	})
	st.Tasks = normalizeMap(st.Tasks, c.Tasks, initialTask)
	st.Converters = normalizeMap(st.Converters, c.Converters, func(d catalogs.ConverterDef) state.Converter {
		return state.Converter{Unlocked: len(d.Prerequisites) == 0}
	})

	for id, t := range st.Tasks {
		if t.Level < 1 {
			t.Level = 1
		}
		if t.XP < 0 {
			t.XP = 0
		}
		if t.Progress < 0 {
			t.Progress = 0
		}
		if t.Completions < 0 {
			t.Completions = 0
		}
		st.Tasks[id] = t
	}
	for id, a := range st.Actions {
		if a.Executions < 0 {
			a.Executions = 0
			st.Actions[id] = a
		}
	}
	for id, cv := range st.Converters {
		if cv.Active && !cv.Owned {
			cv.Active = false
			st.Converters[id] = cv
		}
	}

	inv := make([]string, 0, len(st.Inventory))
	for _, it := range st.Inventory {
		if c.Items.Has(it) {
			inv = append(inv, it)
		}
	}
	st.Inventory = inv

	eq := make(map[string]string, len(st.Equipment))
	for slot, it := range st.Equipment {
		item, ok := c.Items.Get(it)
		switch {
		case !ok:
		case item.Slot != slot || !c.Slots.Has(slot):
			st.Inventory = append(st.Inventory, it)
		default:
			eq[slot] = it
		}
	}
	st.Equipment = eq

	if st.Modifiers == nil {
		st.Modifiers = []state.Modifier{}
	}
	if st.Log == nil {
		st.Log = []string{}
	}
	if len(st.Log) > r.cfg.LogCapacity {
		st.Log = st.Log[:r.cfg.LogCapacity]
	}
	if st.TotalTimeMs < 0 {
		st.TotalTimeMs = 0
	}
	if st.MaxConcurrentTasks < 1 {
		st.MaxConcurrentTasks = r.cfg.DefaultMaxConcurrentTasks
	}
	if id := st.RestTaskID; id != "" {
		if t, ok := c.Tasks.Get(id); !ok || !t.IsRest() {
			st.RestTaskID = r.cfg.DefaultRestTask
		}
	}
	if id := st.PreviousTaskID; id != "" && !c.Tasks.Has(id) {
		st.PreviousTaskID = ""
	}
	if st.ActiveTaskIDs == nil {
		st.ActiveTaskIDs = []string{}
	}
	(&txn{r: r, cats: c, st: st}).reconcileActive()
	return st
}

func normalizeMap[D, V any](m map[string]V, defs catalogs.Table[D], fresh func(D) V) map[string]V {
	out := make(map[string]V, len(m))
	defs.Each(func(id string, d D) {
		if v, ok := m[id]; ok {
			out[id] = v
		} else {
			out[id] = fresh(d)
		}
	})
	return out
}
