// Package unlock evaluates prerequisites and the dynamic visibility locks that
// actions and tasks place on other entities.
package unlock

import (
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/state"
)

// MaxFunc resolves the effective cap of a resource under the live modifiers.
type MaxFunc func(resourceID string) float64

// Satisfied reports whether every prerequisite holds. An action reference
// needs at least one execution unless MinExecutions says more. A task
// reference needs level >= max(MinLevel, 1) and, when set, at least
// MinCompletions (MinExecutions is read the same way for tasks).
func Satisfied(ps []catalogs.Prerequisite, st *state.GameState, maxOf MaxFunc) bool {
	for _, p := range ps {
		if !satisfied(p, st, maxOf) {
			return false
		}
	}
	return true
}

func satisfied(p catalogs.Prerequisite, st *state.GameState, maxOf MaxFunc) bool {
	if p.ResourceID != "" {
		r, ok := st.Resources[p.ResourceID]
		if !ok {
			return false
		}
		if p.MinAmount != nil && r.Current < *p.MinAmount {
			return false
		}
		if p.MinMax != nil && maxOf(p.ResourceID) < *p.MinMax {
			return false
		}
	}
	if p.ActionID != "" {
		a, ok := st.Actions[p.ActionID]
		if !ok || a.Executions < atLeastOne(p.MinExecutions) {
			return false
		}
	}
	if p.TaskID != "" {
		t, ok := st.Tasks[p.TaskID]
		if !ok || t.Level < atLeastOne(p.MinLevel) {
			return false
		}
		need := p.MinCompletions
		if p.MinExecutions > need {
			need = p.MinExecutions
		}
		if t.Completions < need {
			return false
		}
	}
	return true
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Locks indexes which actions and tasks lock each id.
type Locks struct {
	byActions map[string][]string
	byTasks   map[string][]string
}

func NewLocks(c *catalogs.Catalogs) *Locks {
	l := &Locks{byActions: map[string][]string{}, byTasks: map[string][]string{}}
	c.Actions.Each(func(id string, d catalogs.ActionDef) {
		for _, target := range d.Locks {
			l.byActions[target] = append(l.byActions[target], id)
		}
	})
	c.Tasks.Each(func(id string, d catalogs.TaskDef) {
		for _, target := range d.Locks {
			l.byTasks[target] = append(l.byTasks[target], id)
		}
	})
	return l
}

// Locked reports whether id is hidden right now: some action that locks it has
// executed, or some task that locks it is active, completed or leveled. This
// is recomputed on every query and does not latch.
func (l *Locks) Locked(id string, st *state.GameState) bool {
	for _, a := range l.byActions[id] {
		if st.Actions[a].Executions > 0 {
			return true
		}
	}
	for _, tid := range l.byTasks[id] {
		t := st.Tasks[tid]
		if t.Active || t.Completions > 0 || t.Level > 1 {
			return true
		}
	}
	return false
}

// LockedBy returns the ids currently locking id, in catalog order.
func (l *Locks) LockedBy(id string, st *state.GameState) []string {
	var out []string
	for _, a := range l.byActions[id] {
		if st.Actions[a].Executions > 0 {
			out = append(out, a)
		}
	}
	for _, tid := range l.byTasks[id] {
		t := st.Tasks[tid]
		if t.Active || t.Completions > 0 || t.Level > 1 {
			out = append(out, tid)
		}
	}
	return out
}
