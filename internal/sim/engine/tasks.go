package engine

import (
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/logic/modifiers"
	"openidle.dev/internal/sim/logic/scaling"
	"openidle.dev/internal/sim/state"
)

// progressEpsilon absorbs float drift when progress accumulates over ticks.
const progressEpsilon = 1e-4

func startCost(c catalogs.Cost, t state.Task) float64 {
	return scaling.Cost(c, scaling.TaskCostExponent(c, t.Level, t.Completions))
}

func (x *txn) canAfford(costs []catalogs.Cost, t state.Task, mult float64) bool {
	for _, c := range costs {
		if x.amount(c.ResourceID) < startCost(c, t)*mult {
			return false
		}
	}
	return true
}

func (x *txn) pay(costs []catalogs.Cost, t state.Task, mult float64) {
	for _, c := range costs {
		x.spend(c.ResourceID, startCost(c, t)*mult)
	}
}

// toggleTask flips a task. Starting is checked completely before anything
// changes, so a rejected start leaves the state as it was apart from the log.
func (x *txn) toggleTask(id string) {
	def, ok := x.cats.Tasks.Get(id)
	if !ok {
		return
	}
	st := x.st
	t := st.Tasks[id]

	if t.Active {
		t.Active = false
		st.Tasks[id] = t
		st.RemoveActive(id)
		st.PreviousTaskID = ""
		return
	}

	if def.MaxExecutions > 0 && t.Completions >= def.MaxExecutions {
		x.logf("%s cannot be done again.", def.Name)
		return
	}
	for _, c := range def.CostPerSecond {
		if x.amount(c.ResourceID) <= 0 {
			x.logf("Cannot start %s: insufficient resources for upkeep.", def.Name)
			return
		}
	}
	needStart := !t.Paid && len(def.StartCosts) > 0
	if needStart && !x.canAfford(def.StartCosts, t, 1) {
		x.logf("Cannot afford start costs for %s", def.Name)
		return
	}

	if len(st.ActiveTaskIDs) >= st.MaxConcurrentTasks && len(st.ActiveTaskIDs) > 0 {
		oldest := st.ActiveTaskIDs[0]
		o := st.Tasks[oldest]
		o.Active = false
		st.Tasks[oldest] = o
		st.ActiveTaskIDs = st.ActiveTaskIDs[1:]
		x.logf("Stopped %s to focus on %s.", x.taskName(oldest), def.Name)
	}
	if needStart {
		x.pay(def.StartCosts, t, 1)
		t.Paid = true
	}
	t.Active = true
	st.Tasks[id] = t
	st.ActiveTaskIDs = append(st.ActiveTaskIDs, id)
	st.PreviousTaskID = ""
}

func (x *txn) setRestTask(id string) {
	st := x.st
	if id == "" {
		st.RestTaskID = ""
		st.PreviousTaskID = ""
		return
	}
	def, ok := x.cats.Tasks.Get(id)
	if !ok {
		return
	}
	if !def.IsRest() {
		x.logf("%s cannot be used to rest.", def.Name)
		return
	}
	st.RestTaskID = id
}

// tickTasks runs every task that was active when the tick began, oldest
// first. Tasks started during the tick (rest fallback, rest return) wait for
// the next one.
func (x *txn) tickTasks(dt float64) {
	order := append([]string(nil), x.st.ActiveTaskIDs...)
	for _, id := range order {
		def, ok := x.cats.Tasks.Get(id)
		if !ok || !x.st.Tasks[id].Active {
			continue
		}
		x.tickTask(id, def, dt)
	}
}

func (x *txn) deactivate(id string) {
	t := x.st.Tasks[id]
	t.Active = false
	x.st.Tasks[id] = t
	x.st.RemoveActive(id)
}

func (x *txn) activate(id string) {
	t := x.st.Tasks[id]
	t.Active = true
	x.st.Tasks[id] = t
	if !x.st.IsTaskActive(id) {
		x.st.ActiveTaskIDs = append(x.st.ActiveTaskIDs, id)
	}
}

func (x *txn) tickTask(id string, def catalogs.TaskDef, dt float64) {
	st := x.st
	t := st.Tasks[id]

	if !t.Paid && len(def.StartCosts) > 0 {
		if !x.canAfford(def.StartCosts, t, 1) {
			x.deactivate(id)
			x.logf("%s stopped (cannot afford restart cost).", def.Name)
			return
		}
		x.pay(def.StartCosts, t, 1)
		t.Paid = true
		st.Tasks[id] = t
	}

	if !x.canAfford(def.CostPerSecond, t, dt) {
		x.deactivate(id)
		x.fallBackToRest(id, def)
		return
	}
	x.pay(def.CostPerSecond, t, dt)

	if x.tryRestReturn(id, def) {
		return
	}

	if def.ProgressRequired > 0 {
		t.Progress += dt
		if t.Progress >= def.ProgressRequired-progressEpsilon {
			st.Tasks[id] = t
			t = x.complete(id, def, t)
			if !t.Active {
				st.Tasks[id] = t
				st.RemoveActive(id)
				return
			}
		}
	}

	src := source{
		kind:     modifiers.SourceTask,
		id:       id,
		name:     def.Name,
		exponent: scaling.TaskEffectExponent(t.Level),
		yield:    true,
	}
	for _, e := range def.EffectsPerSecond {
		x.applyPerSecond(src, e, dt)
	}

	for _, d := range def.Drops {
		if x.rnd.Float64() < d.ChancePerSecond*dt {
			st.Inventory = append(st.Inventory, d.ItemID)
			x.logf("Found item: %s!", x.itemName(d.ItemID))
		}
	}

	if def.XPPerSecond > 0 {
		t.XP += def.XPPerSecond * dt
		for t.XP >= float64(t.Level*100) {
			t.XP -= float64(t.Level * 100)
			t.Level++
			x.logf("%s leveled up to %d!", def.Name, t.Level)
		}
	}
	st.Tasks[id] = t
}

// complete finishes one run of a timed task and returns its updated record.
func (x *txn) complete(id string, def catalogs.TaskDef, t state.Task) state.Task {
	first := t.Completions == 0
	t.Progress = 0
	t.Completions++
	if !def.AutoRestart {
		t.Active = false
	}

	src := source{
		kind:     modifiers.SourceTask,
		id:       id,
		name:     def.Name,
		exponent: scaling.TaskEffectExponent(t.Level),
		yield:    true,
	}
	for _, e := range def.CompletionEffects {
		x.applyEffect(src, e, 1)
	}
	if first {
		for _, e := range def.FirstCompletionEffects {
			x.applyEffect(src, e, 1)
		}
	}

	t.Paid = false
	if def.MaxExecutions > 0 && t.Completions >= def.MaxExecutions {
		t.Active = false
	}
	if !t.Active {
		x.logf("%s completed.", def.Name)
	}
	return t
}

// fallBackToRest starts the configured rest task after id ran out of upkeep
// and remembers id so it can resume later.
func (x *txn) fallBackToRest(id string, def catalogs.TaskDef) {
	st := x.st
	restID := st.RestTaskID
	if restID != "" && restID != id {
		if rest, ok := x.cats.Tasks.Get(restID); ok && rest.IsRest() {
			x.activate(restID)
			st.PreviousTaskID = id
			x.logf("Switched to %s (low resources)", rest.Name)
			return
		}
	}
	x.logf("%s stopped (insufficient resources)", def.Name)
}

// tryRestReturn ends the rest task and resumes the remembered task once every
// resource that task consumes per second is back at its cap.
func (x *txn) tryRestReturn(id string, def catalogs.TaskDef) bool {
	st := x.st
	if !def.IsRest() || id != st.RestTaskID || st.PreviousTaskID == "" {
		return false
	}
	prevID := st.PreviousTaskID
	prev, ok := x.cats.Tasks.Get(prevID)
	if !ok {
		st.PreviousTaskID = ""
		return false
	}
	for _, c := range prev.CostPerSecond {
		if x.amount(c.ResourceID) < x.max(c.ResourceID) {
			return false
		}
	}

	x.deactivate(id)
	p := st.Tasks[prevID]
	p.Paid = false
	st.Tasks[prevID] = p
	x.activate(prevID)
	st.PreviousTaskID = ""
	x.logf("Rest complete. Resuming %s.", prev.Name)
	return true
}
