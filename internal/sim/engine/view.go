package engine

import (
	"math"

	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/logic/modifiers"
	"openidle.dev/internal/sim/logic/scaling"
	"openidle.dev/internal/sim/logic/unlock"
	"openidle.dev/internal/sim/state"
)

// Query answers read-only questions about one state. It never changes st.
type Query struct {
	r    *Reducer
	st   *state.GameState
	mods modifiers.Set
}

func (r *Reducer) Query(st *state.GameState) *Query {
	return &Query{r: r, st: st, mods: modifiers.Active(st, r.cats.Items)}
}

func (q *Query) EffectiveMax(resourceID string) float64 {
	def, ok := q.r.cats.Resources.Get(resourceID)
	if !ok {
		return 0
	}
	return q.mods.Max(resourceID, def.BaseMax)
}

// Visible combines the lock rules with the unlock latch. A locked entity is
// hidden even after it was unlocked.
func (q *Query) Visible(id string) bool {
	if q.r.locks.Locked(id, q.st) {
		return false
	}
	c := q.r.cats
	switch {
	case c.Resources.Has(id):
		return q.st.Resources[id].Unlocked
	case c.Actions.Has(id):
		return q.st.Actions[id].Unlocked
	case c.Tasks.Has(id):
		return q.st.Tasks[id].Unlocked
	case c.Converters.Has(id):
		return q.st.Converters[id].Unlocked
	}
	return false
}

func (q *Query) LockedBy(id string) []string { return q.r.locks.LockedBy(id, q.st) }

func (q *Query) SlotAvailable(slotID string) bool {
	slot, ok := q.r.cats.Slots.Get(slotID)
	if !ok {
		return false
	}
	return unlock.Satisfied(slot.Prerequisites, q.st, q.EffectiveMax)
}

type CostView struct {
	ResourceID string  `json:"resource_id"`
	Amount     float64 `json:"amount"`
}

type ActionStatus struct {
	Costs      []CostView `json:"costs,omitempty"`
	Affordable bool       `json:"affordable"`
	AtLimit    bool       `json:"at_limit"`
	BlockedBy  string     `json:"blocked_by,omitempty"`
}

// ActionStatus reports what a trigger would see right now. BlockedBy names
// an exclusive sibling that has already been taken.
func (q *Query) ActionStatus(id string) ActionStatus {
	def, ok := q.r.cats.Actions.Get(id)
	if !ok {
		return ActionStatus{}
	}
	as := q.st.Actions[id]
	s := ActionStatus{Affordable: true}
	s.AtLimit = def.MaxExecutions > 0 && as.Executions >= def.MaxExecutions
	exp := scaling.ActionExponent(as.Executions)
	for _, c := range def.Costs {
		amt := scaling.Cost(c, exp)
		s.Costs = append(s.Costs, CostView{ResourceID: c.ResourceID, Amount: amt})
		if q.st.Resources[c.ResourceID].Current < amt {
			s.Affordable = false
		}
	}
	for _, other := range def.ExclusiveWith {
		if q.st.Actions[other].Executions > 0 {
			s.BlockedBy = other
			break
		}
	}
	return s
}

// Term is one line of a breakdown: who contributes, and how much.
type Term struct {
	Source string        `json:"source"`
	Kind   state.ModKind `json:"kind,omitempty"`
	Value  float64       `json:"value"`
}

type Breakdown struct {
	ResourceID string  `json:"resource_id"`
	BaseMax    float64 `json:"base_max"`
	Max        float64 `json:"max"`
	MaxTerms   []Term  `json:"max_terms,omitempty"`
	Rates      []Term  `json:"rates,omitempty"`
	Net        float64 `json:"net_per_second"`
}

// ResourceBreakdown explains a resource's cap and its expected per-second
// change. Rates ignore chance effects and assume every active source can pay.
func (q *Query) ResourceBreakdown(resourceID string) Breakdown {
	c := q.r.cats
	def, ok := c.Resources.Get(resourceID)
	if !ok {
		return Breakdown{ResourceID: resourceID}
	}
	b := Breakdown{ResourceID: resourceID, BaseMax: def.BaseMax, Max: q.EffectiveMax(resourceID)}
	for _, m := range q.mods {
		if m.Property == state.PropMax && m.ResourceID == resourceID {
			b.MaxTerms = append(b.MaxTerms, Term{Source: m.SourceID, Kind: m.Kind, Value: m.Value})
		}
	}

	rate := func(src string, v float64) {
		if v != 0 {
			b.Rates = append(b.Rates, Term{Source: src, Value: v})
			b.Net += v
		}
	}

	for _, id := range q.st.ActiveTaskIDs {
		td, ok := c.Tasks.Get(id)
		if !ok {
			continue
		}
		t := q.st.Tasks[id]
		for _, cost := range td.CostPerSecond {
			if cost.ResourceID == resourceID {
				rate(td.Name, -startCost(cost, t))
			}
		}
		exp := scaling.TaskEffectExponent(t.Level)
		for _, e := range td.EffectsPerSecond {
			if e.Chance != nil || e.Kind != catalogs.EffectAddResource || e.ResourceID != resourceID {
				continue
			}
			amt := q.mods.Yield(scaling.Effect(e, exp), modifiers.Source{Kind: modifiers.SourceTask, ID: id}, resourceID)
			rate(td.Name, amt)
		}
	}

	c.Resources.Each(func(id string, rd catalogs.ResourceDef) {
		units := math.Floor(q.st.Resources[id].Current)
		if units < 1 {
			return
		}
		for _, g := range rd.PassiveGen {
			if g.TargetResourceID == resourceID {
				rate(rd.Name, units*g.RatePerUnit)
			}
		}
	})

	for _, m := range q.mods {
		if m.Property == state.PropGen && m.Kind == state.ModFlat && m.ResourceID == resourceID {
			rate(m.SourceID, m.Value)
		}
	}

	c.Converters.Each(func(id string, cd catalogs.ConverterDef) {
		cv := q.st.Converters[id]
		if !cv.Owned || !cv.Active {
			return
		}
		for _, cost := range cd.CostPerSecond {
			if cost.ResourceID == resourceID {
				rate(cd.Name, -scaling.Cost(cost, 0))
			}
		}
		for _, e := range cd.EffectsPerSecond {
			if e.Chance == nil && e.Kind == catalogs.EffectAddResource && e.ResourceID == resourceID {
				rate(cd.Name, scaling.Effect(e, 0))
			}
		}
	})
	return b
}

type ResourceView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Current  float64 `json:"current"`
	Max      float64 `json:"max"`
	Visible  bool    `json:"visible"`
}

type ActionView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	Executions int    `json:"executions"`
	Visible    bool   `json:"visible"`
	ActionStatus
}

type TaskView struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Category         string  `json:"category,omitempty"`
	Rest             bool    `json:"rest,omitempty"`
	Active           bool    `json:"active"`
	Level            int     `json:"level"`
	XP               float64 `json:"xp"`
	XPToNext         float64 `json:"xp_to_next"`
	Progress         float64 `json:"progress"`
	ProgressRequired float64 `json:"progress_required,omitempty"`
	Completions      int     `json:"completions"`
	Exhausted        bool    `json:"exhausted,omitempty"`
	Visible          bool    `json:"visible"`
}

type ConverterView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Owned   bool   `json:"owned"`
	Active  bool   `json:"active"`
	Toggle  bool   `json:"can_be_toggled"`
	Visible bool   `json:"visible"`
}

type SlotView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ItemID    string `json:"item_id,omitempty"`
	Available bool   `json:"available"`
}

// View is the presentation-free projection pushed to clients.
type View struct {
	TotalTimeMs        int64           `json:"total_time_ms"`
	Resources          []ResourceView  `json:"resources"`
	Actions            []ActionView    `json:"actions"`
	Tasks              []TaskView      `json:"tasks"`
	Converters         []ConverterView `json:"converters"`
	Slots              []SlotView      `json:"slots"`
	Inventory          []string        `json:"inventory"`
	ActiveTaskIDs      []string        `json:"active_task_ids"`
	MaxConcurrentTasks int             `json:"max_concurrent_tasks"`
	AtTaskLimit        bool            `json:"at_task_limit"`
	RestTaskID         string          `json:"rest_task_id"`
	Log                []string        `json:"log"`
}

func (q *Query) View() View {
	c := q.r.cats
	st := q.st
	v := View{
		TotalTimeMs:        st.TotalTimeMs,
		Resources:          []ResourceView{},
		Actions:            []ActionView{},
		Tasks:              []TaskView{},
		Converters:         []ConverterView{},
		Slots:              []SlotView{},
		Inventory:          append([]string{}, st.Inventory...),
		ActiveTaskIDs:      append([]string{}, st.ActiveTaskIDs...),
		MaxConcurrentTasks: st.MaxConcurrentTasks,
		AtTaskLimit:        len(st.ActiveTaskIDs) >= st.MaxConcurrentTasks,
		RestTaskID:         st.RestTaskID,
		Log:                append([]string{}, st.Log...),
	}
	c.Resources.Each(func(id string, d catalogs.ResourceDef) {
		v.Resources = append(v.Resources, ResourceView{
			ID: id, Name: d.Name, Category: d.Category,
			Current: st.Resources[id].Current, Max: q.EffectiveMax(id), Visible: q.Visible(id),
		})
	})
	c.Actions.Each(func(id string, d catalogs.ActionDef) {
		v.Actions = append(v.Actions, ActionView{
			ID: id, Name: d.Name, Category: d.Category,
			Executions: st.Actions[id].Executions, Visible: q.Visible(id),
			ActionStatus: q.ActionStatus(id),
		})
	})
	c.Tasks.Each(func(id string, d catalogs.TaskDef) {
		t := st.Tasks[id]
		exhausted := d.MaxExecutions > 0 && t.Completions >= d.MaxExecutions
		v.Tasks = append(v.Tasks, TaskView{
			ID: id, Name: d.Name, Category: d.Category, Rest: d.IsRest(),
			Active: t.Active, Level: t.Level, XP: t.XP, XPToNext: float64(t.Level * 100),
			Progress: t.Progress, ProgressRequired: d.ProgressRequired, Completions: t.Completions,
			Exhausted: exhausted, Visible: q.Visible(id),
		})
	})
	c.Converters.Each(func(id string, d catalogs.ConverterDef) {
		cv := st.Converters[id]
		v.Converters = append(v.Converters, ConverterView{
			ID: id, Name: d.Name, Owned: cv.Owned, Active: cv.Active, Toggle: d.CanBeToggled, Visible: q.Visible(id),
		})
	})
	c.Slots.Each(func(id string, d catalogs.SlotDef) {
		v.Slots = append(v.Slots, SlotView{ID: id, Name: d.Name, ItemID: st.Equipment[id], Available: q.SlotAvailable(id)})
	})
	return v
}
