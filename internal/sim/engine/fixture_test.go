package engine

import (
	"testing"

	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/state"
)

func f64(v float64) *float64 { return &v }

// fixtureBundle is a small economy covering every subsystem.
func fixtureBundle() catalogs.Bundle {
	return catalogs.Bundle{
		Resources: []catalogs.ResourceDef{
			{ID: "money", Name: "Money", BaseMax: 25, InitialAmount: 2},
			{ID: "energy", Name: "Energy", Kind: "stat", BaseMax: 10, InitialAmount: 10},
			{ID: "lore", Name: "Lore", BaseMax: 10, PassiveGen: []catalogs.PassiveGen{{TargetResourceID: "insight", RatePerUnit: 0.5}}},
			{ID: "insight", Name: "Insight", BaseMax: 100},
		},
		Actions: []catalogs.ActionDef{
			{ID: "earn", Name: "Earn", Effects: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "money", Amount: 5}}},
			{ID: "costly", Name: "Costly", Costs: []catalogs.Cost{{ResourceID: "money", Amount: 5}}},
			{
				ID: "scaled", Name: "Scaled",
				Costs:   []catalogs.Cost{{ResourceID: "money", Amount: 2, ScaleFactor: 2, ScaleType: catalogs.ScaleExponential}},
				Effects: []catalogs.Effect{{Kind: catalogs.EffectMaxFlat, ResourceID: "money", Amount: 5}},
			},
			{ID: "once", Name: "Once", MaxExecutions: 1},
			{
				ID: "secret", Name: "Secret",
				Prerequisites: []catalogs.Prerequisite{{ResourceID: "money", MinAmount: f64(10)}},
			},
			{ID: "move", Name: "Move", Locks: []string{"nap"}},
			{ID: "left", Name: "Left", ExclusiveWith: []string{"right"}},
			{ID: "right", Name: "Right", ExclusiveWith: []string{"left"}},
			{
				ID: "boost", Name: "Boost",
				Effects: []catalogs.Effect{{Kind: catalogs.EffectYieldPercent, TaskID: "work", ResourceID: "money", Amount: 0.5}},
			},
			{
				ID: "planner", Name: "Planner", MaxExecutions: 1,
				Effects: []catalogs.Effect{{Kind: catalogs.EffectIncreaseMaxTasks, Amount: 1}},
			},
			{
				ID: "library", Name: "Library",
				FirstCompletionEffects: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "lore", Amount: 3}},
			},
		},
		Tasks: []catalogs.TaskDef{
			{ID: "train", Name: "Train", ProgressRequired: 5, AutoRestart: true, XPPerSecond: 5},
			{ID: "quest", Name: "Quest", ProgressRequired: 2, MaxExecutions: 1},
			{
				ID: "work", Name: "Work",
				CostPerSecond:    []catalogs.Cost{{ResourceID: "energy", Amount: 5}},
				EffectsPerSecond: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "money", Amount: 1}},
			},
			{
				ID: "nap", Name: "Nap", Type: catalogs.TaskRest,
				EffectsPerSecond: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "energy", Amount: 5}},
			},
			{ID: "lab", Name: "Lab", XPPerSecond: 250},
			{
				ID: "gamble", Name: "Gamble",
				EffectsPerSecond: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "money", Amount: 10, Chance: f64(0.5)}},
				Drops:            []catalogs.TaskDrop{{ItemID: "ring", ChancePerSecond: 0.1}},
			},
			{
				ID: "dig", Name: "Dig", ProgressRequired: 1, AutoRestart: true,
				StartCosts:        []catalogs.Cost{{ResourceID: "money", Amount: 1}},
				CompletionEffects: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "insight", Amount: 1}},
			},
		},
		Converters: []catalogs.ConverterDef{
			{
				ID: "well", Name: "Well", CanBeToggled: false,
				Cost:             []catalogs.Cost{{ResourceID: "money", Amount: 1}},
				EffectsPerSecond: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "insight", Amount: 2}},
			},
			{
				ID: "mill", Name: "Mill", CanBeToggled: true,
				CostPerSecond:    []catalogs.Cost{{ResourceID: "money", Amount: 1}},
				EffectsPerSecond: []catalogs.Effect{{Kind: catalogs.EffectAddResource, ResourceID: "insight", Amount: 1}},
			},
		},
		Items: []catalogs.ItemDef{
			{ID: "ring", Name: "Ring", Slot: "hand", Effects: []catalogs.Effect{{Kind: catalogs.EffectMaxFlat, ResourceID: "money", Amount: 10}}},
			{ID: "crown", Name: "Crown", Slot: "head"},
		},
		Slots: []catalogs.SlotDef{
			{ID: "hand", Name: "Hand"},
			{ID: "head", Name: "Head", Prerequisites: []catalogs.Prerequisite{{ActionID: "once"}}},
		},
	}
}

func newFixtureReducer(t *testing.T) *Reducer {
	t.Helper()
	c, err := catalogs.New(fixtureBundle())
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	r, err := NewReducer(c, Config{LogCapacity: 50, DefaultMaxConcurrentTasks: 1, DefaultRestTask: "nap", WelcomeMessage: "Welcome."})
	if err != nil {
		t.Fatalf("reducer: %v", err)
	}
	return r
}

// run applies cmds in order with a never-firing random source.
func run(r *Reducer, st *state.GameState, cmds ...Command) *state.GameState {
	for _, c := range cmds {
		st = r.Reduce(st, c, nil)
	}
	return st
}

func ticks(n int, dtMs int64) []Command {
	out := make([]Command, n)
	for i := range out {
		out[i] = AdvanceTime(dtMs)
	}
	return out
}

// checkInvariants asserts the properties every reachable state must hold.
func checkInvariants(t *testing.T, r *Reducer, st *state.GameState) {
	t.Helper()
	q := r.Query(st)
	for id, res := range st.Resources {
		if res.Current < 0 || res.Current > q.EffectiveMax(id) {
			t.Fatalf("%s=%v outside [0,%v]", id, res.Current, q.EffectiveMax(id))
		}
	}
	if len(st.ActiveTaskIDs) > st.MaxConcurrentTasks {
		t.Fatalf("active=%v exceeds limit %d", st.ActiveTaskIDs, st.MaxConcurrentTasks)
	}
	for _, id := range st.ActiveTaskIDs {
		if !st.Tasks[id].Active {
			t.Fatalf("%s listed active but record inactive", id)
		}
	}
}

// checkLatches asserts nothing unlocked in prev was relocked in next.
func checkLatches(t *testing.T, prev, next *state.GameState) {
	t.Helper()
	for id, a := range prev.Actions {
		if a.Unlocked && !next.Actions[id].Unlocked {
			t.Fatalf("action %s relocked", id)
		}
	}
	for id, tk := range prev.Tasks {
		if tk.Unlocked && !next.Tasks[id].Unlocked {
			t.Fatalf("task %s relocked", id)
		}
	}
	for id, c := range prev.Converters {
		if c.Unlocked && !next.Converters[id].Unlocked {
			t.Fatalf("converter %s relocked", id)
		}
	}
}
