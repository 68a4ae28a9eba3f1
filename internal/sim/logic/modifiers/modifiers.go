// Package modifiers aggregates permanent and equipment modifiers and resolves
// effective caps, passive generation and yields from them.
package modifiers

import (
	"math"
	"sort"

	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/state"
)

// Set is the live modifier set for one transition.
type Set []state.Modifier

type ItemLookup interface {
	Get(id string) (catalogs.ItemDef, bool)
}

// Active returns the permanent modifiers followed by those derived from
// equipped items. Slots are visited in sorted order so the result is stable.
func Active(st *state.GameState, items ItemLookup) Set {
	out := make(Set, 0, len(st.Modifiers)+len(st.Equipment))
	out = append(out, st.Modifiers...)

	slots := make([]string, 0, len(st.Equipment))
	for slot := range st.Equipment {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	for _, slot := range slots {
		item, ok := items.Get(st.Equipment[slot])
		if !ok {
			continue
		}
		for _, e := range item.Effects {
			if !equipmentKind(e.Kind) {
				continue
			}
			if m, ok := FromEffect(item.Name, e, e.Amount); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// equipmentKind reports the effect kinds an equipped item contributes.
func equipmentKind(k catalogs.EffectKind) bool {
	switch k {
	case catalogs.EffectMaxFlat, catalogs.EffectMaxPercent, catalogs.EffectPassiveGen,
		catalogs.EffectYieldFlat, catalogs.EffectYieldPercent, catalogs.EffectTaskYieldPercent:
		return true
	}
	return false
}

// FromEffect maps a modifier-producing effect to its modifier. amount is the
// already-scaled value. It reports false for kinds that do not produce one.
func FromEffect(sourceID string, e catalogs.Effect, amount float64) (state.Modifier, bool) {
	m := state.Modifier{SourceID: sourceID, Value: amount, ResourceID: e.ResourceID}
	switch e.Kind {
	case catalogs.EffectMaxFlat:
		m.Kind, m.Property = state.ModFlat, state.PropMax
	case catalogs.EffectMaxPercent:
		m.Kind, m.Property = state.ModPercent, state.PropMax
	case catalogs.EffectMaxSet:
		m.Kind, m.Property = state.ModSet, state.PropMax
	case catalogs.EffectPassiveGen:
		m.Kind, m.Property = state.ModFlat, state.PropGen
	case catalogs.EffectYieldFlat, catalogs.EffectYieldPercent, catalogs.EffectTaskYieldPercent:
		m.Kind = state.ModPercent
		if e.Kind == catalogs.EffectYieldFlat {
			m.Kind = state.ModFlat
		}
		m.Property = state.PropYield
		m.TaskID = e.TaskID
		m.ActionID = e.ActionID
		m.Scope = string(e.YieldScope)
	default:
		return state.Modifier{}, false
	}
	return m, true
}

// WithoutResource drops every modifier targeting resourceID.
func WithoutResource(mods []state.Modifier, resourceID string) []state.Modifier {
	out := make([]state.Modifier, 0, len(mods))
	for _, m := range mods {
		if m.ResourceID != resourceID {
			out = append(out, m)
		}
	}
	return out
}

// Max resolves the effective cap: the largest set value replaces baseMax,
// then flat bonuses are added, then percent bonuses multiply, then the result
// is floored. Negative caps resolve to 0.
func (s Set) Max(resourceID string, baseMax float64) float64 {
	base := baseMax
	haveSet := false
	var flat, pct float64
	for _, m := range s {
		if m.Property != state.PropMax || m.ResourceID != resourceID {
			continue
		}
		switch m.Kind {
		case state.ModSet:
			if !haveSet || m.Value > base {
				base = m.Value
			}
			haveSet = true
		case state.ModFlat:
			flat += m.Value
		case state.ModPercent:
			pct += m.Value
		}
	}
	v := math.Floor((base + flat) * (1 + pct))
	if v < 0 {
		return 0
	}
	return v
}

// Gen sums flat passive generation for resourceID, per second.
func (s Set) Gen(resourceID string) float64 {
	var sum float64
	for _, m := range s {
		if m.Property == state.PropGen && m.Kind == state.ModFlat && m.ResourceID == resourceID {
			sum += m.Value
		}
	}
	return sum
}

type SourceKind string

const (
	SourceTask      SourceKind = "task"
	SourceAction    SourceKind = "action"
	SourceConverter SourceKind = "converter"
)

// Source identifies what a yield is being computed for.
type Source struct {
	Kind SourceKind
	ID   string
}

func (s Set) matchesYield(m state.Modifier, src Source, resourceID string) bool {
	if m.Property != state.PropYield {
		return false
	}
	if m.ResourceID != "" && m.ResourceID != resourceID {
		return false
	}
	if m.TaskID == "" && m.ActionID == "" {
		return m.Scope == "" || m.Scope == string(src.Kind)
	}
	switch src.Kind {
	case SourceTask:
		return m.TaskID == src.ID
	case SourceAction:
		return m.ActionID == src.ID
	}
	return false
}

// YieldTerms returns the summed flat and percent yield adjustments that apply
// to resourceID produced by src.
func (s Set) YieldTerms(src Source, resourceID string) (flat, pct float64) {
	for _, m := range s {
		if !s.matchesYield(m, src, resourceID) {
			continue
		}
		switch m.Kind {
		case state.ModFlat:
			flat += m.Value
		case state.ModPercent:
			pct += m.Value
		}
	}
	return flat, pct
}

// Yield is (base + flat) * (1 + percent).
func (s Set) Yield(base float64, src Source, resourceID string) float64 {
	flat, pct := s.YieldTerms(src, resourceID)
	return (base + flat) * (1 + pct)
}
