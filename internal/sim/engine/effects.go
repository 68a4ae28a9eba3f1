package engine

import (
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/logic/modifiers"
	"openidle.dev/internal/sim/logic/scaling"
)

// source describes who is applying an effect. exponent feeds the scale law;
// yield routes add_resource through the yield modifiers of (kind, id).
type source struct {
	kind     modifiers.SourceKind
	id       string
	name     string
	exponent int
	yield    bool
}

// raw strips scaling and yield, for discrete chance events.
func (s source) raw() source {
	s.exponent = 0
	s.yield = false
	return s
}

// applyEffect evaluates the chance gate once and then applies e. mult scales
// add_resource amounts (dt for streamed effects, 1 otherwise).
func (x *txn) applyEffect(src source, e catalogs.Effect, mult float64) {
	if e.Chance != nil && x.rnd.Float64() >= *e.Chance {
		return
	}
	x.apply(src, e, mult)
}

// apply interprets one effect. It reports false only for a kind it does not
// know, which catalog validation rules out.
func (x *txn) apply(src source, e catalogs.Effect, mult float64) bool {
	st := x.st
	switch e.Kind {
	case catalogs.EffectAddResource:
		amt := scaling.Effect(e, src.exponent)
		if src.yield {
			amt = x.mods.Yield(amt, modifiers.Source{Kind: src.kind, ID: src.id}, e.ResourceID)
		}
		x.add(e.ResourceID, amt*mult)

	case catalogs.EffectMaxFlat, catalogs.EffectMaxPercent, catalogs.EffectMaxSet,
		catalogs.EffectPassiveGen, catalogs.EffectYieldFlat, catalogs.EffectYieldPercent,
		catalogs.EffectTaskYieldPercent:
		if m, ok := modifiers.FromEffect(src.name, e, scaling.Effect(e, src.exponent)); ok {
			st.Modifiers = append(st.Modifiers, m)
		}

	case catalogs.EffectResetModifiers:
		st.Modifiers = modifiers.WithoutResource(st.Modifiers, e.ResourceID)

	case catalogs.EffectAddItem:
		n := int(e.Amount)
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			st.Inventory = append(st.Inventory, e.ItemID)
		}
		x.logf("Obtained: %s", x.itemName(e.ItemID))

	case catalogs.EffectIncreaseMaxTasks:
		st.MaxConcurrentTasks += int(e.Amount)

	default:
		return false
	}
	return true
}

// applyPerSecond handles one effects_per_second entry: chance entries are
// Bernoulli draws with probability chance*dt granting the raw amount,
// everything else streams at amount*dt.
func (x *txn) applyPerSecond(src source, e catalogs.Effect, dt float64) {
	if e.Chance != nil {
		if x.rnd.Float64() < *e.Chance*dt {
			x.apply(src.raw(), e, 1)
		}
		return
	}
	x.apply(src, e, dt)
}
