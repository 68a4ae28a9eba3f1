package engine

import (
	"openidle.dev/internal/sim/catalogs"
	"openidle.dev/internal/sim/logic/modifiers"
	"openidle.dev/internal/sim/logic/scaling"
)

// buyConverter buys a converter. Toggleable converters arrive switched off;
// the rest switch on at once and stay on.
func (x *txn) buyConverter(id string) {
	def, ok := x.cats.Converters.Get(id)
	if !ok {
		return
	}
	st := x.st
	c := st.Converters[id]
	if c.Owned {
		x.logf("%s already owned.", def.Name)
		return
	}
	for _, cost := range def.Cost {
		if x.amount(cost.ResourceID) < scaling.Cost(cost, 0) {
			x.logf("Not enough resources for %s", def.Name)
			return
		}
	}
	for _, cost := range def.Cost {
		x.spend(cost.ResourceID, scaling.Cost(cost, 0))
	}
	c.Owned = true
	c.Active = !def.CanBeToggled
	st.Converters[id] = c
	x.logf("Bought %s", def.Name)
}

func (x *txn) toggleConverter(id string) {
	def, ok := x.cats.Converters.Get(id)
	if !ok {
		return
	}
	c := x.st.Converters[id]
	if !c.Owned {
		x.logf("%s is not owned.", def.Name)
		return
	}
	if !def.CanBeToggled {
		x.logf("%s cannot be switched off.", def.Name)
		return
	}
	c.Active = !c.Active
	x.st.Converters[id] = c
}

// tickConverters runs owned, active converters in catalog order. A converter
// that cannot pay this tick idles; it is never switched off.
func (x *txn) tickConverters(dt float64) {
	x.cats.Converters.Each(func(id string, def catalogs.ConverterDef) {
		c := x.st.Converters[id]
		if !c.Owned || !c.Active {
			return
		}
		for _, cost := range def.CostPerSecond {
			if x.amount(cost.ResourceID) < scaling.Cost(cost, 0)*dt {
				return
			}
		}
		for _, cost := range def.CostPerSecond {
			x.spend(cost.ResourceID, scaling.Cost(cost, 0)*dt)
		}
		src := source{kind: modifiers.SourceConverter, id: id, name: def.Name}
		for _, e := range def.EffectsPerSecond {
			x.applyPerSecond(src, e, dt)
		}
	})
}
