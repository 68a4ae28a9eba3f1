package engine

import (
	"math"

	"openidle.dev/internal/sim/catalogs"
)

// advance moves the simulation forward by dtMs. The phase order is fixed:
// tasks, passive conversion, modifier generation, converters. Clamping and
// unlocks follow in finalize.
func (x *txn) advance(dtMs int64) {
	if dtMs <= 0 {
		return
	}
	dt := float64(dtMs) / 1000

	x.tickTasks(dt)
	x.passiveConversion(dt)
	x.modifierGeneration(dt)
	x.tickConverters(dt)

	x.st.TotalTimeMs += dtMs
}

// passiveConversion lets each resource with passive_gen feed its targets in
// proportion to its whole units. Resources with less than one unit idle.
func (x *txn) passiveConversion(dt float64) {
	x.cats.Resources.Each(func(id string, def catalogs.ResourceDef) {
		if len(def.PassiveGen) == 0 {
			return
		}
		units := math.Floor(x.amount(id))
		if units < 1 {
			return
		}
		for _, g := range def.PassiveGen {
			x.add(g.TargetResourceID, units*g.RatePerUnit*dt)
		}
	})
}

func (x *txn) modifierGeneration(dt float64) {
	x.cats.Resources.Each(func(id string, _ catalogs.ResourceDef) {
		if gen := x.mods.Gen(id); gen != 0 {
			x.add(id, gen*dt)
		}
	})
}
