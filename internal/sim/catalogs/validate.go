package catalogs

import (
	"errors"
	"fmt"
)

// Validate checks referential integrity across all tables. Every problem is
// reported, not just the first.
func (c *Catalogs) Validate() error {
	v := validator{c: c}

	c.Resources.Each(func(id string, d ResourceDef) {
		for _, g := range d.PassiveGen {
			v.resource("resource "+id+" passive_gen", g.TargetResourceID)
		}
	})
	c.Actions.Each(func(id string, d ActionDef) {
		where := "action " + id
		v.costs(where, d.Costs)
		v.effects(where, d.Effects, false)
		v.effects(where+" first_completion_effects", d.FirstCompletionEffects, false)
		v.prereqs(where, d.Prerequisites)
		for _, ex := range d.ExclusiveWith {
			if !c.Actions.Has(ex) {
				v.fail("%s: exclusive_with unknown action %q", where, ex)
			}
		}
		v.locks(where, d.Locks)
	})
	c.Tasks.Each(func(id string, d TaskDef) {
		where := "task " + id
		v.costs(where+" cost_per_second", d.CostPerSecond)
		v.costs(where+" start_costs", d.StartCosts)
		v.effects(where+" effects_per_second", d.EffectsPerSecond, true)
		v.effects(where+" completion_effects", d.CompletionEffects, false)
		v.effects(where+" first_completion_effects", d.FirstCompletionEffects, false)
		v.prereqs(where, d.Prerequisites)
		for _, drop := range d.Drops {
			if !c.Items.Has(drop.ItemID) {
				v.fail("%s: drop of unknown item %q", where, drop.ItemID)
			}
		}
		v.locks(where, d.Locks)
	})
	c.Converters.Each(func(id string, d ConverterDef) {
		where := "converter " + id
		v.costs(where+" cost", d.Cost)
		v.costs(where+" cost_per_second", d.CostPerSecond)
		v.effects(where+" effects_per_second", d.EffectsPerSecond, true)
		v.prereqs(where, d.Prerequisites)
	})
	c.Items.Each(func(id string, d ItemDef) {
		where := "item " + id
		if !c.Slots.Has(d.Slot) {
			v.fail("%s: unknown slot %q", where, d.Slot)
		}
		v.effects(where, d.Effects, false)
	})
	c.Slots.Each(func(id string, d SlotDef) {
		v.prereqs("slot "+id, d.Prerequisites)
	})

	return errors.Join(v.errs...)
}

type validator struct {
	c    *Catalogs
	errs []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) resource(where, id string) {
	if id == "" {
		v.fail("%s: missing resource_id", where)
		return
	}
	if !v.c.Resources.Has(id) {
		v.fail("%s: unknown resource %q", where, id)
	}
}

func (v *validator) costs(where string, costs []Cost) {
	for _, c := range costs {
		v.resource(where, c.ResourceID)
	}
}

// effects checks the references each effect kind needs. Per-second lists
// stream add_resource continuously; any other kind there must be a chance event.
func (v *validator) effects(where string, effects []Effect, perSecond bool) {
	for _, e := range effects {
		switch e.Kind {
		case EffectAddResource, EffectMaxFlat, EffectMaxPercent, EffectMaxSet,
			EffectResetModifiers, EffectPassiveGen:
			v.resource(where+" "+string(e.Kind), e.ResourceID)
		case EffectYieldFlat, EffectYieldPercent, EffectTaskYieldPercent:
			if e.Kind == EffectTaskYieldPercent && e.TaskID == "" {
				v.fail("%s: %s without task_id", where, e.Kind)
			}
			if e.TaskID != "" && !v.c.Tasks.Has(e.TaskID) {
				v.fail("%s: %s targets unknown task %q", where, e.Kind, e.TaskID)
			}
			if e.ActionID != "" && !v.c.Actions.Has(e.ActionID) {
				v.fail("%s: %s targets unknown action %q", where, e.Kind, e.ActionID)
			}
			if e.TaskID != "" && e.ActionID != "" {
				v.fail("%s: %s sets both task_id and action_id", where, e.Kind)
			}
			if e.ResourceID != "" {
				v.resource(where+" "+string(e.Kind), e.ResourceID)
			}
		case EffectAddItem:
			if !v.c.Items.Has(e.ItemID) {
				v.fail("%s: add_item of unknown item %q", where, e.ItemID)
			}
		case EffectIncreaseMaxTasks:
		default:
			v.fail("%s: unhandled effect type %q", where, e.Kind)
		}
		if perSecond && e.Chance == nil && e.Kind != EffectAddResource {
			v.fail("%s: streamed effect must be add_resource, got %q", where, e.Kind)
		}
	}
}

func (v *validator) prereqs(where string, ps []Prerequisite) {
	for _, p := range ps {
		if p.ResourceID != "" && !v.c.Resources.Has(p.ResourceID) {
			v.fail("%s: prerequisite on unknown resource %q", where, p.ResourceID)
		}
		if p.ActionID != "" && !v.c.Actions.Has(p.ActionID) {
			v.fail("%s: prerequisite on unknown action %q", where, p.ActionID)
		}
		if p.TaskID != "" && !v.c.Tasks.Has(p.TaskID) {
			v.fail("%s: prerequisite on unknown task %q", where, p.TaskID)
		}
	}
}

func (v *validator) locks(where string, ids []string) {
	for _, id := range ids {
		c := v.c
		if !c.Actions.Has(id) && !c.Tasks.Has(id) && !c.Converters.Has(id) && !c.Resources.Has(id) {
			v.fail("%s: locks unknown id %q", where, id)
		}
	}
}
