package engine

import (
	"openidle.dev/internal/sim/logic/modifiers"
	"openidle.dev/internal/sim/logic/scaling"
)

func (x *txn) triggerAction(id string) {
	def, ok := x.cats.Actions.Get(id)
	if !ok {
		return
	}
	st := x.st
	as := st.Actions[id]

	if def.MaxExecutions > 0 && as.Executions >= def.MaxExecutions {
		x.logf("%s limit reached.", def.Name)
		return
	}
	exp := scaling.ActionExponent(as.Executions)
	for _, c := range def.Costs {
		if x.amount(c.ResourceID) < scaling.Cost(c, exp) {
			x.logf("Not enough resources for %s", def.Name)
			return
		}
	}
	for _, c := range def.Costs {
		x.spend(c.ResourceID, scaling.Cost(c, exp))
	}

	src := source{kind: modifiers.SourceAction, id: id, name: def.Name, exponent: exp, yield: true}
	for _, e := range def.Effects {
		x.applyEffect(src, e, 1)
	}
	if as.Executions == 0 {
		for _, e := range def.FirstCompletionEffects {
			x.applyEffect(src, e, 1)
		}
	}

	as.Executions++
	as.LastUsedMs = st.TotalTimeMs
	st.Actions[id] = as

	if def.LogMessage != "" {
		x.logf("%s", def.LogMessage)
	} else {
		x.logf("Used %s", def.Name)
	}
}
