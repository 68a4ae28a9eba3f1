// Package scaling computes escalating costs and yields from a base amount, a
// scale law and an exponent taken from execution, level or completion counters.
package scaling

import (
	"math"

	"openidle.dev/internal/sim/catalogs"
)

// Apply scales amount by exponent. A zero factor means the value does not
// scale; an empty law defaults to exponential.
func Apply(amount, factor float64, law catalogs.ScaleType, exponent int) float64 {
	if factor == 0 {
		return amount
	}
	e := float64(exponent)
	switch law {
	case catalogs.ScaleFixed:
		return amount + factor*e
	case catalogs.ScalePercentage:
		return amount * (1 + factor*e)
	default:
		return amount * math.Pow(factor, e)
	}
}

func Cost(c catalogs.Cost, exponent int) float64 {
	return Apply(c.Amount, c.ScaleFactor, c.ScaleType, exponent)
}

func Effect(e catalogs.Effect, exponent int) float64 {
	return Apply(e.Amount, e.ScaleFactor, e.ScaleType, exponent)
}

func ActionExponent(executions int) int { return executions }

// TaskCostExponent is level-1, or completions for costs that scale by completion.
func TaskCostExponent(c catalogs.Cost, level, completions int) int {
	if c.ScalesByCompletion {
		return completions
	}
	return TaskEffectExponent(level)
}

func TaskEffectExponent(level int) int {
	if level < 1 {
		return 0
	}
	return level - 1
}
