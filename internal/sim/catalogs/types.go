package catalogs

import (
	"fmt"
)

type ResourceDef struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Kind          string       `json:"kind,omitempty"` // "basic","stat"
	Category      string       `json:"category,omitempty"`
	Description   string       `json:"description,omitempty"`
	BaseMax       float64      `json:"base_max"`
	InitialAmount float64      `json:"initial_amount,omitempty"`
	PassiveGen    []PassiveGen `json:"passive_gen,omitempty"`
}

// PassiveGen converts the floored amount of the owning resource into another
// resource every second.
type PassiveGen struct {
	TargetResourceID string  `json:"target_resource_id"`
	RatePerUnit      float64 `json:"rate_per_unit"`
}

type ScaleType string

const (
	ScaleExponential ScaleType = "exponential"
	ScaleFixed       ScaleType = "fixed"
	ScalePercentage  ScaleType = "percentage"
)

func (s *ScaleType) UnmarshalText(b []byte) error {
	switch v := ScaleType(b); v {
	case "", ScaleExponential, ScaleFixed, ScalePercentage:
		*s = v
		return nil
	default:
		return fmt.Errorf("unknown scale_type %q", string(b))
	}
}

type Cost struct {
	ResourceID         string    `json:"resource_id"`
	Amount             float64   `json:"amount"`
	ScaleFactor        float64   `json:"scale_factor,omitempty"`
	ScaleType          ScaleType `json:"scale_type,omitempty"`
	ScalesByCompletion bool      `json:"scales_by_completion,omitempty"`
}

type EffectKind string

const (
	EffectAddResource      EffectKind = "add_resource"
	EffectMaxFlat          EffectKind = "modify_max_resource_flat"
	EffectMaxPercent       EffectKind = "modify_max_resource_pct"
	EffectMaxSet           EffectKind = "modify_max_resource_set"
	EffectResetModifiers   EffectKind = "reset_resource_modifiers"
	EffectPassiveGen       EffectKind = "modify_passive_gen"
	EffectYieldFlat        EffectKind = "modify_yield_flat"
	EffectYieldPercent     EffectKind = "modify_yield_pct"
	EffectTaskYieldPercent EffectKind = "modify_task_yield_pct"
	EffectAddItem          EffectKind = "add_item"
	EffectIncreaseMaxTasks EffectKind = "increase_max_tasks"
)

// EffectKinds lists the closed effect vocabulary in declaration order.
var EffectKinds = []EffectKind{
	EffectAddResource,
	EffectMaxFlat,
	EffectMaxPercent,
	EffectMaxSet,
	EffectResetModifiers,
	EffectPassiveGen,
	EffectYieldFlat,
	EffectYieldPercent,
	EffectTaskYieldPercent,
	EffectAddItem,
	EffectIncreaseMaxTasks,
}

func (k *EffectKind) UnmarshalText(b []byte) error {
	v := EffectKind(b)
	for _, known := range EffectKinds {
		if v == known {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown effect type %q", string(b))
}

// YieldScope restricts a global yield modifier to one kind of source.
type YieldScope string

const (
	ScopeAny    YieldScope = ""
	ScopeTask   YieldScope = "task"
	ScopeAction YieldScope = "action"
)

type Effect struct {
	Kind        EffectKind `json:"type"`
	ResourceID  string     `json:"resource_id,omitempty"`
	TaskID      string     `json:"task_id,omitempty"`
	ActionID    string     `json:"action_id,omitempty"`
	ItemID      string     `json:"item_id,omitempty"`
	Amount      float64    `json:"amount"`
	ScaleFactor float64    `json:"scale_factor,omitempty"`
	ScaleType   ScaleType  `json:"scale_type,omitempty"`
	Chance      *float64   `json:"chance,omitempty"`
	YieldScope  YieldScope `json:"yield_scope,omitempty"`
	Hidden      bool       `json:"hidden,omitempty"`
}

type Prerequisite struct {
	ResourceID string   `json:"resource_id,omitempty"`
	MinAmount  *float64 `json:"min_amount,omitempty"`
	MinMax     *float64 `json:"min_max,omitempty"`

	ActionID      string `json:"action_id,omitempty"`
	MinExecutions int    `json:"min_executions,omitempty"`

	TaskID         string `json:"task_id,omitempty"`
	MinLevel       int    `json:"min_level,omitempty"`
	MinCompletions int    `json:"min_completions,omitempty"`
}

type ActionDef struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	Description            string         `json:"description,omitempty"`
	Category               string         `json:"category"`
	Costs                  []Cost         `json:"costs,omitempty"`
	Effects                []Effect       `json:"effects,omitempty"`
	FirstCompletionEffects []Effect       `json:"first_completion_effects,omitempty"`
	MaxExecutions          int            `json:"max_executions,omitempty"`
	Prerequisites          []Prerequisite `json:"prerequisites,omitempty"`
	ExclusiveWith          []string       `json:"exclusive_with,omitempty"`
	Locks                  []string       `json:"locks,omitempty"`
	LogMessage             string         `json:"log_message,omitempty"`
}

type TaskType string

const (
	TaskNormal TaskType = "normal"
	TaskRest   TaskType = "rest"
)

func (t *TaskType) UnmarshalText(b []byte) error {
	switch v := TaskType(b); v {
	case "", TaskNormal:
		*t = TaskNormal
		return nil
	case TaskRest:
		*t = v
		return nil
	default:
		return fmt.Errorf("unknown task type %q", string(b))
	}
}

type TaskDrop struct {
	ItemID          string  `json:"item_id"`
	ChancePerSecond float64 `json:"chance_per_second"`
}

type TaskDef struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	Type        TaskType `json:"type,omitempty"`

	CostPerSecond    []Cost     `json:"cost_per_second,omitempty"`
	EffectsPerSecond []Effect   `json:"effects_per_second,omitempty"`
	XPPerSecond      float64    `json:"xp_per_second,omitempty"`
	Drops            []TaskDrop `json:"drops,omitempty"`

	StartCosts       []Cost  `json:"start_costs,omitempty"`
	ProgressRequired float64 `json:"progress_required,omitempty"`
	AutoRestart      bool    `json:"auto_restart,omitempty"`

	CompletionEffects      []Effect `json:"completion_effects,omitempty"`
	FirstCompletionEffects []Effect `json:"first_completion_effects,omitempty"`

	Prerequisites []Prerequisite `json:"prerequisites,omitempty"`
	MaxExecutions int            `json:"max_executions,omitempty"`
	Locks         []string       `json:"locks,omitempty"`
}

func (t TaskDef) IsRest() bool { return t.Type == TaskRest }

type ConverterDef struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	Cost             []Cost         `json:"cost,omitempty"`
	CanBeToggled     bool           `json:"can_be_toggled"`
	CostPerSecond    []Cost         `json:"cost_per_second,omitempty"`
	EffectsPerSecond []Effect       `json:"effects_per_second,omitempty"`
	Prerequisites    []Prerequisite `json:"prerequisites,omitempty"`
}

type ItemDef struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Slot        string   `json:"slot"`
	Effects     []Effect `json:"effects,omitempty"`
}

type SlotDef struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Prerequisites []Prerequisite `json:"prerequisites,omitempty"`
}

type CategoryDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
