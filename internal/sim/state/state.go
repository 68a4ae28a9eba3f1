package state

type Resource struct {
	Current  float64 `json:"current"`
	Unlocked bool    `json:"unlocked"`
}

type Action struct {
	Executions int  `json:"executions"`
	Unlocked   bool `json:"unlocked"`
	// LastUsedMs is simulated time, so transitions stay reproducible.
	LastUsedMs int64 `json:"last_used,omitempty"`
}

type Task struct {
	Active      bool    `json:"active"`
	Level       int     `json:"level"`
	XP          float64 `json:"xp"`
	Progress    float64 `json:"progress"`
	Completions int     `json:"completions"`
	Paid        bool    `json:"paid"`
	Unlocked    bool    `json:"unlocked"`
}

type Converter struct {
	Owned    bool `json:"owned"`
	Active   bool `json:"active"`
	Unlocked bool `json:"unlocked"`
}

type ModKind string

const (
	ModFlat    ModKind = "flat"
	ModPercent ModKind = "percent"
	ModSet     ModKind = "set"
)

type ModProperty string

const (
	PropMax   ModProperty = "max"
	PropGen   ModProperty = "gen"
	PropYield ModProperty = "yield"
)

// Modifier is one stacking adjustment. Yield modifiers with neither TaskID nor
// ActionID are global; Scope then narrows them to tasks or actions.
type Modifier struct {
	SourceID   string      `json:"source_id"`
	Kind       ModKind     `json:"kind"`
	Value      float64     `json:"value"`
	ResourceID string      `json:"resource_id,omitempty"`
	TaskID     string      `json:"task_id,omitempty"`
	ActionID   string      `json:"action_id,omitempty"`
	Scope      string      `json:"scope,omitempty"`
	Property   ModProperty `json:"property"`
}

// GameState is the root aggregate. It is persisted as-is, so field names are
// the save format.
type GameState struct {
	Resources  map[string]Resource  `json:"resources"`
	Actions    map[string]Action    `json:"actions"`
	Tasks      map[string]Task      `json:"tasks"`
	Converters map[string]Converter `json:"converters"`

	Inventory []string          `json:"inventory"`
	Equipment map[string]string `json:"equipment"` // slot id -> item id

	// Modifiers holds permanent modifiers only. Equipment modifiers are
	// derived on demand and never stored here.
	Modifiers []Modifier `json:"modifiers"`

	Log         []string `json:"log"` // newest first
	TotalTimeMs int64    `json:"total_time_ms"`

	ActiveTaskIDs      []string `json:"active_task_ids"` // oldest first
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
	RestTaskID         string   `json:"rest_task_id"`
	PreviousTaskID     string   `json:"previous_task_id,omitempty"`
}

// Clone returns a deep copy.
func (s *GameState) Clone() *GameState {
	c := *s
	c.Resources = cloneMap(s.Resources)
	c.Actions = cloneMap(s.Actions)
	c.Tasks = cloneMap(s.Tasks)
	c.Converters = cloneMap(s.Converters)
	c.Equipment = cloneMap(s.Equipment)
	c.Inventory = append([]string{}, s.Inventory...)
	c.Modifiers = append([]Modifier{}, s.Modifiers...)
	c.Log = append([]string{}, s.Log...)
	c.ActiveTaskIDs = append([]string{}, s.ActiveTaskIDs...)
	return &c
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AddLog prepends msg and trims the log to capacity entries.
func (s *GameState) AddLog(msg string, capacity int) {
	s.Log = append(s.Log, "")
	copy(s.Log[1:], s.Log)
	s.Log[0] = msg
	if capacity > 0 && len(s.Log) > capacity {
		s.Log = s.Log[:capacity]
	}
}

func (s *GameState) IsTaskActive(id string) bool {
	for _, a := range s.ActiveTaskIDs {
		if a == id {
			return true
		}
	}
	return false
}

// RemoveActive drops id from ActiveTaskIDs, keeping order.
func (s *GameState) RemoveActive(id string) {
	out := s.ActiveTaskIDs[:0]
	for _, a := range s.ActiveTaskIDs {
		if a != id {
			out = append(out, a)
		}
	}
	s.ActiveTaskIDs = out
}

// CountItem reports how many copies of id sit in the inventory.
func (s *GameState) CountItem(id string) int {
	n := 0
	for _, it := range s.Inventory {
		if it == id {
			n++
		}
	}
	return n
}

// TakeItem removes one copy of id from the inventory.
func (s *GameState) TakeItem(id string) bool {
	for i, it := range s.Inventory {
		if it == id {
			s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
			return true
		}
	}
	return false
}
