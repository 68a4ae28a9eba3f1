package engine

import "openidle.dev/internal/sim/state"

type Kind string

const (
	CmdAdvanceTime     Kind = "advance_time"
	CmdTriggerAction   Kind = "trigger_action"
	CmdToggleTask      Kind = "toggle_task"
	CmdSetRestTask     Kind = "set_rest_task"
	CmdEquipItem       Kind = "equip_item"
	CmdUnequipItem     Kind = "unequip_item"
	CmdBuyConverter    Kind = "buy_converter"
	CmdToggleConverter Kind = "toggle_converter"
	CmdLoadState       Kind = "load_state"
	CmdReset           Kind = "reset"
)

// Command is the only input the reducer accepts. ID names the action, task,
// item, slot or converter the command targets; an empty ID on set_rest_task
// clears the rest task.
type Command struct {
	Kind  Kind             `json:"kind"`
	ID    string           `json:"id,omitempty"`
	DtMs  int64            `json:"dt_ms,omitempty"`
	State *state.GameState `json:"state,omitempty"`
}

func AdvanceTime(dtMs int64) Command        { return Command{Kind: CmdAdvanceTime, DtMs: dtMs} }
func TriggerAction(id string) Command       { return Command{Kind: CmdTriggerAction, ID: id} }
func ToggleTask(id string) Command          { return Command{Kind: CmdToggleTask, ID: id} }
func SetRestTask(id string) Command         { return Command{Kind: CmdSetRestTask, ID: id} }
func EquipItem(id string) Command           { return Command{Kind: CmdEquipItem, ID: id} }
func UnequipItem(slot string) Command       { return Command{Kind: CmdUnequipItem, ID: slot} }
func BuyConverter(id string) Command        { return Command{Kind: CmdBuyConverter, ID: id} }
func ToggleConverter(id string) Command     { return Command{Kind: CmdToggleConverter, ID: id} }
func LoadState(st *state.GameState) Command { return Command{Kind: CmdLoadState, State: st} }
func Reset() Command                        { return Command{Kind: CmdReset} }

// Valid reports whether k is a known command kind.
func (k Kind) Valid() bool {
	switch k {
	case CmdAdvanceTime, CmdTriggerAction, CmdToggleTask, CmdSetRestTask, CmdEquipItem,
		CmdUnequipItem, CmdBuyConverter, CmdToggleConverter, CmdLoadState, CmdReset:
		return true
	}
	return false
}
