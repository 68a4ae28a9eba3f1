package engine

import "openidle.dev/internal/sim/logic/unlock"

// equip moves one copy of an item from the inventory into its slot, returning
// whatever was there to the inventory.
func (x *txn) equip(itemID string) {
	item, ok := x.cats.Items.Get(itemID)
	if !ok {
		return
	}
	st := x.st
	if st.CountItem(itemID) == 0 {
		x.logf("%s is not in your inventory.", item.Name)
		return
	}
	slot, ok := x.cats.Slots.Get(item.Slot)
	if !ok {
		return
	}
	if !unlock.Satisfied(slot.Prerequisites, st, x.max) {
		x.logf("%s slot is not available.", slot.Name)
		return
	}

	st.TakeItem(itemID)
	if cur, ok := st.Equipment[item.Slot]; ok {
		st.Inventory = append(st.Inventory, cur)
	}
	st.Equipment[item.Slot] = itemID
	x.logf("Equipped %s", item.Name)
}

func (x *txn) unequip(slotID string) {
	itemID, ok := x.st.Equipment[slotID]
	if !ok {
		return
	}
	delete(x.st.Equipment, slotID)
	x.st.Inventory = append(x.st.Inventory, itemID)
	x.logf("Unequipped %s", x.itemName(itemID))
}
