package world

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInsufficientGold is returned when a purchase or payment exceeds the
	// player's gold.
	ErrInsufficientGold = errors.New("insufficient gold")

	// ErrNotFound is returned for an unknown item, quest, companion or good.
	ErrNotFound = errors.New("not found")

	// ErrOutOfStock is returned when buying a good the market has none of.
	ErrOutOfStock = errors.New("out of stock")

	// ErrNotEquippable is returned when equipping an item without a slot.
	ErrNotEquippable = errors.New("item cannot be equipped")
)

// Stats are the player's combat attributes.
type Stats struct {
	Health    int `json:"health"`
	MaxHealth int `json:"maxHealth"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
}

func (s Stats) add(o Stats) Stats {
	return Stats{
		Health:    s.Health + o.Health,
		MaxHealth: s.MaxHealth + o.MaxHealth,
		Attack:    s.Attack + o.Attack,
		Defense:   s.Defense + o.Defense,
	}
}

// Item is something the player carries.
type Item struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Value  int     `json:"value"`
	Slot   string  `json:"slot,omitempty"`
	Bonus  Stats   `json:"bonus,omitempty"`
}

// Quest is a tracked objective.
type Quest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Progress int    `json:"progress"`
	Goal     int    `json:"goal"`
	Done     bool   `json:"done"`
}

// Companion is a party member.
type Companion struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Level int    `json:"level"`
}

// World is the mutable model behind the panels. Every mutator emits the
// matching domain event after the change is applied.
//
// World is not safe for concurrent use; it lives on the host loop alongside
// the scheduler.
type World struct {
	emitter Emitter

	name      string
	gold      int
	level     int
	xp        int
	base      Stats
	inventory []Item
	equipment map[string]Item
	quests    []Quest
	party     []Companion
	prices    map[string]int
	stock     map[string]int

	nextID int
}

// New creates a level 1 character with 100 gold and an empty inventory.
func New(name string, emitter Emitter) *World {
	return &World{
		emitter:   emitter,
		name:      name,
		gold:      100,
		level:     1,
		base:      Stats{Health: 50, MaxHealth: 50, Attack: 5, Defense: 3},
		equipment: make(map[string]Item),
		prices:    make(map[string]int),
		stock:     make(map[string]int),
	}
}

func (w *World) emit(event string, payload any) {
	if w.emitter != nil {
		w.emitter.Emit(event, payload)
	}
}

// Name returns the character name.
func (w *World) Name() string { return w.name }

// Gold returns the current gold.
func (w *World) Gold() int { return w.gold }

// Level returns the character level.
func (w *World) Level() int { return w.level }

// XP returns experience toward the next level.
func (w *World) XP() int { return w.xp }

// XPToNext returns the experience required to reach the next level.
func (w *World) XPToNext() int { return w.level * 100 }

// AddGold changes gold by delta. Spending more than the player owns fails
// with ErrInsufficientGold and leaves gold unchanged.
func (w *World) AddGold(delta int, reason string) error {
	if w.gold+delta < 0 {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientGold, w.gold, -delta)
	}
	if delta == 0 {
		return nil
	}
	old := w.gold
	w.gold += delta
	w.emit(EventGoldChanged, GoldChange{Old: old, New: w.gold, Reason: reason})
	return nil
}

// AddItem puts item into the inventory, assigning an ID when it has none.
func (w *World) AddItem(item Item) Item {
	if item.ID == "" {
		w.nextID++
		item.ID = fmt.Sprintf("item-%d", w.nextID)
	}
	w.inventory = append(w.inventory, item)
	w.emit(EventItemAdded, ItemChange{Item: item})
	return item
}

// RemoveItem takes an item out of the inventory.
func (w *World) RemoveItem(id string) (Item, error) {
	for i, it := range w.inventory {
		if it.ID == id {
			w.inventory = append(w.inventory[:i], w.inventory[i+1:]...)
			w.emit(EventItemRemoved, ItemChange{Item: it})
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("item %q: %w", id, ErrNotFound)
}

// Inventory returns a copy of the carried items.
func (w *World) Inventory() []Item {
	return append([]Item(nil), w.inventory...)
}

// Weight returns the total weight of carried items.
func (w *World) Weight() float64 {
	total := 0.0
	for _, it := range w.inventory {
		total += it.Weight
	}
	return total
}

// Equip moves an inventory item into its slot. An item already in the slot
// goes back to the inventory.
func (w *World) Equip(id string) error {
	var item Item
	idx := -1
	for i, it := range w.inventory {
		if it.ID == id {
			item, idx = it, i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("item %q: %w", id, ErrNotFound)
	}
	if item.Slot == "" {
		return fmt.Errorf("item %q: %w", item.Name, ErrNotEquippable)
	}

	w.inventory = append(w.inventory[:idx], w.inventory[idx+1:]...)
	change := EquipmentChange{Slot: item.Slot, Equipped: &item}
	if prev, ok := w.equipment[item.Slot]; ok {
		w.inventory = append(w.inventory, prev)
		change.Removed = &prev
	}
	w.equipment[item.Slot] = item
	w.emit(EventEquipmentChanged, change)
	return nil
}

// Unequip moves the item in slot back to the inventory.
func (w *World) Unequip(slot string) error {
	item, ok := w.equipment[slot]
	if !ok {
		return fmt.Errorf("slot %q: %w", slot, ErrNotFound)
	}
	delete(w.equipment, slot)
	w.inventory = append(w.inventory, item)
	w.emit(EventEquipmentChanged, EquipmentChange{Slot: slot, Removed: &item})
	return nil
}

// Equipment returns equipped items keyed by slot.
func (w *World) Equipment() map[string]Item {
	out := make(map[string]Item, len(w.equipment))
	for k, v := range w.equipment {
		out[k] = v
	}
	return out
}

// Stats returns base stats plus equipment bonuses.
func (w *World) Stats() Stats {
	s := w.base
	for _, it := range w.equipment {
		s = s.add(it.Bonus)
	}
	if s.Health > s.MaxHealth {
		s.Health = s.MaxHealth
	}
	return s
}

// Damage lowers health, never below zero.
func (w *World) Damage(n int) {
	w.base.Health -= n
	if w.base.Health < 0 {
		w.base.Health = 0
	}
	w.emit(EventStatsChanged, w.Stats())
}

// Heal raises health up to the maximum.
func (w *World) Heal(n int) {
	w.base.Health += n
	if w.base.Health > w.base.MaxHealth {
		w.base.Health = w.base.MaxHealth
	}
	w.emit(EventStatsChanged, w.Stats())
}

// GainXP adds experience and levels up as often as it reaches the
// threshold. Each level raises base stats.
func (w *World) GainXP(n int) {
	w.xp += n
	leveled := false
	for w.xp >= w.XPToNext() {
		w.xp -= w.XPToNext()
		w.level++
		w.base.MaxHealth += 10
		w.base.Health = w.base.MaxHealth
		w.base.Attack += 2
		w.base.Defense++
		leveled = true
	}
	if leveled {
		w.emit(EventLevelChanged, w.level)
	}
}

// StartQuest begins tracking a quest.
func (w *World) StartQuest(name string, goal int) Quest {
	w.nextID++
	q := Quest{ID: fmt.Sprintf("quest-%d", w.nextID), Name: name, Goal: goal}
	w.quests = append(w.quests, q)
	w.emit(EventQuestStarted, QuestChange{Quest: q})
	return q
}

// ProgressQuest advances a quest and completes it when the goal is reached.
func (w *World) ProgressQuest(id string, n int) error {
	for i := range w.quests {
		q := &w.quests[i]
		if q.ID != id {
			continue
		}
		if q.Done {
			return nil
		}
		q.Progress += n
		if q.Progress >= q.Goal {
			q.Progress = q.Goal
			q.Done = true
			w.emit(EventQuestCompleted, QuestChange{Quest: *q})
			return nil
		}
		w.emit(EventQuestProgress, QuestChange{Quest: *q})
		return nil
	}
	return fmt.Errorf("quest %q: %w", id, ErrNotFound)
}

// Quests returns a copy of the quest log.
func (w *World) Quests() []Quest {
	return append([]Quest(nil), w.quests...)
}

// ActiveQuests returns quests that are not done.
func (w *World) ActiveQuests() []Quest {
	var out []Quest
	for _, q := range w.quests {
		if !q.Done {
			out = append(out, q)
		}
	}
	return out
}

// AddCompanion adds a party member.
func (w *World) AddCompanion(c Companion) {
	w.party = append(w.party, c)
	w.emit(EventCompanionAdded, CompanionChange{Companion: c})
}

// RemoveCompanion removes the named party member.
func (w *World) RemoveCompanion(name string) error {
	for i, c := range w.party {
		if c.Name == name {
			w.party = append(w.party[:i], w.party[i+1:]...)
			w.emit(EventCompanionRemoved, CompanionChange{Companion: c})
			return nil
		}
	}
	return fmt.Errorf("companion %q: %w", name, ErrNotFound)
}

// Party returns a copy of the party.
func (w *World) Party() []Companion {
	return append([]Companion(nil), w.party...)
}

// SetPrice sets the market price of good.
func (w *World) SetPrice(good string, price int) {
	if w.prices[good] == price {
		return
	}
	w.prices[good] = price
	w.emit(EventPricesChanged, MarketChange{Good: good, Value: price})
}

// SetStock sets the market stock of good.
func (w *World) SetStock(good string, n int) {
	if cur, ok := w.stock[good]; ok && cur == n {
		return
	}
	w.stock[good] = n
	w.emit(EventStockChanged, MarketChange{Good: good, Value: n})
}

// Price returns the market price of good.
func (w *World) Price(good string) (int, bool) {
	p, ok := w.prices[good]
	return p, ok
}

// Stock returns the market stock of good.
func (w *World) Stock(good string) int {
	return w.stock[good]
}

// Goods returns the names of goods with a price, sorted.
func (w *World) Goods() []string {
	out := make([]string, 0, len(w.prices))
	for g := range w.prices {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Buy purchases one unit of a catalog good: it pays the market price,
// decrements stock and adds the item to the inventory.
func (w *World) Buy(good string) (Item, error) {
	price, ok := w.prices[good]
	if !ok {
		return Item{}, fmt.Errorf("good %q: %w", good, ErrNotFound)
	}
	if w.stock[good] <= 0 {
		return Item{}, fmt.Errorf("good %q: %w", good, ErrOutOfStock)
	}
	if err := w.AddGold(-price, "buy "+good); err != nil {
		return Item{}, err
	}
	w.SetStock(good, w.stock[good]-1)

	item, ok := Catalog[good]
	if !ok {
		item = Item{Name: good, Weight: 1, Value: price}
	}
	return w.AddItem(item), nil
}

// Sell removes an inventory item and credits its value.
func (w *World) Sell(id string) error {
	item, err := w.RemoveItem(id)
	if err != nil {
		return err
	}
	return w.AddGold(item.Value, "sell "+item.Name)
}
