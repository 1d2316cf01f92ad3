package world

// Event names emitted by World mutators. The default configuration binds
// each of them to the panel properties they make stale.
const (
	EventItemAdded        = "inventory:item:added"
	EventItemRemoved      = "inventory:item:removed"
	EventEquipmentChanged = "player:equipment:changed"
	EventGoldChanged      = "player:gold:changed"
	EventStatsChanged     = "player:stats:changed"
	EventLevelChanged     = "player:level:changed"
	EventQuestStarted     = "quest:started"
	EventQuestProgress    = "quest:progress"
	EventQuestCompleted   = "quest:completed"
	EventCompanionAdded   = "companion:added"
	EventCompanionRemoved = "companion:removed"
	EventPricesChanged    = "market:prices:changed"
	EventStockChanged     = "market:stock:changed"
)

// Events lists every event name World can emit.
func Events() []string {
	return []string{
		EventItemAdded, EventItemRemoved, EventEquipmentChanged,
		EventGoldChanged, EventStatsChanged, EventLevelChanged,
		EventQuestStarted, EventQuestProgress, EventQuestCompleted,
		EventCompanionAdded, EventCompanionRemoved,
		EventPricesChanged, EventStockChanged,
	}
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(event string, payload any)
}

// GoldChange is the payload of EventGoldChanged.
type GoldChange struct {
	Old    int    `json:"old"`
	New    int    `json:"new"`
	Reason string `json:"reason"`
}

// ItemChange is the payload of EventItemAdded and EventItemRemoved.
type ItemChange struct {
	Item Item `json:"item"`
}

// EquipmentChange is the payload of EventEquipmentChanged.
type EquipmentChange struct {
	Slot     string `json:"slot"`
	Equipped *Item  `json:"equipped,omitempty"`
	Removed  *Item  `json:"removed,omitempty"`
}

// QuestChange is the payload of the quest events.
type QuestChange struct {
	Quest Quest `json:"quest"`
}

// CompanionChange is the payload of the companion events.
type CompanionChange struct {
	Companion Companion `json:"companion"`
}

// MarketChange is the payload of the market events.
type MarketChange struct {
	Good  string `json:"good"`
	Value int    `json:"value"`
}
