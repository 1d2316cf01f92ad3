package world

import (
	"math/rand"
	"time"

	"panelsync/internal/host"
	"panelsync/pkg/logging"
)

// Catalog is the set of goods the market trades.
var Catalog = map[string]Item{
	"sword":  {Name: "Iron Sword", Weight: 6, Value: 40, Slot: "weapon", Bonus: Stats{Attack: 6}},
	"axe":    {Name: "War Axe", Weight: 8, Value: 55, Slot: "weapon", Bonus: Stats{Attack: 9}},
	"shield": {Name: "Oak Shield", Weight: 7, Value: 30, Slot: "offhand", Bonus: Stats{Defense: 5}},
	"helm":   {Name: "Leather Cap", Weight: 2, Value: 15, Slot: "head", Bonus: Stats{Defense: 2}},
	"mail":   {Name: "Chain Mail", Weight: 15, Value: 90, Slot: "body", Bonus: Stats{Defense: 8, MaxHealth: 10}},
	"potion": {Name: "Healing Potion", Weight: 0.5, Value: 12},
	"bread":  {Name: "Rye Bread", Weight: 0.3, Value: 2},
	"ore":    {Name: "Iron Ore", Weight: 4, Value: 8},
}

var (
	questNames     = []string{"Wolves at the Mill", "The Lost Ledger", "Ore for the Smith", "Bandit Toll"}
	companionNames = []string{"Aldric", "Brenna", "Corwin", "Dagny", "Edda"}
	companionRoles = []string{"guard", "healer", "scout", "porter"}
)

// catalogGoods lists Catalog's keys in a fixed order so a seeded rng is
// reproducible.
var catalogGoods = []string{"axe", "bread", "helm", "mail", "ore", "potion", "shield", "sword"}

// SeedMarket prices every catalog good at its value with five in stock.
func (w *World) SeedMarket() {
	for _, good := range catalogGoods {
		w.SetPrice(good, Catalog[good].Value)
		w.SetStock(good, 5)
	}
}

// Simulator applies random mutations to a World at a fixed rate, driven by
// the host's timers so every mutation runs on the loop.
type Simulator struct {
	world *World
	host  host.Host
	rng   *rand.Rand
	every time.Duration

	cancel  host.Cancel
	running bool
	steps   int
	errors  int
}

// NewSimulator creates a simulator performing rate mutations per second.
// A nil rng seeds one from the current time.
func NewSimulator(w *World, h host.Host, rate float64, rng *rand.Rand) *Simulator {
	if rate <= 0 {
		rate = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		world: w,
		host:  h,
		rng:   rng,
		every: time.Duration(float64(time.Second) / rate),
	}
}

// Start schedules the first step. It must be called on the loop.
func (s *Simulator) Start() {
	if s.running {
		return
	}
	s.running = true
	s.schedule()
	logging.Debug("Simulator", "Started, one mutation every %v", s.every)
}

// Stop cancels the next step. It must be called on the loop.
func (s *Simulator) Stop() {
	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	logging.Debug("Simulator", "Stopped after %d steps (%d rejected)", s.steps, s.errors)
}

// Steps returns how many mutations were attempted.
func (s *Simulator) Steps() int { return s.steps }

// Rejected returns how many attempted mutations the world refused, such as
// purchases without enough gold.
func (s *Simulator) Rejected() int { return s.errors }

func (s *Simulator) schedule() {
	s.cancel = s.host.AfterFunc(s.every, func() {
		s.cancel = nil
		if !s.running {
			return
		}
		s.Step()
		s.schedule()
	})
}

// Step performs one random mutation.
func (s *Simulator) Step() {
	s.steps++
	if err := s.mutate(); err != nil {
		s.errors++
		logging.Debug("Simulator", "Mutation rejected: %v", err)
	}
}

func (s *Simulator) mutate() error {
	w := s.world
	switch s.rng.Intn(12) {
	case 0, 1:
		return w.AddGold(s.rng.Intn(40)-15, "trade")
	case 2:
		_, err := w.Buy(s.pickGood())
		return err
	case 3:
		inv := w.Inventory()
		if len(inv) == 0 {
			return nil
		}
		return w.Sell(inv[s.rng.Intn(len(inv))].ID)
	case 4:
		for _, it := range w.Inventory() {
			if it.Slot != "" {
				return w.Equip(it.ID)
			}
		}
		return nil
	case 5:
		if s.rng.Intn(2) == 0 {
			w.Damage(s.rng.Intn(10) + 1)
		} else {
			w.Heal(s.rng.Intn(10) + 1)
		}
		return nil
	case 6:
		w.GainXP(s.rng.Intn(60))
		return nil
	case 7:
		active := w.ActiveQuests()
		if len(active) == 0 || s.rng.Intn(3) == 0 {
			w.StartQuest(questNames[s.rng.Intn(len(questNames))], s.rng.Intn(5)+2)
			return nil
		}
		return w.ProgressQuest(active[s.rng.Intn(len(active))].ID, 1)
	case 8:
		party := w.Party()
		if len(party) >= 3 || (len(party) > 0 && s.rng.Intn(3) == 0) {
			return w.RemoveCompanion(party[s.rng.Intn(len(party))].Name)
		}
		w.AddCompanion(Companion{
			Name:  companionNames[s.rng.Intn(len(companionNames))],
			Role:  companionRoles[s.rng.Intn(len(companionRoles))],
			Level: s.rng.Intn(5) + 1,
		})
		return nil
	case 9:
		good := s.pickGood()
		base := Catalog[good].Value
		w.SetPrice(good, base+s.rng.Intn(base/2+1)-base/4)
		return nil
	case 10:
		w.SetStock(s.pickGood(), s.rng.Intn(8))
		return nil
	default:
		w.AddItem(Catalog["ore"])
		return nil
	}
}

func (s *Simulator) pickGood() string {
	return catalogGoods[s.rng.Intn(len(catalogGoods))]
}
