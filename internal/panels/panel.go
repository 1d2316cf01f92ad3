package panels

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/charmbracelet/lipgloss"

	"panelsync/internal/viewsync"
	"panelsync/internal/world"
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#89b4fa")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f5c2e7")).
			Bold(true)
)

// Registrar is the part of the scheduler panels attach to.
type Registrar interface {
	Handle(target string, h viewsync.SyncHandler) error
}

// Panel renders one target. Each property is a section with its own
// template; a sync re-renders only the dirty sections and reuses the cached
// text of the others.
type Panel struct {
	name     string
	order    []string
	sections map[string]*template.Template
	cache    map[string]string

	world    *world.World
	out      io.Writer
	recorder *Recorder
}

// NewPanel parses a template for every property. Properties without an
// entry in templates use a generic section.
func NewPanel(name string, properties []string, templates map[string]string, w *world.World, out io.Writer, rec *Recorder) (*Panel, error) {
	p := &Panel{
		name:     name,
		order:    append([]string(nil), properties...),
		sections: make(map[string]*template.Template, len(properties)),
		cache:    make(map[string]string, len(properties)),
		world:    w,
		out:      out,
		recorder: rec,
	}
	for _, prop := range properties {
		text, ok := templates[prop]
		if !ok {
			text = fallbackTemplate
		}
		tmpl, err := template.New(name + "." + prop).Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("panel %s: section %s: %w", name, prop, err)
		}
		p.sections[prop] = tmpl
	}
	return p, nil
}

// Name returns the target name.
func (p *Panel) Name() string {
	return p.name
}

// Sync is the panel's viewsync.SyncHandler.
func (p *Panel) Sync(dirty []string) error {
	view := buildView(p.world)
	for _, prop := range dirty {
		tmpl, ok := p.sections[prop]
		if !ok {
			return fmt.Errorf("panel %s has no section %q", p.name, prop)
		}
		view["Property"] = prop

		var sb strings.Builder
		if err := tmpl.Execute(&sb, view); err != nil {
			return fmt.Errorf("render %s.%s: %w", p.name, prop, err)
		}
		p.cache[prop] = strings.TrimRight(sb.String(), "\n")
	}

	if p.recorder != nil {
		p.recorder.Record(p.name, dirty)
	}
	if p.out == nil {
		return nil
	}
	_, err := io.WriteString(p.out, p.Render()+"\n")
	return err
}

// Section returns the last rendered text of prop.
func (p *Panel) Section(prop string) (string, bool) {
	s, ok := p.cache[prop]
	return s, ok
}

// Render frames every rendered section under the panel title.
func (p *Panel) Render() string {
	blocks := []string{titleStyle.Render(p.name)}
	for _, prop := range p.order {
		if s, ok := p.cache[prop]; ok && s != "" {
			blocks = append(blocks, s)
		}
	}
	return frameStyle.Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

// buildView flattens the world into template data.
func buildView(w *world.World) map[string]interface{} {
	equipment := w.Equipment()
	slots := make([]string, 0, len(equipment))
	names := make(map[string]string, len(equipment))
	for slot, it := range equipment {
		slots = append(slots, slot)
		names[slot] = it.Name
	}
	sort.Strings(slots)

	goods := w.Goods()
	prices := make(map[string]int, len(goods))
	stock := make(map[string]int, len(goods))
	for _, g := range goods {
		prices[g], _ = w.Price(g)
		stock[g] = w.Stock(g)
	}

	stats := w.Stats()
	bar := 0
	if stats.MaxHealth > 0 {
		bar = stats.Health * 10 / stats.MaxHealth
	}

	return map[string]interface{}{
		"Name":          w.Name(),
		"Gold":          w.Gold(),
		"Level":         w.Level(),
		"XP":            w.XP(),
		"XPToNext":      w.XPToNext(),
		"Stats":         stats,
		"HealthBar":     bar,
		"Inventory":     w.Inventory(),
		"Weight":        w.Weight(),
		"EquippedSlots": slots,
		"EquippedNames": names,
		"Party":         w.Party(),
		"Quests":        w.Quests(),
		"ActiveQuests":  w.ActiveQuests(),
		"Goods":         goods,
		"Prices":        prices,
		"Stock":         stock,
	}
}

// Recorder counts dispatches per panel. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int
	props  map[string]int
	last   map[string][]string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		counts: make(map[string]int),
		props:  make(map[string]int),
		last:   make(map[string][]string),
	}
}

// Record notes one sync of target with the given dirty properties.
func (r *Recorder) Record(target string, dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[target]++
	r.props[target] += len(dirty)
	r.last[target] = append([]string(nil), dirty...)
}

// Count returns how many times target was synced.
func (r *Recorder) Count(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[target]
}

// PropertiesSynced returns the total number of properties delivered to
// target.
func (r *Recorder) PropertiesSynced(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props[target]
}

// Last returns the dirty set of target's most recent sync.
func (r *Recorder) Last(target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.last[target]...)
}

// Counts returns sync counts keyed by target.
func (r *Recorder) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}
