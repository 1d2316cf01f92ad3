package panels

import (
	"fmt"
	"io"

	"panelsync/internal/config"
	"panelsync/internal/world"
	"panelsync/pkg/logging"
)

// Set is the collection of panels built from the configured targets.
type Set struct {
	panels   map[string]*Panel
	order    []string
	recorder *Recorder
}

// NewSet builds one panel per target. Targets without default templates
// get generic sections.
func NewSet(targets []config.TargetConfig, w *world.World, out io.Writer) (*Set, error) {
	s := &Set{
		panels:   make(map[string]*Panel, len(targets)),
		recorder: NewRecorder(),
	}
	for _, t := range targets {
		templates, ok := DefaultTemplates[t.Name]
		if !ok {
			logging.Debug("Panels", "No templates for %s, using generic sections", t.Name)
		}
		p, err := NewPanel(t.Name, t.Properties, templates, w, out, s.recorder)
		if err != nil {
			return nil, err
		}
		s.panels[t.Name] = p
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// Register attaches every panel's Sync as a handler of its target.
func (s *Set) Register(r Registrar) error {
	for _, name := range s.order {
		if err := r.Handle(name, s.panels[name].Sync); err != nil {
			return fmt.Errorf("register panel %s: %w", name, err)
		}
	}
	return nil
}

// Panel returns the panel for target.
func (s *Set) Panel(target string) (*Panel, bool) {
	p, ok := s.panels[target]
	return p, ok
}

// Names returns panel names in configuration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Recorder returns the shared dispatch recorder.
func (s *Set) Recorder() *Recorder {
	return s.recorder
}
