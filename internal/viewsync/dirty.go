package viewsync

// pendingSet is an insertion-ordered set of target names.
type pendingSet struct {
	order   []string
	members map[string]struct{}
}

func newPendingSet() *pendingSet {
	return &pendingSet{members: make(map[string]struct{})}
}

// add appends name unless it is already present.
func (p *pendingSet) add(name string) bool {
	if _, ok := p.members[name]; ok {
		return false
	}
	p.members[name] = struct{}{}
	p.order = append(p.order, name)
	return true
}

func (p *pendingSet) remove(name string) {
	if _, ok := p.members[name]; !ok {
		return
	}
	delete(p.members, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *pendingSet) contains(name string) bool {
	_, ok := p.members[name]
	return ok
}

func (p *pendingSet) len() int {
	return len(p.order)
}

func (p *pendingSet) snapshot() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

func (p *pendingSet) clear() {
	p.order = nil
	p.members = make(map[string]struct{})
}

// dirtyTable is the [target][property] flag matrix plus the pending set.
type dirtyTable struct {
	registry *Registry
	flags    map[string][]bool
	pending  *pendingSet
}

func newDirtyTable(registry *Registry) *dirtyTable {
	return &dirtyTable{
		registry: registry,
		flags:    make(map[string][]bool),
		pending:  newPendingSet(),
	}
}

// row returns the flag row of target, growing it to the declared width.
func (d *dirtyTable) row(spec *targetSpec) []bool {
	row := d.flags[spec.name]
	if len(row) < len(spec.properties) {
		grown := make([]bool, len(spec.properties))
		copy(grown, row)
		row = grown
		d.flags[spec.name] = row
	}
	return row
}

// mark sets one flag and queues the target. It reports whether the flag
// changed; a repeated mark is a no-op.
func (d *dirtyTable) mark(target, property string) (bool, error) {
	if err := d.registry.validate(target, property); err != nil {
		return false, err
	}
	spec := d.registry.targets[target]
	row := d.row(spec)
	i := spec.index[property]

	changed := !row[i]
	row[i] = true
	d.pending.add(target)
	return changed, nil
}

// markAll sets every flag of target and returns how many changed.
func (d *dirtyTable) markAll(target string) (int, error) {
	spec, err := d.registry.spec(target)
	if err != nil {
		return 0, err
	}
	row := d.row(spec)
	changed := 0
	for i := range row {
		if !row[i] {
			row[i] = true
			changed++
		}
	}
	d.pending.add(target)
	return changed, nil
}

func (d *dirtyTable) isDirty(target, property string) bool {
	spec, ok := d.registry.targets[target]
	if !ok {
		return false
	}
	i, ok := spec.index[property]
	if !ok {
		return false
	}
	row := d.flags[target]
	return i < len(row) && row[i]
}

// clearAll snapshots and resets every true flag of target, returning the
// cleared properties in declaration order.
func (d *dirtyTable) clearAll(target string) []string {
	spec, ok := d.registry.targets[target]
	if !ok {
		return nil
	}
	row := d.flags[target]
	var out []string
	for i, dirty := range row {
		if dirty {
			out = append(out, spec.properties[i])
			row[i] = false
		}
	}
	return out
}

// snapshot copies the full flag matrix for the debug surface.
func (d *dirtyTable) snapshot() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(d.registry.order))
	for _, name := range d.registry.order {
		spec := d.registry.targets[name]
		row := d.flags[name]
		props := make(map[string]bool, len(spec.properties))
		for i, p := range spec.properties {
			props[p] = i < len(row) && row[i]
		}
		out[name] = props
	}
	return out
}

func (d *dirtyTable) reset() {
	d.flags = make(map[string][]bool)
	d.pending.clear()
}
