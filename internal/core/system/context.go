package system

import (
	"fmt"
	"io"
	"reflect"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/quarkgo/quark/internal/core/schedule"
)

// Plan is a built schedule for one list at one version.
type Plan struct {
	List    string
	Version uint64
	Systems []System
	Graph   *schedule.Graph

	verified bool
}

// Verified reports whether a runner has already proved the plan's ordering.
func (p *Plan) Verified() bool { return p.verified }

// Context owns everything the scheduler knows: registered resources, the
// system lists and their saved snapshots, and the plan cache. There is no
// package-level state; create one per engine instance and Close it on
// shutdown. Not safe for concurrent use.
type Context struct {
	log       *zap.Logger
	resources *schedule.Registry
	lists     map[string]*List
	saved     map[string]map[string][]System // snapshot -> list -> order
	listSaved map[string]map[string][]System // list -> snapshot -> order
	plans     map[string]*Plan
}

func NewContext(log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{
		log:       log,
		resources: schedule.NewRegistry(),
		lists:     make(map[string]*List),
		saved:     make(map[string]map[string][]System),
		listSaved: make(map[string]map[string][]System),
		plans:     make(map[string]*Plan),
	}
}

// RegisterResource declares resources systems may reference.
func (c *Context) RegisterResource(ids ...schedule.ResourceID) error {
	for _, id := range ids {
		if err := c.resources.Register(id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) Resources() *schedule.Registry { return c.resources }

// CreateList adds an empty list. Creating an existing list is an error.
func (c *Context) CreateList(name string) (*List, error) {
	if _, ok := c.lists[name]; ok {
		return nil, fmt.Errorf("system list %q already exists", name)
	}
	l := newList(name)
	c.lists[name] = l
	return l, nil
}

// List looks up a list by name.
func (c *Context) List(name string) (*List, error) {
	l, ok := c.lists[name]
	if !ok {
		return nil, fmt.Errorf("system list %q does not exist", name)
	}
	return l, nil
}

// Lists returns the list names, sorted.
func (c *Context) Lists() []string {
	out := make([]string, 0, len(c.lists))
	for name := range c.lists {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Register adds s to the named list at pos.
func (c *Context) Register(list string, s System, pos Position) error {
	l, err := c.List(list)
	if err != nil {
		return err
	}
	if err := l.Add(s, pos); err != nil {
		return err
	}
	c.log.Debug("system registered",
		zap.String("list", list),
		zap.String("system", s.Name()),
		zap.Stringer("position", pos),
		zap.Int("accesses", len(s.Access())))
	return nil
}

// Descriptors converts a list into scheduler descriptors, IDs by position.
func Descriptors(systems []System) []schedule.Descriptor {
	out := make([]schedule.Descriptor, len(systems))
	for i, s := range systems {
		out[i] = schedule.Descriptor{
			ID:       schedule.SystemID(i),
			Name:     s.Name(),
			Accesses: s.Access(),
		}
	}
	return out
}

// Plan returns the schedule for a list, building it only when the list has
// changed since the last build.
func (c *Context) Plan(list string) (*Plan, error) {
	l, err := c.List(list)
	if err != nil {
		return nil, err
	}
	if p, ok := c.plans[list]; ok && p.Version == l.version {
		return p, nil
	}

	systems := l.Systems()
	g, err := schedule.BuildGraph(Descriptors(systems), c.resources)
	if err != nil {
		return nil, fmt.Errorf("build plan for list %s: %w", list, err)
	}
	p := &Plan{List: list, Version: l.version, Systems: systems, Graph: g}
	c.plans[list] = p
	c.log.Debug("plan built",
		zap.String("list", list),
		zap.Int("systems", g.Len()),
		zap.Int("waves", len(g.Waves())))
	return p, nil
}

// Save snapshots the order of every list under name, overwriting any
// earlier snapshot with the same name.
func (c *Context) Save(name string) {
	snap := make(map[string][]System, len(c.lists))
	for ln, l := range c.lists {
		snap[ln] = l.Systems()
	}
	c.saved[name] = snap
}

// Load restores a snapshot taken by Save. Lists created after the snapshot
// are left alone.
func (c *Context) Load(name string) error {
	snap, ok := c.saved[name]
	if !ok {
		return fmt.Errorf("no saved system snapshot %q", name)
	}
	for ln, systems := range snap {
		l, ok := c.lists[ln]
		if !ok {
			l = newList(ln)
			c.lists[ln] = l
		}
		l.replace(systems)
	}
	return nil
}

// SaveList snapshots the order of one list under name. List snapshots are
// kept apart from Save's whole-context snapshots.
func (c *Context) SaveList(name, list string) error {
	l, err := c.List(list)
	if err != nil {
		return err
	}
	snaps, ok := c.listSaved[list]
	if !ok {
		snaps = make(map[string][]System)
		c.listSaved[list] = snaps
	}
	snaps[name] = l.Systems()
	return nil
}

// LoadList restores a snapshot taken by SaveList.
func (c *Context) LoadList(name, list string) error {
	l, err := c.List(list)
	if err != nil {
		return err
	}
	systems, ok := c.listSaved[list][name]
	if !ok {
		return fmt.Errorf("no saved snapshot %q for list %s", name, list)
	}
	l.replace(systems)
	return nil
}

// Close tears the context down. Systems that hold resources of their own
// (script VMs, for instance) implement io.Closer and are closed once each,
// including systems only a snapshot still refers to.
func (c *Context) Close() error {
	seen := make(map[uintptr]bool)
	var err error
	closeAll := func(systems []System) {
		for _, s := range systems {
			cl, ok := s.(io.Closer)
			if !ok {
				continue
			}
			if id, ok := identity(cl); ok {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			err = multierr.Append(err, cl.Close())
		}
	}
	for _, name := range c.Lists() {
		closeAll(c.lists[name].systems)
	}
	for _, snap := range sortedSnapshots(c.saved) {
		for _, systems := range snap {
			closeAll(systems)
		}
	}
	for _, snap := range sortedSnapshots(c.listSaved) {
		for _, systems := range snap {
			closeAll(systems)
		}
	}
	c.lists = make(map[string]*List)
	c.saved = make(map[string]map[string][]System)
	c.listSaved = make(map[string]map[string][]System)
	c.plans = make(map[string]*Plan)
	return err
}

// identity keys pointer closers by address. Other kinds have no identity
// and close once per occurrence.
func identity(cl io.Closer) (uintptr, bool) {
	v := reflect.ValueOf(cl)
	if v.Kind() != reflect.Pointer {
		return 0, false
	}
	return v.Pointer(), true
}

// sortedSnapshots flattens nested snapshot maps in key order so Close is
// deterministic.
func sortedSnapshots(m map[string]map[string][]System) [][][]System {
	outer := make([]string, 0, len(m))
	for k := range m {
		outer = append(outer, k)
	}
	sort.Strings(outer)
	out := make([][][]System, 0, len(outer))
	for _, k := range outer {
		inner := make([]string, 0, len(m[k]))
		for ik := range m[k] {
			inner = append(inner, ik)
		}
		sort.Strings(inner)
		group := make([][]System, len(inner))
		for i, ik := range inner {
			group[i] = m[k][ik]
		}
		out = append(out, group)
	}
	return out
}
