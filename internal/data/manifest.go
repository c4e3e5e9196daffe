package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quarkgo/quark/internal/core/schedule"
)

// Manifest declares the engine's resources, system lists and states.
type Manifest struct {
	Resources []string     `yaml:"resources"`
	Lists     []ListEntry  `yaml:"lists"`
	States    []StateEntry `yaml:"states"`
	Start     string       `yaml:"start"`
}

// ListEntry is a system list in declaration order.
type ListEntry struct {
	Name    string        `yaml:"name"`
	Systems []SystemEntry `yaml:"systems"`
}

// SystemEntry places one system in a list. Without Script or Tag it names
// a built-in system. Placement defaults to the end of the list.
type SystemEntry struct {
	Name   string        `yaml:"name"`
	Script string        `yaml:"script"`
	Entry  string        `yaml:"entry"`
	Tag    bool          `yaml:"tag"`
	Reads  []string      `yaml:"reads"`
	Writes []string      `yaml:"writes"`
	Access []AccessEntry `yaml:"access"`
	Before string        `yaml:"before"`
	After  string        `yaml:"after"`
	At     *int          `yaml:"at"`
}

// AccessEntry is the long form of a declaration: {resource: x, mode: write}.
type AccessEntry struct {
	Resource string `yaml:"resource"`
	Mode     string `yaml:"mode"`
}

type StateEntry struct {
	Name   string   `yaml:"name"`
	Init   []string `yaml:"init"`
	Update []string `yaml:"update"`
	Deinit []string `yaml:"deinit"`
}

// LoadManifest loads and validates a systems manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(raw)
}

func ParseManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structure only. Resource and built-in names are checked
// when the manifest is installed.
func (m *Manifest) Validate() error {
	lists := make(map[string]bool, len(m.Lists))
	for _, l := range m.Lists {
		if l.Name == "" {
			return fmt.Errorf("manifest: list without a name")
		}
		if lists[l.Name] {
			return fmt.Errorf("manifest: duplicate list %q", l.Name)
		}
		lists[l.Name] = true
		for _, s := range l.Systems {
			if err := s.validate(); err != nil {
				return fmt.Errorf("manifest: list %s: %w", l.Name, err)
			}
		}
	}

	states := make(map[string]bool, len(m.States))
	for _, st := range m.States {
		if st.Name == "" {
			return fmt.Errorf("manifest: state without a name")
		}
		if states[st.Name] {
			return fmt.Errorf("manifest: duplicate state %q", st.Name)
		}
		states[st.Name] = true
		for _, group := range [][]string{st.Init, st.Update, st.Deinit} {
			for _, name := range group {
				if !lists[name] {
					return fmt.Errorf("manifest: state %s uses unknown list %q", st.Name, name)
				}
			}
		}
	}
	if m.Start != "" && !states[m.Start] {
		return fmt.Errorf("manifest: start state %q is not defined", m.Start)
	}
	return nil
}

func (s SystemEntry) validate() error {
	if s.Name == "" {
		return fmt.Errorf("system without a name")
	}
	if s.Tag && s.Script != "" {
		return fmt.Errorf("system %s: a tag cannot have a script", s.Name)
	}
	placed := 0
	if s.Before != "" {
		placed++
	}
	if s.After != "" {
		placed++
	}
	if s.At != nil {
		placed++
	}
	if placed > 1 {
		return fmt.Errorf("system %s: use at most one of before, after, at", s.Name)
	}
	_, err := s.Accesses()
	return err
}

// Builtin reports whether the entry refers to a system implemented in Go.
func (s SystemEntry) Builtin() bool { return s.Script == "" && !s.Tag }

// Declares reports whether the entry declares any access at all.
func (s SystemEntry) Declares() bool {
	return len(s.Reads)+len(s.Writes)+len(s.Access) > 0
}

// Accesses returns the declared reads, then the declared writes, then the
// long-form entries in order.
func (s SystemEntry) Accesses() ([]schedule.Access, error) {
	out := make([]schedule.Access, 0, len(s.Reads)+len(s.Writes)+len(s.Access))
	for _, r := range s.Reads {
		out = append(out, schedule.Reads(schedule.ResourceID(r)))
	}
	for _, w := range s.Writes {
		out = append(out, schedule.Writes(schedule.ResourceID(w)))
	}
	for _, a := range s.Access {
		if a.Resource == "" {
			return nil, fmt.Errorf("system %s: access without a resource", s.Name)
		}
		mode, err := schedule.ParseAccessMode(a.Mode)
		if err != nil {
			return nil, fmt.Errorf("system %s: %w", s.Name, err)
		}
		out = append(out, schedule.Access{Resource: schedule.ResourceID(a.Resource), Mode: mode})
	}
	return out, nil
}

// ResourceIDs converts the declared resource names.
func (m *Manifest) ResourceIDs() []schedule.ResourceID {
	out := make([]schedule.ResourceID, len(m.Resources))
	for i, r := range m.Resources {
		out[i] = schedule.ResourceID(r)
	}
	return out
}
