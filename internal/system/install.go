package system

import (
	"fmt"

	coresys "github.com/quarkgo/quark/internal/core/system"
	"github.com/quarkgo/quark/internal/data"
	"github.com/quarkgo/quark/internal/scripting"
)

// Host is what a manifest is installed against. Scripts may be nil when the
// manifest has no script systems. Without a Game, script systems only get
// the default host API.
type Host struct {
	Builtins map[string]coresys.System
	Scripts  *scripting.Engine
	Game     *Game
}

// Install declares a manifest's resources, builds its lists and states and
// selects the start state. Resources already registered are skipped.
func Install(sc *coresys.Context, r *coresys.Runner, m *data.Manifest, h Host) error {
	for _, id := range m.ResourceIDs() {
		if sc.Resources().Has(id) {
			continue
		}
		if err := sc.RegisterResource(id); err != nil {
			return err
		}
	}

	for _, l := range m.Lists {
		if _, err := sc.CreateList(l.Name); err != nil {
			return err
		}
		for _, entry := range l.Systems {
			s, err := h.build(entry)
			if err != nil {
				return fmt.Errorf("list %s: %w", l.Name, err)
			}
			if err := sc.Register(l.Name, s, position(entry)); err != nil {
				return err
			}
		}
	}

	for _, st := range m.States {
		if err := r.CreateState(st.Name, st.Init, st.Update, st.Deinit); err != nil {
			return err
		}
	}
	if m.Start != "" {
		return r.ChangeState(m.Start)
	}
	return nil
}

func (h Host) build(e data.SystemEntry) (coresys.System, error) {
	access, err := e.Accesses()
	if err != nil {
		return nil, err
	}
	switch {
	case e.Tag:
		return coresys.Tag(e.Name, access...), nil
	case e.Script != "":
		if h.Scripts == nil {
			return nil, fmt.Errorf("system %s: scripting is not available", e.Name)
		}
		s, err := h.Scripts.System(scripting.SystemSpec{
			Name:   e.Name,
			File:   e.Script,
			Entry:  e.Entry,
			Access: access,
		})
		if err != nil {
			return nil, err
		}
		if h.Game != nil {
			h.Game.BindScript(s)
		}
		return s, nil
	}
	s, ok := h.Builtins[e.Name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in system %q", e.Name)
	}
	if e.Declares() {
		return nil, fmt.Errorf("built-in system %s declares its own access", e.Name)
	}
	return s, nil
}

func position(e data.SystemEntry) coresys.Position {
	switch {
	case e.Before != "":
		return coresys.Before(e.Before)
	case e.After != "":
		return coresys.After(e.After)
	case e.At != nil:
		return coresys.At(*e.At)
	}
	return coresys.Back()
}
