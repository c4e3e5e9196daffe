package scripting

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/quarkgo/quark/internal/core/schedule"
	coresys "github.com/quarkgo/quark/internal/core/system"
)

// SystemSpec describes a script-backed system.
type SystemSpec struct {
	Name   string
	File   string
	Entry  string // global function called each run; default "run"
	Access []schedule.Access
}

// ScriptSystem runs a Lua function as a scheduled system. The function is
// called with the tick delta in seconds; a Lua error fails the system.
type ScriptSystem struct {
	name   string
	entry  string
	access []schedule.Access
	log    *zap.Logger

	mu     sync.Mutex
	vm     *lua.LState
	runs   int
	closed bool
}

// System loads spec.File into a fresh VM and checks the entry function
// exists.
func (e *Engine) System(spec SystemSpec) (*ScriptSystem, error) {
	if spec.Entry == "" {
		spec.Entry = "run"
	}
	vm, err := e.newVM(spec.File)
	if err != nil {
		return nil, fmt.Errorf("script system %s: %w", spec.Name, err)
	}
	if fn := vm.GetGlobal(spec.Entry); fn.Type() != lua.LTFunction {
		vm.Close()
		return nil, fmt.Errorf("script system %s: %s does not define function %s", spec.Name, spec.File, spec.Entry)
	}
	s := &ScriptSystem{
		name:   spec.Name,
		entry:  spec.Entry,
		access: spec.Access,
		log:    e.log.With(zap.String("script", spec.Name)),
		vm:     vm,
	}
	e.track(func() { s.Close() })
	return s, nil
}

func (s *ScriptSystem) Name() string              { return s.name }
func (s *ScriptSystem) Access() []schedule.Access { return s.access }

// Expose makes a Go function callable from the script as quark.<name>.
func (s *ScriptSystem) Expose(name string, fn lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	api, ok := s.vm.GetGlobal("quark").(*lua.LTable)
	if !ok {
		return
	}
	s.vm.SetField(api, name, s.vm.NewFunction(fn))
}

func (s *ScriptSystem) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *ScriptSystem) Run(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("script %s: vm closed", s.name)
	}
	s.vm.SetContext(ctx)
	defer s.vm.RemoveContext()

	dt := coresys.Delta(ctx).Seconds()
	if err := s.vm.CallByParam(lua.P{
		Fn:      s.vm.GetGlobal(s.entry),
		NRet:    1,
		Protect: true,
	}, lua.LNumber(dt)); err != nil {
		return fmt.Errorf("script %s: %w", s.name, err)
	}
	ret := s.vm.Get(-1)
	s.vm.Pop(1)
	s.runs++

	// run may return false, msg to fail without raising
	if ret == lua.LFalse {
		return fmt.Errorf("script %s reported failure", s.name)
	}
	if str, ok := ret.(lua.LString); ok {
		return fmt.Errorf("script %s: %s", s.name, string(str))
	}
	return nil
}

// Close releases the VM. Safe to call more than once.
func (s *ScriptSystem) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.vm.Close()
	}
	return nil
}
