package scripting

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Formula is a numeric Lua function with its own VM, for systems that keep
// their balancing math in scripts.
type Formula struct {
	fn string

	mu sync.Mutex
	vm *lua.LState
}

// Formula loads file and binds the global function fn.
func (e *Engine) Formula(file, fn string) (*Formula, error) {
	vm, err := e.newVM(file)
	if err != nil {
		return nil, err
	}
	if vm.GetGlobal(fn).Type() != lua.LTFunction {
		vm.Close()
		return nil, fmt.Errorf("%s does not define function %s", file, fn)
	}
	f := &Formula{fn: fn, vm: vm}
	e.track(f.Close)
	return f, nil
}

// FormulaSource builds a formula from inline Lua source.
func (e *Engine) FormulaSource(src, fn string) (*Formula, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load formula %s: %w", fn, err)
	}
	if vm.GetGlobal(fn).Type() != lua.LTFunction {
		vm.Close()
		return nil, fmt.Errorf("formula source does not define function %s", fn)
	}
	f := &Formula{fn: fn, vm: vm}
	e.track(f.Close)
	return f, nil
}

// Eval calls the function with args and returns its first result as a
// number. Non-numeric results are an error.
func (f *Formula) Eval(args ...float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vm == nil {
		return 0, fmt.Errorf("formula %s: vm closed", f.fn)
	}
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lua.LNumber(a)
	}
	if err := f.vm.CallByParam(lua.P{
		Fn:      f.vm.GetGlobal(f.fn),
		NRet:    1,
		Protect: true,
	}, largs...); err != nil {
		return 0, fmt.Errorf("formula %s: %w", f.fn, err)
	}
	ret := f.vm.Get(-1)
	f.vm.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("formula %s returned %s, want number", f.fn, ret.Type())
	}
	return float64(n), nil
}

func (f *Formula) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vm != nil {
		f.vm.Close()
		f.vm = nil
	}
}
