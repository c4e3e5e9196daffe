package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to every script as the global API_VERSION.
const APIVersion = 1

// Engine creates Lua-backed systems and formulas from a script directory.
// Each one gets its own VM: the scheduler may run two scripts at the same
// time and an LState is not safe for concurrent use.
type Engine struct {
	dir string
	log *zap.Logger

	mu      sync.Mutex
	closers []func()
}

func NewEngine(scriptsDir string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{dir: scriptsDir, log: log}
}

func (e *Engine) Dir() string { return e.dir }

// path resolves a script file relative to the engine directory.
func (e *Engine) path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(e.dir, file)
}

// newVM opens a VM, installs the host API and loads the core scripts plus
// file. The core directory is optional.
func (e *Engine) newVM(file string) (*lua.LState, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))
	installHostAPI(vm, e.log)

	if err := e.loadDir(vm, filepath.Join(e.dir, "core")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load core scripts: %w", err)
	}
	path := e.path(file)
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua script", zap.String("file", path))
	return vm, nil
}

// loadDir loads all .lua files in a directory into vm.
func (e *Engine) loadDir(vm *lua.LState, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func (e *Engine) track(close func()) {
	e.mu.Lock()
	e.closers = append(e.closers, close)
	e.mu.Unlock()
}

// Close shuts down every VM the engine created. Closing twice is a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()
	for _, c := range closers {
		c()
	}
}

// installHostAPI registers the quark table scripts call into.
func installHostAPI(vm *lua.LState, log *zap.Logger) {
	api := vm.NewTable()
	vm.SetField(api, "log", vm.NewFunction(func(L *lua.LState) int {
		level := L.CheckString(1)
		msg := L.CheckString(2)
		switch level {
		case "debug":
			log.Debug(msg)
		case "warn":
			log.Warn(msg)
		case "error":
			log.Error(msg)
		default:
			log.Info(msg)
		}
		return 0
	}))
	vm.SetGlobal("quark", api)
}
