package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/beamgo/beam/internal/core/event"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM whose scripts take part in registry
// events. Single-goroutine access only (tick loop).
type Engine struct {
	vm       *lua.LState
	reg      *event.Registry
	log      *zap.Logger
	bindings map[string]*binding
}

// binding connects one registry event to the scripts that listen to it.
type binding struct {
	name      string
	listeners []*lua.LFunction
	invoke    func(tbl *lua.LTable) error
	count     func() int
	stop      func()
}

// NewEngine creates a Lua VM with the events module installed. Bind events
// before loading scripts that listen to them.
func NewEngine(reg *event.Registry, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, reg: reg, log: log, bindings: make(map[string]*binding)}
	vm.SetGlobal("events", vm.SetFuncs(vm.NewTable(), map[string]lua.LGFunction{
		"listen": e.luaListen,
		"stop":   e.luaStop,
		"invoke": e.luaInvoke,
		"count":  e.luaCount,
		"names":  e.luaNames,
	}))
	return e
}

// Bind exposes key to scripts under its name. toLua builds the value passed
// to Lua listeners, once per listener so one script cannot alter what the
// next one sees; fromLua decodes the table given to events.invoke. A nil
// fromLua makes the event listen-only for scripts.
func Bind[T any](e *Engine, key event.Key[T], toLua func(*lua.LState, T) lua.LValue, fromLua func(*lua.LTable) (T, error)) {
	if _, ok := e.bindings[key.Name()]; ok {
		panic(fmt.Sprintf("scripting: event %q bound twice", key.Name()))
	}
	b := &binding{name: key.Name()}

	l := event.NewListener("lua:"+key.Name(), func(payload T) {
		e.dispatch(b, func() lua.LValue { return toLua(e.vm, payload) })
	})
	event.StartListening(e.reg, key, l)
	b.stop = func() { event.StopListening(e.reg, key, l) }
	b.count = func() int { return event.ListenerCount(e.reg, key) }

	if fromLua != nil {
		b.invoke = func(tbl *lua.LTable) error {
			payload, err := fromLua(tbl)
			if err != nil {
				return err
			}
			event.Invoke(e.reg, key, payload)
			return nil
		}
	}
	e.bindings[b.name] = b
}

// dispatch calls every Lua listener of b. A failing script is logged and the
// rest still run.
func (e *Engine) dispatch(b *binding, arg func() lua.LValue) {
	for _, fn := range b.listeners[:len(b.listeners):len(b.listeners)] {
		if err := e.vm.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, arg()); err != nil {
			e.log.Error("lua listener error", zap.String("event", b.name), zap.Error(err))
		}
	}
}

// LoadDir runs every .lua file in dir in name order. A missing dir is not an
// error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read scripts dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// ListenerCount returns how many Lua functions listen to the named event.
func (e *Engine) ListenerCount(name string) int {
	b, ok := e.bindings[name]
	if !ok {
		return 0
	}
	return len(b.listeners)
}

// events.listen(name, fn)
func (e *Engine) luaListen(L *lua.LState) int {
	b := e.mustBinding(L, L.CheckString(1))
	b.listeners = append(b.listeners, L.CheckFunction(2))
	return 0
}

// events.stop(name, fn) removes the first registration of fn and returns
// whether one was removed. Listeners already being dispatched still run.
func (e *Engine) luaStop(L *lua.LState) int {
	b := e.mustBinding(L, L.CheckString(1))
	fn := L.CheckFunction(2)
	for i, cur := range b.listeners {
		if cur == fn {
			next := make([]*lua.LFunction, 0, len(b.listeners)-1)
			next = append(next, b.listeners[:i]...)
			b.listeners = append(next, b.listeners[i+1:]...)
			L.Push(lua.LTrue)
			return 1
		}
	}
	e.log.Warn("lua listener did not stop listening to event because it was not listening",
		zap.String("event", b.name),
		zap.String("listener", fn.String()))
	L.Push(lua.LFalse)
	return 1
}

// events.invoke(name, tbl)
func (e *Engine) luaInvoke(L *lua.LState) int {
	b := e.mustBinding(L, L.CheckString(1))
	if b.invoke == nil {
		L.RaiseError("event %q cannot be invoked from scripts", b.name)
		return 0
	}
	tbl := L.OptTable(2, L.NewTable())
	if err := b.invoke(tbl); err != nil {
		L.RaiseError("invoke %s: %s", b.name, err.Error())
	}
	return 0
}

// events.count(name) returns the registry listener count, Go and Lua bridge
// listeners included.
func (e *Engine) luaCount(L *lua.LState) int {
	b := e.mustBinding(L, L.CheckString(1))
	L.Push(lua.LNumber(b.count()))
	return 1
}

// events.names() returns the bound event names, sorted.
func (e *Engine) luaNames(L *lua.LState) int {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	t := L.NewTable()
	for _, n := range names {
		t.Append(lua.LString(n))
	}
	L.Push(t)
	return 1
}

func (e *Engine) mustBinding(L *lua.LState, name string) *binding {
	b, ok := e.bindings[name]
	if !ok {
		L.RaiseError("unknown event %q", name)
		return nil
	}
	return b
}

// CallTick calls the global on_tick(n) if a script defined one.
func (e *Engine) CallTick(n uint64) {
	fn := e.vm.GetGlobal("on_tick")
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(n)); err != nil {
		e.log.Error("lua on_tick error", zap.Error(err))
	}
}

// --- Lua helpers ---

// lNum reads a number field from a Lua table.
func lNum(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// Close stops the bridge listeners and shuts down the Lua VM.
func (e *Engine) Close() {
	for _, b := range e.bindings {
		b.stop()
	}
	e.vm.Close()
}
