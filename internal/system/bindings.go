package system

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/quarkgo/quark/internal/component"
	"github.com/quarkgo/quark/internal/core/ecs"
	"github.com/quarkgo/quark/internal/core/event"
	"github.com/quarkgo/quark/internal/core/schedule"
	"github.com/quarkgo/quark/internal/scripting"
)

// BindScript exposes game state to a script system through the quark
// table, limited to the resources the system declares. A read installs the
// getters, a write installs the getters and the setters. Anything else is
// absent from the script's view, so calling it raises a Lua error.
//
// Entity ids cross into Lua as numbers; they survive the float64 round
// trip while generations stay below 2^21.
func (g *Game) BindScript(s *scripting.ScriptSystem) {
	for _, a := range s.Access() {
		write := a.Mode == schedule.Write
		switch a.Resource {
		case component.ResTransform:
			s.Expose("entities", g.luaEntities)
			s.Expose("transform", g.luaTransform)
			if write {
				s.Expose("set_transform", g.luaSetTransform)
			}
		case component.ResVelocity:
			s.Expose("velocity", g.luaVelocity)
			if write {
				s.Expose("set_velocity", g.luaSetVelocity)
			}
		case component.ResHealth:
			s.Expose("health", g.luaHealth)
			if write {
				s.Expose("set_health", g.luaSetHealth)
			}
		case ResDamage:
			s.Expose("damage_events", queueLen(g.Damage))
			if write {
				name := s.Name()
				s.Expose("damage", func(L *lua.LState) int {
					g.Damage.Emit(event.Damaged{Target: checkEntity(L, 1), Amount: int32(L.CheckInt(2)), Source: name})
					return 0
				})
			}
		case ResDeaths:
			s.Expose("deaths", queueLen(g.Deaths))
			if write {
				s.Expose("kill", func(L *lua.LState) int {
					g.Deaths.Emit(event.Died{Entity: checkEntity(L, 1)})
					return 0
				})
			}
		case ResScore:
			s.Expose("score", func(L *lua.LState) int {
				L.Push(lua.LNumber(g.Scores.Get(L.CheckString(1))))
				return 1
			})
			if write {
				s.Expose("add_score", func(L *lua.LState) int {
					g.Scores.Add(L.CheckString(1), float64(L.CheckNumber(2)))
					return 0
				})
			}
		}
	}
}

func checkEntity(L *lua.LState, n int) ecs.EntityID {
	return ecs.EntityID(L.CheckInt64(n))
}

func queueLen[T any](q *event.Queue[T]) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LNumber(len(q.Events())))
		return 1
	}
}

func (g *Game) luaEntities(L *lua.LState) int {
	t := L.NewTable()
	for _, id := range g.Transforms.IDs() {
		t.Append(lua.LNumber(id))
	}
	L.Push(t)
	return 1
}

func (g *Game) luaTransform(L *lua.LState) int {
	tr, ok := g.Transforms.Get(checkEntity(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(tr.X))
	L.Push(lua.LNumber(tr.Y))
	L.Push(lua.LNumber(tr.Z))
	return 3
}

func (g *Game) luaSetTransform(L *lua.LState) int {
	tr, ok := g.Transforms.Get(checkEntity(L, 1))
	if !ok {
		L.ArgError(1, "entity has no transform")
		return 0
	}
	tr.X, tr.Y, tr.Z = float64(L.CheckNumber(2)), float64(L.CheckNumber(3)), float64(L.CheckNumber(4))
	return 0
}

func (g *Game) luaVelocity(L *lua.LState) int {
	v, ok := g.Velocities.Get(checkEntity(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v.DX))
	L.Push(lua.LNumber(v.DY))
	L.Push(lua.LNumber(v.DZ))
	return 3
}

func (g *Game) luaSetVelocity(L *lua.LState) int {
	v, ok := g.Velocities.Get(checkEntity(L, 1))
	if !ok {
		L.ArgError(1, "entity has no velocity")
		return 0
	}
	v.DX, v.DY, v.DZ = float64(L.CheckNumber(2)), float64(L.CheckNumber(3)), float64(L.CheckNumber(4))
	return 0
}

func (g *Game) luaHealth(L *lua.LState) int {
	h, ok := g.Healths.Get(checkEntity(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(h.Current))
	L.Push(lua.LNumber(h.Max))
	return 2
}

// luaSetHealth clamps to [0, max].
func (g *Game) luaSetHealth(L *lua.LState) int {
	h, ok := g.Healths.Get(checkEntity(L, 1))
	if !ok {
		L.ArgError(1, "entity has no health")
		return 0
	}
	n := int32(L.CheckInt(2))
	if n < 0 {
		n = 0
	}
	if n > h.Max {
		n = h.Max
	}
	h.Current = n
	return 0
}
