package scripting

import (
	"fmt"

	"github.com/beamgo/beam/internal/scene"
	lua "github.com/yuin/gopher-lua"
)

// BindScene exposes the scene events: "Boom" (listen and invoke) and
// "EnemyDied" (listen only).
func BindScene(e *Engine) {
	Bind(e, scene.ExplosionKey, explosionToLua, explosionFromLua)
	Bind(e, scene.EnemyDiedKey, enemyDiedToLua, nil)
}

func vecToLua(L *lua.LState, v scene.Vec3) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("x", lua.LNumber(v.X))
	t.RawSetString("y", lua.LNumber(v.Y))
	t.RawSetString("z", lua.LNumber(v.Z))
	return t
}

func vecFromLua(v lua.LValue) (scene.Vec3, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return scene.Vec3{}, fmt.Errorf("position must be a table, got %s", v.Type())
	}
	return scene.Vec3{X: lNum(t, "x"), Y: lNum(t, "y"), Z: lNum(t, "z")}, nil
}

func explosionToLua(L *lua.LState, ex scene.Explosion) lua.LValue {
	t := L.NewTable()
	t.RawSetString("position", vecToLua(L, ex.Position))
	t.RawSetString("radius", lua.LNumber(ex.Radius))
	t.RawSetString("source", lua.LString(ex.Source))
	return t
}

func explosionFromLua(t *lua.LTable) (scene.Explosion, error) {
	pos, err := vecFromLua(t.RawGetString("position"))
	if err != nil {
		return scene.Explosion{}, err
	}
	radius := lNum(t, "radius")
	if radius <= 0 {
		return scene.Explosion{}, fmt.Errorf("radius must be positive")
	}
	src := lStr(t, "source")
	if src == "" {
		src = "script"
	}
	return scene.Explosion{Position: pos, Radius: radius, Source: src}, nil
}

func enemyDiedToLua(L *lua.LState, d scene.EnemyDied) lua.LValue {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(d.Name))
	t.RawSetString("position", vecToLua(L, d.Position))
	return t
}
