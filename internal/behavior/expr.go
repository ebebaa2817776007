package behavior

import (
	"log/slog"
	"sync"

	"github.com/dop251/goja"

	"github.com/mirelet/veldt/internal/catalog"
)

// exprCache holds compiled expression programs keyed by source. Catalogs
// are small and immutable, so the cache is never evicted.
var exprCache sync.Map // string → *goja.Program

// evalExpressionCondition evaluates an "expression" condition: a
// JavaScript expression with the evaluation context's stats, flags,
// preferences, tier, and time of day in scope. Any compile or runtime
// error makes the condition false with a warning, never fatal.
func evalExpressionCondition(cond catalog.Condition, ctx *EvalContext) bool {
	src := paramString(cond.Params, "expr")
	if src == "" {
		return false
	}

	prog, err := compileExpr(src)
	if err != nil {
		slog.Warn("expression condition failed to compile", "expr", src, "error", err)
		return false
	}

	vm := goja.New()
	vm.Set("stats", ctx.Stats)
	vm.Set("flags", ctx.Flags)
	vm.Set("prefs", ctx.Preferences)
	vm.Set("tier", ctx.Tier)
	vm.Set("worldTime", ctx.WorldTime)
	vm.Set("timeOfDay", ctx.TimeOfDay())
	vm.Set("locationType", ctx.LocationType)

	v, err := vm.RunProgram(prog)
	if err != nil {
		slog.Warn("expression condition failed at runtime", "expr", src, "error", err)
		return false
	}
	return v.ToBoolean()
}

func compileExpr(src string) (*goja.Program, error) {
	if cached, ok := exprCache.Load(src); ok {
		return cached.(*goja.Program), nil
	}
	prog, err := goja.Compile("condition", src, true)
	if err != nil {
		return nil, err
	}
	exprCache.Store(src, prog)
	return prog, nil
}
