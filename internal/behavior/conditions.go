package behavior

import (
	"log/slog"

	"github.com/mirelet/veldt/internal/catalog"
)

// ConditionFunc evaluates one catalog condition against a context.
type ConditionFunc func(cond catalog.Condition, ctx *EvalContext) bool

// ConditionRegistry maps condition kind names to predicate functions.
// External code may register additional kinds; unknown kinds evaluate
// false with a warning rather than failing the decision.
type ConditionRegistry struct {
	entries map[string]registryEntry[ConditionFunc]
}

type registryEntry[F any] struct {
	fn          F
	paramSchema map[string]any // optional metadata for authoring tools
}

// NewConditionRegistry returns an empty registry.
func NewConditionRegistry() *ConditionRegistry {
	return &ConditionRegistry{entries: make(map[string]registryEntry[ConditionFunc])}
}

// Register adds or replaces a condition kind. paramSchema is optional
// tooling metadata and may be nil. Returns false when the kind already
// existed (it is replaced regardless).
func (r *ConditionRegistry) Register(kind string, fn ConditionFunc, paramSchema map[string]any) bool {
	_, existed := r.entries[kind]
	r.entries[kind] = registryEntry[ConditionFunc]{fn: fn, paramSchema: paramSchema}
	return !existed
}

// Has reports whether a kind is registered.
func (r *ConditionRegistry) Has(kind string) bool {
	_, ok := r.entries[kind]
	return ok
}

// ParamSchema returns the tooling metadata for a kind, if any.
func (r *ConditionRegistry) ParamSchema(kind string) map[string]any {
	return r.entries[kind].paramSchema
}

// Eval evaluates a single condition. Unknown kinds are false.
func (r *ConditionRegistry) Eval(cond catalog.Condition, ctx *EvalContext) bool {
	e, ok := r.entries[cond.Kind]
	if !ok {
		slog.Warn("unknown condition kind", "kind", cond.Kind, "world", ctx.WorldID)
		return false
	}
	return e.fn(cond, ctx)
}

// EvalAll is the logical AND over a condition list. An empty list holds.
func (r *ConditionRegistry) EvalAll(conds []catalog.Condition, ctx *EvalContext) bool {
	for _, c := range conds {
		if !r.Eval(c, ctx) {
			return false
		}
	}
	return true
}

// paramFloat reads a numeric condition param with a fallback.
func paramFloat(params map[string]any, key string, fallback float64) float64 {
	if v, ok := toFloat(params[key]); ok {
		return v
	}
	return fallback
}

func paramString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// registerBuiltinConditions installs the stock condition kinds.
func registerBuiltinConditions(r *ConditionRegistry) int {
	added := 0
	reg := func(kind string, fn ConditionFunc, schema map[string]any) {
		if r.Register(kind, fn, schema) {
			added++
		}
	}

	// Threshold over a numeric stat axis: axis op value. Missing axes
	// read as 0 so a catalog can gate on "fatigue > 0.8" safely.
	reg("stat_threshold", func(cond catalog.Condition, ctx *EvalContext) bool {
		axis := paramString(cond.Params, "axis")
		value := paramFloat(cond.Params, "value", 0)
		got := ctx.Stat(axis, 0)
		switch paramString(cond.Params, "op") {
		case "lt":
			return got < value
		case "lte":
			return got <= value
		case "gt":
			return got > value
		case "eq":
			return got == value
		default: // gte
			return got >= value
		}
	}, map[string]any{"axis": "string", "op": "lt|lte|gt|gte|eq", "value": "number"})

	// Inclusive range over a stat axis.
	reg("stat_range", func(cond catalog.Condition, ctx *EvalContext) bool {
		got := ctx.Stat(paramString(cond.Params, "axis"), 0)
		return got >= paramFloat(cond.Params, "min", 0) && got <= paramFloat(cond.Params, "max", 1)
	}, map[string]any{"axis": "string", "min": "number", "max": "number"})

	// Membership: stat axis value equals one of the listed values.
	reg("stat_in", func(cond catalog.Condition, ctx *EvalContext) bool {
		got := ctx.Stat(paramString(cond.Params, "axis"), 0)
		values, _ := cond.Params["values"].([]any)
		for _, raw := range values {
			if v, ok := toFloat(raw); ok && v == got {
				return true
			}
		}
		return false
	}, map[string]any{"axis": "string", "values": "[]number"})

	// Legacy relationship gate, kept for authored content that predates
	// stat-axis relationships.
	reg("relationship_threshold", func(cond catalog.Condition, ctx *EvalContext) bool {
		target := paramString(cond.Params, "target")
		return ctx.Relationships[target] >= paramFloat(cond.Params, "min", 0)
	}, map[string]any{"target": "string", "min": "number"})

	// Session boolean flag.
	reg("flag_set", func(cond catalog.Condition, ctx *EvalContext) bool {
		want := true
		if v, ok := cond.Params["value"].(bool); ok {
			want = v
		}
		return ctx.Flags[paramString(cond.Params, "name")] == want
	}, map[string]any{"name": "string", "value": "bool"})

	// Bernoulli gate.
	reg("random_chance", func(cond catalog.Condition, ctx *EvalContext) bool {
		return ctx.Float() < paramFloat(cond.Params, "probability", 0)
	}, map[string]any{"probability": "number"})

	// Seconds-of-day window, same wraparound semantics as time_slot nodes.
	reg("time_of_day", func(cond catalog.Condition, ctx *EvalContext) bool {
		r := catalog.TimeRange{
			Start: paramFloat(cond.Params, "start", 0),
			End:   paramFloat(cond.Params, "end", SecondsPerDay),
		}
		return r.Contains(ctx.TimeOfDay())
	}, map[string]any{"start": "number", "end": "number"})

	// Location type membership.
	reg("location_type_in", func(cond catalog.Condition, ctx *EvalContext) bool {
		values, _ := cond.Params["values"].([]any)
		for _, raw := range values {
			if s, ok := raw.(string); ok && s == ctx.LocationType {
				return true
			}
		}
		return false
	}, map[string]any{"values": "[]string"})

	// State tag presence on the agent.
	reg("state_tag", func(cond catalog.Condition, ctx *EvalContext) bool {
		if ctx.State == nil {
			return false
		}
		return ctx.State.HasTag(paramString(cond.Params, "tag"))
	}, map[string]any{"tag": "string"})

	// Scripted expression over the evaluation context.
	reg("expression", evalExpressionCondition,
		map[string]any{"expr": "string (javascript, stats/flags/prefs in scope)"})

	return added
}
