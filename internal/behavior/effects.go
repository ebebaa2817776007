package behavior

import (
	"fmt"
	"log/slog"

	"github.com/mirelet/veldt/internal/catalog"
)

// EffectFunc applies one catalog effect's mutation to the context's
// session/agent state.
type EffectFunc func(params map[string]any, ctx *EvalContext)

// EffectRegistry maps effect kind names to mutation functions. Unknown
// kinds are skipped with a warning so a catalog typo cannot stall an
// agent's decision.
type EffectRegistry struct {
	entries map[string]registryEntry[EffectFunc]
}

// NewEffectRegistry returns an empty registry.
func NewEffectRegistry() *EffectRegistry {
	return &EffectRegistry{entries: make(map[string]registryEntry[EffectFunc])}
}

// Register adds or replaces an effect kind. Returns false when the kind
// already existed.
func (r *EffectRegistry) Register(kind string, fn EffectFunc, paramSchema map[string]any) bool {
	_, existed := r.entries[kind]
	r.entries[kind] = registryEntry[EffectFunc]{fn: fn, paramSchema: paramSchema}
	return !existed
}

// Has reports whether a kind is registered.
func (r *EffectRegistry) Has(kind string) bool {
	_, ok := r.entries[kind]
	return ok
}

// ParamSchema returns the tooling metadata for a kind, if any.
func (r *EffectRegistry) ParamSchema(kind string) map[string]any {
	return r.entries[kind].paramSchema
}

// Apply runs every effect in order. Unknown kinds log and continue.
func (r *EffectRegistry) Apply(effects []catalog.Effect, ctx *EvalContext) {
	for _, e := range effects {
		entry, ok := r.entries[e.Kind]
		if !ok {
			slog.Warn("unknown effect kind", "kind", e.Kind, "world", ctx.WorldID, "agent", ctx.AgentID)
			continue
		}
		entry.fn(e.Params, ctx)
	}
}

// registerBuiltinEffects installs the stock effect kinds. These are
// illustrative defaults; games register their own on top.
func registerBuiltinEffects(r *EffectRegistry) int {
	added := 0
	reg := func(kind string, fn EffectFunc, schema map[string]any) {
		if r.Register(kind, fn, schema) {
			added++
		}
	}

	reg("add_item", func(params map[string]any, ctx *EvalContext) {
		if ctx.Record == nil {
			return
		}
		item := paramString(params, "item")
		if item == "" {
			return
		}
		count := int(paramFloat(params, "count", 1))
		if ctx.Record.Inventory == nil {
			ctx.Record.Inventory = make(map[string]int)
		}
		ctx.Record.Inventory[item] += count
		if ctx.Record.Inventory[item] < 0 {
			ctx.Record.Inventory[item] = 0
		}
	}, map[string]any{"item": "string", "count": "int (may be negative)"})

	reg("grant_xp", func(params map[string]any, ctx *EvalContext) {
		if ctx.Record == nil {
			return
		}
		ctx.Record.XP += paramFloat(params, "amount", 0)
	}, map[string]any{"amount": "number"})

	reg("set_flag", func(params map[string]any, ctx *EvalContext) {
		if ctx.SessionFlags == nil {
			return
		}
		name := paramString(params, "name")
		if name == "" {
			return
		}
		value := true
		if v, ok := params["value"].(bool); ok {
			value = v
		}
		ctx.SessionFlags.SetBool(name, value)
		if ctx.Flags != nil {
			ctx.Flags[name] = value
		}
	}, map[string]any{"name": "string", "value": "bool"})

	reg("add_state_tag", func(params map[string]any, ctx *EvalContext) {
		if ctx.State != nil {
			ctx.State.AddTag(paramString(params, "tag"))
		}
	}, map[string]any{"tag": "string"})

	reg("remove_state_tag", func(params map[string]any, ctx *EvalContext) {
		if ctx.State != nil {
			ctx.State.RemoveTag(paramString(params, "tag"))
		}
	}, map[string]any{"tag": "string"})

	reg("adjust_relationship", func(params map[string]any, ctx *EvalContext) {
		if ctx.Record == nil {
			return
		}
		target := paramString(params, "target")
		if target == "" {
			return
		}
		ctx.Record.AdjustRelationship(target, paramFloat(params, "delta", 0))
		ctx.Relationships = ctx.Record.Relationships
	}, map[string]any{"target": "string", "delta": "number in [-2, 2]"})

	reg("world_event", func(params map[string]any, ctx *EvalContext) {
		category := paramString(params, "category")
		if category == "" {
			category = "world"
		}
		msg := paramString(params, "message")
		if msg == "" {
			msg = fmt.Sprintf("agent %s triggered a world event", ctx.AgentID)
		}
		ctx.Emit(category, msg)
	}, map[string]any{"category": "string", "message": "string"})

	reg("request_generation", func(params map[string]any, ctx *EvalContext) {
		if ctx.EnqueueJob == nil {
			return
		}
		kind := paramString(params, "kind")
		if kind == "" {
			return
		}
		payload, _ := params["payload"].(map[string]any)
		ctx.EnqueueJob(kind, payload)
	}, map[string]any{"kind": "string", "payload": "object"})

	return added
}
