package behavior

// Registries bundles the three dispatch tables the resolver draws from.
// The process entry point creates one set, bootstraps it once, and passes
// it down explicitly; there is no hidden package-level registry.
type Registries struct {
	Conditions *ConditionRegistry
	Effects    *EffectRegistry
	Scoring    *ScoringRegistry

	bootstrapped bool
}

// NewRegistries returns empty registries, ready for Bootstrap and for
// external registrations.
func NewRegistries() *Registries {
	return &Registries{
		Conditions: NewConditionRegistry(),
		Effects:    NewEffectRegistry(),
		Scoring:    NewScoringRegistry(),
	}
}

// BootstrapSummary reports what a Bootstrap call actually installed.
type BootstrapSummary struct {
	AlreadyBootstrapped bool
	ConditionsAdded     int
	EffectsAdded        int
	ScoringAdded        int
}

// Bootstrap installs the built-in condition, effect, and scoring entries.
// Idempotent: repeated calls are no-ops reporting AlreadyBootstrapped.
func (r *Registries) Bootstrap() BootstrapSummary {
	if r.bootstrapped {
		return BootstrapSummary{AlreadyBootstrapped: true}
	}
	r.bootstrapped = true
	return BootstrapSummary{
		ConditionsAdded: registerBuiltinConditions(r.Conditions),
		EffectsAdded:    registerBuiltinEffects(r.Effects),
		ScoringAdded:    registerBuiltinScoring(r.Scoring),
	}
}
