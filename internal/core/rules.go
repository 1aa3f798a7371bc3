package core

import "brewcore/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// The rules re-check scheduling, lifecycle and stock constraints against the
// transaction's final state, so a bug in an operation cannot commit a
// double-booked tank or a negative stock row.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewTankCapacityRule())
	engine.Register(NewTankOccupancyRule())
	engine.Register(LifecycleTransitionRule())
	engine.Register(NewExpectedImmutableRule())
	engine.Register(NewStockNonNegativeRule())
	return engine
}
