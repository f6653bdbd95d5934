// Package operation implements a declarative pipeline engine: named, ordered
// sequences of transformation steps that a mutable state flows through, with
// validation and authorization gates, runtime-resolved middleware delegation,
// step-scoped error handlers, alternate dry-run sequences, and definition-time
// continuation of one operation by another.
package operation

import (
	"log/slog"

	"github.com/operon-dev/operon/pkg/state"
)

// Definition is the immutable, named configuration of one pipeline: its
// ordered steps, gates, middleware resolver, dry-run sequence and
// representer. Build one at startup via Define(...).Build(); it is safe for
// concurrent calls afterwards and never mutated at call time.
type Definition struct {
	name        string
	steps       []Step
	drySteps    []Step
	dryDeclared bool
	errHandlers map[string]ErrorHandlerFunc
	resolver    ResolverFunc
	delegates   *MiddlewareRegistry
	representer Representer
	input       *state.Schema
	recorder    Recorder
	logger      *slog.Logger
}

// Name returns the operation name.
func (d *Definition) Name() string {
	return d.name
}

// Steps returns the resolved primary step sequence.
func (d *Definition) Steps() []Step {
	out := make([]Step, len(d.steps))
	copy(out, d.steps)
	return out
}

// DrySteps returns the resolved dry-run step sequence.
func (d *Definition) DrySteps() []Step {
	out := make([]Step, len(d.drySteps))
	copy(out, d.drySteps)
	return out
}

// StepNames returns the primary step names in execution order.
func (d *Definition) StepNames() []string {
	return stepNames(d.steps)
}

// DryStepNames returns the dry-run step names in execution order.
func (d *Definition) DryStepNames() []string {
	return stepNames(d.drySteps)
}

// HasDryRun reports whether a dry-run sequence was declared.
func (d *Definition) HasDryRun() bool {
	return d.dryDeclared
}

// HasRepresenter reports whether a terminal representer is configured.
func (d *Definition) HasRepresenter() bool {
	return d.representer != nil
}

func stepNames(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}
