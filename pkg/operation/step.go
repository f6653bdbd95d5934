package operation

import (
	"context"

	"github.com/operon-dev/operon/pkg/rules"
)

// StepKind discriminates the four step descriptor variants.
type StepKind int

const (
	// StepTransform runs an inline handler against (current, original) state.
	StepTransform StepKind = iota
	// StepMiddleware dispatches to a runtime-resolved delegate; the step
	// name doubles as the delegate method.
	StepMiddleware
	// StepValidation runs the operation's rule set against the current state.
	StepValidation
	// StepPolicy runs an authorization check against (actor, current state).
	StepPolicy
)

func (k StepKind) String() string {
	switch k {
	case StepTransform:
		return "transform"
	case StepMiddleware:
		return "middleware"
	case StepValidation:
		return "validation"
	case StepPolicy:
		return "policy"
	}
	return "unknown"
}

// TransformFunc is a transform step handler. It receives the current state
// and the original state produced by the factory, and returns the next
// current state. Returning an Abort signal hands control to the step's
// attached error handler.
type TransformFunc func(ctx context.Context, state, original any) (any, error)

// ErrorHandlerFunc is a step-scoped recovery handler. Its return value
// becomes the operation's final result verbatim.
type ErrorHandlerFunc func(ctx context.Context, state, extra any) (any, error)

// ResolverFunc computes the delegate identifier for middleware steps from
// the current state at the point the step executes.
type ResolverFunc func(state any) string

// Step is one descriptor in an operation's ordered step registry.
type Step struct {
	Name string
	Kind StepKind

	transform TransformFunc
	rules     *rules.Set
	checker   CheckerFactory
	predicate string
}
