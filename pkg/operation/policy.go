package operation

import (
	"context"
	"fmt"
)

// Checker answers yes/no authorization questions about one (actor, state)
// pair. A fresh checker is constructed each time a policy gate executes.
type Checker interface {
	Allows(ctx context.Context, predicate string) (bool, error)
}

// CheckerFactory constructs a Checker from the calling actor and the current
// state at the policy gate's position.
type CheckerFactory func(actor, state any) Checker

// CheckerFunc adapts a plain predicate function into a Checker.
type CheckerFunc func(ctx context.Context, predicate string) (bool, error)

func (f CheckerFunc) Allows(ctx context.Context, predicate string) (bool, error) {
	return f(ctx, predicate)
}

// PolicyError is raised when a policy gate denies the call. It is never
// swallowed, and carries the constructed checker instance so callers can
// inspect why the predicate failed.
type PolicyError struct {
	Operation string
	Predicate string
	Checker   Checker
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("operation %s not allowed: policy predicate %s denied", e.Operation, e.Predicate)
}
