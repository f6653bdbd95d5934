package expressions

import (
	"context"
	"sync"

	"github.com/operon-dev/operon/pkg/schema"
)

// Engine evaluates expressions against a state scope. Three implementations:
// CEL (guards and validation predicates), Expr (deterministic logic), and
// GoJQ (JSON reshaping for representers).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, scope map[string]any) (any, error)
}

var (
	enginesOnce sync.Once
	engines     map[string]Engine
	enginesErr  error
)

// ForName returns the shared engine registered under the given name
// ("cel", "expr" or "jq"). Unknown names are a configuration error.
func ForName(name string) (Engine, error) {
	enginesOnce.Do(func() {
		cel, err := NewCELEngine()
		if err != nil {
			enginesErr = err
			return
		}
		engines = map[string]Engine{
			"cel":  cel,
			"expr": NewExprEngine(),
			"jq":   NewGoJQEngine(),
		}
	})
	if enginesErr != nil {
		return nil, enginesErr
	}
	e, ok := engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "unknown expression engine %q", name)
	}
	return e, nil
}
