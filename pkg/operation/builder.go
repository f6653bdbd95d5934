package operation

import (
	"log/slog"

	"github.com/operon-dev/operon/pkg/rules"
	"github.com/operon-dev/operon/pkg/schema"
	"github.com/operon-dev/operon/pkg/state"
)

// Builder accumulates step declarations in textual order and freezes them
// into an immutable Definition at Build time. Configuration problems are
// collected while declaring and reported together by Build.
type Builder struct {
	name string
	prev *Definition

	decls    []Step
	ruleSet  *rules.Set
	polIndex int // index into decls of the policy gate, -1 until declared

	dryDecls    []dryDecl
	dryDeclared bool

	handlers    map[string]ErrorHandlerFunc
	resolver    ResolverFunc
	delegates   *MiddlewareRegistry
	representer Representer
	input       *state.Schema
	recorder    Recorder
	logger      *slog.Logger

	errs []error
}

type dryDecl struct {
	name     string
	override TransformFunc
}

// Define starts a new operation definition.
func Define(name string) *Builder {
	return &Builder{
		name:     name,
		polIndex: -1,
		handlers: make(map[string]ErrorHandlerFunc),
	}
}

func (b *Builder) fail(err *schema.OperonError) *Builder {
	b.errs = append(b.errs, err.WithOperation(b.name))
	return b
}

// ContinuesFrom prepends the prior operation's fully resolved steps (gates
// included) and error-handler entries in front of this operation's own
// declarations. Composition happens once, at Build time; the combined
// operation has a single flattened step sequence.
func (b *Builder) ContinuesFrom(prev *Definition) *Builder {
	if prev == nil {
		return b.fail(schema.NewError(schema.ErrCodeConfig, "continues_from operation is nil"))
	}
	b.prev = prev
	return b
}

// Step declares a transform step.
func (b *Builder) Step(name string, fn TransformFunc) *Builder {
	if name == "" {
		return b.fail(schema.NewError(schema.ErrCodeConfig, "step name is empty"))
	}
	if fn == nil {
		return b.fail(schema.NewErrorf(schema.ErrCodeConfig, "step %q has a nil handler", name))
	}
	b.decls = append(b.decls, Step{Name: name, Kind: StepTransform, transform: fn})
	return b
}

// Middleware declares a delegate step. The name doubles as the delegate
// method invoked at call time on the implementation chosen by the resolver.
func (b *Builder) Middleware(name string) *Builder {
	if name == "" {
		return b.fail(schema.NewError(schema.ErrCodeConfig, "middleware step name is empty"))
	}
	b.decls = append(b.decls, Step{Name: name, Kind: StepMiddleware})
	return b
}

// Resolver sets the middleware class resolver consulted by delegate steps.
func (b *Builder) Resolver(fn ResolverFunc) *Builder {
	b.resolver = fn
	return b
}

// Delegates sets the registry middleware identifiers resolve against.
func (b *Builder) Delegates(r *MiddlewareRegistry) *Builder {
	b.delegates = r
	return b
}

// Validate inserts the validation gate at this position. Repeated Validate
// declarations fold their rules into the one gate at the first declared
// position; they never create additional gates.
func (b *Builder) Validate(set *rules.Set) *Builder {
	if b.ruleSet == nil {
		b.ruleSet = rules.NewSet(b.name)
		b.decls = append(b.decls, Step{
			Name:  b.name + ".validate",
			Kind:  StepValidation,
			rules: b.ruleSet,
		})
	}
	b.ruleSet.Merge(set)
	return b
}

// Policy inserts the authorization gate at this position. One gate per
// operation.
func (b *Builder) Policy(factory CheckerFactory, predicate string) *Builder {
	if factory == nil {
		return b.fail(schema.NewError(schema.ErrCodeConfig, "policy checker factory is nil"))
	}
	if b.polIndex >= 0 {
		return b.fail(schema.NewError(schema.ErrCodeConfig, "policy gate declared twice"))
	}
	b.polIndex = len(b.decls)
	b.decls = append(b.decls, Step{
		Name:      b.name + ".policy",
		Kind:      StepPolicy,
		checker:   factory,
		predicate: predicate,
	})
	return b
}

// OnError attaches a recovery handler to the named step. The handler's
// return value becomes the operation's final result when that step raises
// the abort signal.
func (b *Builder) OnError(stepName string, fn ErrorHandlerFunc) *Builder {
	if fn == nil {
		return b.fail(schema.NewErrorf(schema.ErrCodeConfig, "error handler for %q is nil", stepName))
	}
	if _, dup := b.handlers[stepName]; dup {
		return b.fail(schema.NewErrorf(schema.ErrCodeConfig, "error handler for %q declared twice", stepName))
	}
	b.handlers[stepName] = fn
	return b
}

// DryStep re-lists a primary step, by name, in the dry-run sequence. Primary
// steps not re-listed are skipped during dry runs.
func (b *Builder) DryStep(name string) *Builder {
	b.dryDeclared = true
	b.dryDecls = append(b.dryDecls, dryDecl{name: name})
	return b
}

// DryStepFunc overrides a primary step in the dry-run sequence with an
// inline handler sharing the step's name.
func (b *Builder) DryStepFunc(name string, fn TransformFunc) *Builder {
	if fn == nil {
		return b.fail(schema.NewErrorf(schema.ErrCodeConfig, "dry-run override for %q has a nil handler", name))
	}
	b.dryDeclared = true
	b.dryDecls = append(b.dryDecls, dryDecl{name: name, override: fn})
	return b
}

// DryValidate re-lists this operation's validation gate in the dry-run
// sequence. Gates are never implicitly included in dry runs.
func (b *Builder) DryValidate() *Builder {
	return b.DryStep(b.name + ".validate")
}

// DryPolicy re-lists this operation's policy gate in the dry-run sequence.
func (b *Builder) DryPolicy() *Builder {
	return b.DryStep(b.name + ".policy")
}

// Represent sets the terminal representer applied to the result of a
// completed call.
func (b *Builder) Represent(r Representer) *Builder {
	b.representer = r
	return b
}

// Input sets the state-factory schema raw input is coerced through.
func (b *Builder) Input(s *state.Schema) *Builder {
	b.input = s
	return b
}

// Record sets the execution event recorder for all calls.
func (b *Builder) Record(r Recorder) *Builder {
	b.recorder = r
	return b
}

// Logger sets the structured logger for all calls.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the accumulated configuration and freezes the Definition.
// Configuration failures are reported here, at definition time, never at
// call time.
func (b *Builder) Build() (*Definition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.name == "" {
		return nil, schema.NewError(schema.ErrCodeConfig, "operation name is empty")
	}

	var steps []Step
	handlers := make(map[string]ErrorHandlerFunc)
	resolver := b.resolver
	delegates := b.delegates

	if b.prev != nil {
		steps = append(steps, b.prev.steps...)
		for name, fn := range b.prev.errHandlers {
			handlers[name] = fn
		}
		if resolver == nil {
			resolver = b.prev.resolver
		}
		if delegates == nil {
			delegates = b.prev.delegates
		}
	}
	steps = append(steps, b.decls...)

	index := make(map[string]int, len(steps))
	for i, st := range steps {
		if _, dup := index[st.Name]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"duplicate step name %q", st.Name).WithOperation(b.name)
		}
		index[st.Name] = i
	}

	for name, fn := range b.handlers {
		i, ok := index[name]
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"error handler attached to unknown step %q", name).WithOperation(b.name)
		}
		if k := steps[i].Kind; k != StepTransform && k != StepMiddleware {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"error handler attached to %s step %q", k, name).WithOperation(b.name)
		}
		handlers[name] = fn
	}

	hasMiddleware := false
	for _, st := range steps {
		if st.Kind == StepMiddleware {
			hasMiddleware = true
			break
		}
	}
	if hasMiddleware {
		if resolver == nil {
			return nil, schema.NewError(schema.ErrCodeConfig,
				"middleware steps declared without a resolver").WithOperation(b.name)
		}
		if delegates == nil {
			return nil, schema.NewError(schema.ErrCodeConfig,
				"middleware steps declared without a delegate registry").WithOperation(b.name)
		}
	}

	drySteps, err := b.resolveDrySteps(steps, index)
	if err != nil {
		return nil, err
	}

	recorder := b.recorder
	if recorder == nil {
		recorder = NopRecorder()
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Definition{
		name:        b.name,
		steps:       steps,
		drySteps:    drySteps,
		dryDeclared: b.dryDeclared,
		errHandlers: handlers,
		resolver:    resolver,
		delegates:   delegates,
		representer: b.representer,
		input:       b.input,
		recorder:    recorder,
		logger:      logger,
	}, nil
}

// resolveDrySteps resolves dry-run declarations against the primary
// sequence: each either re-lists a primary step verbatim or overrides it
// with an inline handler sharing the name.
func (b *Builder) resolveDrySteps(steps []Step, index map[string]int) ([]Step, error) {
	var out []Step
	seen := make(map[string]bool, len(b.dryDecls))
	for _, dd := range b.dryDecls {
		i, ok := index[dd.name]
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"dry-run step %q does not name a primary step", dd.name).WithOperation(b.name)
		}
		if seen[dd.name] {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"dry-run step %q listed twice", dd.name).WithOperation(b.name)
		}
		seen[dd.name] = true

		st := steps[i]
		if dd.override != nil {
			if st.Kind != StepTransform && st.Kind != StepMiddleware {
				return nil, schema.NewErrorf(schema.ErrCodeConfig,
					"dry-run override for %s step %q", st.Kind, dd.name).WithOperation(b.name)
			}
			st = Step{Name: dd.name, Kind: StepTransform, transform: dd.override}
		}
		out = append(out, st)
	}
	return out, nil
}

// MustBuild is Build, panicking on configuration errors. For startup wiring.
func (b *Builder) MustBuild() *Definition {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
