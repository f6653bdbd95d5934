package operation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/operon-dev/operon/internal/logging"
	"github.com/operon-dev/operon/pkg/schema"
	"github.com/operon-dev/operon/pkg/state"
)

// CallOption configures one call.
type CallOption func(*callOptions)

type callOptions struct {
	actor           any
	skipRepresenter bool
}

// WithActor attaches the calling identity consulted by policy gates.
func WithActor(actor any) CallOption {
	return func(o *callOptions) {
		o.actor = actor
	}
}

// WithoutRepresenter bypasses the terminal representer for this call.
func WithoutRepresenter() CallOption {
	return func(o *callOptions) {
		o.skipRepresenter = true
	}
}

// Call runs the primary step sequence against the raw input and returns the
// terminal result.
//
// State threading: the factory's object becomes both the current and the
// original state. Steps replace current with their return value; original is
// never reassigned. Both start as references to the same object, so a step
// that mutates it in place (instead of returning a fresh state) makes that
// mutation visible through original too.
func (d *Definition) Call(ctx context.Context, raw map[string]any, opts ...CallOption) (any, error) {
	return d.run(ctx, d.steps, raw, false, opts...)
}

// DryRun runs the explicitly declared dry-run sequence instead of the
// primary one. The engine enforces nothing about side-effect freedom; that
// contract is upheld by the operation author's choice of overrides.
func (d *Definition) DryRun(ctx context.Context, raw map[string]any, opts ...CallOption) (any, error) {
	if !d.dryDeclared {
		return nil, schema.NewError(schema.ErrCodeConfig,
			"no dry-run sequence declared").WithOperation(d.name)
	}
	return d.run(ctx, d.drySteps, raw, true, opts...)
}

func (d *Definition) run(ctx context.Context, steps []Step, raw map[string]any, dry bool, opts ...CallOption) (any, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	callID := uuid.NewString()
	ctx = logging.WithCallID(logging.WithOperation(ctx, d.name), callID)
	log := logging.LogWith(ctx, d.logger)

	initial, err := state.Build(d.input, raw)
	if err != nil {
		return nil, err
	}
	current, original := any(initial), any(initial)

	d.record(ctx, callID, "", schema.EventCallStarted, dry, nil)
	log.Debug("call started", "dry_run", dry, "steps", len(steps))

	for _, st := range steps {
		stepCtx := logging.WithStep(ctx, st.Name)
		d.record(stepCtx, callID, st.Name, schema.EventStepStarted, dry, nil)

		switch st.Kind {
		case StepValidation:
			if !st.rules.Validate(stepCtx, current) {
				d.record(stepCtx, callID, st.Name, schema.EventValidationFailed, dry, errorDetail(current))
				d.record(stepCtx, callID, st.Name, schema.EventCallHalted, dry, nil)
				log.Info("validation failed, call halted", "step", st.Name)
				// Validation failure is a normal return: the caller inspects
				// the state's error collector. No error handler runs and no
				// representer is applied.
				return current, nil
			}

		case StepPolicy:
			checker := st.checker(o.actor, current)
			allowed, err := checker.Allows(stepCtx, st.predicate)
			if err != nil {
				d.record(stepCtx, callID, st.Name, schema.EventCallFailed, dry, map[string]any{"error": err.Error()})
				return nil, schema.NewErrorf(schema.ErrCodeAuthorization,
					"policy check failed: %s", err.Error()).
					WithOperation(d.name).WithStep(st.Name).WithCause(err)
			}
			if !allowed {
				d.record(stepCtx, callID, st.Name, schema.EventPolicyDenied, dry, nil)
				d.record(stepCtx, callID, st.Name, schema.EventCallFailed, dry, nil)
				log.Warn("policy denied", "step", st.Name, "predicate", st.predicate)
				return nil, &PolicyError{Operation: d.name, Predicate: st.predicate, Checker: checker}
			}

		case StepTransform:
			next, err := st.transform(stepCtx, current, original)
			if err != nil {
				result, handled, herr := d.handleStepError(stepCtx, callID, st, err, dry)
				if herr != nil {
					return nil, herr
				}
				if handled {
					log.Info("step recovered, call halted", "step", st.Name)
					return result, nil
				}
			}
			current = next

		case StepMiddleware:
			next, err := d.invokeDelegate(stepCtx, st, current)
			if err != nil {
				result, handled, herr := d.handleStepError(stepCtx, callID, st, err, dry)
				if herr != nil {
					return nil, herr
				}
				if handled {
					log.Info("step recovered, call halted", "step", st.Name)
					return result, nil
				}
			}
			current = next
		}

		d.record(stepCtx, callID, st.Name, schema.EventStepCompleted, dry, nil)
	}

	result := current
	if d.representer != nil && !o.skipRepresenter {
		wrapped, err := d.representer.Wrap(ctx, result)
		if err != nil {
			d.record(ctx, callID, "", schema.EventCallFailed, dry, map[string]any{"error": err.Error()})
			return nil, err
		}
		result = wrapped
	}

	d.record(ctx, callID, "", schema.EventCallCompleted, dry, nil)
	log.Debug("call completed")
	return result, nil
}

// handleStepError discriminates a step's error. An abort signal with an
// attached handler halts the call with the handler's return value; one
// without a handler, or any other error, is fatal for the call. Every fatal
// path records a terminal call.failed event so the journal never leaves the
// call looking in-flight.
func (d *Definition) handleStepError(ctx context.Context, callID string, st Step, err error, dry bool) (result any, handled bool, fatal error) {
	var sf *StepFailure
	if !errors.As(err, &sf) {
		d.record(ctx, callID, st.Name, schema.EventStepFailed, dry, map[string]any{"error": err.Error()})
		d.record(ctx, callID, st.Name, schema.EventCallFailed, dry, nil)
		var oe *schema.OperonError
		if errors.As(err, &oe) {
			return nil, false, err
		}
		return nil, false, schema.NewErrorf(schema.ErrCodeExecution,
			"step failed: %s", err.Error()).
			WithOperation(d.name).WithStep(st.Name).WithCause(err)
	}

	d.record(ctx, callID, st.Name, schema.EventStepFailed, dry, nil)

	handler, ok := d.errHandlers[st.Name]
	if !ok {
		d.record(ctx, callID, st.Name, schema.EventCallFailed, dry, nil)
		return nil, false, schema.NewError(schema.ErrCodeStepFailed,
			"step aborted with no attached handler").
			WithOperation(d.name).WithStep(st.Name).WithCause(sf)
	}

	out, herr := handler(ctx, sf.State, sf.Extra)
	if herr != nil {
		d.record(ctx, callID, st.Name, schema.EventCallFailed, dry, nil)
		return nil, false, schema.NewErrorf(schema.ErrCodeExecution,
			"error handler failed: %s", herr.Error()).
			WithOperation(d.name).WithStep(st.Name).WithCause(herr)
	}

	d.record(ctx, callID, st.Name, schema.EventStepRecovered, dry, nil)
	d.record(ctx, callID, st.Name, schema.EventCallHalted, dry, nil)
	return out, true, nil
}

// invokeDelegate resolves and dispatches a middleware step against the
// current state. Resolution failures are configuration defects, fatal for
// the call and never retried.
func (d *Definition) invokeDelegate(ctx context.Context, st Step, current any) (any, error) {
	id := d.resolver(current)
	if id == "" {
		return nil, schema.NewError(schema.ErrCodeConfig,
			"middleware resolver produced an empty identifier").
			WithOperation(d.name).WithStep(st.Name)
	}
	delegate, err := d.delegates.Get(id)
	if err != nil {
		var oe *schema.OperonError
		if errors.As(err, &oe) {
			return nil, oe.WithOperation(d.name).WithStep(st.Name)
		}
		return nil, err
	}
	return delegate.Invoke(ctx, st.Name, current)
}

func (d *Definition) record(ctx context.Context, callID, step, eventType string, dry bool, detail map[string]any) {
	d.recorder.Record(ctx, Event{
		CallID:    callID,
		Operation: d.name,
		Step:      step,
		Type:      eventType,
		DryRun:    dry,
		Detail:    detail,
	})
}

func errorDetail(st any) map[string]any {
	collector := schema.CollectorOf(st)
	if collector == nil {
		return nil
	}
	return map[string]any{"errors": collector.Full()}
}
