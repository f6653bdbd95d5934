package operation

import (
	"context"
	"sync"

	"github.com/operon-dev/operon/pkg/schema"
)

// Delegate is a runtime-resolved implementation a middleware step dispatches
// to. The method name is the step's name; the return value becomes the
// current state.
type Delegate interface {
	Invoke(ctx context.Context, method string, state any) (any, error)
}

// DelegateFunc is one method of a DelegateMap.
type DelegateFunc func(ctx context.Context, state any) (any, error)

// DelegateMap implements Delegate as a method-name lookup table. A missing
// method means the delegate does not honor its step's contract; that is
// fatal for the call, not a per-call condition.
type DelegateMap map[string]DelegateFunc

func (m DelegateMap) Invoke(ctx context.Context, method string, state any) (any, error) {
	fn, ok := m[method]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeMiddleware,
			"delegate has no method %q", method)
	}
	return fn(ctx, state)
}

// MiddlewareRegistry maps resolver identifiers to delegate implementations.
// Populate it at startup; it is safe for concurrent reads during calls.
type MiddlewareRegistry struct {
	mu    sync.RWMutex
	impls map[string]Delegate
}

// NewMiddlewareRegistry creates an empty registry.
func NewMiddlewareRegistry() *MiddlewareRegistry {
	return &MiddlewareRegistry{impls: make(map[string]Delegate)}
}

// Register adds a delegate under an identifier. Duplicate identifiers are a
// conflict.
func (r *MiddlewareRegistry) Register(id string, d Delegate) error {
	if id == "" {
		return schema.NewError(schema.ErrCodeValidation, "delegate identifier is empty")
	}
	if d == nil {
		return schema.NewError(schema.ErrCodeValidation, "delegate is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.impls[id]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "delegate %q already registered", id)
	}
	r.impls[id] = d
	return nil
}

// MustRegister is Register, panicking on error. For startup wiring.
func (r *MiddlewareRegistry) MustRegister(id string, d Delegate) {
	if err := r.Register(id, d); err != nil {
		panic(err)
	}
}

// Get retrieves a delegate by identifier. An unknown identifier is a fatal
// configuration error for the call that hits it.
func (r *MiddlewareRegistry) Get(id string) (Delegate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.impls[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "no delegate registered for %q", id)
	}
	return d, nil
}

// Has checks whether an identifier is registered.
func (r *MiddlewareRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.impls[id]
	return ok
}
