package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operon-dev/operon/pkg/rules"
	"github.com/operon-dev/operon/pkg/schema"
	"github.com/operon-dev/operon/pkg/state"
)

func requireConfigError(t *testing.T, err error) *schema.OperonError {
	t.Helper()
	require.Error(t, err)
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeConfig, oe.Code)
	return oe
}

func TestBuild_EmptyOperationName(t *testing.T) {
	_, err := Define("").Step("x", appendTrace("x")).Build()
	requireConfigError(t, err)
}

func TestBuild_EmptyStepName(t *testing.T) {
	_, err := Define("op").Step("", appendTrace("x")).Build()
	requireConfigError(t, err)
}

func TestBuild_NilTransform(t *testing.T) {
	_, err := Define("op").Step("x", nil).Build()
	requireConfigError(t, err)
}

func TestBuild_DuplicateStepNames(t *testing.T) {
	_, err := Define("op").
		Step("x", appendTrace("a")).
		Step("x", appendTrace("b")).
		Build()
	oe := requireConfigError(t, err)
	assert.Equal(t, "op", oe.Operation)
}

func TestBuild_OnErrorUnknownStep(t *testing.T) {
	_, err := Define("op").
		Step("x", appendTrace("x")).
		OnError("missing", func(context.Context, any, any) (any, error) { return nil, nil }).
		Build()
	requireConfigError(t, err)
}

func TestBuild_OnErrorOnGateStep(t *testing.T) {
	_, err := Define("op").
		Validate(rules.NewSet("op", rules.Required("email"))).
		OnError("op.validate", func(context.Context, any, any) (any, error) { return nil, nil }).
		Build()
	requireConfigError(t, err)
}

func TestBuild_OnErrorDuplicateHandler(t *testing.T) {
	handler := func(context.Context, any, any) (any, error) { return nil, nil }
	_, err := Define("op").
		Step("x", appendTrace("x")).
		OnError("x", handler).
		OnError("x", handler).
		Build()
	requireConfigError(t, err)
}

func TestBuild_PolicyDeclaredTwice(t *testing.T) {
	factory := func(_, _ any) Checker { return &staticChecker{allow: true} }
	_, err := Define("op").
		Policy(factory, "read?").
		Policy(factory, "write?").
		Build()
	requireConfigError(t, err)
}

func TestBuild_MiddlewareWithoutResolver(t *testing.T) {
	reg := NewMiddlewareRegistry()
	_, err := Define("op").
		Middleware("notify").
		Delegates(reg).
		Build()
	requireConfigError(t, err)
}

func TestBuild_MiddlewareWithoutDelegates(t *testing.T) {
	_, err := Define("op").
		Middleware("notify").
		Resolver(func(any) string { return "x" }).
		Build()
	requireConfigError(t, err)
}

func TestBuild_ValidateFoldsIntoSingleGate(t *testing.T) {
	def, err := Define("op").
		Step("a", appendTrace("a")).
		Validate(rules.NewSet("op", rules.Required("email"))).
		Step("b", appendTrace("b")).
		Validate(rules.NewSet("op", rules.Required("name"))).
		Build()
	require.NoError(t, err)

	// One gate, positioned where the first Validate appeared.
	assert.Equal(t, []string{"a", "op.validate", "b"}, def.StepNames())

	// The folded set enforces both rule groups at that position.
	result, cerr := def.Call(context.Background(), map[string]any{"email": "a@b.c"})
	require.NoError(t, cerr)
	obj := result.(*state.Object)
	assert.Equal(t, []string{"is required"}, obj.Errors().On("name"))
	assert.Empty(t, obj.Errors().On("email"))
	assert.Equal(t, []string{"a"}, traceOf(t, result))
}

func TestBuild_ValidateDoesNotMutateCallerSet(t *testing.T) {
	shared := rules.NewSet("shared", rules.Required("email"))
	_, err := Define("op").
		Validate(shared).
		Validate(rules.NewSet("op", rules.Required("name"))).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 1, shared.Len(), "folding must not grow the caller's set")
}

func TestBuild_GateNamesFollowOperation(t *testing.T) {
	def, err := Define("signup").
		Validate(rules.NewSet("signup", rules.Required("email"))).
		Policy(func(_, _ any) Checker { return &staticChecker{allow: true} }, "create?").
		Step("createUser", appendTrace("createUser")).
		Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"signup.validate", "signup.policy", "createUser"}, def.StepNames())
}

func TestBuild_ContinuationPrependsParentSteps(t *testing.T) {
	base, err := Define("base").
		Step("prepare", appendTrace("prepare")).
		Validate(rules.NewSet("base", rules.Required("email"))).
		Build()
	require.NoError(t, err)

	ext, err := Define("extended").
		ContinuesFrom(base).
		Step("finish", appendTrace("finish")).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"prepare", "base.validate", "finish"}, ext.StepNames())
	// The parent is untouched.
	assert.Equal(t, []string{"prepare", "base.validate"}, base.StepNames())

	result, cerr := ext.Call(context.Background(), map[string]any{"email": "a@b.c"})
	require.NoError(t, cerr)
	assert.Equal(t, []string{"prepare", "finish"}, traceOf(t, result))
}

func TestBuild_ContinuationCarriesErrorHandlers(t *testing.T) {
	base, err := Define("base").
		Step("explode", func(_ context.Context, st, _ any) (any, error) {
			return nil, Abort(st, nil)
		}).
		OnError("explode", func(context.Context, any, any) (any, error) {
			return "recovered", nil
		}).
		Build()
	require.NoError(t, err)

	ext, err := Define("extended").
		ContinuesFrom(base).
		Step("finish", appendTrace("finish")).
		Build()
	require.NoError(t, err)

	result, cerr := ext.Call(context.Background(), nil)
	require.NoError(t, cerr)
	assert.Equal(t, "recovered", result)
}

func TestBuild_ContinuationNameCollision(t *testing.T) {
	base, err := Define("base").Step("shared", appendTrace("a")).Build()
	require.NoError(t, err)

	_, err = Define("extended").
		ContinuesFrom(base).
		Step("shared", appendTrace("b")).
		Build()
	requireConfigError(t, err)
}

func TestBuild_ContinuationInheritsResolverAndDelegates(t *testing.T) {
	reg := NewMiddlewareRegistry()
	reg.MustRegister("mailer", DelegateMap{
		"notify": func(_ context.Context, st any) (any, error) {
			return "notified", nil
		},
	})

	base, err := Define("base").
		Resolver(func(any) string { return "mailer" }).
		Delegates(reg).
		Middleware("notify").
		Build()
	require.NoError(t, err)

	ext, err := Define("extended").
		ContinuesFrom(base).
		Step("wrap", func(_ context.Context, st, _ any) (any, error) {
			return map[string]any{"out": st}, nil
		}).
		Build()
	require.NoError(t, err)

	result, cerr := ext.Call(context.Background(), nil)
	require.NoError(t, cerr)
	assert.Equal(t, map[string]any{"out": "notified"}, result)
}

func TestBuild_ContinuationFromNil(t *testing.T) {
	_, err := Define("extended").ContinuesFrom(nil).Build()
	requireConfigError(t, err)
}

func TestBuild_FirstErrorWins(t *testing.T) {
	_, err := Define("op").
		Step("", nil).
		Step("x", appendTrace("x")).
		Step("x", appendTrace("x")).
		Build()
	oe := requireConfigError(t, err)
	assert.Contains(t, oe.Message, "name")
}

func TestMustBuild_PanicsOnConfigError(t *testing.T) {
	assert.Panics(t, func() {
		Define("op").Step("x", nil).MustBuild()
	})
}

func TestMustBuild_ReturnsDefinition(t *testing.T) {
	def := Define("op").Step("x", appendTrace("x")).MustBuild()
	assert.Equal(t, "op", def.Name())
}
