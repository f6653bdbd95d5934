package operation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operon-dev/operon/pkg/schema"
	"github.com/operon-dev/operon/pkg/state"
)

func TestJQRepresenter_ProjectsState(t *testing.T) {
	def, err := Define("profile").
		Step("load", func(_ context.Context, st, _ any) (any, error) {
			obj := st.(*state.Object)
			obj.Set("id", "u-1")
			obj.Set("email", "sam@example.com")
			obj.Set("password_digest", "secret")
			return obj, nil
		}).
		Represent(NewJQRepresenter(`{id: .id, email: .email}`)).
		Build()
	require.NoError(t, err)

	result, err := def.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "u-1", "email": "sam@example.com"}, result)
}

func TestJQRepresenter_NonObjectState(t *testing.T) {
	def, err := Define("count").
		Step("emit", func(context.Context, any, any) (any, error) {
			return map[string]any{"total": 3}, nil
		}).
		Represent(NewJQRepresenter(`.total`)).
		Build()
	require.NoError(t, err)

	result, err := def.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, result)
}

func TestJQRepresenter_BadProgram(t *testing.T) {
	def, err := Define("broken").
		Step("noop", appendTrace("noop")).
		Represent(NewJQRepresenter(`.[unclosed`)).
		Build()
	require.NoError(t, err)

	_, err = def.Call(context.Background(), nil)
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeRepresentation, oe.Code)
}

type repCtxKey struct{}

func TestRepresenter_ReceivesCallContext(t *testing.T) {
	var seen any
	def, err := Define("ctx-aware").
		Step("noop", appendTrace("noop")).
		Represent(FuncRepresenter(func(ctx context.Context, st any) (any, error) {
			seen = ctx.Value(repCtxKey{})
			return st, nil
		})).
		Build()
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), repCtxKey{}, "tenant-9")
	_, err = def.Call(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "tenant-9", seen, "the caller's context values reach the representer")
}

func TestFuncRepresenter_ErrorSurfaces(t *testing.T) {
	def, err := Define("broken").
		Step("noop", appendTrace("noop")).
		Represent(FuncRepresenter(func(context.Context, any) (any, error) {
			return nil, schema.NewError(schema.ErrCodeRepresentation, "no view")
		})).
		Build()
	require.NoError(t, err)

	_, err = def.Call(context.Background(), nil)
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeRepresentation, oe.Code)
}
