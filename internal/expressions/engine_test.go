package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operon-dev/operon/pkg/schema"
)

func scope(state map[string]any) map[string]any {
	return map[string]any{"state": state, "original": state}
}

func TestForName(t *testing.T) {
	for _, name := range []string{"cel", "expr", "jq"} {
		e, err := ForName(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
	}

	_, err := ForName("lua")
	require.Error(t, err)
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeConfig, oe.Code)
}

func TestCELEngine_Evaluate(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `state.age >= 18`, scope(map[string]any{"age": 31}))
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), `state.email.contains("@")`, scope(map[string]any{"email": "sam@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCELEngine_MissingScopeDefaults(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), `"age" in state`, nil)
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestCELEngine_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `state.age >=`, nil)
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeConfig, oe.Code)
}

func TestExprEngine_Evaluate(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `state.name != "" && state.age > 21`,
		scope(map[string]any{"name": "Sam", "age": 31}))
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExprEngine_EmptyExpression(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
}

func TestGoJQEngine_SingleOutput(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), `.state.email`, scope(map[string]any{"email": "sam@example.com"}))
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", out)
}

func TestGoJQEngine_MultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), `.state.tags[]`,
		scope(map[string]any{"tags": []any{"a", "b"}}))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQEngine_ParseError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), `.state |`, nil)
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeConfig, oe.Code)
}

func TestEngines_CacheReuse(t *testing.T) {
	e := NewExprEngine()
	for i := 0; i < 3; i++ {
		out, err := e.Evaluate(context.Background(), `1 + 1`, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, out)
	}
	assert.Len(t, e.cache, 1)
}
