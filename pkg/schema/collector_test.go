package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCollector_AddAndQuery(t *testing.T) {
	c := NewErrorCollector()
	assert.False(t, c.Any())
	assert.Zero(t, c.Len())

	c.Add("email", "is required")
	c.Add("email", "is invalid")
	c.Add("name", "is required")

	assert.True(t, c.Any())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"is required", "is invalid"}, c.On("email"))
	assert.Nil(t, c.On("age"))
}

func TestErrorCollector_OrderPreserved(t *testing.T) {
	c := NewErrorCollector()
	c.Add("b", "first")
	c.Add("a", "second")
	c.Add("b", "third")

	assert.Equal(t, []string{"b", "a"}, c.Fields())
	assert.Equal(t, []string{"b first", "b third", "a second"}, c.Full())
}

func TestErrorCollector_Clear(t *testing.T) {
	c := NewErrorCollector()
	c.Addf("age", "must be at least %d", 18)
	require.True(t, c.Any())

	c.Clear()
	assert.False(t, c.Any())
	assert.Empty(t, c.Fields())
}

func TestErrorCollector_MarshalJSON(t *testing.T) {
	c := NewErrorCollector()
	c.Add("email", "is required")

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string][]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string][]string{"email": {"is required"}}, decoded)
}

func TestErrorCollector_ZeroValueUsable(t *testing.T) {
	var c ErrorCollector
	c.Add("x", "boom")
	assert.True(t, c.Any())
}
