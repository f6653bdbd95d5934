package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operon-dev/operon/pkg/schema"
)

func TestCatalog_RegisterAndGet(t *testing.T) {
	cat := NewCatalog()
	def := Define("signup").Step("x", appendTrace("x")).MustBuild()

	require.NoError(t, cat.Register(def))
	got, err := cat.Get("signup")
	require.NoError(t, err)
	assert.Same(t, def, got)
	assert.Equal(t, 1, cat.Count())
}

func TestCatalog_DuplicateIsConflict(t *testing.T) {
	cat := NewCatalog()
	def := Define("signup").Step("x", appendTrace("x")).MustBuild()
	require.NoError(t, cat.Register(def))

	err := cat.Register(def)
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeConflict, oe.Code)
}

func TestCatalog_UnknownOperation(t *testing.T) {
	cat := NewCatalog()
	_, err := cat.Get("missing")
	var oe *schema.OperonError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, schema.ErrCodeNotFound, oe.Code)
}

func TestCatalog_ListSortedWithShape(t *testing.T) {
	cat := NewCatalog()
	cat.MustRegister(Define("update").
		Step("persist", appendTrace("persist")).
		DryStep("persist").
		MustBuild())
	cat.MustRegister(Define("create").
		Step("persist", appendTrace("persist")).
		MustBuild())

	infos := cat.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "create", infos[0].Name)
	assert.Equal(t, "update", infos[1].Name)
	assert.False(t, infos[0].DryRun)
	assert.True(t, infos[1].DryRun)
	assert.Equal(t, []string{"persist"}, infos[1].DrySteps)
}
