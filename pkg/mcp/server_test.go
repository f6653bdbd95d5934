package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/operon-dev/operon/pkg/operation"
)

func TestNewServer(t *testing.T) {
	s := NewServer(ServerDeps{Catalog: operation.NewCatalog()})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s := NewServer(ServerDeps{Catalog: operation.NewCatalog()})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 5)

	expectedTools := []string{
		"operon.list",
		"operon.describe",
		"operon.call",
		"operon.dry_run",
		"operon.journal",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}
