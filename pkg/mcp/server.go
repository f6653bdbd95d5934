// Package mcp exposes a catalog of operations as MCP tools over stdio, so
// agents can discover, call, and rehearse operations without bespoke glue.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/operon-dev/operon/internal/journal"
	"github.com/operon-dev/operon/pkg/operation"
)

// CallLog is the journal surface the server reads for operon.journal.
// Satisfied by *journal.Journal; nil disables the tool's data.
type CallLog interface {
	RecentCalls(ctx context.Context, limit int) ([]*journal.CallSummary, error)
	Entries(ctx context.Context, callID string, since int64) ([]*journal.Entry, error)
}

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Catalog *operation.Catalog
	Journal CallLog
	Logger  *slog.Logger
}

// Server wraps an MCP server with operation tool handlers.
type Server struct {
	catalog   *operation.Catalog
	journal   CallLog
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		catalog: deps.Catalog,
		journal: deps.Journal,
		logger:  logger,
	}

	mcpSrv := server.NewMCPServer(
		"operon",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Operon executes declarative operations: ordered transform steps with validation and authorization gates. Use operon.list to discover operations, operon.describe to inspect one, operon.call to execute, operon.dry_run to rehearse side-effect-free, and operon.journal to review past calls."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: listTool(), Handler: s.handleList},
		{Tool: describeTool(), Handler: s.handleDescribe},
		{Tool: callTool(), Handler: s.handleCall},
		{Tool: dryRunTool(), Handler: s.handleDryRun},
		{Tool: journalTool(), Handler: s.handleJournal},
	}
}

// --- Tool definitions ---

func listTool() mcp.Tool {
	return mcp.NewTool("operon.list",
		mcp.WithDescription("List registered operations with their step sequences"),
	)
}

func describeTool() mcp.Tool {
	return mcp.NewTool("operon.describe",
		mcp.WithDescription("Describe one operation: steps, gates, and dry-run sequence"),
		mcp.WithString("operation", mcp.Required(), mcp.Description("Name of the operation")),
	)
}

func callTool() mcp.Tool {
	return mcp.NewTool("operon.call",
		mcp.WithDescription("Execute an operation with the given input"),
		mcp.WithString("operation", mcp.Required(), mcp.Description("Name of the operation to call")),
		mcp.WithObject("input", mcp.Description("Raw input fields for the operation's state factory")),
		mcp.WithString("actor", mcp.Description("Identity consulted by the operation's policy gate")),
	)
}

func dryRunTool() mcp.Tool {
	return mcp.NewTool("operon.dry_run",
		mcp.WithDescription("Run an operation's dry-run sequence: re-listed steps only, side-effecting steps skipped or overridden"),
		mcp.WithString("operation", mcp.Required(), mcp.Description("Name of the operation to rehearse")),
		mcp.WithObject("input", mcp.Description("Raw input fields for the operation's state factory")),
		mcp.WithString("actor", mcp.Description("Identity consulted by a re-listed policy gate")),
	)
}

func journalTool() mcp.Tool {
	return mcp.NewTool("operon.journal",
		mcp.WithDescription("Review journaled calls: recent calls, or the event trail of one call"),
		mcp.WithString("call_id", mcp.Description("Return the full event trail of this call")),
		mcp.WithString("limit", mcp.Description("Max recent calls to return (default 50)")),
	)
}
