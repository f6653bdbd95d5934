package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/operon-dev/operon/pkg/operation"
	"github.com/operon-dev/operon/pkg/schema"
)

// handleList returns every registered operation with its shape.
func (s *Server) handleList(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{
		"operations": s.catalog.List(),
		"count":      s.catalog.Count(),
	})
}

// handleDescribe returns one operation's step sequences.
func (s *Server) handleDescribe(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("operation")
	if err != nil {
		return mcp.NewToolResultError("operation is required"), nil
	}

	def, getErr := s.catalog.Get(name)
	if getErr != nil {
		return toolError(getErr), nil
	}

	steps := make([]map[string]any, 0, len(def.Steps()))
	for _, st := range def.Steps() {
		steps = append(steps, map[string]any{
			"name": st.Name,
			"kind": st.Kind.String(),
		})
	}

	return marshalResult(map[string]any{
		"name":        def.Name(),
		"steps":       steps,
		"dry_run":     def.HasDryRun(),
		"dry_steps":   def.DryStepNames(),
		"representer": def.HasRepresenter(),
	})
}

// handleCall executes an operation.
func (s *Server) handleCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.execute(ctx, req, false)
}

// handleDryRun runs an operation's dry-run sequence.
func (s *Server) handleDryRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.execute(ctx, req, true)
}

func (s *Server) execute(ctx context.Context, req mcp.CallToolRequest, dry bool) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("operation")
	if err != nil {
		return mcp.NewToolResultError("operation is required"), nil
	}
	input := mcp.ParseStringMap(req, "input", nil)

	def, getErr := s.catalog.Get(name)
	if getErr != nil {
		return toolError(getErr), nil
	}

	var opts []operation.CallOption
	if actor := req.GetString("actor", ""); actor != "" {
		opts = append(opts, operation.WithActor(actor))
	}

	var result any
	var runErr error
	if dry {
		result, runErr = def.DryRun(ctx, input, opts...)
	} else {
		result, runErr = def.Call(ctx, input, opts...)
	}
	if runErr != nil {
		return toolError(runErr), nil
	}

	// A validation halt is a normal return carrying field errors; surface
	// them so the agent can correct the input and retry.
	if ec := schema.CollectorOf(result); ec != nil && ec.Any() {
		return marshalResult(map[string]any{
			"ok":                false,
			"dry_run":           dry,
			"validation_errors": ec.Fields(),
			"state":             result,
		})
	}

	return marshalResult(map[string]any{
		"ok":      true,
		"dry_run": dry,
		"result":  result,
	})
}

// handleJournal reviews past calls.
func (s *Server) handleJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.journal == nil {
		return mcp.NewToolResultError("no journal configured"), nil
	}

	if callID := req.GetString("call_id", ""); callID != "" {
		entries, err := s.journal.Entries(ctx, callID, 0)
		if err != nil {
			return toolError(err), nil
		}
		return marshalResult(map[string]any{"call_id": callID, "entries": entries})
	}

	limit := 50
	if raw := req.GetString("limit", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return mcp.NewToolResultError("limit must be a positive integer"), nil
		}
		limit = n
	}

	calls, err := s.journal.RecentCalls(ctx, limit)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(map[string]any{"calls": calls})
}

// toolError renders engine errors with their code so agents can branch on it.
func toolError(err error) *mcp.CallToolResult {
	var pe *operation.PolicyError
	if errors.As(err, &pe) {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", schema.ErrCodeAuthorization, pe.Error()))
	}
	var oe *schema.OperonError
	if errors.As(err, &oe) {
		return mcp.NewToolResultError(oe.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
