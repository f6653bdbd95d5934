package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/operon-dev/operon/pkg/operation"
	"github.com/operon-dev/operon/pkg/schema"
)

var (
	callInput string
	callActor string
)

var callCmd = &cobra.Command{
	Use:   "call <operation>",
	Short: "Execute an operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, args[0], false)
	},
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run <operation>",
	Short: "Run an operation's dry-run sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, args[0], true)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered operations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := buildCatalog(nil, newLogger(cfg.LogLevel))
		if err != nil {
			return err
		}
		return printJSON(cmd, catalog.List())
	},
}

func init() {
	for _, c := range []*cobra.Command{callCmd, dryRunCmd} {
		c.Flags().StringVar(&callInput, "input", "{}", "raw input as a JSON object")
		c.Flags().StringVar(&callActor, "actor", "", "identity consulted by policy gates")
	}
}

func runOperation(cmd *cobra.Command, name string, dry bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	var input map[string]any
	if err := json.Unmarshal([]byte(callInput), &input); err != nil {
		return fmt.Errorf("parse --input: %w", err)
	}

	catalog, err := buildCatalog(nil, logger)
	if err != nil {
		return err
	}
	def, err := catalog.Get(name)
	if err != nil {
		return err
	}

	var opts []operation.CallOption
	if callActor != "" {
		opts = append(opts, operation.WithActor(callActor))
	}

	var result any
	if dry {
		result, err = def.DryRun(cmd.Context(), input, opts...)
	} else {
		result, err = def.Call(cmd.Context(), input, opts...)
	}
	if err != nil {
		return err
	}

	if ec := schema.CollectorOf(result); ec != nil && ec.Any() {
		return printJSON(cmd, map[string]any{
			"ok":                false,
			"validation_errors": ec.Fields(),
			"state":             result,
		})
	}
	return printJSON(cmd, map[string]any{"ok": true, "result": result})
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
