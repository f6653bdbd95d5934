package main

import (
	"github.com/spf13/cobra"

	"github.com/operon-dev/operon/internal/journal"
)

var (
	journalCallID string
	journalLimit  int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Review journaled calls",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		j, err := journal.Open("file:" + cfg.DBPath)
		if err != nil {
			return err
		}
		defer j.Close()
		if err := j.Migrate(cmd.Context()); err != nil {
			return err
		}

		if journalCallID != "" {
			entries, err := j.Entries(cmd.Context(), journalCallID, 0)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		}

		calls, err := j.RecentCalls(cmd.Context(), journalLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd, calls)
	},
}

func init() {
	journalCmd.Flags().StringVar(&journalCallID, "call-id", "", "print one call's full event trail")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 50, "max recent calls to list")
}
