package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/leanngo/leanngo/internal/index"
	"github.com/leanngo/leanngo/internal/store"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <name>",
		Short: "Print an index's meta: backend, dimensions, passage count, flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, args[0])
		},
	}
	return cmd
}

func runStats(cmd *cobra.Command, name string) error {
	base, err := index.FindIndex(name)
	if err != nil {
		return err
	}

	meta, err := store.LoadIndexMeta(base)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
