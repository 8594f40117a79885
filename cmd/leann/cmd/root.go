// Package cmd provides the CLI commands for the leann retrieval-core
// demonstration tool. It exercises StreamingIndexBuilder and the searcher
// façades end to end without implementing chunking, embedding, or the MCP
// service layer — those remain external collaborators.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leanngo/leanngo/pkg/version"
)

// NewRootCmd creates the root command for the leann CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leann",
		Short:   "Local file-backed retrieval core",
		Long:    `leann builds and queries a local, file-backed semantic index.`,
		Version: version.Version,
	}
	cmd.SetVersionTemplate("leann version {{.Version}}\n")

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newPruneCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
