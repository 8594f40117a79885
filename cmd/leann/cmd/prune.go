package cmd

import (
	"github.com/spf13/cobra"

	"github.com/leanngo/leanngo/internal/index"
	"github.com/leanngo/leanngo/internal/output"
	"github.com/leanngo/leanngo/internal/store"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune <name>",
		Short: "Delete an index's embeddings file and mark it pruned",
		Long: `Deletes the embeddings file to reclaim disk space, keeping the
passage store, id map, and AnnBackend graph intact. Pruning is idempotent:
pruning an already-pruned index is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, args[0])
		},
	}
	return cmd
}

func runPrune(cmd *cobra.Command, name string) error {
	base, err := index.FindIndex(name)
	if err != nil {
		return err
	}

	meta, err := store.LoadIndexMeta(base)
	if err != nil {
		return err
	}

	if err := store.PruneEmbeddings(base); err != nil {
		return err
	}

	if !meta.IsPruned {
		meta.IsPruned = true
		if err := meta.Save(base); err != nil {
			return err
		}
	}

	output.New(cmd.OutOrStdout()).Successf("pruned index %q", name)
	return nil
}
