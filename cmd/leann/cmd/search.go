package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leanngo/leanngo/internal/filter"
	"github.com/leanngo/leanngo/internal/index"
	"github.com/leanngo/leanngo/internal/output"
	"github.com/leanngo/leanngo/pkg/searcher"
)

func newSearchCmd() *cobra.Command {
	var (
		queryEmbeddingJSON string
		topK               int
		complexity         int
		hybrid             bool
		hybridAlpha        float32
		queryText          string
		filterExpr         string
	)

	cmd := &cobra.Command{
		Use:   "search <name> <query-embedding-json>",
		Short: "Search an index by vector, optionally hybrid and/or filtered",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if len(args) == 2 {
				queryEmbeddingJSON = args[1]
			}

			cfg, err := loadedConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top-k") {
				topK = cfg.Search.TopK
			}
			if !cmd.Flags().Changed("complexity") {
				complexity = cfg.Search.Complexity
			}
			if !cmd.Flags().Changed("hybrid-alpha") {
				hybridAlpha = float32(cfg.Search.HybridAlpha)
			}

			return runSearch(cmd, name, queryEmbeddingJSON, searchFlags{
				topK:        topK,
				complexity:  complexity,
				hybrid:      hybrid,
				hybridAlpha: hybridAlpha,
				queryText:   queryText,
				filterExpr:  filterExpr,
			})
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "number of results to return")
	cmd.Flags().IntVar(&complexity, "complexity", 64, "HNSW search-time ef_search")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "combine vector search with BM25 reranking")
	cmd.Flags().Float32Var(&hybridAlpha, "hybrid-alpha", 0.5, "vector-vs-bm25 weight (0=bm25-only, 1=vector-only)")
	cmd.Flags().StringVar(&queryText, "query-text", "", "query text, required for --hybrid")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "metadata filter expression")

	return cmd
}

type searchFlags struct {
	topK        int
	complexity  int
	hybrid      bool
	hybridAlpha float32
	queryText   string
	filterExpr  string
}

func runSearch(cmd *cobra.Command, name, queryEmbeddingJSON string, flags searchFlags) error {
	base, err := index.FindIndex(name)
	if err != nil {
		return err
	}

	var queryEmbedding []float32
	if err := json.Unmarshal([]byte(queryEmbeddingJSON), &queryEmbedding); err != nil {
		return fmt.Errorf("parsing query embedding: %w", err)
	}

	var f *filter.Filter
	if flags.filterExpr != "" {
		parsed, err := filter.Parse(flags.filterExpr)
		if err != nil {
			return err
		}
		f = &parsed
	}

	s, err := searcher.Open(base)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.Search(context.Background(), queryEmbedding, searcher.Options{
		TopK:        flags.topK,
		Complexity:  flags.complexity,
		Filter:      f,
		Hybrid:      flags.hybrid,
		HybridAlpha: flags.hybridAlpha,
		QueryText:   flags.queryText,
	})
	if err != nil {
		return err
	}

	output.New(cmd.ErrOrStderr()).Statusf("", "found %d result(s)", len(results))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
