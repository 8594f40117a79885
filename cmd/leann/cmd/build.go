package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leanngo/leanngo/internal/output"
	"github.com/leanngo/leanngo/pkg/indexer"
)

// passageRecord is one line of the input JSONL file: a stand-in for the
// real chunk+embed pipeline, which is out of scope for this demonstration.
type passageRecord struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Embedding []float32       `json:"embedding"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

func newBuildCmd() *cobra.Command {
	var (
		fromPath       string
		dimensions     int
		graphDegree    int
		buildEf        int
		recompute      bool
		embeddingModel string
		embeddingMode  string
	)

	cmd := &cobra.Command{
		Use:   "build <name>",
		Short: "Build a new index from a JSONL file of passage records",
		Long: `Reads a JSONL file of {"id","text","embedding","metadata"} records
and drives the streaming index builder, writing the index files under
./.leann/indexes/ with the base name <name> (<name>.meta.json,
<name>.passages.jsonl, ...).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("graph-degree") {
				graphDegree = cfg.Index.GraphDegree
			}
			if !cmd.Flags().Changed("build-complexity") {
				buildEf = cfg.Index.BuildComplexity
			}
			if !cmd.Flags().Changed("recompute") {
				recompute = cfg.Index.Recompute
			}

			return runBuild(cmd, args[0], buildOptions{
				fromPath:       fromPath,
				dimensions:     dimensions,
				graphDegree:    graphDegree,
				buildComplexity: buildEf,
				recompute:      recompute,
				embeddingModel: embeddingModel,
				embeddingMode:  embeddingMode,
			})
		},
	}

	cmd.Flags().StringVar(&fromPath, "from", "", "path to a JSONL file of passage records (required)")
	cmd.Flags().IntVar(&dimensions, "dimensions", 0, "embedding dimensionality (required)")
	cmd.Flags().IntVar(&graphDegree, "graph-degree", 16, "HNSW connectivity parameter M")
	cmd.Flags().IntVar(&buildEf, "build-complexity", 64, "HNSW build-time ef_construction")
	cmd.Flags().BoolVar(&recompute, "recompute", false, "also persist embeddings for post-prune recompute search")
	cmd.Flags().StringVar(&embeddingModel, "embedding-model", "unknown", "embedding model name recorded in index meta")
	cmd.Flags().StringVar(&embeddingMode, "embedding-mode", "local", "embedding provider kind: openai, ollama, gemini, local")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("dimensions")

	return cmd
}

type buildOptions struct {
	fromPath        string
	dimensions      int
	graphDegree     int
	buildComplexity int
	recompute       bool
	embeddingModel  string
	embeddingMode   string
}

func runBuild(cmd *cobra.Command, name string, opts buildOptions) error {
	base := filepath.Join(".leann", "indexes", name)

	f, err := os.Open(opts.fromPath)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	idx, err := indexer.New(base, opts.dimensions,
		indexer.WithGraphDegree(opts.graphDegree),
		indexer.WithBuildComplexity(opts.buildComplexity),
		indexer.WithRecompute(opts.recompute),
	)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec passageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("parsing record: %w", err)
		}

		if err := idx.AddPassage(rec.ID, rec.Text, rec.Embedding, rec.Metadata); err != nil {
			return fmt.Errorf("adding passage %q: %w", rec.ID, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}

	if err := idx.Build(opts.embeddingModel, opts.embeddingMode); err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).Successf("built index %q with %d passages", name, idx.Count())
	return nil
}
