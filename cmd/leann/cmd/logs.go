package cmd

import (
	"regexp"

	"github.com/spf13/cobra"

	"github.com/leanngo/leanngo/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		level   string
		pattern string
		lines   int
		noColor bool
		follow  bool
	)

	cmd := &cobra.Command{
		Use:   "logs [path]",
		Short: "Tail the leann CLI's own log file",
		Long: `Reads the structured JSON log leann writes to ~/.leann/logs/leann.log
(or the given path) and prints the last N entries, optionally filtering by
level or a regexp pattern, and following new writes with --follow.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var explicit string
			if len(args) == 1 {
				explicit = args[0]
			}
			return runLogs(cmd, explicit, logsFlags{level, pattern, lines, noColor, follow})
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "minimum level to show: debug, info, warn, error")
	cmd.Flags().StringVar(&pattern, "pattern", "", "regexp filter applied to each raw log line")
	cmd.Flags().IntVar(&lines, "lines", 50, "number of trailing entries to show")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored level labels")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep reading as the log file grows")

	return cmd
}

type logsFlags struct {
	level   string
	pattern string
	lines   int
	noColor bool
	follow  bool
}

func runLogs(cmd *cobra.Command, explicitPath string, flags logsFlags) error {
	path, err := logging.FindLogFile(explicitPath)
	if err != nil {
		return err
	}

	var pat *regexp.Regexp
	if flags.pattern != "" {
		pat, err = regexp.Compile(flags.pattern)
		if err != nil {
			return err
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   flags.level,
		Pattern: pat,
		NoColor: flags.noColor,
	}, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, flags.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !flags.follow {
		return nil
	}

	out := make(chan logging.LogEntry)
	done := make(chan error, 1)
	go func() { done <- viewer.Follow(cmd.Context(), path, out) }()

	for {
		select {
		case entry := <-out:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-done:
			return err
		}
	}
}
