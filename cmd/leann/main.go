// Package main provides the entry point for the leann CLI.
package main

import (
	"fmt"
	"os"

	"github.com/leanngo/leanngo/cmd/leann/cmd"
	amerrors "github.com/leanngo/leanngo/internal/errors"
	"github.com/leanngo/leanngo/internal/logging"
)

func main() {
	cleanup, err := logging.SetupDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging setup failed: %v\n", err)
	} else {
		defer cleanup()
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, amerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
