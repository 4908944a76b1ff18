// Package main provides the entry point for the treedex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/treedex/treedex/cmd/treedex/cmd"
	"github.com/treedex/treedex/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
