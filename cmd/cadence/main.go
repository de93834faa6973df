// Package main provides the entry point for the cadence CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mrz1836/cadence/internal/cli"
)

// Set via ldflags at build time.
var (
	version = "" //nolint:gochecknoglobals // ldflags target
	commit  = "" //nolint:gochecknoglobals // ldflags target
	date    = "" //nolint:gochecknoglobals // ldflags target
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCodeForError(err))
}
