package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "matchnode",
		Usage: "GeoTrust match contract client and session watcher",
		Commands: []*cli.Command{
			watchCmd,
			sessionCmd,
			sessionsCmd,
			policyCmd,
			callCmd,
			createSessionCmd,
			joinSessionCmd,
			resolveMatchCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err) // nolint:errcheck
		os.Exit(exitCode(err))
	}
}
