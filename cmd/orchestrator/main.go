// Command orchestrator is the CLI entry point: it builds the root Cobra
// command and turns any returned error into the process's exit code,
// centralizing exit-code handling the same way the pack's own CLI
// entrypoints do.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gomind-labs/orchestrator/internal/cli"
	"github.com/gomind-labs/orchestrator/telemetry"
)

func main() {
	os.Exit(run())
}

// run is split out from main so the deferred SDK shutdown actually executes
// before the process exits — os.Exit called directly inside main skips
// every deferred call.
func run() int {
	sdk, err := telemetry.ConfigureSDK("orchestrator", os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telemetry: ", err)
		return cli.ExitSystem
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sdk.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "telemetry shutdown: ", err)
		}
	}()

	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitCode(err)
	}
	return cli.ExitSuccess
}
