package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsb-dev/tsb/internal/hostfs"
	"github.com/tsb-dev/tsb/internal/solution"
	"github.com/tsb-dev/tsb/internal/watch"
)

func defaultProjects(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

func runBuild(cmd *cobra.Command, args []string, flags *buildFlags) solution.ExitCode {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return solution.ExitDiagnosticsPresent
	}
	host := hostfs.NewOSHost(cwd)

	opts := solution.Options{
		Dry:                 flags.dry,
		Force:               flags.force,
		Verbose:             flags.verbose,
		PreserveWatchOutput: flags.preserveWatchOutput,
		SingleThreaded:      flags.singleThreaded,
	}
	b := solution.New(host, opts, cmd.ErrOrStderr())

	projects := defaultProjects(args)
	code := b.BuildAll(context.Background(), projects)

	if !flags.watch {
		return code
	}
	runWatch(cmd, b, host, projects)
	return solution.ExitSuccess
}

// runWatch installs filesystem watches over the just-built queue and
// drains the invalidation queue until the process is interrupted.
func runWatch(cmd *cobra.Command, b *solution.Builder, host hostfs.Host, projects []string) {
	cache, queue, ok := b.WatchTargets(projects)
	if !ok {
		return
	}

	w, err := watch.New(b, cache, func(msg string) {
		if !b.Opts().PreserveWatchOutput {
			fmt.Fprint(cmd.OutOrStdout(), "\x1bc")
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: could not start watch mode: %v\n", err)
		return
	}
	defer w.Close()

	w.Install(queue)
	w.Run(context.Background())
}
