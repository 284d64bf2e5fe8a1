package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsb-dev/tsb/internal/hostfs"
	"github.com/tsb-dev/tsb/internal/solution"
)

func newCleanCmd() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "clean [projects...]",
		Short: "Delete the outputs of one or more composite projects and their dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = int(runClean(cmd, args, flags))
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.dry, "dry", false, "report what would be deleted without deleting anything")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "emit per-project status messages and the build queue")
	return cmd
}

func runClean(cmd *cobra.Command, args []string, flags *buildFlags) solution.ExitCode {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return solution.ExitDiagnosticsPresent
	}
	host := hostfs.NewOSHost(cwd)
	opts := solution.Options{Dry: flags.dry, Verbose: flags.verbose}
	b := solution.New(host, opts, cmd.ErrOrStderr())
	return b.CleanAll(defaultProjects(args))
}
