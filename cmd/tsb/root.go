package main

import (
	"github.com/spf13/cobra"
)

// version is the build-time version string reported by `tsb --version`.
const version = "0.1.0"

// buildFlags are the build options recognized from the command line,
// shared by the default build command and the clean subcommand.
type buildFlags struct {
	dry                 bool
	force               bool
	verbose             bool
	watch               bool
	preserveWatchOutput bool
	singleThreaded      bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dry, "dry", false, "report what would be built without writing anything")
	cmd.Flags().BoolVar(&f.force, "force", false, "treat every project as out of date")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "emit per-project status messages and the build queue")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "after the initial build, watch for changes and rebuild affected projects")
	cmd.Flags().BoolVar(&f.preserveWatchOutput, "preserveWatchOutput", false, "don't clear the screen between watch rebuilds")
	cmd.Flags().BoolVar(&f.singleThreaded, "singleThreaded", false, "disable the compiler collaborator's internal parallelism")
}

// exitCode is set by whichever RunE actually ran; main translates it into
// the process exit status after cobra returns.
var exitCode int

func newRootCmd() *cobra.Command {
	flags := &buildFlags{}

	root := &cobra.Command{
		Use:     "tsb [projects...]",
		Short:   "Build one or more composite projects and their dependencies",
		Version: version,
		Args:    cobra.ArbitraryArgs,
		Long: `tsb orders a set of root project configuration files by their project
references, classifies each project's up-to-date status, and drives the
compiler to produce outputs only where necessary.

With no project arguments, tsb builds the project in the current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = int(runBuild(cmd, args, flags))
			return nil
		},
	}
	flags.register(root)

	root.AddCommand(newCleanCmd())
	return root
}
