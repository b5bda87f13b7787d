package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cartogr/cartog/internal/graph/manifest"
)

var depsExternal bool

var depsCmd = &cobra.Command{
	Use:   "deps [file]",
	Short: "List the import edges recorded for a file, or external dependencies with --external",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if depsExternal {
			return runExternalDeps()
		}
		if len(args) != 1 {
			return fmt.Errorf("deps: a file path is required unless --external is set")
		}

		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		edges, err := svc.Deps(args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(edges)
		}
		emptyIndexNotice(svc)
		for _, e := range edges {
			fmt.Printf("%s\n", e.TargetName)
		}
		return nil
	},
}

// runExternalDeps scans the indexing root for npm/Python/Rust lockfiles
// and reports third-party dependency rows alongside the symbol graph,
// ignoring the file argument (it applies to the whole tree, not one file).
func runExternalDeps() error {
	results, err := manifest.ScanDirectory(rootDir(), manifest.AllScanners())
	if err != nil {
		return fmt.Errorf("scan manifests: %w", err)
	}
	if jsonOutput() {
		return printJSON(results)
	}
	for _, r := range results {
		fmt.Printf("%s (%s): %d dependencies\n", r.Lockfile, r.Ecosystem, len(r.Dependencies))
		for _, d := range r.Dependencies {
			fmt.Printf("  %s@%s\n", d.Name, d.Version)
		}
	}
	return nil
}

func init() {
	depsCmd.Flags().BoolVar(&depsExternal, "external", false, "report third-party dependencies from lockfiles instead of import edges")
	rootCmd.AddCommand(depsCmd)
}
