package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report index-wide counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := svc.Stats()
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(stats)
		}
		fmt.Printf("files: %d\nsymbols: %d\nedges: %d (%d resolved)\n",
			stats.FileCount, stats.SymbolCount, stats.EdgeCount, stats.ResolvedEdgeCount)
		for _, p := range stats.FilesByLanguage {
			fmt.Printf("  %s: %d files\n", p.Label, p.Count)
		}
		for _, p := range stats.SymbolsByKind {
			fmt.Printf("  %s: %d symbols\n", p.Label, p.Count)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
