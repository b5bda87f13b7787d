package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var impactDepth int

var impactCmd = &cobra.Command{
	Use:   "impact <name>",
	Short: "Compute the transitive set of symbols affected by a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := svc.Impact(args[0], impactDepth)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(entries)
		}
		emptyIndexNotice(svc)
		for _, e := range entries {
			fmt.Printf("[depth %d] %s\t%s:%d\n", e.Depth, e.Edge.SourceID, e.Edge.FilePath, e.Edge.Line)
		}
		return nil
	},
}

func init() {
	impactCmd.Flags().IntVar(&impactDepth, "depth", 3, "traversal depth, capped at 10")
	rootCmd.AddCommand(impactCmd)
}
