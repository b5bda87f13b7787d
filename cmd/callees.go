package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var calleesCmd = &cobra.Command{
	Use:   "callees <name>",
	Short: "List the outgoing calls made by a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		edges, err := svc.Callees(args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(edges)
		}
		emptyIndexNotice(svc)
		for _, e := range edges {
			fmt.Printf("%s\t%s:%d\n", e.TargetName, e.FilePath, e.Line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calleesCmd)
}
