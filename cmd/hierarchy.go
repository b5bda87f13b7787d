package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy <name>",
	Short: "List inheritance pairs naming a class at either endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		pairs, err := svc.Hierarchy(args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(pairs)
		}
		emptyIndexNotice(svc)
		for _, p := range pairs {
			fmt.Printf("%s -> %s\n", p.Child, p.Parent)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hierarchyCmd)
}
