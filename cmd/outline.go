package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "List the symbols defined in a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		symbols, err := svc.Outline(args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(symbols)
		}
		emptyIndexNotice(svc)
		for _, s := range symbols {
			fmt.Printf("%d-%d\t%s\t%s\t%s\n", s.StartLine, s.EndLine, s.Kind, s.Name, s.Signature)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(outlineCmd)
}
