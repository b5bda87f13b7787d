package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var callersCmd = &cobra.Command{
	Use:   "callers <name>",
	Short: "List the symbols that call a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		refs, err := svc.Callers(args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(refs)
		}
		emptyIndexNotice(svc)
		for _, r := range refs {
			fmt.Printf("%s\t%s:%d\n", r.Source.Name, r.Source.FilePath, r.Source.StartLine)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callersCmd)
}
