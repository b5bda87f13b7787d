package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refsKind string

var refsCmd = &cobra.Command{
	Use:   "refs <name>",
	Short: "List every edge referencing a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		refs, err := svc.Refs(args[0], refsKind)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(refs)
		}
		emptyIndexNotice(svc)
		for _, r := range refs {
			fmt.Printf("%s\t%s\t%s:%d\n", r.Edge.Kind, r.Source.Name, r.Edge.FilePath, r.Edge.Line)
		}
		return nil
	},
}

func init() {
	refsCmd.Flags().StringVar(&refsKind, "kind", "", "filter to one edge kind: calls, imports, inherits, references, raises")
	rootCmd.AddCommand(refsCmd)
}
