package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchKind  string
	searchFile  string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Lexical search over symbol names",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openQueryService(rootDir())
		if err != nil {
			return err
		}
		defer store.Close()

		symbols, err := svc.Search(args[0], searchKind, searchFile, searchLimit)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(symbols)
		}
		emptyIndexNotice(svc)
		for _, s := range symbols {
			fmt.Printf("%s\t%s\t%s:%d\n", s.Kind, s.Name, s.FilePath, s.StartLine)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "filter to one symbol kind: function, class, method, variable, import")
	searchCmd.Flags().StringVar(&searchFile, "file", "", "filter to one file path")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "max results, capped at 100")
	rootCmd.AddCommand(searchCmd)
}
