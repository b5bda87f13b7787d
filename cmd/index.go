package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cartogr/cartog/internal/indexer"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or rebuild the code graph index",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := rootDir()
		if len(args) == 1 {
			root = args[0]
		}

		registry, err := newRegistry()
		if err != nil {
			return fmt.Errorf("init language registry: %w", err)
		}
		store, err := openStore(root)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		result, err := indexer.IndexDirectory(store, registry, root, indexForce)
		if err != nil {
			return fmt.Errorf("index directory: %w", err)
		}

		if jsonOutput() {
			return printJSON(result)
		}
		fmt.Printf("indexed %d files (%d skipped, %d removed): +%d symbols, +%d edges (%d resolved)\n",
			result.FilesIndexed, result.FilesSkipped, result.FilesRemoved,
			result.SymbolsAdded, result.EdgesAdded, result.EdgesResolved)
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "re-extract every file regardless of change detection")
	rootCmd.AddCommand(indexCmd)
}
