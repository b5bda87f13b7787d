package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cartogr/cartog/internal/config"
)

var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Embedding pipeline: setup, index, and hybrid search",
}

var ragSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Print the configured embedding/rerank server URLs and model cache directory (reachability is not checked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.New()
		fmt.Printf("embed server:  %s\n", cfg.EmbedURL)
		fmt.Printf("rerank server: %s\n", cfg.RerankURL)
		fmt.Printf("model cache:   %s\n", config.ModelCacheDir())
		return nil
	},
}

var ragIndexForce bool

var ragIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed every symbol not yet embedded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := rootDir()
		store, err := openStore(root)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		engine, err := openRetrievalEngine(store, config.New())
		if err != nil {
			return fmt.Errorf("init retrieval engine: %w", err)
		}

		result, err := engine.IndexEmbeddings(cmd.Context(), ragIndexForce)
		if err != nil {
			return fmt.Errorf("index embeddings: %w", err)
		}
		if jsonOutput() {
			return printJSON(result)
		}
		fmt.Printf("embedded %d symbols (%d skipped, %d failed)\n", result.Embedded, result.Skipped, result.Failed)
		return nil
	},
}

var (
	ragSearchKind  string
	ragSearchLimit int
)

var ragSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid full-text + dense-vector search",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := rootDir()
		store, err := openStore(root)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		engine, err := openRetrievalEngine(store, config.New())
		if err != nil {
			return fmt.Errorf("init retrieval engine: %w", err)
		}

		candidates, err := engine.HybridSearch(cmd.Context(), args[0], ragSearchLimit, ragSearchKind)
		if err != nil {
			return fmt.Errorf("hybrid search: %w", err)
		}
		if jsonOutput() {
			return printJSON(candidates)
		}
		for _, c := range candidates {
			fmt.Printf("%.4f\t%s\t%s\t%s:%d\t%v\n",
				c.RankScore, c.Symbol.Kind, c.Symbol.Name, c.Symbol.FilePath, c.Symbol.StartLine, c.Sources)
		}
		return nil
	},
}

func init() {
	ragIndexCmd.Flags().BoolVar(&ragIndexForce, "force", false, "re-embed every symbol regardless of existing embeddings")
	ragSearchCmd.Flags().StringVar(&ragSearchKind, "kind", "", "filter to one symbol kind")
	ragSearchCmd.Flags().IntVar(&ragSearchLimit, "limit", 10, "max results, capped at 100")

	ragCmd.AddCommand(ragSetupCmd, ragIndexCmd, ragSearchCmd)
	rootCmd.AddCommand(ragCmd)
}
