package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartogr/cartog/internal/config"
	"github.com/cartogr/cartog/internal/retrieval"
	"github.com/cartogr/cartog/internal/watch"
)

var (
	watchDebounce time.Duration
	watchRAG      bool
	watchRAGDelay time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Live re-index the directory on filesystem changes",
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

		var engine *retrieval.Engine
		if watchRAG {
			engine, err = openRetrievalEngine(store, config.New())
			if err != nil {
				return fmt.Errorf("init retrieval engine: %w", err)
			}
		}

		wcfg := watch.Config{Root: root, Debounce: watchDebounce, RAG: watchRAG, RAGDelay: watchRAGDelay}
		loop, err := watch.New(wcfg, store, registry, engine)
		if err != nil {
			return fmt.Errorf("start watch loop: %w", err)
		}

		loop.InstallSIGINT()
		fmt.Printf("watching %s (debounce=%s)\n", root, watchDebounce)
		return loop.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "filesystem event coalescing window")
	watchCmd.Flags().BoolVar(&watchRAG, "rag", false, "refresh embeddings for newly indexed symbols")
	watchCmd.Flags().DurationVar(&watchRAGDelay, "rag-delay", 30*time.Second, "delay after last index before refreshing embeddings")
	rootCmd.AddCommand(watchCmd)
	_ = viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("watch.rag_delay", watchCmd.Flags().Lookup("rag-delay"))
}
