package cmd

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/cartogr/cartog/internal/config"
	"github.com/cartogr/cartog/internal/mcpsrv"
	"github.com/cartogr/cartog/internal/query"
	"github.com/cartogr/cartog/internal/retrieval"
	"github.com/cartogr/cartog/internal/watch"
)

var (
	serveWatch bool
	serveRAG   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the query facade as an MCP server over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := rootDir()

		store, err := openStore(root)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		var engine *retrieval.Engine
		if serveRAG {
			engine, err = openRetrievalEngine(store, config.New())
			if err != nil {
				return fmt.Errorf("init retrieval engine: %w", err)
			}
		}

		svc := query.New(store, engine)
		mcpsrv.Version = version

		if serveWatch {
			registry, err := newRegistry()
			if err != nil {
				return fmt.Errorf("init language registry: %w", err)
			}
			watchStore, err := openStore(root)
			if err != nil {
				return fmt.Errorf("open watch store: %w", err)
			}
			defer watchStore.Close()
			loop, err := watch.New(watch.Config{Root: root, RAG: serveRAG}, watchStore, registry, engine)
			if err != nil {
				return fmt.Errorf("start watch loop: %w", err)
			}
			go func() {
				_ = loop.Run(cmd.Context())
			}()
			defer loop.Stop()
		}

		server := mcpsrv.NewServerWithRoot(svc, root)
		return server.Run(cmd.Context(), mcp.NewStdioTransport())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "also run the live re-index loop alongside the server")
	serveCmd.Flags().BoolVar(&serveRAG, "rag", false, "enable hybrid search and embedding refresh")
	rootCmd.AddCommand(serveCmd)
}
