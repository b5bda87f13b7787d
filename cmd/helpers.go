package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/cartogr/cartog/internal/config"
	"github.com/cartogr/cartog/internal/graph"
	"github.com/cartogr/cartog/internal/languages"
	"github.com/cartogr/cartog/internal/query"
	"github.com/cartogr/cartog/internal/retrieval"
)

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

// openStore opens the fixed .cartog.db at root, creating the database file
// (and its directory) if it does not exist yet.
func openStore(root string) (*graph.Store, error) {
	return graph.Open(config.StorePath(root))
}

// openQueryService opens the store and registry needed to answer any of
// the read-only query commands, without a retrieval engine (plain Search
// only — used by the structural query commands and stats).
func openQueryService(root string) (*query.Service, *graph.Store, error) {
	store, err := openStore(root)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return query.New(store, nil), store, nil
}

// openRetrievalEngine builds a retrieval.Engine over store using the
// configured embed/rerank server URLs, for commands that need hybrid
// search (rag search, serve --rag, watch --rag).
func openRetrievalEngine(store *graph.Store, cfg config.Config) (*retrieval.Engine, error) {
	encoder, err := retrieval.NewTeiEncoder(retrieval.TeiEncoderConfig{BaseURL: cfg.EmbedURL})
	if err != nil {
		return nil, err
	}
	reranker := retrieval.NewReranker(retrieval.RerankerConfig{BaseURL: cfg.RerankURL})
	return &retrieval.Engine{Store: store, Encoder: encoder, Reranker: reranker}, nil
}

func newRegistry() (*languages.Registry, error) {
	return languages.NewRegistry()
}

func emptyIndexNotice(svc *query.Service) {
	empty, err := svc.IsEmpty()
	if err == nil && empty {
		fmt.Println(query.EmptyIndexHint)
	}
}
