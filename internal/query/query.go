// Package query is a thin, uniform facade over internal/graph and
// internal/retrieval: one read-only entry point per query operation,
// consumed by the CLI and MCP server layers. Service adds no locking of
// its own: every method goes straight to the shared Store, and neither
// Service nor the MCP server serializes concurrent calls.
package query

import (
	"context"
	"fmt"

	"github.com/cartogr/cartog/internal/graph"
	"github.com/cartogr/cartog/internal/retrieval"
)

// ErrEmptyQuery is returned by entry points that reject an empty search
// string before ever touching the store.
var ErrEmptyQuery = fmt.Errorf("query: search query must not be empty")

// maxLimit is the hard cap on any client-supplied result limit.
const maxLimit = 100

// Service composes the graph store with the optional hybrid retrieval
// engine and exposes one method per read operation.
type Service struct {
	Store     *graph.Store
	Retrieval *retrieval.Engine // nil when no embedding/rerank servers are configured
}

// New builds a query Service over an already-open store. retrieval may be
// nil if hybrid search is not configured; HybridSearch then returns an
// error instead of searching.
func New(store *graph.Store, ret *retrieval.Engine) *Service {
	return &Service{Store: store, Retrieval: ret}
}

// EmptyIndexHint is returned alongside an empty result shape when no files
// have ever been indexed.
const EmptyIndexHint = "no files indexed yet; run `cartog index` first"

// IsEmpty reports whether the index has never ingested a single file. It
// loads the full list of indexed file paths (one query, without the Stats
// aggregation) and checks its length; it is not a single-row existence probe.
func (s *Service) IsEmpty() (bool, error) {
	paths, err := s.Store.AllFilePaths()
	if err != nil {
		return false, err
	}
	return len(paths) == 0, nil
}

// Outline returns every symbol in filePath, ordered by start_line.
func (s *Service) Outline(filePath string) ([]graph.Symbol, error) {
	if filePath == "" {
		return nil, fmt.Errorf("query: file path must not be empty")
	}
	return s.Store.Outline(filePath)
}

// Callees returns the outgoing `calls` edges of the symbol named name.
func (s *Service) Callees(name string) ([]graph.Edge, error) {
	if name == "" {
		return nil, ErrEmptyQuery
	}
	return s.Store.Callees(name)
}

// Callers returns every edge referencing name, restricted to `calls` edges
// — the inverse view of Callees.
func (s *Service) Callers(name string) ([]graph.RefRow, error) {
	if name == "" {
		return nil, ErrEmptyQuery
	}
	return s.Store.Refs(name, string(graph.EdgeCalls))
}

// Refs returns every edge referencing name, optionally restricted to one
// edge kind. An empty kindFilter means "any kind".
func (s *Service) Refs(name string, kindFilter string) ([]graph.RefRow, error) {
	if name == "" {
		return nil, ErrEmptyQuery
	}
	if kindFilter != "" && graph.ParseEdgeKind(kindFilter) != graph.EdgeKind(kindFilter) {
		return nil, fmt.Errorf("query: unknown edge kind %q", kindFilter)
	}
	return s.Store.Refs(name, kindFilter)
}

// defaultImpactDepth and maxImpactDepth bound the impact traversal:
// default 3, capped at 10.
const (
	defaultImpactDepth = 3
	maxImpactDepth     = 10
)

// Impact performs the transitive-impact BFS from seed, clamping depth into
// [1, maxImpactDepth] and substituting defaultImpactDepth for a zero value.
func (s *Service) Impact(seed string, depth int) ([]graph.ImpactEntry, error) {
	if seed == "" {
		return nil, ErrEmptyQuery
	}
	if depth <= 0 {
		depth = defaultImpactDepth
	}
	if depth > maxImpactDepth {
		depth = maxImpactDepth
	}
	return s.Store.Impact(seed, depth)
}

// Hierarchy returns (child, parent) inheritance pairs naming className at
// either endpoint.
func (s *Service) Hierarchy(className string) ([]graph.HierarchyPair, error) {
	if className == "" {
		return nil, ErrEmptyQuery
	}
	return s.Store.Hierarchy(className)
}

// Deps returns the `imports` edges recorded for filePath.
func (s *Service) Deps(filePath string) ([]graph.Edge, error) {
	if filePath == "" {
		return nil, fmt.Errorf("query: file path must not be empty")
	}
	return s.Store.FileDeps(filePath)
}

// Search performs the lexical, non-semantic structural search,
// clamping limit into [1, 100].
func (s *Service) Search(query, kindFilter, fileFilter string, limit int) ([]graph.Symbol, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if kindFilter != "" && graph.ParseSymbolKind(kindFilter) != graph.SymbolKind(kindFilter) {
		return nil, fmt.Errorf("query: unknown symbol kind %q", kindFilter)
	}
	return s.Store.Search(query, kindFilter, fileFilter, limit)
}

// HybridSearch runs the full-text + dense-vector fused search.
// It requires a configured retrieval engine; callers without
// one should fall back to plain Search.
func (s *Service) HybridSearch(ctx context.Context, query string, limit int, kindFilter string) ([]retrieval.Candidate, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.Retrieval == nil {
		return nil, fmt.Errorf("query: hybrid search unavailable: no retrieval engine configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if kindFilter != "" && graph.ParseSymbolKind(kindFilter) != graph.SymbolKind(kindFilter) {
		return nil, fmt.Errorf("query: unknown symbol kind %q", kindFilter)
	}
	return s.Retrieval.HybridSearch(ctx, query, limit, kindFilter)
}

// Stats returns index-wide counters: file/symbol/edge counts, resolved-edge
// count, and per-language/per-kind breakdowns.
func (s *Service) Stats() (graph.Stats, error) {
	return s.Store.Stats()
}
