// Package mcpsrv exposes the query facade over the Model Context Protocol
// so editors and AI assistants can drive structural and hybrid search
// queries the same way the CLI does: one mcp.AddTool call per tool, a
// typed handler closure per operation, all read-only.
package mcpsrv

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cartogr/cartog/internal/query"
)

// Version is set by cmd at build time via ldflags.
var Version = "dev"

// NewServer builds an MCP server exposing cartog's read-only query tools
// over svc. The caller is responsible for running it against a transport
// (stdio, in this module's case — see cmd/serve.go).
func NewServer(svc *query.Service) *mcp.Server {
	return NewServerWithRoot(svc, ".")
}

// NewServerWithRoot builds the same server as NewServer, additionally
// enabling the deps_external tool to scan lockfiles under root.
func NewServerWithRoot(svc *query.Service, root string) *mcp.Server {
	impl := &mcp.Implementation{Name: "cartog", Version: Version}
	server := mcp.NewServer(impl, nil)
	registerTools(server, svc)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deps_external",
		Description: "List third-party dependencies parsed from npm/Python/Rust lockfiles found under the indexing root.",
	}, depsExternalHandler(root))

	return server
}

func registerTools(server *mcp.Server, svc *query.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "outline",
		Description: "List every symbol defined in a file, ordered by start line, with kind, name, signature, and line ranges.",
	}, outlineHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "callees",
		Description: "List the outgoing function/method calls made by the named symbol.",
	}, calleesHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "callers",
		Description: "List the symbols that call the named symbol (the inverse of callees).",
	}, callersHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refs",
		Description: "List every edge referencing the named symbol, optionally filtered to one edge kind (calls, imports, inherits, references, raises).",
	}, refsHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "impact",
		Description: "Compute the transitive set of symbols that reference the named symbol, up to a depth bound (default 3, max 10).",
	}, impactHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "hierarchy",
		Description: "List (child, parent) inheritance pairs naming the given class at either endpoint.",
	}, hierarchyHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deps",
		Description: "List the import edges recorded for a file.",
	}, depsHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Lexical, non-semantic search over symbol names: exact, then prefix, then substring match, case-insensitive.",
	}, searchHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rag_search",
		Description: "Hybrid full-text plus dense-vector search over symbol content, fused with Reciprocal Rank Fusion and optionally cross-encoder re-ranked.",
	}, ragSearchHandler(svc))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Report index-wide counters: file/symbol/edge counts, resolved-edge count, and per-language/per-kind breakdowns.",
	}, statsHandler(svc))
}

// emptyIndexNote returns the "run index first" hint whenever the store has
// never ingested a file, without paying for a full Stats query.
func emptyIndexNote(ctx context.Context, svc *query.Service) string {
	empty, err := svc.IsEmpty()
	if err != nil || !empty {
		return ""
	}
	return query.EmptyIndexHint
}

func toolError(op string, err error) error {
	return fmt.Errorf("mcpsrv: %s: %w", op, err)
}
