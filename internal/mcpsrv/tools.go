package mcpsrv

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cartogr/cartog/internal/graph"
	"github.com/cartogr/cartog/internal/graph/manifest"
	"github.com/cartogr/cartog/internal/query"
	"github.com/cartogr/cartog/internal/retrieval"
)

// --- outline ---

type OutlineParams struct {
	File string `json:"file" jsonschema:"the file path to outline, relative to the indexing root"`
}

type OutlineResponse struct {
	File    string          `json:"file"`
	Symbols []SymbolPayload `json:"symbols"`
}

func outlineHandler(svc *query.Service) mcp.ToolHandlerFor[OutlineParams, OutlineResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[OutlineParams]) (*mcp.CallToolResultFor[OutlineResponse], error) {
		args := params.Arguments
		symbols, err := svc.Outline(args.File)
		if err != nil {
			return nil, toolError("outline", err)
		}
		resp := OutlineResponse{File: args.File, Symbols: toSymbolPayloads(symbols)}
		return textResult(fmt.Sprintf("%d symbols in %s%s", len(symbols), args.File, emptyIndexNote(ctx, svc)), resp), nil
	}
}

// --- callees ---

type NameParams struct {
	Name string `json:"name" jsonschema:"the symbol name to query"`
}

type EdgeListResponse struct {
	Edges []EdgePayload `json:"edges"`
}

func calleesHandler(svc *query.Service) mcp.ToolHandlerFor[NameParams, EdgeListResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[NameParams]) (*mcp.CallToolResultFor[EdgeListResponse], error) {
		edges, err := svc.Callees(params.Arguments.Name)
		if err != nil {
			return nil, toolError("callees", err)
		}
		resp := EdgeListResponse{Edges: toEdgePayloads(edges)}
		return textResult(fmt.Sprintf("%d outgoing calls from %s", len(edges), params.Arguments.Name), resp), nil
	}
}

// --- callers ---

type RefRowListResponse struct {
	Refs []RefPayload `json:"refs"`
}

func callersHandler(svc *query.Service) mcp.ToolHandlerFor[NameParams, RefRowListResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[NameParams]) (*mcp.CallToolResultFor[RefRowListResponse], error) {
		refs, err := svc.Callers(params.Arguments.Name)
		if err != nil {
			return nil, toolError("callers", err)
		}
		resp := RefRowListResponse{Refs: toRefPayloads(refs)}
		return textResult(fmt.Sprintf("%d callers of %s", len(refs), params.Arguments.Name), resp), nil
	}
}

// --- refs ---

type RefsParams struct {
	Name string `json:"name" jsonschema:"the symbol name to query"`
	Kind string `json:"kind,omitempty" jsonschema:"optional edge kind filter: calls, imports, inherits, references, raises"`
}

func refsHandler(svc *query.Service) mcp.ToolHandlerFor[RefsParams, RefRowListResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[RefsParams]) (*mcp.CallToolResultFor[RefRowListResponse], error) {
		args := params.Arguments
		refs, err := svc.Refs(args.Name, args.Kind)
		if err != nil {
			return nil, toolError("refs", err)
		}
		resp := RefRowListResponse{Refs: toRefPayloads(refs)}
		return textResult(fmt.Sprintf("%d references to %s", len(refs), args.Name), resp), nil
	}
}

// --- impact ---

type ImpactParams struct {
	Name  string `json:"name" jsonschema:"the seed symbol name"`
	Depth int    `json:"depth,omitempty" jsonschema:"traversal depth, default 3, max 10"`
}

type ImpactResponse struct {
	Entries []ImpactEntryPayload `json:"entries"`
}

type ImpactEntryPayload struct {
	Edge  EdgePayload `json:"edge"`
	Depth int         `json:"depth"`
}

func impactHandler(svc *query.Service) mcp.ToolHandlerFor[ImpactParams, ImpactResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[ImpactParams]) (*mcp.CallToolResultFor[ImpactResponse], error) {
		args := params.Arguments
		entries, err := svc.Impact(args.Name, args.Depth)
		if err != nil {
			return nil, toolError("impact", err)
		}
		payload := make([]ImpactEntryPayload, len(entries))
		for i, e := range entries {
			payload[i] = ImpactEntryPayload{Edge: toEdgePayload(e.Edge), Depth: e.Depth}
		}
		resp := ImpactResponse{Entries: payload}
		return textResult(fmt.Sprintf("%d symbols transitively affect %s", len(entries), args.Name), resp), nil
	}
}

// --- hierarchy ---

type HierarchyResponse struct {
	Pairs []HierarchyPayload `json:"pairs"`
}

type HierarchyPayload struct {
	Child  string `json:"child"`
	Parent string `json:"parent"`
}

func hierarchyHandler(svc *query.Service) mcp.ToolHandlerFor[NameParams, HierarchyResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[NameParams]) (*mcp.CallToolResultFor[HierarchyResponse], error) {
		pairs, err := svc.Hierarchy(params.Arguments.Name)
		if err != nil {
			return nil, toolError("hierarchy", err)
		}
		payload := make([]HierarchyPayload, len(pairs))
		for i, p := range pairs {
			payload[i] = HierarchyPayload{Child: p.Child, Parent: p.Parent}
		}
		resp := HierarchyResponse{Pairs: payload}
		return textResult(fmt.Sprintf("%d inheritance pairs for %s", len(pairs), params.Arguments.Name), resp), nil
	}
}

// --- deps ---

func depsHandler(svc *query.Service) mcp.ToolHandlerFor[OutlineParams, EdgeListResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[OutlineParams]) (*mcp.CallToolResultFor[EdgeListResponse], error) {
		edges, err := svc.Deps(params.Arguments.File)
		if err != nil {
			return nil, toolError("deps", err)
		}
		resp := EdgeListResponse{Edges: toEdgePayloads(edges)}
		return textResult(fmt.Sprintf("%d import edges in %s", len(edges), params.Arguments.File), resp), nil
	}
}

// --- search ---

type SearchParams struct {
	Query string `json:"query" jsonschema:"the search query"`
	Kind  string `json:"kind,omitempty" jsonschema:"optional symbol kind filter: function, class, method, variable, import"`
	File  string `json:"file,omitempty" jsonschema:"optional file path filter"`
	Limit int    `json:"limit,omitempty" jsonschema:"max results, default 20, capped at 100"`
}

type SearchResponse struct {
	Symbols []SymbolPayload `json:"symbols"`
}

func searchHandler(svc *query.Service) mcp.ToolHandlerFor[SearchParams, SearchResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[SearchParams]) (*mcp.CallToolResultFor[SearchResponse], error) {
		args := params.Arguments
		symbols, err := svc.Search(args.Query, args.Kind, args.File, args.Limit)
		if err != nil {
			return nil, toolError("search", err)
		}
		resp := SearchResponse{Symbols: toSymbolPayloads(symbols)}
		return textResult(fmt.Sprintf("%d matches for %q", len(symbols), args.Query), resp), nil
	}
}

// --- rag_search ---

type RagSearchParams struct {
	Query string `json:"query" jsonschema:"the natural-language or identifier-like search query"`
	Kind  string `json:"kind,omitempty" jsonschema:"optional symbol kind filter"`
	Limit int    `json:"limit,omitempty" jsonschema:"max results, default 10, capped at 100"`
}

type RagSearchResponse struct {
	Results []RagResultPayload `json:"results"`
}

type RagResultPayload struct {
	Symbol     SymbolPayload `json:"symbol"`
	Sources    []string      `json:"sources"`
	Score      float64       `json:"score"`
	Reranked   bool          `json:"reranked"`
}

func ragSearchHandler(svc *query.Service) mcp.ToolHandlerFor[RagSearchParams, RagSearchResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[RagSearchParams]) (*mcp.CallToolResultFor[RagSearchResponse], error) {
		args := params.Arguments
		candidates, err := svc.HybridSearch(ctx, args.Query, args.Limit, args.Kind)
		if err != nil {
			return nil, toolError("rag_search", err)
		}
		resp := RagSearchResponse{Results: toRagPayloads(candidates)}
		return textResult(fmt.Sprintf("%d hybrid matches for %q", len(candidates), args.Query), resp), nil
	}
}

// --- stats ---

type StatsParams struct{}

type StatsResponse struct {
	Files           int                  `json:"files"`
	Symbols         int                  `json:"symbols"`
	Edges           int                  `json:"edges"`
	ResolvedEdges   int                  `json:"resolved_edges"`
	FilesByLanguage []graph.CountPair    `json:"files_by_language"`
	SymbolsByKind   []graph.CountPair    `json:"symbols_by_kind"`
}

func statsHandler(svc *query.Service) mcp.ToolHandlerFor[StatsParams, StatsResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[StatsParams]) (*mcp.CallToolResultFor[StatsResponse], error) {
		stats, err := svc.Stats()
		if err != nil {
			return nil, toolError("stats", err)
		}
		resp := StatsResponse{
			Files: stats.FileCount, Symbols: stats.SymbolCount, Edges: stats.EdgeCount,
			ResolvedEdges: stats.ResolvedEdgeCount, FilesByLanguage: stats.FilesByLanguage,
			SymbolsByKind: stats.SymbolsByKind,
		}
		return textResult(fmt.Sprintf("%d files, %d symbols, %d edges (%d resolved)",
			stats.FileCount, stats.SymbolCount, stats.EdgeCount, stats.ResolvedEdgeCount), resp), nil
	}
}

// --- deps_external ---

type DepsExternalParams struct{}

type DepsExternalResponse struct {
	Lockfiles []LockfilePayload `json:"lockfiles"`
}

type LockfilePayload struct {
	Lockfile     string               `json:"lockfile"`
	Ecosystem    string               `json:"ecosystem"`
	Dependencies []DependencyPayload  `json:"dependencies"`
}

type DependencyPayload struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
	Dev       bool   `json:"dev,omitempty"`
}

// depsExternalHandler scans root for npm/Python/Rust lockfiles with
// manifest.AllScanners and reports every dependency found. Unlike the
// graph-backed tools above, this one never touches the store: the
// lockfile scan runs fresh each call since lockfiles change independently
// of when the code graph was last indexed.
func depsExternalHandler(root string) mcp.ToolHandlerFor[DepsExternalParams, DepsExternalResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[DepsExternalParams]) (*mcp.CallToolResultFor[DepsExternalResponse], error) {
		results, err := manifest.ScanDirectory(root, manifest.AllScanners())
		if err != nil {
			return nil, toolError("deps_external", err)
		}
		payload := make([]LockfilePayload, len(results))
		total := 0
		for i, r := range results {
			deps := make([]DependencyPayload, len(r.Dependencies))
			for j, d := range r.Dependencies {
				deps[j] = DependencyPayload{Name: d.Name, Version: d.Version, Ecosystem: d.Ecosystem, Dev: d.Dev}
			}
			payload[i] = LockfilePayload{Lockfile: r.Lockfile, Ecosystem: r.Ecosystem, Dependencies: deps}
			total += len(deps)
		}
		resp := DepsExternalResponse{Lockfiles: payload}
		return textResult(fmt.Sprintf("%d external dependencies across %d lockfiles", total, len(payload)), resp), nil
	}
}

// --- shared payload shapes and conversions ---

type SymbolPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	FilePath   string `json:"file_path"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	ParentID   string `json:"parent_id,omitempty"`
	Signature  string `json:"signature,omitempty"`
	Visibility string `json:"visibility"`
	IsAsync    bool   `json:"is_async"`
	Docstring  string `json:"docstring,omitempty"`
}

func toSymbolPayload(s graph.Symbol) SymbolPayload {
	return SymbolPayload{
		ID: s.ID, Name: s.Name, Kind: string(s.Kind), FilePath: s.FilePath,
		StartLine: s.StartLine, EndLine: s.EndLine, ParentID: s.ParentID,
		Signature: s.Signature, Visibility: string(s.Visibility), IsAsync: s.IsAsync,
		Docstring: s.Docstring,
	}
}

func toSymbolPayloads(symbols []graph.Symbol) []SymbolPayload {
	out := make([]SymbolPayload, len(symbols))
	for i, s := range symbols {
		out[i] = toSymbolPayload(s)
	}
	return out
}

type EdgePayload struct {
	SourceID   string `json:"source_id"`
	TargetName string `json:"target_name"`
	TargetID   string `json:"target_id,omitempty"`
	Kind       string `json:"kind"`
	FilePath   string `json:"file_path"`
	Line       int    `json:"line"`
}

func toEdgePayload(e graph.Edge) EdgePayload {
	return EdgePayload{
		SourceID: e.SourceID, TargetName: e.TargetName, TargetID: e.TargetID,
		Kind: string(e.Kind), FilePath: e.FilePath, Line: e.Line,
	}
}

func toEdgePayloads(edges []graph.Edge) []EdgePayload {
	out := make([]EdgePayload, len(edges))
	for i, e := range edges {
		out[i] = toEdgePayload(e)
	}
	return out
}

type RefPayload struct {
	Edge   EdgePayload   `json:"edge"`
	Source SymbolPayload `json:"source"`
}

func toRefPayloads(rows []graph.RefRow) []RefPayload {
	out := make([]RefPayload, len(rows))
	for i, r := range rows {
		out[i] = RefPayload{Edge: toEdgePayload(r.Edge), Source: toSymbolPayload(r.Source)}
	}
	return out
}

func toRagPayloads(candidates []retrieval.Candidate) []RagResultPayload {
	out := make([]RagResultPayload, len(candidates))
	for i, c := range candidates {
		out[i] = RagResultPayload{
			Symbol: toSymbolPayload(c.Symbol), Sources: c.Sources,
			Score: c.RankScore, Reranked: c.RerankedBy,
		}
	}
	return out
}

func textResult[T any](text string, structured T) *mcp.CallToolResultFor[T] {
	return &mcp.CallToolResultFor[T]{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: structured,
	}
}
