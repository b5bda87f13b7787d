package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cartogr/cartog/internal/graph"
)

// overRetrieveLimit widens the candidate pool hybrid_search pulls from each
// of the lexical and vector rankings before fusing and re-ranking them, so
// RRF has more than just the final page to choose among.
const overRetrieveLimit = 20

// maxRerankCandidates caps how many fused candidates are sent to the
// cross-encoder; beyond this the marginal ranking improvement isn't worth
// the extra HTTP round trip latency.
const maxRerankCandidates = 50

// Candidate is one hybrid_search result: a symbol plus the provenance and
// score that produced its ranking.
type Candidate struct {
	Symbol     graph.Symbol
	Sources    []string // any of "fts", "vector"
	RRFScore   float64
	RerankedBy bool
	RankScore  float64
}

// Engine bundles the store with the optional encoder and reranker that back
// hybrid_search and IndexEmbeddings.
type Engine struct {
	Store    *graph.Store
	Encoder  Encoder
	Reranker *Reranker
}

// HybridSearch runs the combined lexical/semantic search:
// over-retrieve from full text and (if available) the dense vector index,
// fuse with Reciprocal Rank Fusion, hydrate full symbol rows, optionally
// re-rank the fused candidates with a cross-encoder, then apply the kind
// filter and limit as the final step so filtering never starves the fusion
// of candidates to choose from.
func (e *Engine) HybridSearch(ctx context.Context, query string, limit int, kindFilter string) ([]Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	retrieveLimit := limit * 3
	if retrieveLimit < overRetrieveLimit {
		retrieveLimit = overRetrieveLimit
	}

	ftsIDs, err := e.searchFTSWithFallback(query)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	if len(ftsIDs) > retrieveLimit {
		ftsIDs = ftsIDs[:retrieveLimit]
	}

	var vectorIDs []string
	if e.Encoder != nil {
		if n, err := e.Store.EmbeddingCount(); err == nil && n > 0 {
			vectorIDs, err = e.vectorSearch(ctx, query, retrieveLimit)
			if err != nil {
				vectorIDs = nil
			}
		}
	}

	fused := rrfMerge(ftsIDs, vectorIDs)
	if len(fused) == 0 {
		return nil, nil
	}

	fusedScores := rrfScores(ftsIDs, vectorIDs)
	sourcesByID := sourcesFor(ftsIDs, vectorIDs)

	symbols, err := e.Store.SymbolsByID(fused)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(fused))
	for _, id := range fused {
		sym, ok := symbols[id]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			Symbol:    sym,
			Sources:   sourcesByID[id],
			RRFScore:  fusedScores[id],
			RankScore: fusedScores[id],
		})
	}

	candidates = e.rerank(ctx, query, candidates)

	if kindFilter != "" {
		filtered := candidates[:0]
		want := graph.ParseSymbolKind(kindFilter)
		for _, c := range candidates {
			if c.Symbol.Kind == want {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// rerank caps the candidate set at maxRerankCandidates, scores it with the
// cross-encoder when one is configured and reachable, and stable-sorts
// scored candidates ahead of unscored ones -- candidates that fall outside
// the cap keep their fused ranking untouched.
func (e *Engine) rerank(ctx context.Context, query string, candidates []Candidate) []Candidate {
	if e.Reranker == nil || !e.Reranker.Available() || len(candidates) == 0 {
		return candidates
	}

	rerankCount := len(candidates)
	if rerankCount > maxRerankCandidates {
		rerankCount = maxRerankCandidates
	}
	head := candidates[:rerankCount]
	tail := candidates[rerankCount:]

	ids := make([]string, len(head))
	for i, c := range head {
		ids[i] = c.Symbol.ID
	}
	contentByID, err := e.Store.ContentFor(ids)
	if err != nil {
		return candidates
	}

	docs := make([]string, len(head))
	for i, c := range head {
		if row, ok := contentByID[c.Symbol.ID]; ok {
			docs[i] = row.Header + "\n" + row.Content
		} else {
			docs[i] = c.Symbol.Name
		}
	}

	scores, err := e.Reranker.Score(ctx, query, docs)
	if err != nil {
		return candidates
	}

	for i := range head {
		head[i].RerankedBy = true
		head[i].RankScore = scores[i]
	}

	sort.SliceStable(head, func(i, j int) bool {
		return head[i].RankScore > head[j].RankScore
	})

	return append(head, tail...)
}

// searchFTSWithFallback tries phrase, then AND, then OR matching. A strategy
// that returns rows wins; one that returns nothing (or an SQLite FTS5 syntax
// error) falls through to the next. Real storage errors propagate.
func (e *Engine) searchFTSWithFallback(query string) ([]string, error) {
	ids, err := e.Store.SearchFTSPhrase(query)
	if err != nil && !isFTSSyntaxError(err) {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}

	ids, err = e.Store.SearchFTSAnd(query)
	if err != nil && !isFTSSyntaxError(err) {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}

	return e.Store.SearchFTSOr(query)
}

func isFTSSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax error") || strings.Contains(msg, "malformed match")
}

// vectorSearch embeds query and performs a brute-force cosine-similarity
// scan over every stored embedding, returning the top limit symbol ids.
func (e *Engine) vectorSearch(ctx context.Context, query string, limit int) ([]string, error) {
	vectors, err := e.Encoder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return nil, err
	}
	queryVec := vectors[0]

	all, err := e.Store.AllEmbeddings()
	if err != nil {
		return nil, err
	}

	type scored struct {
		id    string
		score float64
	}
	results := make([]scored, 0, len(all))
	for id, vec := range all {
		results = append(results, scored{id, CosineSimilarity(queryVec, vec)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.id
	}
	return out, nil
}

func rrfScores(rankings ...[]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, ranking := range rankings {
		for rank, id := range ranking {
			scores[id] += 1.0 / (rrfK + float64(rank+1))
		}
	}
	return scores
}

func sourcesFor(ftsIDs, vectorIDs []string) map[string][]string {
	out := make(map[string][]string)
	inFTS := make(map[string]bool, len(ftsIDs))
	for _, id := range ftsIDs {
		inFTS[id] = true
	}
	inVector := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		inVector[id] = true
	}
	for id := range inFTS {
		out[id] = append(out[id], "fts")
	}
	for id := range inVector {
		out[id] = append(out[id], "vector")
	}
	return out
}
