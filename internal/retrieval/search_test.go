package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartogr/cartog/internal/graph"
	"github.com/cartogr/cartog/internal/indexer"
	"github.com/cartogr/cartog/internal/languages"
)

func writeSource(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// fakeEncoder returns a deterministic bag-of-words vector so tests don't
// depend on a running TEI server: dimension i is set when the i-th tracked
// term appears in the text.
type fakeEncoder struct {
	terms []string
}

func (f *fakeEncoder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(f.terms))
		for j, term := range f.terms {
			if strings.Contains(lower, term) {
				vec[j] = 1
			}
		}
		out[i] = normalize(vec)
	}
	return out, nil
}

func newHybridTestStore(t *testing.T) *graph.Store {
	t.Helper()
	root := t.TempDir()
	source := "def validate_token(token):\n    return True\n\n\ndef send_email(to, subject):\n    return None\n\n\ndef refresh_credentials():\n    validate_token(\"x\")\n"
	require.NoError(t, writeSource(filepath.Join(root, "auth.py"), source))

	store, err := graph.Open(filepath.Join(t.TempDir(), ".cartog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry, err := languages.NewRegistry()
	require.NoError(t, err)
	_, err = indexer.IndexDirectory(store, registry, root, true)
	require.NoError(t, err)
	return store
}

// TestHybridSearchRanksExactMatchFirst covers the "validate token" scenario:
// the lexical match should rank validate_token first and its sources should
// include "fts".
func TestHybridSearchRanksExactMatchFirst(t *testing.T) {
	store := newHybridTestStore(t)
	engine := &Engine{Store: store}

	results, err := engine.HybridSearch(context.Background(), "validate token", 10, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "validate_token", results[0].Symbol.Name)
	require.Contains(t, results[0].Sources, "fts")

	for _, r := range results {
		require.NotEqual(t, "send_email", r.Symbol.Name)
	}
}

// TestHybridSearchKindFilterAppliesAfterFusion covers the limit+kind-filter
// scenario: every returned result must be a function, and the filter must
// not have starved fusion of candidates before the limit was applied.
func TestHybridSearchKindFilterAppliesAfterFusion(t *testing.T) {
	store := newHybridTestStore(t)
	engine := &Engine{Store: store}

	results, err := engine.HybridSearch(context.Background(), "token email credentials", 3, "function")
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 3)
	for _, r := range results {
		require.Equal(t, graph.SymbolFunction, r.Symbol.Kind)
	}
}

func TestHybridSearchUsesVectorFallbackWhenConfigured(t *testing.T) {
	store := newHybridTestStore(t)
	engine := &Engine{Store: store, Encoder: &fakeEncoder{terms: []string{"token", "email", "credentials"}}}

	ids, err := store.SymbolIDsWithoutEmbedding()
	require.NoError(t, err)
	contentByID, err := store.ContentFor(ids)
	require.NoError(t, err)
	symbols, err := store.SymbolsByID(ids)
	require.NoError(t, err)

	vectors := make(map[string][]float32, len(ids))
	for _, id := range ids {
		row := contentByID[id]
		vec, err := engine.Encoder.Embed(context.Background(), []string{EmbeddingText(row.Header, row.Content)})
		require.NoError(t, err)
		vectors[id] = vec[0]
		_ = symbols[id]
	}
	require.NoError(t, store.PutEmbeddings(vectors))

	results, err := engine.HybridSearch(context.Background(), "credentials", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Contains(t, results[0].Sources, "vector")
}

func TestRRFMergeCombinesRankedLists(t *testing.T) {
	fused := rrfMerge([]string{"a", "b", "c"}, []string{"b", "a"})
	require.Equal(t, "a", fused[0])
	require.Contains(t, fused, "c")
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{0.6, 0.8}
	require.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6)
}

func TestCosineSimilarityOrthogonalVectorsIsZero(t *testing.T) {
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}
