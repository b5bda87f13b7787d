package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), ".cartog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedSymbol(t *testing.T, store *Store, path, name string, kind SymbolKind, line int) Symbol {
	t.Helper()
	sym := Symbol{
		ID:         SymbolID(path, name, line),
		Name:       name,
		Kind:       kind,
		FilePath:   path,
		StartLine:  line,
		EndLine:    line,
		StartByte:  0,
		EndByte:    0,
		Visibility: VisibilityPublic,
	}
	info := FileInfo{Path: path, Hash: "h-" + path, Language: LangPython}
	require.NoError(t, store.ReplaceFile(info, []Symbol{sym}, nil, nil))
	return sym
}

// TestSearchExactMatchOccupiesIndexZero verifies the top rank tier: an
// exact case-insensitive match always sorts first.
func TestSearchExactMatchOccupiesIndexZero(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "a.py", "validate_token_extra", SymbolFunction, 1)
	seedSymbol(t, store, "b.py", "validate_token", SymbolFunction, 1)
	seedSymbol(t, store, "c.py", "prefix_validate_token", SymbolFunction, 1)

	results, err := store.Search("validate_token", "", "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "validate_token", results[0].Name)
}

// TestSearchLimitClampsAboveHundred covers the "Search limit" invariant.
func TestSearchLimitClampsAboveHundred(t *testing.T) {
	store := newTestStore(t)
	var syms []Symbol
	for i := 0; i < 5; i++ {
		syms = append(syms, seedSymbolValue("a.py", "handler", SymbolFunction, i+1))
	}
	require.NoError(t, store.ReplaceFile(FileInfo{Path: "a.py", Hash: "h", Language: LangPython}, syms, nil, nil))

	results, err := store.Search("handler", "", "", 500)
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 100)

	results, err = store.Search("handler", "", "", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

// TestSearchWildcardCharactersAreLiteral covers the "Wildcard literals"
// invariant: a query containing % or _ must not behave as a SQL wildcard.
func TestSearchWildcardCharactersAreLiteral(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "a.py", "has_underscore", SymbolFunction, 1)
	seedSymbol(t, store, "b.py", "hasXunderscore", SymbolFunction, 1)

	results, err := store.Search("has_underscore", "", "", 10)
	require.NoError(t, err)
	var names []string
	for _, r := range results {
		names = append(names, r.Name)
	}
	require.Contains(t, names, "has_underscore")
	require.NotContains(t, names, "hasXunderscore")
}

func TestSearchKindFilterAppliesBeforeLimit(t *testing.T) {
	store := newTestStore(t)
	var fns, classes []Symbol
	for i := 0; i < 5; i++ {
		fns = append(fns, seedSymbolValue("a.py", "handler_fn", SymbolFunction, i+1))
		classes = append(classes, seedSymbolValue("b.py", "handler_fn", SymbolClass, i+1))
	}
	require.NoError(t, store.ReplaceFile(FileInfo{Path: "a.py", Hash: "ha", Language: LangPython}, fns, nil, nil))
	require.NoError(t, store.ReplaceFile(FileInfo{Path: "b.py", Hash: "hb", Language: LangPython}, classes, nil, nil))

	results, err := store.Search("handler", string(SymbolFunction), "", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.Equal(t, SymbolFunction, r.Kind)
	}
}

// TestResolveEdgesPriority covers the same-file > same-dir > unique-global
// resolution priority invariant.
func TestResolveEdgesPriority(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "pkg/a.py", "target", SymbolFunction, 1)
	seedSymbol(t, store, "pkg/b.py", "target", SymbolFunction, 1)
	seedSymbol(t, store, "other/c.py", "target", SymbolFunction, 1)

	caller := seedSymbol(t, store, "pkg/a.py", "caller", SymbolFunction, 5)
	edge := Edge{SourceID: caller.ID, TargetName: "target", Kind: EdgeCalls, FilePath: "pkg/a.py", Line: 6}
	require.NoError(t, store.ReplaceFile(FileInfo{Path: "pkg/a.py", Hash: "h2", Language: LangPython},
		[]Symbol{seedSymbolValue("pkg/a.py", "target", SymbolFunction, 1), seedSymbolValue("pkg/a.py", "caller", SymbolFunction, 5)},
		[]Edge{edge}, nil))

	n, err := store.ResolveEdges()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	refs, err := store.Refs("target", "")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, SymbolID("pkg/a.py", "target", 1), refs[0].Edge.TargetID)
}

func seedSymbolValue(path, name string, kind SymbolKind, line int) Symbol {
	return Symbol{
		ID:         SymbolID(path, name, line),
		Name:       name,
		Kind:       kind,
		FilePath:   path,
		StartLine:  line,
		EndLine:    line,
		Visibility: VisibilityPublic,
	}
}

// TestResolveEdgesAmbiguousStaysUnresolved covers the "ambiguous names
// remain unresolved" branch of the resolution invariant.
func TestResolveEdgesAmbiguousStaysUnresolved(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "pkg_a/utils.py", "helper", SymbolFunction, 1)
	seedSymbol(t, store, "pkg_b/utils.py", "helper", SymbolFunction, 1)

	caller := seedSymbol(t, store, "app/main.py", "process", SymbolFunction, 1)
	edge := Edge{SourceID: caller.ID, TargetName: "helper", Kind: EdgeCalls, FilePath: "app/main.py", Line: 2}
	require.NoError(t, store.ReplaceFile(FileInfo{Path: "app/main.py", Hash: "h2", Language: LangPython},
		[]Symbol{seedSymbolValue("app/main.py", "process", SymbolFunction, 1)}, []Edge{edge}, nil))

	n, err := store.ResolveEdges()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

// TestReplaceFileIsAtomicSwap covers the "per-file replace" invariant:
// re-indexing a file with different content fully replaces its symbol set.
func TestReplaceFileIsAtomicSwap(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "a.py", "old_name", SymbolFunction, 1)

	outline, err := store.Outline("a.py")
	require.NoError(t, err)
	require.Len(t, outline, 1)

	newSym := seedSymbolValue("a.py", "new_name", SymbolFunction, 3)
	require.NoError(t, store.ReplaceFile(FileInfo{Path: "a.py", Hash: "h2", Language: LangPython},
		[]Symbol{newSym}, nil, nil))

	outline, err = store.Outline("a.py")
	require.NoError(t, err)
	require.Len(t, outline, 1)
	require.Equal(t, "new_name", outline[0].Name)
}

func TestRemoveFileDeletesSymbolsEdgesAndRow(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "a.py", "fn", SymbolFunction, 1)

	require.NoError(t, store.RemoveFile("a.py"))

	outline, err := store.Outline("a.py")
	require.NoError(t, err)
	require.Empty(t, outline)

	_, known, err := store.GetFileHash("a.py")
	require.NoError(t, err)
	require.False(t, known)
}

// TestEmbeddingVectorRoundTrip verifies that reading a vector back after
// writing returns bit-identical floats and that the stored vector keeps its
// 384-dim, L2-normalized shape.
func TestEmbeddingVectorRoundTrip(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "a.py", "fn", SymbolFunction, 1)
	id := SymbolID("a.py", "fn", 1)

	vec := make([]float32, 384)
	vec[0] = 1.0 // already L2-normalized: a unit vector along one axis

	require.NoError(t, store.PutEmbeddings(map[string][]float32{id: vec}))

	all, err := store.AllEmbeddings()
	require.NoError(t, err)
	got, ok := all[id]
	require.True(t, ok)
	require.Len(t, got, 384)
	require.Equal(t, vec, got)
}

func TestFloat32BytesRoundTrip(t *testing.T) {
	in := []float32{0.1, -0.2, 0.3, 1.0, -1.0}
	out := BytesToFloat32Slice(Float32SliceToBytes(in))
	require.Equal(t, in, out)
}

func TestStatsCountsFilesSymbolsEdges(t *testing.T) {
	store := newTestStore(t)
	seedSymbol(t, store, "a.py", "fn", SymbolFunction, 1)
	seedSymbol(t, store, "b.py", "Cls", SymbolClass, 1)

	stats, err := store.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.FileCount)
	require.Equal(t, 2, stats.SymbolCount)
}

func TestNormalizeSymbolNameSplitsCaseAndUnderscores(t *testing.T) {
	require.Equal(t, "validate token", normalizeSymbolName("validateToken"))
	require.Equal(t, "token expiry", normalizeSymbolName("TOKEN_EXPIRY"))
	require.Equal(t, "user service", normalizeSymbolName("UserService"))
}
