package languages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartogr/cartog/internal/graph"
)

func extractGo(t *testing.T, source string) graph.ExtractResult {
	t.Helper()
	ext, err := newGoExtractor()
	require.NoError(t, err)
	res, err := ext.Extract("mod.go", []byte(source))
	require.NoError(t, err)
	return res
}

func TestGoVisibilityHeuristic(t *testing.T) {
	res := extractGo(t, "package p\n\nfunc Public() {}\nfunc private() {}\n")
	byName := map[string]graph.Symbol{}
	for _, s := range res.Symbols {
		byName[s.Name] = s
	}
	require.Equal(t, graph.VisibilityPublic, byName["Public"].Visibility)
	require.Equal(t, graph.VisibilityPrivate, byName["private"].Visibility)
}

func TestGoMethodVsFunctionByReceiver(t *testing.T) {
	res := extractGo(t, "package p\n\ntype Store struct{}\n\nfunc (s *Store) Get() {}\nfunc Plain() {}\n")
	byName := map[string]graph.Symbol{}
	for _, s := range res.Symbols {
		byName[s.Name] = s
	}
	require.Equal(t, graph.SymbolMethod, byName["Get"].Kind)
	require.Equal(t, graph.SymbolFunction, byName["Plain"].Kind)
	require.Equal(t, "mod.go:Store", byName["Get"].ParentID)
}

func TestGoInterfaceEmbeddingEdge(t *testing.T) {
	res := extractGo(t, "package p\n\ntype Reader interface{}\n\ntype ReadCloser interface {\n\tReader\n}\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeInherits && e.TargetName == "Reader" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGoCompositeLiteralReferenceEdge(t *testing.T) {
	res := extractGo(t, "package p\n\nfunc build() {\n\t_ = UserConfig{}\n}\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeReferences && e.TargetName == "UserConfig" {
			found = true
		}
	}
	require.True(t, found)
}

func TestGoImportFlattensGroupedForm(t *testing.T) {
	res := extractGo(t, "package p\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)\n")
	names := map[string]bool{}
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeImports {
			names[e.TargetName] = true
		}
	}
	require.True(t, names["fmt"])
	require.True(t, names["os"])
}

func TestGoDocCommentExtraction(t *testing.T) {
	res := extractGo(t, "package p\n\n// Greet says hello.\nfunc Greet() {}\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "Greet says hello.", res.Symbols[0].Docstring)
}
