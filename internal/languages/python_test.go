package languages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartogr/cartog/internal/graph"
)

func extractPython(t *testing.T, source string) graph.ExtractResult {
	t.Helper()
	ext, err := newPythonExtractor()
	require.NoError(t, err)
	res, err := ext.Extract("mod.py", []byte(source))
	require.NoError(t, err)
	return res
}

func TestPythonVisibilityHeuristic(t *testing.T) {
	res := extractPython(t, "class C:\n    def __init__(self):\n        pass\n    def _protected(self):\n        pass\n    def __private(self):\n        pass\n    def public(self):\n        pass\n")
	byName := map[string]graph.Symbol{}
	for _, s := range res.Symbols {
		byName[s.Name] = s
	}
	require.Equal(t, graph.VisibilityPublic, byName["__init__"].Visibility)
	require.Equal(t, graph.VisibilityProtected, byName["_protected"].Visibility)
	require.Equal(t, graph.VisibilityPrivate, byName["__private"].Visibility)
	require.Equal(t, graph.VisibilityPublic, byName["public"].Visibility)
}

func TestPythonCallDoesNotDescendIntoNestedFunction(t *testing.T) {
	res := extractPython(t, "def outer():\n    outer_call()\n    def inner():\n        inner_call()\n")
	var outerCalls, innerCalls int
	for _, e := range res.Edges {
		if e.Kind != graph.EdgeCalls {
			continue
		}
		switch e.TargetName {
		case "outer_call":
			outerCalls++
		case "inner_call":
			innerCalls++
		}
	}
	require.Equal(t, 1, outerCalls)
	// inner_call is recorded once, owned by inner's scope -- not duplicated
	// onto outer's source_id.
	require.Equal(t, 1, innerCalls)
	for _, e := range res.Edges {
		if e.TargetName == "inner_call" {
			require.NotEqual(t, graph.SymbolID("mod.py", "outer", 1), e.SourceID)
		}
	}
}

func TestPythonRaiseAndExceptEdges(t *testing.T) {
	res := extractPython(t, "def f():\n    try:\n        pass\n    except ValueError as e:\n        raise RuntimeError('boom')\n")
	var raises, refs []graph.Edge
	for _, e := range res.Edges {
		switch e.Kind {
		case graph.EdgeRaises:
			raises = append(raises, e)
		case graph.EdgeReferences:
			refs = append(refs, e)
		}
	}
	require.Len(t, raises, 1)
	require.Equal(t, "RuntimeError", raises[0].TargetName)
	require.Len(t, refs, 1)
	require.Equal(t, "ValueError", refs[0].TargetName)
}

func TestPythonDecoratorEmitsReferenceEdge(t *testing.T) {
	res := extractPython(t, "@app.route('/x')\ndef handler():\n    pass\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeReferences && e.TargetName == "app.route" {
			found = true
		}
	}
	require.True(t, found)
}

func TestPythonInheritanceEdge(t *testing.T) {
	res := extractPython(t, "class Dog(Animal):\n    pass\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeInherits && e.TargetName == "Animal" {
			found = true
		}
	}
	require.True(t, found)
}

func TestPythonDocstringExtraction(t *testing.T) {
	res := extractPython(t, "def f():\n    \"\"\"does a thing\"\"\"\n    pass\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "does a thing", res.Symbols[0].Docstring)
}

func TestPythonImportEdge(t *testing.T) {
	res := extractPython(t, "import os\nfrom collections import OrderedDict\n")
	var plain, from bool
	for _, e := range res.Edges {
		if e.Kind != graph.EdgeImports {
			continue
		}
		if e.TargetName == "os" {
			plain = true
		}
		if e.TargetName == "OrderedDict" {
			from = true
		}
	}
	require.True(t, plain)
	require.True(t, from)
}

func TestPythonPascalCaseTypeAnnotationReference(t *testing.T) {
	res := extractPython(t, "def f(x: int, y: UserModel) -> Optional[ResultType]:\n    pass\n")
	names := map[string]bool{}
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeReferences {
			names[e.TargetName] = true
		}
	}
	require.True(t, names["UserModel"])
	require.True(t, names["ResultType"])
	require.False(t, names["int"])
}
