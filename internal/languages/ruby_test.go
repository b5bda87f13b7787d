package languages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartogr/cartog/internal/graph"
)

func extractRuby(t *testing.T, source string) graph.ExtractResult {
	t.Helper()
	ext, err := newRubyExtractor()
	require.NoError(t, err)
	res, err := ext.Extract("mod.rb", []byte(source))
	require.NoError(t, err)
	return res
}

func TestRubyVisibilityHeuristic(t *testing.T) {
	res := extractRuby(t, "def public_method\nend\n\ndef _private_method\nend\n")
	byName := map[string]graph.Symbol{}
	for _, s := range res.Symbols {
		byName[s.Name] = s
	}
	require.Equal(t, graph.VisibilityPublic, byName["public_method"].Visibility)
	require.Equal(t, graph.VisibilityPrivate, byName["_private_method"].Visibility)
}

func TestRubyTopLevelDefIsFunctionKind(t *testing.T) {
	res := extractRuby(t, "def standalone\nend\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, graph.SymbolFunction, res.Symbols[0].Kind)
}

func TestRubyClassMethodIsMethodKind(t *testing.T) {
	res := extractRuby(t, "class Widget\n  def render\n  end\nend\n")
	var cls, method *graph.Symbol
	for i := range res.Symbols {
		switch res.Symbols[i].Name {
		case "Widget":
			cls = &res.Symbols[i]
		case "render":
			method = &res.Symbols[i]
		}
	}
	require.NotNil(t, cls)
	require.NotNil(t, method)
	require.Equal(t, graph.SymbolMethod, method.Kind)
	require.Equal(t, cls.ID, method.ParentID)
}

func TestRubyIncludeEmitsInheritsEdge(t *testing.T) {
	res := extractRuby(t, "class Widget\n  include Comparable\nend\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeInherits && e.TargetName == "Comparable" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRubySuperclassEmitsInheritsEdge(t *testing.T) {
	res := extractRuby(t, "class Dog < Animal\nend\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeInherits && e.TargetName == "Animal" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRubyAttrAccessorsSkipped(t *testing.T) {
	res := extractRuby(t, "class Widget\n  attr_accessor :name\nend\n")
	for _, s := range res.Symbols {
		require.NotEqual(t, "name", s.Name)
	}
}

func TestRubyRaiseEmitsRaisesEdge(t *testing.T) {
	res := extractRuby(t, "def f\n  raise ArgumentError, 'bad'\nend\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeRaises && e.TargetName == "ArgumentError" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRubyRequireEmitsImportSymbolAndEdge(t *testing.T) {
	res := extractRuby(t, "require 'json'\n")
	var sym *graph.Symbol
	for i := range res.Symbols {
		if res.Symbols[i].Kind == graph.SymbolImport {
			sym = &res.Symbols[i]
		}
	}
	require.NotNil(t, sym)
	require.Equal(t, "json", sym.Name)
}

func TestRubyNamespacedClassNamePreserved(t *testing.T) {
	res := extractRuby(t, "class Foo::Bar\nend\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "Foo::Bar", res.Symbols[0].Name)
}
