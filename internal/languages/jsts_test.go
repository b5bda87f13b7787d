package languages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartogr/cartog/internal/graph"
)

func extractJS(t *testing.T, source string) graph.ExtractResult {
	t.Helper()
	ext, err := newJSTSExtractor(graph.LangJavaScript)
	require.NoError(t, err)
	res, err := ext.Extract("mod.js", []byte(source))
	require.NoError(t, err)
	return res
}

func extractTS(t *testing.T, source string) graph.ExtractResult {
	t.Helper()
	ext, err := newJSTSExtractor(graph.LangTypeScript)
	require.NoError(t, err)
	res, err := ext.Extract("mod.ts", []byte(source))
	require.NoError(t, err)
	return res
}

func TestJSVisibilityHeuristic(t *testing.T) {
	res := extractJS(t, "class Widget {\n  #secret() {}\n  _guarded() {}\n  normal() {}\n}\n")
	byName := map[string]graph.Symbol{}
	for _, s := range res.Symbols {
		byName[s.Name] = s
	}
	require.Equal(t, graph.VisibilityPrivate, byName["#secret"].Visibility)
	require.Equal(t, graph.VisibilityProtected, byName["_guarded"].Visibility)
	require.Equal(t, graph.VisibilityPublic, byName["normal"].Visibility)
}

func TestTSExplicitAccessModifierWins(t *testing.T) {
	res := extractTS(t, "class Widget {\n  private _internal() {}\n}\n")
	require.Len(t, res.Symbols, 2) // class + method
	var method graph.Symbol
	for _, s := range res.Symbols {
		if s.Kind == graph.SymbolMethod {
			method = s
		}
	}
	require.Equal(t, graph.VisibilityPrivate, method.Visibility)
}

func TestJSArrowFunctionLiftedFromVariableDeclarator(t *testing.T) {
	res := extractJS(t, "const handler = (req, res) => {\n  doWork();\n};\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "handler", res.Symbols[0].Name)
	require.Equal(t, graph.SymbolFunction, res.Symbols[0].Kind)
}

func TestJSNestedFunctionStaysFunctionKind(t *testing.T) {
	res := extractJS(t, "function outer() {\n  function inner() {}\n}\n")
	var inner graph.Symbol
	for _, s := range res.Symbols {
		if s.Name == "inner" {
			inner = s
		}
	}
	require.Equal(t, graph.SymbolFunction, inner.Kind)
}

func TestJSClassMethodIsMethodKind(t *testing.T) {
	res := extractJS(t, "class Widget {\n  render() {}\n}\n")
	var method graph.Symbol
	for _, s := range res.Symbols {
		if s.Name == "render" {
			method = s
		}
	}
	require.Equal(t, graph.SymbolMethod, method.Kind)
}

func TestJSClassExtendsEmitsInheritsEdge(t *testing.T) {
	res := extractJS(t, "class Dog extends Animal {}\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeInherits && e.TargetName == "Animal" {
			found = true
		}
	}
	require.True(t, found)
}

func TestTSInterfaceIsClassKind(t *testing.T) {
	res := extractTS(t, "interface Shape {\n  area(): number;\n}\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, graph.SymbolClass, res.Symbols[0].Kind)
}

func TestTSTypeAliasIsVariableKind(t *testing.T) {
	res := extractTS(t, "type ID = string | number;\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, graph.SymbolVariable, res.Symbols[0].Kind)
}

func TestJSThrowEmitsRaisesEdge(t *testing.T) {
	res := extractJS(t, "function f() {\n  throw new TypeError('bad');\n}\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeRaises && e.TargetName == "TypeError" {
			found = true
		}
	}
	require.True(t, found)
}

func TestJSDocBlockCommentExtraction(t *testing.T) {
	res := extractJS(t, "/**\n * Greets the caller.\n * @returns nothing\n */\nfunction greet() {}\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "Greets the caller.", res.Symbols[0].Docstring)
}
