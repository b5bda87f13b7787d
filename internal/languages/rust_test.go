package languages

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartogr/cartog/internal/graph"
)

func extractRust(t *testing.T, source string) graph.ExtractResult {
	t.Helper()
	ext, err := newRustExtractor()
	require.NoError(t, err)
	res, err := ext.Extract("mod.rs", []byte(source))
	require.NoError(t, err)
	return res
}

func TestRustVisibilityHeuristic(t *testing.T) {
	res := extractRust(t, "pub fn public_fn() {}\nfn private_fn() {}\n")
	byName := map[string]graph.Symbol{}
	for _, s := range res.Symbols {
		byName[s.Name] = s
	}
	require.Equal(t, graph.VisibilityPublic, byName["public_fn"].Visibility)
	require.Equal(t, graph.VisibilityPrivate, byName["private_fn"].Visibility)
}

func TestRustTopLevelFunctionStaysFunctionKind(t *testing.T) {
	res := extractRust(t, "fn free_function() {}\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, graph.SymbolFunction, res.Symbols[0].Kind)
}

// TestRustImplSynthesizesOwnerAndMethods covers the synthesized impl-block
// owner id format: file:type_name:impl_start_line.
func TestRustImplSynthesizesOwnerAndMethods(t *testing.T) {
	res := extractRust(t, "struct Widget;\n\nimpl Widget {\n    fn render(&self) {}\n}\n")
	var owner, method *graph.Symbol
	for i := range res.Symbols {
		switch res.Symbols[i].Name {
		case "Widget":
			if res.Symbols[i].StartLine != 1 {
				owner = &res.Symbols[i]
			}
		case "render":
			method = &res.Symbols[i]
		}
	}
	require.NotNil(t, owner)
	require.NotNil(t, method)
	require.Equal(t, graph.SymbolClass, owner.Kind)
	require.Equal(t, graph.SymbolMethod, method.Kind)
	require.Equal(t, owner.ID, method.ParentID)
	require.Equal(t, "mod.rs:Widget:3", owner.ID)
}

func TestRustTraitImplEdge(t *testing.T) {
	res := extractRust(t, "struct Widget;\ntrait Drawable {}\n\nimpl Drawable for Widget {\n    fn draw(&self) {}\n}\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeInherits && e.TargetName == "Drawable" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRustMacroCallEdgeUsesBangSuffix(t *testing.T) {
	res := extractRust(t, "fn f() {\n    println!(\"hi\");\n}\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeCalls && e.TargetName == "println!" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRustInlineModProducesSymbol(t *testing.T) {
	res := extractRust(t, "mod util {\n    pub fn helper() {}\n}\n")
	var modSym, helperSym *graph.Symbol
	for i := range res.Symbols {
		switch res.Symbols[i].Name {
		case "util":
			modSym = &res.Symbols[i]
		case "helper":
			helperSym = &res.Symbols[i]
		}
	}
	require.NotNil(t, modSym)
	require.Equal(t, graph.SymbolClass, modSym.Kind)
	require.NotNil(t, helperSym)
	require.Equal(t, graph.SymbolFunction, helperSym.Kind)
	require.Equal(t, modSym.ID, helperSym.ParentID)
}

func TestRustDocCommentJoinsOuterDocLines(t *testing.T) {
	res := extractRust(t, "/// Computes the answer.\n/// Always 42.\nfn answer() -> i32 { 42 }\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "Computes the answer. Always 42.", res.Symbols[0].Docstring)
}

func TestRustUseDeclarationImportEdges(t *testing.T) {
	res := extractRust(t, "use std::io::Error;\n")
	var found bool
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeImports && e.TargetName == "std::io::Error" {
			found = true
		}
	}
	require.True(t, found)

	require.Len(t, res.Symbols, 1)
	require.Equal(t, graph.SymbolImport, res.Symbols[0].Kind)
	require.Equal(t, "std::io", res.Symbols[0].Name)
}

func TestRustUseListCollapsesToCommonPrefix(t *testing.T) {
	res := extractRust(t, "use std::io::{Read, Write};\n")
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "std::io", res.Symbols[0].Name)

	targets := map[string]bool{}
	for _, e := range res.Edges {
		if e.Kind == graph.EdgeImports {
			targets[e.TargetName] = true
		}
	}
	require.True(t, targets["std::io::Read"])
	require.True(t, targets["std::io::Write"])
}
