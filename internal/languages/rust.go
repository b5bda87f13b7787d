package languages

import (
	"strconv"
	"strings"

	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cartogr/cartog/internal/graph"
)

type rustExtractor struct {
	parser *sitter.Parser
}

func newRustExtractor() (graph.Extractor, error) {
	p, err := newSitterParser(sitter.NewLanguage(tree_sitter_rust.Language()))
	if err != nil {
		return nil, err
	}
	return &rustExtractor{parser: p}, nil
}

func (e *rustExtractor) Language() graph.Language { return graph.LangRust }

var rustScopeKinds = map[string]bool{
	"function_item":      true,
	"closure_expression": true,
	"impl_item":          true,
	"mod_item":           true,
}

func (e *rustExtractor) Extract(filePath string, source []byte) (graph.ExtractResult, error) {
	tree := e.parser.Parse(source, nil)
	if tree == nil {
		return graph.ExtractResult{}, nil
	}
	defer tree.Close()

	var res graph.ExtractResult
	root := tree.RootNode()
	e.extractBlock(root, "", false, filePath, source, &res)
	return res, nil
}

func rustVisibility(n *sitter.Node, source []byte) graph.Visibility {
	if len(childrenOfKind(n, "visibility_modifier")) > 0 {
		return graph.VisibilityPublic
	}
	return graph.VisibilityPrivate
}

// parentIsImpl distinguishes an impl block's synthesized owner (its direct
// function_item children are methods) from any other container (module,
// enclosing function) where a nested function_item stays a plain function.
func (e *rustExtractor) extractBlock(block *sitter.Node, parentID string, parentIsImpl bool, filePath string, source []byte, res *graph.ExtractResult) {
	count := block.ChildCount()
	for i := uint(0); i < count; i++ {
		item := block.Child(i)
		if item == nil {
			continue
		}
		e.extractItem(item, parentID, parentIsImpl, filePath, source, res)
	}
}

func (e *rustExtractor) extractItem(n *sitter.Node, parentID string, parentIsImpl bool, filePath string, source []byte, res *graph.ExtractResult) {
	switch n.Kind() {
	case "function_item":
		e.extractFunction(n, parentID, parentIsImpl, filePath, source, res)
	case "struct_item":
		e.extractStruct(n, filePath, source, res)
	case "enum_item":
		e.extractEnum(n, filePath, source, res)
	case "trait_item":
		e.extractTrait(n, filePath, source, res)
	case "impl_item":
		e.extractImpl(n, filePath, source, res)
	case "use_declaration":
		e.extractUse(n, filePath, source, res)
	case "mod_item":
		e.extractMod(n, filePath, source, res)
	case "const_item", "static_item":
		e.extractConstStatic(n, filePath, source, res)
	case "type_item":
		e.extractTypeAlias(n, filePath, source, res)
	default:
		if parentID != "" {
			e.walkCalls(n, parentID, filePath, source, res)
		}
	}
}

// extractMod emits a class-kind symbol for an inline `mod name { ... }`
// block (a `mod name;` file-reference has no body and is skipped).
func (e *rustExtractor) extractMod(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: rustVisibility(n, source),
		Docstring:  precedingDocComments(n, source),
		Language:   graph.LangRust,
	})
	e.extractBlock(body, id, false, filePath, source, res)
}

func (e *rustExtractor) extractFunction(n *sitter.Node, parentID string, parentIsImpl bool, filePath string, source []byte, res *graph.ExtractResult) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(nameNode, source)
	kind := graph.SymbolFunction
	if parentIsImpl {
		kind = graph.SymbolMethod
	}
	id := graph.SymbolID(filePath, name, startLine(n))
	sig := ""
	if params := n.ChildByFieldName("parameters"); params != nil {
		sig = nodeText(params, source)
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		sig += " -> " + nodeText(rt, source)
	}
	sym := graph.Symbol{
		ID: id, Name: name, Kind: kind, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID:   parentID,
		Signature:  strings.TrimSpace(sig),
		Visibility: rustVisibility(n, source),
		IsAsync:    hasAsyncKeyword(n, source),
		Docstring:  precedingDocComments(n, source),
		Language:   graph.LangRust,
	}
	res.Symbols = append(res.Symbols, sym)
	if params := n.ChildByFieldName("parameters"); params != nil {
		e.typeRefsInParams(params, id, filePath, source, res)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		e.walkBody(body, id, filePath, source, res)
	}
	return id
}

func (e *rustExtractor) extractStruct(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: rustVisibility(n, source),
		Docstring:  precedingDocComments(n, source),
		Language:   graph.LangRust,
	})
}

func (e *rustExtractor) extractEnum(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: rustVisibility(n, source),
		Docstring:  precedingDocComments(n, source),
		Language:   graph.LangRust,
	})
}

func (e *rustExtractor) extractTrait(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: rustVisibility(n, source),
		Docstring:  precedingDocComments(n, source),
		Language:   graph.LangRust,
	})
	if bounds := n.ChildByFieldName("bounds"); bounds != nil {
		for _, t := range childrenOfKind(bounds, "type_identifier", "scoped_type_identifier") {
			res.Edges = append(res.Edges, mkEdge(id, nodeText(t, source), graph.EdgeInherits, filePath, startLine(bounds)))
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		e.extractBlock(body, id, true, filePath, source, res)
	}
}

// extractImpl synthesizes a class-kind owner symbol for the impl target type
// at file:type_name:impl_start_line, so methods defined in the block have a
// stable parent even though Rust impl blocks aren't themselves declarations.
func (e *rustExtractor) extractImpl(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	typeName := rustTypeName(typeNode, source)
	if typeName == "" {
		return
	}
	id := filePath + ":" + typeName + ":" + strconv.Itoa(startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: typeName, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: graph.VisibilityPublic,
		Docstring:  precedingDocComments(n, source),
		Language:   graph.LangRust,
	})
	if traitNode := n.ChildByFieldName("trait"); traitNode != nil {
		res.Edges = append(res.Edges, mkEdge(id, rustTypeName(traitNode, source), graph.EdgeInherits, filePath, startLine(n)))
	}
	if body := n.ChildByFieldName("body"); body != nil {
		e.extractBlock(body, id, true, filePath, source, res)
	}
}

func rustTypeName(n *sitter.Node, source []byte) string {
	name := nodeText(n, source)
	if idx := strings.IndexByte(name, '<'); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// extractUse collapses a use-tree to its common path prefix for the import
// symbol's name, then records one imports edge per leaf, each leaf keeping
// its module-qualified path verbatim.
func (e *rustExtractor) extractUse(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	argNode := n.ChildByFieldName("argument")
	if argNode == nil {
		return
	}
	prefix := rustUsePrefix(argNode, source)
	leaves := rustUseLeaves(argNode, source, "")
	if prefix == "" || len(leaves) == 0 {
		return
	}
	id := graph.SymbolID(filePath, prefix, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: prefix, Kind: graph.SymbolImport, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: graph.VisibilityPublic, Language: graph.LangRust,
	})
	for _, leaf := range leaves {
		res.Edges = append(res.Edges, mkEdge(id, leaf, graph.EdgeImports, filePath, startLine(n)))
	}
}

// rustUsePrefix returns the path portion shared by every leaf of a use-tree:
// the scope path of a single import, the braced list's own path, or the
// identifier itself for a bare `use foo;`.
func rustUsePrefix(n *sitter.Node, source []byte) string {
	switch n.Kind() {
	case "scoped_identifier", "scoped_use_list", "use_wildcard":
		if p := n.ChildByFieldName("path"); p != nil {
			return nodeText(p, source)
		}
	case "use_as_clause":
		if p := n.ChildByFieldName("path"); p != nil {
			return rustUsePrefix(p, source)
		}
	}
	return nodeText(n, source)
}

// rustUseLeaves flattens a use-tree (scoped_identifier / use_list / use_as_clause)
// into fully-qualified dotted paths.
func rustUseLeaves(n *sitter.Node, source []byte, prefix string) []string {
	switch n.Kind() {
	case "scoped_identifier", "identifier", "crate", "self", "super":
		full := nodeText(n, source)
		if prefix != "" {
			full = prefix + "::" + full
		}
		return []string{full}
	case "use_as_clause":
		if path := n.ChildByFieldName("path"); path != nil {
			return rustUseLeaves(path, source, prefix)
		}
	case "scoped_use_list":
		pathNode := n.ChildByFieldName("path")
		listNode := n.ChildByFieldName("list")
		newPrefix := prefix
		if pathNode != nil {
			p := nodeText(pathNode, source)
			if newPrefix != "" {
				newPrefix = newPrefix + "::" + p
			} else {
				newPrefix = p
			}
		}
		var out []string
		if listNode != nil {
			for _, item := range childrenOfKind(listNode, "identifier", "scoped_identifier", "use_as_clause", "self") {
				out = append(out, rustUseLeaves(item, source, newPrefix)...)
			}
		}
		return out
	case "use_wildcard":
		return nil
	}
	return []string{nodeText(n, source)}
}

func (e *rustExtractor) extractConstStatic(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolVariable, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: rustVisibility(n, source), Language: graph.LangRust,
	})
}

func (e *rustExtractor) extractTypeAlias(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolVariable, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: rustVisibility(n, source), Language: graph.LangRust,
	})
}

func (e *rustExtractor) typeRefsInParams(params *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	for _, p := range childrenOfKind(params, "parameter") {
		if t := p.ChildByFieldName("type"); t != nil {
			e.typeRefs(t, ownerID, filePath, source, res)
		}
	}
}

func (e *rustExtractor) typeRefs(n *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "type_identifier", "scoped_type_identifier":
		name := nodeText(n, source)
		if isPascalCaseType(name) {
			res.Edges = append(res.Edges, mkEdge(ownerID, name, graph.EdgeReferences, filePath, startLine(n)))
		}
	default:
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			e.typeRefs(n.Child(i), ownerID, filePath, source, res)
		}
	}
}

func (e *rustExtractor) walkBody(body *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	e.walkCalls(body, ownerID, filePath, source, res)
}

func (e *rustExtractor) walkCalls(root *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	walkCollectCalls(root, rustScopeKinds, func(n *sitter.Node) {
		switch n.Kind() {
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return
			}
			target := nodeText(fn, source)
			res.Edges = append(res.Edges, mkEdge(ownerID, target, graph.EdgeCalls, filePath, startLine(n)))
		case "macro_invocation":
			macroNode := n.ChildByFieldName("macro")
			if macroNode == nil {
				return
			}
			target := nodeText(macroNode, source) + "!"
			res.Edges = append(res.Edges, mkEdge(ownerID, target, graph.EdgeCalls, filePath, startLine(n)))
		case "struct_expression":
			if t := n.ChildByFieldName("name"); t != nil {
				name := rustTypeName(t, source)
				if isPascalCaseType(name) {
					res.Edges = append(res.Edges, mkEdge(ownerID, name, graph.EdgeReferences, filePath, startLine(n)))
				}
			}
		}
	})
}

// precedingDocComments collects contiguous `///` doc-comment siblings
// immediately preceding n, stopping at a `//!` inner-doc line or any other
// comment form.
func precedingDocComments(n *sitter.Node, source []byte) string {
	var lines []string
	cur := prevSibling(n)
	for cur != nil && cur.Kind() == "line_comment" {
		text := strings.TrimSpace(nodeText(cur, source))
		if strings.HasPrefix(text, "//!") {
			break
		}
		if !strings.HasPrefix(text, "///") {
			break
		}
		lines = append([]string{strings.TrimSpace(strings.TrimPrefix(text, "///"))}, lines...)
		cur = prevSibling(cur)
	}
	return joinCommentLines(lines)
}
