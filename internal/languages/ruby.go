package languages

import (
	"strings"

	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cartogr/cartog/internal/graph"
)

type rubyExtractor struct {
	parser *sitter.Parser
}

func newRubyExtractor() (graph.Extractor, error) {
	p, err := newSitterParser(sitter.NewLanguage(tree_sitter_ruby.Language()))
	if err != nil {
		return nil, err
	}
	return &rubyExtractor{parser: p}, nil
}

func (e *rubyExtractor) Language() graph.Language { return graph.LangRuby }

var rubyScopeKinds = map[string]bool{
	"method":           true,
	"singleton_method": true,
	"class":            true,
	"module":           true,
	"block":            true,
	"do_block":         true,
}

func (e *rubyExtractor) Extract(filePath string, source []byte) (graph.ExtractResult, error) {
	tree := e.parser.Parse(source, nil)
	if tree == nil {
		return graph.ExtractResult{}, nil
	}
	defer tree.Close()

	var res graph.ExtractResult
	root := tree.RootNode()
	e.extractBlock(root, "", filePath, source, &res)
	return res, nil
}

func rubyVisibility(name string) graph.Visibility {
	if strings.HasPrefix(name, "_") {
		return graph.VisibilityPrivate
	}
	return graph.VisibilityPublic
}

func (e *rubyExtractor) extractBlock(block *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	count := block.ChildCount()
	for i := uint(0); i < count; i++ {
		stmt := block.Child(i)
		if stmt == nil {
			continue
		}
		e.extractStatement(stmt, parentID, filePath, source, res)
	}
}

func (e *rubyExtractor) extractStatement(stmt *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	switch stmt.Kind() {
	case "class":
		e.extractClass(stmt, parentID, filePath, source, res)
	case "module":
		e.extractModule(stmt, parentID, filePath, source, res)
	case "method":
		e.extractMethod(stmt, parentID, filePath, source, res, graph.SymbolMethod)
	case "singleton_method":
		e.extractMethod(stmt, parentID, filePath, source, res, graph.SymbolMethod)
	case "call":
		e.extractTopLevelCall(stmt, parentID, filePath, source, res)
	case "body_statement":
		e.extractBlock(stmt, parentID, filePath, source, res)
	default:
		if parentID != "" {
			e.walkCallsAndExtras(stmt, parentID, filePath, source, res)
		}
	}
}

// rubyClassName resolves a (possibly scope_resolution-qualified) class/module
// name node to its full dotted path, e.g. Foo::Bar.
func rubyClassName(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return nodeText(n, source)
}

func (e *rubyExtractor) extractClass(n *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rubyClassName(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID:   parentID,
		Visibility: rubyVisibility(name),
		Docstring:  rubyDocstring(n, source),
		Language:   graph.LangRuby,
	})
	if super := n.ChildByFieldName("superclass"); super != nil {
		supName := strings.TrimPrefix(nodeText(super, source), "< ")
		supName = strings.TrimSpace(strings.TrimPrefix(supName, "<"))
		res.Edges = append(res.Edges, mkEdge(id, supName, graph.EdgeInherits, filePath, startLine(super)))
	}
	if body := n.ChildByFieldName("body"); body != nil {
		e.extractBlock(body, id, filePath, source, res)
	}
}

func (e *rubyExtractor) extractModule(n *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rubyClassName(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID:   parentID,
		Visibility: rubyVisibility(name),
		Docstring:  rubyDocstring(n, source),
		Language:   graph.LangRuby,
	})
	if body := n.ChildByFieldName("body"); body != nil {
		e.extractBlock(body, id, filePath, source, res)
	}
}

func (e *rubyExtractor) extractMethod(n *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult, kind graph.SymbolKind) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	if parentID == "" {
		kind = graph.SymbolFunction
	}
	id := graph.SymbolID(filePath, name, startLine(n))
	sig := ""
	if params := n.ChildByFieldName("parameters"); params != nil {
		sig = nodeText(params, source)
	}
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: kind, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID:   parentID,
		Signature:  sig,
		Visibility: rubyVisibility(name),
		Docstring:  rubyDocstring(n, source),
		Language:   graph.LangRuby,
	})
	if body := n.ChildByFieldName("body"); body != nil {
		e.walkCallsAndExtras(body, id, filePath, source, res)
	}
}

// extractTopLevelCall handles class-body-level calls to require/include/
// extend/prepend/attr_* that carry graph semantics distinct from a plain
// method invocation.
func (e *rubyExtractor) extractTopLevelCall(n *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	method := n.ChildByFieldName("method")
	if method == nil {
		return
	}
	name := nodeText(method, source)
	switch name {
	case "require", "require_relative":
		e.recordRequire(n, filePath, source, res)
		return
	case "include", "extend", "prepend":
		if parentID == "" {
			return
		}
		for _, arg := range rubyCallArgs(n) {
			res.Edges = append(res.Edges, mkEdge(parentID, nodeText(arg, source), graph.EdgeInherits, filePath, startLine(n)))
		}
		return
	case "attr_reader", "attr_accessor", "attr_writer":
		return
	}
	if parentID != "" {
		res.Edges = append(res.Edges, mkEdge(parentID, name, graph.EdgeCalls, filePath, startLine(n)))
	}
	e.walkCallsAndExtras(n, parentID, filePath, source, res)
}

func (e *rubyExtractor) recordRequire(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	args := rubyCallArgs(n)
	if len(args) == 0 {
		return
	}
	module := strings.Trim(nodeText(args[0], source), `"'`)
	last := module
	if idx := strings.LastIndex(module, "/"); idx >= 0 {
		last = module[idx+1:]
	}
	id := graph.SymbolID(filePath, last, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: last, Kind: graph.SymbolImport, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: graph.VisibilityPublic, Language: graph.LangRuby,
	})
	res.Edges = append(res.Edges, mkEdge(id, module, graph.EdgeImports, filePath, startLine(n)))
}

func rubyCallArgs(call *sitter.Node) []*sitter.Node {
	argsNode := call.ChildByFieldName("arguments")
	if argsNode == nil {
		return nil
	}
	return childrenOfKind(argsNode, "string", "identifier", "constant", "scope_resolution", "simple_symbol")
}

func (e *rubyExtractor) walkCallsAndExtras(root *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	if ownerID == "" {
		return
	}
	walkCollectCalls(root, rubyScopeKinds, func(n *sitter.Node) {
		switch n.Kind() {
		case "call":
			method := n.ChildByFieldName("method")
			if method == nil {
				return
			}
			name := nodeText(method, source)
			switch name {
			case "raise", "fail":
				for _, arg := range rubyCallArgs(n) {
					if arg.Kind() == "constant" || arg.Kind() == "scope_resolution" {
						res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(arg, source), graph.EdgeRaises, filePath, startLine(n)))
						return
					}
				}
			case "include", "extend", "prepend":
				for _, arg := range rubyCallArgs(n) {
					res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(arg, source), graph.EdgeInherits, filePath, startLine(n)))
				}
				return
			case "require", "require_relative", "attr_reader", "attr_accessor", "attr_writer":
				return
			}
			res.Edges = append(res.Edges, mkEdge(ownerID, name, graph.EdgeCalls, filePath, startLine(n)))
		case "rescue":
			for _, exc := range childrenOfKind(n, "constant", "scope_resolution", "exceptions") {
				if exc.Kind() == "exceptions" {
					for _, inner := range childrenOfKind(exc, "constant", "scope_resolution") {
						res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(inner, source), graph.EdgeReferences, filePath, startLine(n)))
					}
					continue
				}
				res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(exc, source), graph.EdgeReferences, filePath, startLine(n)))
			}
		}
	})
}

// rubyDocstring collects contiguous `#`-prefixed comment lines immediately
// preceding n.
func rubyDocstring(n *sitter.Node, source []byte) string {
	var lines []string
	cur := prevSibling(n)
	for cur != nil && cur.Kind() == "comment" {
		text := strings.TrimSpace(nodeText(cur, source))
		if !strings.HasPrefix(text, "#") {
			break
		}
		lines = append([]string{strings.TrimSpace(strings.TrimPrefix(text, "#"))}, lines...)
		cur = prevSibling(cur)
	}
	return joinCommentLines(lines)
}
