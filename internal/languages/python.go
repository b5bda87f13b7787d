package languages

import (
	"strings"

	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cartogr/cartog/internal/graph"
)

type pythonExtractor struct {
	parser *sitter.Parser
}

func newPythonExtractor() (graph.Extractor, error) {
	p, err := newSitterParser(sitter.NewLanguage(tree_sitter_python.Language()))
	if err != nil {
		return nil, err
	}
	return &pythonExtractor{parser: p}, nil
}

func (e *pythonExtractor) Language() graph.Language { return graph.LangPython }

var pyScopeKinds = map[string]bool{
	"function_definition": true,
	"class_definition":    true,
	"lambda":              true,
}

func (e *pythonExtractor) Extract(filePath string, source []byte) (graph.ExtractResult, error) {
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

func pyVisibility(name string) graph.Visibility {
	switch {
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"):
		return graph.VisibilityPublic
	case strings.HasPrefix(name, "__"):
		return graph.VisibilityPrivate
	case strings.HasPrefix(name, "_"):
		return graph.VisibilityProtected
	default:
		return graph.VisibilityPublic
	}
}

// extractBlock walks the direct statement children of a module or class/def
// body, handling decorated definitions by unwrapping to the inner node.
// parentIsClass distinguishes a class body (nested defs become methods) from
// a function body or module (nested defs stay functions).
func (e *pythonExtractor) extractBlock(block *sitter.Node, parentID string, parentIsClass bool, filePath string, source []byte, res *graph.ExtractResult) {
	count := block.ChildCount()
	for i := uint(0); i < count; i++ {
		stmt := block.Child(i)
		if stmt == nil {
			continue
		}
		e.extractStatement(stmt, parentID, parentIsClass, filePath, source, res)
	}
}

func (e *pythonExtractor) extractStatement(stmt *sitter.Node, parentID string, parentIsClass bool, filePath string, source []byte, res *graph.ExtractResult) {
	switch stmt.Kind() {
	case "decorated_definition":
		inner := stmt.ChildByFieldName("definition")
		if inner == nil {
			return
		}
		var ownerID string
		switch inner.Kind() {
		case "function_definition":
			ownerID = e.extractFunction(inner, stmt, parentID, parentIsClass, filePath, source, res)
		case "class_definition":
			ownerID = e.extractClass(inner, stmt, parentID, filePath, source, res)
		}
		if ownerID == "" {
			return
		}
		for _, dec := range childrenOfKind(stmt, "decorator") {
			target := decoratorTarget(dec, source)
			if target != "" {
				res.Edges = append(res.Edges, mkEdge(ownerID, target, graph.EdgeReferences, filePath, startLine(dec)))
			}
		}
	case "function_definition":
		e.extractFunction(stmt, nil, parentID, parentIsClass, filePath, source, res)
	case "class_definition":
		e.extractClass(stmt, nil, parentID, filePath, source, res)
	case "import_statement", "import_from_statement":
		e.extractImport(stmt, filePath, source, res)
	default:
		if parentID != "" {
			e.walkCallsAndExtras(stmt, parentID, filePath, source, res)
		}
	}
}

func decoratorTarget(dec *sitter.Node, source []byte) string {
	count := dec.ChildCount()
	for i := uint(0); i < count; i++ {
		c := dec.Child(i)
		if c == nil || c.Kind() == "@" {
			continue
		}
		switch c.Kind() {
		case "call":
			if fn := c.ChildByFieldName("function"); fn != nil {
				return nodeText(fn, source)
			}
		default:
			return nodeText(c, source)
		}
	}
	return ""
}

func (e *pythonExtractor) extractFunction(n, wrap *sitter.Node, parentID string, parentIsClass bool, filePath string, source []byte, res *graph.ExtractResult) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(nameNode, source)
	anchor := n
	if wrap != nil {
		anchor = wrap
	}
	kind := graph.SymbolFunction
	if parentIsClass {
		kind = graph.SymbolMethod
	}
	id := graph.SymbolID(filePath, name, startLine(anchor))
	isAsync := hasAsyncKeyword(n, source)
	sig := ""
	if params := n.ChildByFieldName("parameters"); params != nil {
		sig = nodeText(params, source)
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		sig += " -> " + nodeText(rt, source)
	}
	sym := graph.Symbol{
		ID:         id,
		Name:       name,
		Kind:       kind,
		FilePath:   filePath,
		StartLine:  startLine(anchor),
		EndLine:    endLine(anchor),
		StartByte:  int(anchor.StartByte()),
		EndByte:    int(anchor.EndByte()),
		ParentID:   parentID,
		Signature:  strings.TrimSpace(sig),
		Visibility: pyVisibility(name),
		IsAsync:    isAsync,
		Docstring:  pyDocstring(n, source),
		Language:   graph.LangPython,
	}
	res.Symbols = append(res.Symbols, sym)

	if params := n.ChildByFieldName("parameters"); params != nil {
		e.typeRefsInParams(params, id, filePath, source, res)
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		e.typeRefs(rt, id, filePath, source, res)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		e.extractBlock(body, id, false, filePath, source, res)
	}
	return id
}

func (e *pythonExtractor) extractClass(n, wrap *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) string {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(nameNode, source)
	anchor := n
	if wrap != nil {
		anchor = wrap
	}
	id := graph.SymbolID(filePath, name, startLine(anchor))
	sym := graph.Symbol{
		ID:         id,
		Name:       name,
		Kind:       graph.SymbolClass,
		FilePath:   filePath,
		StartLine:  startLine(anchor),
		EndLine:    endLine(anchor),
		StartByte:  int(anchor.StartByte()),
		EndByte:    int(anchor.EndByte()),
		ParentID:   parentID,
		Visibility: pyVisibility(name),
		Docstring:  pyDocstring(n, source),
		Language:   graph.LangPython,
	}
	res.Symbols = append(res.Symbols, sym)

	if super := n.ChildByFieldName("superclasses"); super != nil {
		for _, arg := range childrenOfKind(super, "identifier", "attribute") {
			parent := nodeText(arg, source)
			res.Edges = append(res.Edges, mkEdge(id, parent, graph.EdgeInherits, filePath, startLine(super)))
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		e.extractBlock(body, id, true, filePath, source, res)
	}
	return id
}

func hasAsyncKeyword(n *sitter.Node, source []byte) bool {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c != nil && nodeText(c, source) == "async" {
			return true
		}
	}
	return false
}

// pyDocstring returns the leading triple-quoted string statement of a
// function/class body, trimmed.
func pyDocstring(n *sitter.Node, source []byte) string {
	body := n.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first == nil || first.Kind() != "expression_statement" {
		return ""
	}
	if first.ChildCount() == 0 {
		return ""
	}
	strNode := first.Child(0)
	if strNode == nil || strNode.Kind() != "string" {
		return ""
	}
	text := nodeText(strNode, source)
	text = strings.Trim(text, `"'`)
	return strings.TrimSpace(text)
}

func (e *pythonExtractor) typeRefsInParams(params *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	for _, p := range childrenOfKind(params, "typed_parameter", "typed_default_parameter") {
		if t := p.ChildByFieldName("type"); t != nil {
			e.typeRefs(t, ownerID, filePath, source, res)
		}
	}
}

func (e *pythonExtractor) typeRefs(n *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "identifier", "attribute":
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

func (e *pythonExtractor) walkCallsAndExtras(stmt *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	walkCollectCalls(stmt, pyScopeKinds, func(n *sitter.Node) {
		switch n.Kind() {
		case "call":
			if fn := n.ChildByFieldName("function"); fn != nil {
				res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(fn, source), graph.EdgeCalls, filePath, startLine(n)))
			}
		case "raise_statement":
			if exc := firstNamedDescendant(n, "call", "identifier", "attribute"); exc != nil {
				var name string
				if exc.Kind() == "call" {
					if fn := exc.ChildByFieldName("function"); fn != nil {
						name = nodeText(fn, source)
					}
				} else {
					name = nodeText(exc, source)
				}
				if name != "" {
					res.Edges = append(res.Edges, mkEdge(ownerID, name, graph.EdgeRaises, filePath, startLine(n)))
				}
			}
		case "except_clause":
			for _, t := range childrenOfKind(n, "identifier", "attribute", "tuple", "as_pattern") {
				target := t
				if t.Kind() == "as_pattern" {
					// `except ValueError as e` wraps the type in an as_pattern
					target = t.Child(0)
					if target == nil {
						continue
					}
				}
				if target.Kind() == "tuple" {
					for _, inner := range childrenOfKind(target, "identifier", "attribute") {
						res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(inner, source), graph.EdgeReferences, filePath, startLine(n)))
					}
					continue
				}
				res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(target, source), graph.EdgeReferences, filePath, startLine(n)))
			}
		}
	})
}

// firstNamedDescendant returns the first child (depth limited to the raise
// statement's direct expression) matching one of kinds.
func firstNamedDescendant(n *sitter.Node, kinds ...string) *sitter.Node {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c != nil && want[c.Kind()] {
			return c
		}
	}
	return nil
}

func (e *pythonExtractor) extractImport(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	if n.Kind() == "import_statement" {
		for _, name := range childrenOfKind(n, "dotted_name", "aliased_import") {
			module := name
			if name.Kind() == "aliased_import" {
				if d := name.ChildByFieldName("name"); d != nil {
					module = d
				}
			}
			modName := nodeText(module, source)
			id := graph.SymbolID(filePath, modName, startLine(n))
			res.Symbols = append(res.Symbols, graph.Symbol{
				ID: id, Name: modName, Kind: graph.SymbolImport, FilePath: filePath,
				StartLine: startLine(n), EndLine: endLine(n),
				StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
				Visibility: graph.VisibilityPublic, Language: graph.LangPython,
			})
			res.Edges = append(res.Edges, mkEdge(id, modName, graph.EdgeImports, filePath, startLine(n)))
		}
		return
	}
	// import_from_statement: module_name field + name children
	moduleNode := n.ChildByFieldName("module_name")
	moduleName := ""
	if moduleNode != nil {
		moduleName = nodeText(moduleNode, source)
	}
	id := graph.SymbolID(filePath, moduleName, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: moduleName, Kind: graph.SymbolImport, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: graph.VisibilityPublic, Language: graph.LangPython,
	})
	for _, name := range childrenOfKind(n, "dotted_name", "aliased_import") {
		if moduleNode != nil && name.StartByte() == moduleNode.StartByte() && name.EndByte() == moduleNode.EndByte() {
			continue // the module_name field is itself a dotted_name child
		}
		imported := name
		if name.Kind() == "aliased_import" {
			if d := name.ChildByFieldName("name"); d != nil {
				imported = d
			}
		}
		res.Edges = append(res.Edges, mkEdge(id, nodeText(imported, source), graph.EdgeImports, filePath, startLine(n)))
	}
}
