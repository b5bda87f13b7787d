package languages

import (
	"strings"

	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cartogr/cartog/internal/graph"
)

// jstsExtractor is the shared JavaScript/TypeScript/TSX extraction core,
// parameterized by grammar. Arrow functions and function expressions bound
// via a variable declarator are lifted to named function symbols; TS
// interfaces/enums become class-kind symbols, type aliases variable-kind.
type jstsExtractor struct {
	lang   graph.Language
	parser *sitter.Parser
}

func newJSTSExtractor(lang graph.Language) (graph.Extractor, error) {
	var sl *sitter.Language
	switch lang {
	case graph.LangTypeScript:
		sl = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case graph.LangTSX:
		sl = sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	default:
		sl = sitter.NewLanguage(tree_sitter_javascript.Language())
	}
	p, err := newSitterParser(sl)
	if err != nil {
		return nil, err
	}
	return &jstsExtractor{lang: lang, parser: p}, nil
}

func (e *jstsExtractor) Language() graph.Language { return e.lang }

var jstsScopeKinds = map[string]bool{
	"function_declaration": true,
	"function_expression":  true,
	"arrow_function":       true,
	"method_definition":    true,
	"class_declaration":    true,
	"class":                true,
	"generator_function":   true,
}

func (e *jstsExtractor) Extract(filePath string, source []byte) (graph.ExtractResult, error) {
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

func jsVisibility(name string, explicit string) graph.Visibility {
	if explicit != "" {
		switch explicit {
		case "public":
			return graph.VisibilityPublic
		case "private":
			return graph.VisibilityPrivate
		case "protected":
			return graph.VisibilityProtected
		}
	}
	switch {
	case strings.HasPrefix(name, "#"):
		return graph.VisibilityPrivate
	case strings.HasPrefix(name, "_"):
		return graph.VisibilityProtected
	default:
		return graph.VisibilityPublic
	}
}

func (e *jstsExtractor) extractBlock(block *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	count := block.ChildCount()
	for i := uint(0); i < count; i++ {
		stmt := block.Child(i)
		if stmt != nil {
			e.extractStatement(stmt, parentID, filePath, source, res)
		}
	}
}

func (e *jstsExtractor) extractStatement(stmt *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	switch stmt.Kind() {
	case "function_declaration", "generator_function_declaration":
		e.extractFunction(stmt, stmt.ChildByFieldName("name"), parentID, filePath, source, res)
	case "class_declaration", "class":
		e.extractClass(stmt, parentID, filePath, source, res)
	case "interface_declaration":
		e.extractInterface(stmt, filePath, source, res)
	case "enum_declaration":
		e.extractEnum(stmt, filePath, source, res)
	case "type_alias_declaration":
		e.extractTypeAlias(stmt, filePath, source, res)
	case "import_statement":
		e.extractImport(stmt, filePath, source, res)
	case "lexical_declaration", "variable_declaration":
		e.extractLexical(stmt, parentID, filePath, source, res)
	case "throw_statement":
		if parentID != "" {
			e.recordThrow(stmt, parentID, filePath, source, res)
		}
	default:
		if parentID != "" {
			e.walkCalls(stmt, parentID, filePath, source, res)
		}
	}
}

// extractLexical handles `const x = () => {}` / `const x = function(){}`
// by lifting the arrow/function expression to a named function symbol.
func (e *jstsExtractor) extractLexical(n *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	for _, decl := range childrenOfKind(n, "variable_declarator") {
		nameNode := decl.ChildByFieldName("name")
		valueNode := decl.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		switch valueNode.Kind() {
		case "arrow_function", "function_expression", "generator_function":
			e.extractFunction(valueNode, nameNode, parentID, filePath, source, res)
		default:
			if parentID != "" {
				e.walkCalls(decl, parentID, filePath, source, res)
			}
		}
	}
}

func (e *jstsExtractor) extractFunction(n, nameNode *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) string {
	if nameNode == nil {
		return ""
	}
	name := nodeText(nameNode, source)
	// Class methods are built by extractMethodMember, never routed through
	// here, so a nested function_declaration/arrow-function always stays a
	// function even when parentID names an enclosing function.
	id := graph.SymbolID(filePath, name, startLine(n))
	sig := ""
	if params := n.ChildByFieldName("parameters"); params != nil {
		sig = nodeText(params, source)
	}
	sym := graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolFunction, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID: parentID, Signature: sig,
		Visibility: jsVisibility(name, ""),
		IsAsync:    hasAsyncKeyword(n, source),
		Docstring:  jsDocstring(n, source),
		Language:   e.lang,
	}
	res.Symbols = append(res.Symbols, sym)
	if params := n.ChildByFieldName("parameters"); params != nil {
		e.typeRefsInParams(params, id, filePath, source, res)
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		e.typeRefs(rt, id, filePath, source, res)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Kind() == "statement_block" {
			e.extractBlock(body, id, filePath, source, res)
		} else {
			// arrow function with an expression body, e.g. `x => x.foo()`
			e.walkCalls(body, id, filePath, source, res)
		}
	}
	return id
}

func (e *jstsExtractor) extractClass(n *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	sym := graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolClass, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID: parentID, Visibility: graph.VisibilityPublic,
		Docstring: jsDocstring(n, source), Language: e.lang,
	}
	res.Symbols = append(res.Symbols, sym)

	// both grammars model heritage as a direct class_heritage child
	for _, h := range childrenOfKind(n, "class_heritage") {
		e.extendsImplements(h, id, filePath, source, res)
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	count := body.ChildCount()
	for i := uint(0); i < count; i++ {
		member := body.Child(i)
		if member == nil {
			continue
		}
		switch member.Kind() {
		case "method_definition":
			mName := member.ChildByFieldName("name")
			e.extractMethodMember(member, mName, id, filePath, source, res)
		case "field_definition", "public_field_definition":
			e.extractField(member, id, filePath, source, res)
		}
	}
}

func (e *jstsExtractor) extractMethodMember(n, nameNode *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	explicit := ""
	for _, mod := range childrenOfKind(n, "accessibility_modifier") {
		explicit = nodeText(mod, source)
	}
	id := graph.SymbolID(filePath, name, startLine(n))
	sig := ""
	if params := n.ChildByFieldName("parameters"); params != nil {
		sig = nodeText(params, source)
	}
	sym := graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolMethod, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID: parentID, Signature: sig,
		Visibility: jsVisibility(name, explicit),
		IsAsync:    hasAsyncKeyword(n, source),
		Docstring:  jsDocstring(n, source),
		Language:   e.lang,
	}
	res.Symbols = append(res.Symbols, sym)
	if params := n.ChildByFieldName("parameters"); params != nil {
		e.typeRefsInParams(params, id, filePath, source, res)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		e.extractBlock(body, id, filePath, source, res)
	}
}

func (e *jstsExtractor) extractField(n *sitter.Node, parentID, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	explicit := ""
	for _, mod := range childrenOfKind(n, "accessibility_modifier") {
		explicit = nodeText(mod, source)
	}
	id := graph.SymbolID(filePath, name, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: name, Kind: graph.SymbolVariable, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		ParentID: parentID, Visibility: jsVisibility(name, explicit), Language: e.lang,
	})
}

func (e *jstsExtractor) extendsImplements(heritage *sitter.Node, childID, filePath string, source []byte, res *graph.ExtractResult) {
	clauses := childrenOfKind(heritage, "extends_clause", "implements_clause")
	if len(clauses) == 0 {
		// plain-JS grammar: class_heritage is just `extends <expression>`,
		// with no clause wrapper node
		for _, t := range childrenOfKind(heritage, "identifier", "member_expression") {
			res.Edges = append(res.Edges, mkEdge(childID, nodeText(t, source), graph.EdgeInherits, filePath, startLine(heritage)))
		}
		return
	}
	for _, clause := range clauses {
		for _, t := range childrenOfKind(clause, "identifier", "type_identifier", "generic_type", "member_expression") {
			name := nodeText(t, source)
			if idx := strings.IndexByte(name, '<'); idx >= 0 {
				name = name[:idx]
			}
			res.Edges = append(res.Edges, mkEdge(childID, name, graph.EdgeInherits, filePath, startLine(clause)))
		}
	}
}

func (e *jstsExtractor) extractInterface(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
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
		Visibility: graph.VisibilityPublic, Docstring: jsDocstring(n, source), Language: e.lang,
	})
	for _, h := range childrenOfKind(n, "extends_type_clause") {
		for _, t := range childrenOfKind(h, "type_identifier", "generic_type") {
			res.Edges = append(res.Edges, mkEdge(id, nodeText(t, source), graph.EdgeInherits, filePath, startLine(h)))
		}
	}
}

func (e *jstsExtractor) extractEnum(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
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
		Visibility: graph.VisibilityPublic, Docstring: jsDocstring(n, source), Language: e.lang,
	})
}

func (e *jstsExtractor) extractTypeAlias(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
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
		Visibility: graph.VisibilityPublic, Docstring: jsDocstring(n, source), Language: e.lang,
	})
}

func (e *jstsExtractor) extractImport(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	srcNode := n.ChildByFieldName("source")
	module := ""
	if srcNode != nil {
		module = strings.Trim(nodeText(srcNode, source), `"'`)
	}
	id := graph.SymbolID(filePath, module, startLine(n))
	res.Symbols = append(res.Symbols, graph.Symbol{
		ID: id, Name: module, Kind: graph.SymbolImport, FilePath: filePath,
		StartLine: startLine(n), EndLine: endLine(n),
		StartByte: int(n.StartByte()), EndByte: int(n.EndByte()),
		Visibility: graph.VisibilityPublic, Language: e.lang,
	})
	res.Edges = append(res.Edges, mkEdge(id, module, graph.EdgeImports, filePath, startLine(n)))
}

func (e *jstsExtractor) typeRefsInParams(params *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	for _, p := range childrenOfKind(params, "required_parameter", "optional_parameter") {
		if t := p.ChildByFieldName("type"); t != nil {
			e.typeRefs(t, ownerID, filePath, source, res)
		}
	}
}

func (e *jstsExtractor) typeRefs(n *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "type_identifier":
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

// recordThrow captures the thrown expression: the constructor target of a
// new-expression, or a bare identifier/member path rethrown directly.
func (e *jstsExtractor) recordThrow(n *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "new_expression":
			if ctor := c.ChildByFieldName("constructor"); ctor != nil {
				res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(ctor, source), graph.EdgeRaises, filePath, startLine(n)))
				return
			}
		case "identifier", "member_expression":
			res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(c, source), graph.EdgeRaises, filePath, startLine(n)))
			return
		}
	}
}

func (e *jstsExtractor) walkCalls(stmt *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	walkCollectCalls(stmt, jstsScopeKinds, func(n *sitter.Node) {
		switch n.Kind() {
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil {
				res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(fn, source), graph.EdgeCalls, filePath, startLine(n)))
			}
		case "new_expression":
			if ctor := n.ChildByFieldName("constructor"); ctor != nil {
				res.Edges = append(res.Edges, mkEdge(ownerID, nodeText(ctor, source), graph.EdgeCalls, filePath, startLine(n)))
			}
		case "throw_statement":
			e.recordThrow(n, ownerID, filePath, source, res)
		}
	})
}

// jsDocstring returns the immediately preceding /** ... */ block comment.
func jsDocstring(n *sitter.Node, source []byte) string {
	prev := prevSibling(n)
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	text := nodeText(prev, source)
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	return trimBlockComment(text)
}
