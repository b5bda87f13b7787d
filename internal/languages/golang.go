package languages

import (
	"strings"
	"unicode"

	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cartogr/cartog/internal/graph"
)

type goExtractor struct {
	parser *sitter.Parser
}

func newGoExtractor() (graph.Extractor, error) {
	p, err := newSitterParser(sitter.NewLanguage(tree_sitter_go.Language()))
	if err != nil {
		return nil, err
	}
	return &goExtractor{parser: p}, nil
}

func (e *goExtractor) Language() graph.Language { return graph.LangGo }

var goScopeKinds = map[string]bool{
	"function_declaration": true,
	"method_declaration":   true,
	"func_literal":         true,
}

func (e *goExtractor) Extract(filePath string, source []byte) (graph.ExtractResult, error) {
	tree := e.parser.Parse(source, nil)
	if tree == nil {
		return graph.ExtractResult{}, nil
	}
	defer tree.Close()

	var res graph.ExtractResult
	root := tree.RootNode()
	count := root.ChildCount()
	for i := uint(0); i < count; i++ {
		e.extractTop(root.Child(i), filePath, source, &res)
	}
	return res, nil
}

func goVisibility(name string) graph.Visibility {
	r := []rune(name)
	if len(r) > 0 && unicode.IsUpper(r[0]) {
		return graph.VisibilityPublic
	}
	return graph.VisibilityPrivate
}

func (e *goExtractor) extractTop(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "function_declaration":
		e.extractFunc(n, filePath, source, res)
	case "method_declaration":
		e.extractMethod(n, filePath, source, res)
	case "type_declaration":
		e.extractTypeDecl(n, filePath, source, res)
	case "const_declaration", "var_declaration":
		e.extractVarConst(n, filePath, source, res)
	case "import_declaration":
		e.extractImport(n, filePath, source, res)
	}
}

func (e *goExtractor) extractFunc(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	id := graph.SymbolID(filePath, name, startLine(n))
	sym := graph.Symbol{
		ID:         id,
		Name:       name,
		Kind:       graph.SymbolFunction,
		FilePath:   filePath,
		StartLine:  startLine(n),
		EndLine:    endLine(n),
		StartByte:  int(n.StartByte()),
		EndByte:    int(n.EndByte()),
		Visibility: goVisibility(name),
		Signature:  goSignature(n, source),
		Docstring:  precedingLineComments(n, source, "//"),
		Language:   graph.LangGo,
	}
	res.Symbols = append(res.Symbols, sym)

	if body := n.ChildByFieldName("body"); body != nil {
		e.walkBody(body, id, filePath, source, res)
		if params := n.ChildByFieldName("parameters"); params != nil {
			e.typeRefsInParams(params, id, filePath, source, res)
		}
		if result := n.ChildByFieldName("result"); result != nil {
			e.typeRefsInNode(result, id, filePath, source, res)
		}
	}
}

func (e *goExtractor) extractMethod(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	nameNode := n.ChildByFieldName("name")
	recvNode := n.ChildByFieldName("receiver")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)
	receiverType := goReceiverType(recvNode, source)

	// Go methods are parented to a file:receiver_type shape, not the
	// canonical file:name:line formula -- documented mismatch; edge
	// resolution still works via name matching against the struct symbol.
	parentID := ""
	if receiverType != "" {
		parentID = filePath + ":" + receiverType
	}

	id := graph.SymbolID(filePath, name, startLine(n))
	sym := graph.Symbol{
		ID:         id,
		Name:       name,
		Kind:       graph.SymbolMethod,
		FilePath:   filePath,
		StartLine:  startLine(n),
		EndLine:    endLine(n),
		StartByte:  int(n.StartByte()),
		EndByte:    int(n.EndByte()),
		ParentID:   parentID,
		Visibility: goVisibility(name),
		Signature:  goSignature(n, source),
		Docstring:  precedingLineComments(n, source, "//"),
		Language:   graph.LangGo,
	}
	res.Symbols = append(res.Symbols, sym)

	if body := n.ChildByFieldName("body"); body != nil {
		e.walkBody(body, id, filePath, source, res)
		if params := n.ChildByFieldName("parameters"); params != nil {
			e.typeRefsInParams(params, id, filePath, source, res)
		}
		if result := n.ChildByFieldName("result"); result != nil {
			e.typeRefsInNode(result, id, filePath, source, res)
		}
	}
}

// goReceiverType strips pointer indirection from a method's receiver type.
func goReceiverType(recv *sitter.Node, source []byte) string {
	if recv == nil {
		return ""
	}
	// receiver: parameter_list -> parameter_declaration -> type
	params := childrenOfKind(recv, "parameter_declaration")
	if len(params) == 0 {
		return ""
	}
	typeNode := params[0].ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}
	t := nodeText(typeNode, source)
	return strings.TrimPrefix(t, "*")
}

func goSignature(n *sitter.Node, source []byte) string {
	var sb strings.Builder
	if params := n.ChildByFieldName("parameters"); params != nil {
		sb.WriteString(nodeText(params, source))
	}
	if result := n.ChildByFieldName("result"); result != nil {
		sb.WriteString(" ")
		sb.WriteString(nodeText(result, source))
	}
	return strings.TrimSpace(sb.String())
}

func (e *goExtractor) walkBody(body *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	walkCollectCalls(body, goScopeKinds, func(n *sitter.Node) {
		switch n.Kind() {
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn == nil {
				return
			}
			target := nodeText(fn, source)
			res.Edges = append(res.Edges, mkEdge(ownerID, target, graph.EdgeCalls, filePath, startLine(n)))
		case "composite_literal":
			typeNode := n.ChildByFieldName("type")
			if typeNode == nil {
				return
			}
			typeName := nodeText(typeNode, source)
			if isPascalCaseType(typeName) {
				res.Edges = append(res.Edges, mkEdge(ownerID, typeName, graph.EdgeReferences, filePath, startLine(n)))
			}
		}
	})
}

func (e *goExtractor) typeRefsInParams(params *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	for _, decl := range childrenOfKind(params, "parameter_declaration", "variadic_parameter_declaration") {
		if t := decl.ChildByFieldName("type"); t != nil {
			e.typeRefsInNode(t, ownerID, filePath, source, res)
		}
	}
}

func (e *goExtractor) typeRefsInNode(n *sitter.Node, ownerID, filePath string, source []byte, res *graph.ExtractResult) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "type_identifier", "qualified_type":
		name := nodeText(n, source)
		if isPascalCaseType(name) {
			res.Edges = append(res.Edges, mkEdge(ownerID, name, graph.EdgeReferences, filePath, startLine(n)))
		}
	case "pointer_type", "slice_type", "array_type":
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			e.typeRefsInNode(n.Child(i), ownerID, filePath, source, res)
		}
	default:
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			e.typeRefsInNode(n.Child(i), ownerID, filePath, source, res)
		}
	}
}

func (e *goExtractor) extractTypeDecl(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	for _, spec := range childrenOfKind(n, "type_spec") {
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, source)
		kind := graph.SymbolVariable
		if typeNode != nil && (typeNode.Kind() == "struct_type" || typeNode.Kind() == "interface_type") {
			kind = graph.SymbolClass
		}
		id := graph.SymbolID(filePath, name, startLine(spec))
		sym := graph.Symbol{
			ID:         id,
			Name:       name,
			Kind:       kind,
			FilePath:   filePath,
			StartLine:  startLine(spec),
			EndLine:    endLine(spec),
			StartByte:  int(spec.StartByte()),
			EndByte:    int(spec.EndByte()),
			Visibility: goVisibility(name),
			Docstring:  precedingLineComments(n, source, "//"),
			Language:   graph.LangGo,
		}
		res.Symbols = append(res.Symbols, sym)

		if typeNode != nil && typeNode.Kind() == "interface_type" {
			for _, elem := range childrenOfKind(typeNode, "type_elem") {
				embedded := nodeText(elem, source)
				if isPascalCaseType(embedded) {
					res.Edges = append(res.Edges, mkEdge(id, embedded, graph.EdgeInherits, filePath, startLine(elem)))
				}
			}
		}
	}
}

func (e *goExtractor) extractVarConst(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	kindName := "var_spec"
	if n.Kind() == "const_declaration" {
		kindName = "const_spec"
	}
	for _, spec := range childrenOfKind(n, kindName) {
		names := childrenOfKind(spec, "identifier")
		for _, nameNode := range names {
			name := nodeText(nameNode, source)
			res.Symbols = append(res.Symbols, graph.Symbol{
				ID:         graph.SymbolID(filePath, name, startLine(spec)),
				Name:       name,
				Kind:       graph.SymbolVariable,
				FilePath:   filePath,
				StartLine:  startLine(spec),
				EndLine:    endLine(spec),
				StartByte:  int(spec.StartByte()),
				EndByte:    int(spec.EndByte()),
				Visibility: goVisibility(name),
				Language:   graph.LangGo,
			})
		}
	}
}

func (e *goExtractor) extractImport(n *sitter.Node, filePath string, source []byte, res *graph.ExtractResult) {
	var specs []*sitter.Node
	if list := childrenOfKind(n, "import_spec_list"); len(list) > 0 {
		specs = childrenOfKind(list[0], "import_spec")
	} else {
		specs = childrenOfKind(n, "import_spec")
	}
	for _, spec := range specs {
		pathNode := spec.ChildByFieldName("path")
		if pathNode == nil {
			continue
		}
		full := strings.Trim(nodeText(pathNode, source), `"`)
		last := full
		if idx := strings.LastIndex(full, "/"); idx >= 0 {
			last = full[idx+1:]
		}
		id := graph.SymbolID(filePath, last, startLine(spec))
		res.Symbols = append(res.Symbols, graph.Symbol{
			ID: id, Name: last, Kind: graph.SymbolImport, FilePath: filePath,
			StartLine: startLine(spec), EndLine: endLine(spec),
			StartByte: int(spec.StartByte()), EndByte: int(spec.EndByte()),
			Visibility: graph.VisibilityPublic, Language: graph.LangGo,
		})
		res.Edges = append(res.Edges, mkEdge(id, full, graph.EdgeImports, filePath, startLine(spec)))
	}
}

// precedingLineComments collects contiguous comment siblings immediately
// before n that start with prefix, joining them with single spaces.
func precedingLineComments(n *sitter.Node, source []byte, prefix string) string {
	var lines []string
	cur := prevSibling(n)
	for cur != nil && cur.Kind() == "comment" {
		text := strings.TrimSpace(nodeText(cur, source))
		if !strings.HasPrefix(text, prefix) {
			break
		}
		lines = append([]string{strings.TrimSpace(strings.TrimPrefix(text, prefix))}, lines...)
		cur = prevSibling(cur)
	}
	return joinCommentLines(lines)
}
