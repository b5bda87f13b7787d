// Package languages implements the per-language tree-sitter extractors that
// turn source text into the canonical symbol/edge schema defined by
// internal/graph.
package languages

import (
	"strings"
	"unicode"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cartogr/cartog/internal/graph"
)

// nodeText slices the original source by byte offsets. Preferred over
// node.Utf8Text for hot paths since it avoids an extra UTF-8 validation pass;
// every extractor in this package reads node text through it.
func nodeText(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > uint(len(source)) || start > end {
		return ""
	}
	return string(source[start:end])
}

func startLine(n *sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPosition().Row) + 1
}

// childrenOfKind returns the direct children of n whose Kind() is in kinds.
func childrenOfKind(n *sitter.Node, kinds ...string) []*sitter.Node {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*sitter.Node
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		c := n.Child(i)
		if c != nil && want[c.Kind()] {
			out = append(out, c)
		}
	}
	return out
}

// walkCollectCalls performs an explicit-stack traversal of a scope body,
// invoking visit on every node encountered, but refusing to descend into
// any node whose Kind() is a scope-forming kind — the enclosing scope owns
// only its own calls, per the shared extractor contract. visit itself may
// be called on the scope-forming node (so e.g. a nested function's header
// can still be inspected) but its children are skipped.
func walkCollectCalls(root *sitter.Node, scopeKinds map[string]bool, visit func(n *sitter.Node)) {
	if root == nil {
		return
	}
	type frame struct {
		node    *sitter.Node
		isOuter bool // true for the root call itself, never skip its own children
	}
	stack := []frame{{root, true}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.node
		visit(n)
		if !f.isOuter && scopeKinds[n.Kind()] {
			continue // don't descend into nested scopes
		}
		count := n.ChildCount()
		for i := count; i > 0; i-- {
			c := n.Child(i - 1)
			if c != nil {
				stack = append(stack, frame{c, false})
			}
		}
	}
}

// isPascalCaseType reports whether s looks like a type identifier: starts with
// an uppercase letter and is not one of the known lower-case primitives.
var primitiveTypeNames = map[string]bool{
	"int": true, "str": true, "bool": true, "float": true, "bytes": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"f32": true, "f64": true, "char": true, "string": true, "number": true,
	"boolean": true, "void": true, "any": true, "unknown": true, "never": true,
	"object": true, "symbol": true, "undefined": true, "null": true,
}

func isPascalCaseType(s string) bool {
	// strip generic args and pointer/reference sigils before testing the head
	head := s
	if idx := strings.IndexAny(head, "<[("); idx >= 0 {
		head = head[:idx]
	}
	head = strings.TrimLeft(head, "&*")
	if head == "" {
		return false
	}
	// take the last path segment for scoped names; the whole string is
	// still emitted verbatim as target_name by the caller.
	last := head
	if idx := strings.LastIndex(last, "::"); idx >= 0 {
		last = last[idx+2:]
	}
	if idx := strings.LastIndex(last, "."); idx >= 0 {
		last = last[idx+1:]
	}
	if primitiveTypeNames[strings.ToLower(last)] {
		return false
	}
	r := []rune(last)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

// joinCommentLines joins doc-comment lines, already stripped of their
// comment prefix and whitespace by the caller, into a single docstring
// separated by single spaces.
func joinCommentLines(lines []string) string {
	return strings.Join(lines, " ")
}

// trimBlockComment strips /* */ delimiters, leading '*' margins, and any
// line beginning with '@' (JSDoc directive lines).
func trimBlockComment(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "/**")
	s = strings.TrimPrefix(s, "/*")
	s = strings.TrimSuffix(s, "*/")
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, " ")
}

// prevSibling walks the parent's children to find the node immediately
// before n, since go-tree-sitter nodes do not expose a PrevSibling method
// directly usable without a cursor.
func prevSibling(n *sitter.Node) *sitter.Node {
	parent := n.Parent()
	if parent == nil {
		return nil
	}
	count := parent.ChildCount()
	var prev *sitter.Node
	for i := uint(0); i < count; i++ {
		c := parent.Child(i)
		if c == nil {
			continue
		}
		if c.StartByte() == n.StartByte() && c.EndByte() == n.EndByte() && c.Kind() == n.Kind() {
			return prev
		}
		prev = c
	}
	return nil
}

func mkEdge(sourceID, targetName string, kind graph.EdgeKind, filePath string, line int) graph.Edge {
	return graph.Edge{SourceID: sourceID, TargetName: targetName, Kind: kind, FilePath: filePath, Line: line}
}
