// Package graph defines the canonical symbol/edge schema and the embedded
// store that persists and queries it.
package graph

import (
	"fmt"
	"log/slog"
)

// SymbolKind is the canonical kind of a code symbol.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolClass    SymbolKind = "class"
	SymbolMethod   SymbolKind = "method"
	SymbolVariable SymbolKind = "variable"
	SymbolImport   SymbolKind = "import"
)

// ParseSymbolKind normalizes a raw kind string, defaulting unknown values to
// SymbolVariable per the extraction contract and logging a warning.
func ParseSymbolKind(s string) SymbolKind {
	switch SymbolKind(s) {
	case SymbolFunction, SymbolClass, SymbolMethod, SymbolVariable, SymbolImport:
		return SymbolKind(s)
	default:
		slog.Warn("unknown symbol kind, defaulting to variable", "kind", s)
		return SymbolVariable
	}
}

// Visibility is the canonical visibility of a symbol.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
)

// EdgeKind is the canonical kind of a directed relation between symbols.
type EdgeKind string

const (
	EdgeCalls      EdgeKind = "calls"
	EdgeImports    EdgeKind = "imports"
	EdgeInherits   EdgeKind = "inherits"
	EdgeReferences EdgeKind = "references"
	EdgeRaises     EdgeKind = "raises"
)

// ParseEdgeKind normalizes a raw edge kind string, defaulting unknown values
// to EdgeReferences per the extraction contract and logging a warning.
func ParseEdgeKind(s string) EdgeKind {
	switch EdgeKind(s) {
	case EdgeCalls, EdgeImports, EdgeInherits, EdgeReferences, EdgeRaises:
		return EdgeKind(s)
	default:
		slog.Warn("unknown edge kind, defaulting to references", "kind", s)
		return EdgeReferences
	}
}

// Language is a supported source language.
type Language string

const (
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangRust       Language = "rust"
	LangGo         Language = "go"
	LangRuby       Language = "ruby"
)

// SymbolID computes the canonical symbol identity: file_path:name:start_line.
// Extractors must use this formula consistently so cross-pass references
// line up; the only sanctioned exception is the synthesized impl/receiver
// owner symbol documented next to its call sites.
func SymbolID(filePath, name string, startLine int) string {
	return fmt.Sprintf("%s:%s:%d", filePath, name, startLine)
}

// Symbol is a named program construct located in a file.
type Symbol struct {
	ID         string
	Name       string
	Kind       SymbolKind
	FilePath   string
	StartLine  int
	EndLine    int
	StartByte  int
	EndByte    int
	ParentID   string
	Signature  string
	Visibility Visibility
	IsAsync    bool
	Docstring  string
	Language   Language
}

// Edge is a directed relationship between symbols.
type Edge struct {
	SourceID   string
	TargetName string
	TargetID   string // empty until resolved
	Kind       EdgeKind
	FilePath   string
	Line       int
}

// FileInfo is per-file index metadata.
type FileInfo struct {
	Path         string
	LastModified float64 // seconds since epoch
	Hash         string  // SHA-256 hex
	Language     Language
	NumSymbols   int
}

// ExtractResult is what a language extractor produces for one file.
type ExtractResult struct {
	Symbols []Symbol
	Edges   []Edge
}

// Extractor parses one file's source into symbols and edges. Implementations
// may retain parser state across calls; they must never fail fatally on
// malformed input — a parse error yields whatever could be recovered.
type Extractor interface {
	Language() Language
	Extract(filePath string, source []byte) (ExtractResult, error)
}

// ExtensionLanguage maps a file extension (including the leading dot) to its
// indexed language. Unsupported extensions are absent from the map.
var ExtensionLanguage = map[string]Language{
	".py":  LangPython,
	".pyi": LangPython,
	".ts":  LangTypeScript,
	".tsx": LangTSX,
	".js":  LangJavaScript,
	".jsx": LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".rs":  LangRust,
	".go":  LangGo,
	".rb":  LangRuby,
}
