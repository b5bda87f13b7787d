package languages

import (
	"fmt"
	"path/filepath"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/cartogr/cartog/internal/graph"
)

// Registry owns one extractor instance per language. Extractors retain a
// tree-sitter parser across calls and are not safe for concurrent use by
// multiple goroutines; the calling command builds one Registry and passes it
// to the single-threaded indexer.
type Registry struct {
	extractors map[graph.Language]graph.Extractor
}

// NewRegistry builds a fresh set of extractors, one per supported language.
// It fails only if a grammar cannot bind to a parser — a developer error,
// not a per-file condition.
func NewRegistry() (*Registry, error) {
	r := &Registry{extractors: make(map[graph.Language]graph.Extractor, 7)}

	builders := []struct {
		lang  graph.Language
		build func() (graph.Extractor, error)
	}{
		{graph.LangPython, newPythonExtractor},
		{graph.LangTypeScript, func() (graph.Extractor, error) { return newJSTSExtractor(graph.LangTypeScript) }},
		{graph.LangTSX, func() (graph.Extractor, error) { return newJSTSExtractor(graph.LangTSX) }},
		{graph.LangJavaScript, func() (graph.Extractor, error) { return newJSTSExtractor(graph.LangJavaScript) }},
		{graph.LangRust, newRustExtractor},
		{graph.LangGo, newGoExtractor},
		{graph.LangRuby, newRubyExtractor},
	}

	for _, b := range builders {
		ext, err := b.build()
		if err != nil {
			return nil, fmt.Errorf("bind %s grammar: %w", b.lang, err)
		}
		r.extractors[b.lang] = ext
	}
	return r, nil
}

// ExtractorFor returns the extractor registered for lang, if any.
func (r *Registry) ExtractorFor(lang graph.Language) (graph.Extractor, bool) {
	e, ok := r.extractors[lang]
	return e, ok
}

// LanguageForPath returns the language detected from a file's extension, and
// whether the extension is supported at all.
func LanguageForPath(path string) (graph.Language, bool) {
	lang, ok := graph.ExtensionLanguage[filepath.Ext(path)]
	return lang, ok
}

func newSitterParser(lang *sitter.Language) (*sitter.Parser, error) {
	p := sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		return nil, err
	}
	return p, nil
}
