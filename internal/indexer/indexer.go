// Package indexer walks a source tree, detects changed files by
// version-control diff or content hash, extracts each changed file through
// the language registry, and replaces its graph data transactionally.
// Indexing is single-threaded per call rather than a worker pool: a local
// dev-tool's disk I/O dominates wall time far more than extraction CPU does.
package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cartogr/cartog/internal/git"
	"github.com/cartogr/cartog/internal/graph"
	"github.com/cartogr/cartog/internal/languages"
)

// ignoredDirs is the hard-coded set of directory basenames the walk never
// descends into. Any name with a leading dot is also skipped, checked
// separately.
var ignoredDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "__pycache__": true,
	".mypy_cache": true, ".pytest_cache": true, ".tox": true,
	".venv": true, "venv": true, ".env": true, "env": true,
	"target": true, "dist": true, "build": true,
	".next": true, ".nuxt": true, "vendor": true,
}

func isIgnoredDir(name string) bool {
	if ignoredDirs[name] {
		return true
	}
	return strings.HasPrefix(name, ".")
}

// Result summarizes one index_directory call.
type Result struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesRemoved  int
	SymbolsAdded  int
	EdgesAdded    int
	EdgesResolved int
}

// IndexDirectory runs the full incremental index procedure against root,
// using store for persistence and registry for per-language extraction.
func IndexDirectory(store *graph.Store, registry *languages.Registry, root string, force bool) (Result, error) {
	var result Result

	root, err := filepath.Abs(root)
	if err != nil {
		return result, err
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	currentFiles := make(map[string]bool)

	changedFiles := changedFileSet(store, root, force)

	gitClient := git.NewClient(root)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("directory walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != root && isIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		lang, ok := languages.LanguageForPath(relPath)
		if !ok {
			return nil
		}

		currentFiles[relPath] = true

		if !force && changedFiles != nil {
			if !changedFiles[relPath] {
				if _, known, err := store.GetFileHash(relPath); err == nil && known {
					result.FilesSkipped++
					return nil
				}
			}
		}

		source, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("cannot read file", "file", relPath, "error", err)
			return nil
		}
		if !isValidText(source) {
			return nil
		}

		hash := fileHash(source)

		if !force {
			if existingHash, known, err := store.GetFileHash(relPath); err == nil && known && existingHash == hash {
				result.FilesSkipped++
				return nil
			}
		}

		extractor, ok := registry.ExtractorFor(lang)
		if !ok {
			result.FilesSkipped++
			return nil
		}

		extraction, err := extractor.Extract(relPath, source)
		if err != nil {
			slog.Warn("extraction failed", "file", relPath, "error", err)
			return nil
		}

		contents := symbolContents(source, extraction.Symbols)

		info := graph.FileInfo{
			Path:         relPath,
			LastModified: fileModified(path),
			Hash:         hash,
			Language:     lang,
			NumSymbols:   len(extraction.Symbols),
		}
		if err := store.ReplaceFile(info, extraction.Symbols, extraction.Edges, contents); err != nil {
			return err
		}

		result.FilesIndexed++
		result.SymbolsAdded += len(extraction.Symbols)
		result.EdgesAdded += len(extraction.Edges)
		return nil
	})
	if walkErr != nil {
		return result, walkErr
	}

	allIndexed, err := store.AllFilePaths()
	if err != nil {
		return result, err
	}
	for _, indexed := range allIndexed {
		if !currentFiles[indexed] {
			if err := store.RemoveFile(indexed); err != nil {
				return result, err
			}
			result.FilesRemoved++
		}
	}

	resolved, err := store.ResolveEdges()
	if err != nil {
		return result, err
	}
	result.EdgesResolved = resolved

	if head, ok := gitClient.HeadCommit(); ok {
		if err := store.SetMetadata("last_commit", head); err != nil {
			return result, err
		}
	}

	return result, nil
}

// changedFileSet implements the git-based change-detection strategy: absent
// a usable last_commit or a git repository, it returns nil, meaning "treat
// every file as potentially changed; fall through to the hash check".
func changedFileSet(store *graph.Store, root string, force bool) map[string]bool {
	if force {
		return nil
	}
	lastCommit, ok, err := store.GetMetadata("last_commit")
	if err != nil || !ok || lastCommit == "" {
		return nil
	}

	gitClient := git.NewClient(root)
	if !gitClient.IsRepository() || !gitClient.CommitExists(lastCommit) {
		return nil
	}

	files, err := gitClient.ChangedSince(lastCommit)
	if err != nil {
		return nil
	}
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[filepath.ToSlash(f)] = true
	}
	return set
}

func fileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func fileModified(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.ModTime().UnixNano()) / float64(time.Second)
}

// isValidText rejects files that contain a NUL byte in their first 8KiB, the
// same heuristic Go's own internal binary-detection helpers use.
func isValidText(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return false
		}
	}
	return true
}

// symbolContents slices the raw source text spanned by each symbol, for the
// full-text/content row the store maintains alongside the graph.
func symbolContents(source []byte, symbols []graph.Symbol) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		start, end := sym.StartByte, sym.EndByte
		if start < 0 || end > len(source) || start > end {
			continue
		}
		out[sym.ID] = string(source[start:end])
	}
	return out
}

// ErrNoStore is returned by callers that attempt to index without first
// opening a store; callers surface it as a fatal startup error.
var ErrNoStore = errors.New("indexer: store not open")
