package graph

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is a single-handle SQLite database holding the symbol/edge graph,
// file metadata, symbol content, and the vector and full-text indices that
// back retrieval. A single Store is shared by the indexer and every query
// entry point. Store holds no lock of its own: concurrent callers share the
// one *sql.DB handle and its connection pool, and nothing serializes their
// statements.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (or reuses) a `.cartog.db` file at path, applying the
// session pragmas and schema. The journaling mode this enables allows a
// second handle (e.g. the watch loop's reader) to coexist with the writer.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",  // 64 MiB page cache (negative = KiB)
		"PRAGMA mmap_size = 268435456", // 256 MiB
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			last_modified REAL NOT NULL,
			hash TEXT NOT NULL,
			language TEXT NOT NULL,
			num_symbols INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			file_path TEXT NOT NULL,
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			start_byte INTEGER NOT NULL,
			end_byte INTEGER NOT NULL,
			parent_id TEXT,
			signature TEXT,
			visibility TEXT NOT NULL,
			is_async INTEGER NOT NULL DEFAULT 0,
			docstring TEXT,
			language TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_parent_id ON symbols(parent_id)`,
		`CREATE TABLE IF NOT EXISTS edges (
			source_id TEXT NOT NULL,
			target_name TEXT NOT NULL,
			target_id TEXT,
			kind TEXT NOT NULL,
			file_path TEXT NOT NULL,
			line INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source_id ON edges(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target_name ON edges(target_name)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target_id ON edges(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind)`,
		`CREATE TABLE IF NOT EXISTS symbol_content (
			symbol_id TEXT PRIMARY KEY REFERENCES symbols(id) ON DELETE CASCADE,
			header TEXT NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			embedding_id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id TEXT UNIQUE NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
			vector BLOB NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS content_fts USING fts5(
			symbol_id UNINDEXED,
			content,
			normalized_name,
			tokenize = 'unicode61'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

// ReplaceFile atomically swaps out every symbol, edge, and content row for
// filePath and upserts its FileInfo row, all inside one transaction so the
// index never observes a partially replaced file.
func (s *Store) ReplaceFile(info FileInfo, symbols []Symbol, edges []Edge, contents map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldIDs []string
	oldRows, err := tx.Query(`SELECT id FROM symbols WHERE file_path = ?`, info.Path)
	if err != nil {
		return fmt.Errorf("list previous symbols: %w", err)
	}
	for oldRows.Next() {
		var id string
		if err := oldRows.Scan(&id); err != nil {
			oldRows.Close()
			return fmt.Errorf("scan previous symbol id: %w", err)
		}
		oldIDs = append(oldIDs, id)
	}
	oldRows.Close()
	if err := oldRows.Err(); err != nil {
		return fmt.Errorf("list previous symbols: %w", err)
	}

	if len(oldIDs) > 0 {
		placeholders := strings.Repeat("?,", len(oldIDs))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]interface{}, len(oldIDs))
		for i, id := range oldIDs {
			args[i] = id
		}
		if _, err := tx.Exec(`DELETE FROM content_fts WHERE symbol_id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("clear fts rows: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM edges WHERE file_path = ?`, info.Path); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	// symbol_content and embeddings rows for these ids cascade-delete via
	// their ON DELETE CASCADE foreign keys.
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, info.Path); err != nil {
		return fmt.Errorf("clear symbols: %w", err)
	}

	symStmt, err := tx.Prepare(`
		INSERT INTO symbols (id, name, kind, file_path, start_line, end_line,
			start_byte, end_byte, parent_id, signature, visibility, is_async, docstring, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, kind=excluded.kind, file_path=excluded.file_path,
			start_line=excluded.start_line, end_line=excluded.end_line,
			start_byte=excluded.start_byte, end_byte=excluded.end_byte,
			parent_id=excluded.parent_id, signature=excluded.signature,
			visibility=excluded.visibility, is_async=excluded.is_async,
			docstring=excluded.docstring, language=excluded.language
	`)
	if err != nil {
		return fmt.Errorf("prepare symbol insert: %w", err)
	}
	defer symStmt.Close()

	for _, sym := range symbols {
		var parentID interface{}
		if sym.ParentID != "" {
			parentID = sym.ParentID
		}
		isAsync := 0
		if sym.IsAsync {
			isAsync = 1
		}
		if _, err := symStmt.Exec(sym.ID, sym.Name, string(sym.Kind), sym.FilePath,
			sym.StartLine, sym.EndLine, sym.StartByte, sym.EndByte, parentID,
			sym.Signature, string(sym.Visibility), isAsync, sym.Docstring, string(sym.Language)); err != nil {
			return fmt.Errorf("insert symbol %s: %w", sym.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(`
		INSERT INTO edges (source_id, target_name, target_id, kind, file_path, line)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		var targetID interface{}
		if e.TargetID != "" {
			targetID = e.TargetID
		}
		if _, err := edgeStmt.Exec(e.SourceID, e.TargetName, targetID, string(e.Kind), e.FilePath, e.Line); err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}
	}

	contentStmt, err := tx.Prepare(`
		INSERT INTO symbol_content (symbol_id, header, content) VALUES (?, ?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET header=excluded.header, content=excluded.content
	`)
	if err != nil {
		return fmt.Errorf("prepare content insert: %w", err)
	}
	defer contentStmt.Close()

	ftsStmt, err := tx.Prepare(`INSERT INTO content_fts (symbol_id, content, normalized_name) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare fts insert: %w", err)
	}
	defer ftsStmt.Close()

	bySymbol := make(map[string]Symbol, len(symbols))
	for _, sym := range symbols {
		bySymbol[sym.ID] = sym
	}
	for id, content := range contents {
		header := ""
		if sym, ok := bySymbol[id]; ok {
			header = symbolHeader(sym)
		}
		if _, err := contentStmt.Exec(id, header, content); err != nil {
			return fmt.Errorf("insert content %s: %w", id, err)
		}
		if _, err := ftsStmt.Exec(id, content, normalizeSymbolName(bySymbol[id].Name)); err != nil {
			return fmt.Errorf("insert fts %s: %w", id, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO files (path, last_modified, hash, language, num_symbols)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			last_modified=excluded.last_modified, hash=excluded.hash,
			language=excluded.language, num_symbols=excluded.num_symbols
	`, info.Path, info.LastModified, info.Hash, string(info.Language), len(symbols)); err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	return tx.Commit()
}

// symbolHeader builds the short "header" string used both as the embedding
// input prefix and as a compact display line: kind name(signature).
func symbolHeader(sym Symbol) string {
	if sym.Signature != "" {
		return fmt.Sprintf("%s %s%s", sym.Kind, sym.Name, sym.Signature)
	}
	return fmt.Sprintf("%s %s", sym.Kind, sym.Name)
}

var caseBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// normalizeSymbolName splits camelCase/PascalCase/SNAKE_CASE names into
// lowercase space-separated words, e.g. validateToken -> "validate token".
func normalizeSymbolName(name string) string {
	s := caseBoundary.ReplaceAllString(name, "$1 $2")
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// RemoveFile deletes a file's symbols, edges, and content rows. Used when a
// previously indexed file disappears from the current walk.
func (s *Store) RemoveFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM edges WHERE file_path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM content_fts WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return err
	}
	return tx.Commit()
}

// KnownFiles returns the path/hash of every indexed file, for the indexer's
// deferred-read change-detection pass.
func (s *Store) KnownFiles() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT path, hash FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, h string
		if err := rows.Scan(&p, &h); err != nil {
			return nil, err
		}
		out[p] = h
	}
	return out, rows.Err()
}

// GetFileHash returns the stored content hash for path, and whether the
// file is known to the store at all. The indexer's deferred-read change
// detection uses this to decide whether a file needs to be read at all.
func (s *Store) GetFileHash(path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// AllFilePaths returns every indexed file path, used to find orphans after
// a walk completes.
func (s *Store) AllFilePaths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetMetadata / GetMetadata implement the small key-value sidecar table used
// for last_commit tracking.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	return err
}

func (s *Store) GetMetadata(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// escapeLike escapes the SQL LIKE metacharacters % and _ plus the escape
// character itself, so a user query is matched literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func kindRank(kind string) int {
	switch SymbolKind(kind) {
	case SymbolFunction:
		return 0
	case SymbolMethod:
		return 1
	case SymbolClass:
		return 2
	default:
		return 3
	}
}

// Search implements the three-tier ranked structural search over symbol
// names: exact, then prefix, then substring, all case-insensitive, with
// wildcard characters in query treated as literals.
func (s *Store) Search(query string, kindFilter, fileFilter string, limit int) ([]Symbol, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	escaped := escapeLike(query)

	var where strings.Builder
	args := []interface{}{}
	where.WriteString(`WHERE (lower(name) = lower(?) OR lower(name) LIKE lower(?) ESCAPE '\' OR lower(name) LIKE lower(?) ESCAPE '\')`)
	args = append(args, query, escaped+"%", "%"+escaped+"%")
	if kindFilter != "" {
		where.WriteString(` AND kind = ?`)
		args = append(args, kindFilter)
	}
	if fileFilter != "" {
		where.WriteString(` AND file_path = ?`)
		args = append(args, fileFilter)
	}

	rows, err := s.db.Query(`
		SELECT id, name, kind, file_path, start_line, end_line, start_byte, end_byte,
			coalesce(parent_id,''), coalesce(signature,''), visibility, is_async,
			coalesce(docstring,''), language
		FROM symbols `+where.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	symbols, err := scanSymbols(rows)
	if err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(query)
	tier := func(name string) int {
		ln := strings.ToLower(name)
		switch {
		case ln == lowerQuery:
			return 0
		case strings.HasPrefix(ln, lowerQuery):
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(symbols, func(i, j int) bool {
		ti, tj := tier(symbols[i].Name), tier(symbols[j].Name)
		if ti != tj {
			return ti < tj
		}
		ki, kj := kindRank(string(symbols[i].Kind)), kindRank(string(symbols[j].Kind))
		if ki != kj {
			return ki < kj
		}
		if symbols[i].FilePath != symbols[j].FilePath {
			return symbols[i].FilePath < symbols[j].FilePath
		}
		return symbols[i].StartLine < symbols[j].StartLine
	})
	if len(symbols) > limit {
		symbols = symbols[:limit]
	}
	return symbols, nil
}

func scanSymbols(rows *sql.Rows) ([]Symbol, error) {
	var out []Symbol
	for rows.Next() {
		var sym Symbol
		var kind, visibility, language string
		var isAsync int
		if err := rows.Scan(&sym.ID, &sym.Name, &kind, &sym.FilePath, &sym.StartLine,
			&sym.EndLine, &sym.StartByte, &sym.EndByte, &sym.ParentID, &sym.Signature,
			&visibility, &isAsync, &sym.Docstring, &language); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		sym.Kind = ParseSymbolKind(kind)
		sym.Visibility = Visibility(visibility)
		sym.IsAsync = isAsync != 0
		sym.Language = Language(language)
		out = append(out, sym)
	}
	return out, rows.Err()
}

// Outline returns every symbol in filePath, ordered by start_line.
func (s *Store) Outline(filePath string) ([]Symbol, error) {
	rows, err := s.db.Query(`
		SELECT id, name, kind, file_path, start_line, end_line, start_byte, end_byte,
			coalesce(parent_id,''), coalesce(signature,''), visibility, is_async,
			coalesce(docstring,''), language
		FROM symbols WHERE file_path = ? ORDER BY start_line
	`, filePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSymbols(rows)
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var out []Edge
	for rows.Next() {
		var e Edge
		var kind string
		var targetID sql.NullString
		if err := rows.Scan(&e.SourceID, &e.TargetName, &targetID, &kind, &e.FilePath, &e.Line); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.TargetID = targetID.String
		e.Kind = ParseEdgeKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Callees returns every `calls` edge whose source symbol has the given name.
func (s *Store) Callees(name string) ([]Edge, error) {
	rows, err := s.db.Query(`
		SELECT e.source_id, e.target_name, e.target_id, e.kind, e.file_path, e.line
		FROM edges e JOIN symbols s ON s.id = e.source_id
		WHERE s.name = ? AND e.kind = 'calls'
		ORDER BY e.file_path, e.line
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

// RefRow pairs an edge with the symbol that produced it.
type RefRow struct {
	Edge   Edge
	Source Symbol
}

// Refs returns every edge whose target_name equals name, or whose resolved
// target_id points to a symbol named name, joined to the source symbol.
// Duplicates across the two match paths are retained; callers treat the
// result as a flat, possibly-duplicated sequence.
func (s *Store) Refs(name string, kindFilter string) ([]RefRow, error) {
	var rows *sql.Rows
	var err error
	query := `
		SELECT e.source_id, e.target_name, e.target_id, e.kind, e.file_path, e.line,
			s.id, s.name, s.kind, s.file_path, s.start_line, s.end_line, s.start_byte, s.end_byte,
			coalesce(s.parent_id,''), coalesce(s.signature,''), s.visibility, s.is_async,
			coalesce(s.docstring,''), s.language
		FROM edges e JOIN symbols s ON s.id = e.source_id
		WHERE (e.target_name = ?
			OR e.target_id IN (SELECT id FROM symbols WHERE name = ?))
	`
	args := []interface{}{name, name}
	if kindFilter != "" {
		query += ` AND e.kind = ?`
		args = append(args, kindFilter)
	}
	query += ` ORDER BY e.file_path, e.line`
	rows, err = s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RefRow
	for rows.Next() {
		var r RefRow
		var edgeKind, symKind, visibility, language string
		var targetID sql.NullString
		var isAsync int
		if err := rows.Scan(&r.Edge.SourceID, &r.Edge.TargetName, &targetID, &edgeKind,
			&r.Edge.FilePath, &r.Edge.Line,
			&r.Source.ID, &r.Source.Name, &symKind, &r.Source.FilePath, &r.Source.StartLine,
			&r.Source.EndLine, &r.Source.StartByte, &r.Source.EndByte, &r.Source.ParentID,
			&r.Source.Signature, &visibility, &isAsync, &r.Source.Docstring, &language); err != nil {
			return nil, fmt.Errorf("scan ref row: %w", err)
		}
		r.Edge.TargetID = targetID.String
		r.Edge.Kind = ParseEdgeKind(edgeKind)
		r.Source.Kind = ParseSymbolKind(symKind)
		r.Source.Visibility = Visibility(visibility)
		r.Source.IsAsync = isAsync != 0
		r.Source.Language = Language(language)
		out = append(out, r)
	}
	return out, rows.Err()
}

// HierarchyPair is a (child, parent) class-name pair surfaced by `inherits`
// edges.
type HierarchyPair struct {
	Child  string
	Parent string
}

// Hierarchy returns inherits edges where either endpoint equals className.
func (s *Store) Hierarchy(className string) ([]HierarchyPair, error) {
	rows, err := s.db.Query(`
		SELECT s.name, e.target_name
		FROM edges e JOIN symbols s ON s.id = e.source_id
		WHERE e.kind = 'inherits' AND (s.name = ? OR e.target_name = ?)
	`, className, className)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HierarchyPair
	for rows.Next() {
		var p HierarchyPair
		if err := rows.Scan(&p.Child, &p.Parent); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FileDeps returns `imports` edges recorded for filePath.
func (s *Store) FileDeps(filePath string) ([]Edge, error) {
	rows, err := s.db.Query(`
		SELECT source_id, target_name, target_id, kind, file_path, line
		FROM edges WHERE file_path = ? AND kind = 'imports'
		ORDER BY line
	`, filePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEdges(rows)
}

// ImpactEntry is one step of an impact traversal: the edge that reached a
// symbol, and the BFS depth at which it was discovered.
type ImpactEntry struct {
	Edge  Edge
	Depth int
}

// Impact performs the explicit-stack breadth-first traversal described by
// the store contract: starting from seed, repeatedly call Refs and follow
// not-yet-visited source-symbol names up to maxDepth, deduping by name. Emission
// order follows stack order; callers treat the result as unordered.
func (s *Store) Impact(seed string, maxDepth int) ([]ImpactEntry, error) {
	type frame struct {
		name  string
		depth int
	}
	stack := []frame{{seed, 0}}
	visited := make(map[string]bool)
	var out []ImpactEntry

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth >= maxDepth || visited[f.name] {
			continue
		}
		visited[f.name] = true

		refs, err := s.Refs(f.name, "")
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			out = append(out, ImpactEntry{Edge: r.Edge, Depth: f.depth + 1})
			if !visited[r.Source.Name] {
				stack = append(stack, frame{r.Source.Name, f.depth + 1})
			}
		}
	}
	return out, nil
}

// ResolveEdges fills target_id for every edge still missing one, in strict
// same-file -> same-directory -> globally-unique-project-wide priority. It
// runs inside a single transaction and returns the count of newly resolved
// edges.
func (s *Store) ResolveEdges() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT rowid, target_name, file_path FROM edges WHERE target_id IS NULL`)
	if err != nil {
		return 0, err
	}
	type pending struct {
		rowid      int64
		targetName string
		filePath   string
	}
	var items []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.rowid, &p.targetName, &p.filePath); err != nil {
			rows.Close()
			return 0, err
		}
		items = append(items, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	resolveStmt, err := tx.Prepare(`UPDATE edges SET target_id = ? WHERE rowid = ?`)
	if err != nil {
		return 0, err
	}
	defer resolveStmt.Close()

	sameFileStmt, err := tx.Prepare(`SELECT id FROM symbols WHERE name = ? AND file_path = ? LIMIT 1`)
	if err != nil {
		return 0, err
	}
	defer sameFileStmt.Close()

	sameDirStmt, err := tx.Prepare(`SELECT id FROM symbols WHERE name = ? AND file_path LIKE ? ESCAPE '\' LIMIT 2`)
	if err != nil {
		return 0, err
	}
	defer sameDirStmt.Close()

	uniqueStmt, err := tx.Prepare(`SELECT id FROM symbols WHERE name = ? LIMIT 2`)
	if err != nil {
		return 0, err
	}
	defer uniqueStmt.Close()

	resolved := 0
	for _, p := range items {
		simple := lastSegment(p.targetName)

		var id string
		err := sameFileStmt.QueryRow(simple, p.filePath).Scan(&id)
		if err == sql.ErrNoRows {
			id = ""
		} else if err != nil {
			return resolved, err
		}

		if id == "" {
			dir := filepath.Dir(p.filePath)
			pattern := escapeLike(dir) + `/%`
			ids, err := queryFirstTwo(sameDirStmt, simple, pattern)
			if err != nil {
				return resolved, err
			}
			if len(ids) == 1 {
				id = ids[0]
			}
		}

		if id == "" {
			ids, err := queryFirstTwo(uniqueStmt, simple)
			if err != nil {
				return resolved, err
			}
			if len(ids) == 1 {
				id = ids[0]
			}
		}

		if id == "" {
			continue
		}
		if _, err := resolveStmt.Exec(id, p.rowid); err != nil {
			return resolved, err
		}
		resolved++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return resolved, nil
}

func queryFirstTwo(stmt *sql.Stmt, args ...interface{}) ([]string, error) {
	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// lastSegment returns the final '.' or '::' delimited segment of a
// dotted/scoped name, matching the edge-resolution contract's "simple"
// target name derivation.
func lastSegment(targetName string) string {
	name := targetName
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		name = name[idx+2:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// Stats aggregates file, symbol, and edge counts for reporting.
type Stats struct {
	FileCount           int
	SymbolCount         int
	EdgeCount           int
	ResolvedEdgeCount   int
	FilesByLanguage     []CountPair
	SymbolsByKind       []CountPair
}

// CountPair is a (label, count) row, used for the per-language and per-kind
// breakdowns in Stats.
type CountPair struct {
	Label string
	Count int
}

func (s *Store) Stats() (Stats, error) {
	var stats Stats
	if err := s.db.QueryRow(`SELECT count(*) FROM files`).Scan(&stats.FileCount); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT count(*) FROM symbols`).Scan(&stats.SymbolCount); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT count(*) FROM edges`).Scan(&stats.EdgeCount); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT count(*) FROM edges WHERE target_id IS NOT NULL`).Scan(&stats.ResolvedEdgeCount); err != nil {
		return stats, err
	}

	langRows, err := s.db.Query(`SELECT language, count(*) c FROM files GROUP BY language ORDER BY c DESC`)
	if err != nil {
		return stats, err
	}
	defer langRows.Close()
	for langRows.Next() {
		var p CountPair
		if err := langRows.Scan(&p.Label, &p.Count); err != nil {
			return stats, err
		}
		stats.FilesByLanguage = append(stats.FilesByLanguage, p)
	}
	if err := langRows.Err(); err != nil {
		return stats, err
	}

	kindRows, err := s.db.Query(`SELECT kind, count(*) c FROM symbols GROUP BY kind ORDER BY c DESC`)
	if err != nil {
		return stats, err
	}
	defer kindRows.Close()
	for kindRows.Next() {
		var p CountPair
		if err := kindRows.Scan(&p.Label, &p.Count); err != nil {
			return stats, err
		}
		stats.SymbolsByKind = append(stats.SymbolsByKind, p)
	}
	return stats, kindRows.Err()
}

// --- embedding-layer primitives, shared with internal/retrieval ---

// SymbolIDsWithoutEmbedding returns every symbol id lacking an embeddings row.
func (s *Store) SymbolIDsWithoutEmbedding() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT s.id FROM symbols s
		LEFT JOIN embeddings e ON e.symbol_id = s.id
		WHERE e.symbol_id IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ClearEmbeddings deletes every embeddings row, used by index_embeddings(force=true).
func (s *Store) ClearEmbeddings() error {
	_, err := s.db.Exec(`DELETE FROM embeddings`)
	return err
}

// ContentFor batch-fetches (header, content) for a set of symbol ids.
func (s *Store) ContentFor(ids []string) (map[string]struct{ Header, Content string }, error) {
	out := make(map[string]struct{ Header, Content string }, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(`SELECT symbol_id, header, content FROM symbol_content WHERE symbol_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, header, content string
		if err := rows.Scan(&id, &header, &content); err != nil {
			return nil, err
		}
		out[id] = struct{ Header, Content string }{header, content}
	}
	return out, rows.Err()
}

// PutEmbeddings upserts vectors for a batch of (symbolID, float32 vector)
// pairs, serializing each as little-endian 4-byte floats.
func (s *Store) PutEmbeddings(vectors map[string][]float32) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`
		INSERT INTO embeddings (symbol_id, vector) VALUES (?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET vector=excluded.vector
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for id, vec := range vectors {
		if _, err := stmt.Exec(id, Float32SliceToBytes(vec)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AllEmbeddings returns every (symbol_id, vector) pair currently stored, for
// the brute-force KNN scan the retrieval layer performs.
func (s *Store) AllEmbeddings() (map[string][]float32, error) {
	rows, err := s.db.Query(`SELECT symbol_id, vector FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var buf []byte
		if err := rows.Scan(&id, &buf); err != nil {
			return nil, err
		}
		out[id] = BytesToFloat32Slice(buf)
	}
	return out, rows.Err()
}

// EmbeddingCount reports how many symbols currently have a stored embedding.
func (s *Store) EmbeddingCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT count(*) FROM embeddings`).Scan(&n)
	return n, err
}

// SymbolsByID batch-fetches full symbol rows, preserving no particular order;
// callers re-order by their own candidate list.
func (s *Store) SymbolsByID(ids []string) (map[string]Symbol, error) {
	out := make(map[string]Symbol, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.Query(`
		SELECT id, name, kind, file_path, start_line, end_line, start_byte, end_byte,
			coalesce(parent_id,''), coalesce(signature,''), visibility, is_async,
			coalesce(docstring,''), language
		FROM symbols WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	symbols, err := scanSymbols(rows)
	if err != nil {
		return nil, err
	}
	for _, sym := range symbols {
		out[sym.ID] = sym
	}
	return out, nil
}

// SearchFTSPhrase, SearchFTSAnd, SearchFTSOr implement the three full-text
// query strategies tried in order by the retrieval layer; each returns
// matching symbol ids ranked by bm25(). Only tokenizer/syntax errors should
// trigger fallback to the next strategy -- callers inspect the error text.
func (s *Store) SearchFTSPhrase(q string) ([]string, error) {
	return s.searchFTS(fmt.Sprintf(`"%s"`, escapeFTSQuotes(q)))
}

func (s *Store) SearchFTSAnd(q string) ([]string, error) {
	terms := strings.Fields(q)
	if len(terms) < 2 {
		return nil, nil
	}
	var parts []string
	for _, t := range terms {
		parts = append(parts, fmt.Sprintf(`"%s"`, escapeFTSQuotes(t)))
	}
	return s.searchFTS(strings.Join(parts, " AND "))
}

func (s *Store) SearchFTSOr(q string) ([]string, error) {
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return nil, nil
	}
	var parts []string
	for _, t := range terms {
		parts = append(parts, fmt.Sprintf(`"%s"`, escapeFTSQuotes(t)))
	}
	return s.searchFTS(strings.Join(parts, " OR "))
}

func escapeFTSQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

func (s *Store) searchFTS(matchExpr string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT symbol_id FROM content_fts WHERE content_fts MATCH ?
		ORDER BY bm25(content_fts)
	`, matchExpr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Float32SliceToBytes packs a float32 vector as little-endian 4-byte floats,
// with no header -- the wire format used for persisted vectors.
func Float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// BytesToFloat32Slice is the inverse of Float32SliceToBytes.
func BytesToFloat32Slice(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		return nil
	}
	floats := make([]float32, len(buf)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return floats
}
