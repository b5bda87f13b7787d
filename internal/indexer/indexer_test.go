package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cartogr/cartog/internal/graph"
	"github.com/cartogr/cartog/internal/languages"
)

func newTestStore(t *testing.T) *graph.Store {
	t.Helper()
	store, err := graph.Open(filepath.Join(t.TempDir(), ".cartog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPythonMethodCall(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "service.py", "class UserService:\n    def __init__(self, db):\n        self.db = db\n")

	store := newTestStore(t)
	registry, err := languages.NewRegistry()
	require.NoError(t, err)

	res, err := IndexDirectory(store, registry, root, true)
	require.NoError(t, err)
	require.Equal(t, 1, res.FilesIndexed)

	symbols, err := store.Outline("service.py")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	require.Equal(t, graph.SymbolClass, symbols[0].Kind)
	require.Equal(t, graph.SymbolMethod, symbols[1].Kind)
	require.Equal(t, symbols[0].ID, symbols[1].ParentID)

	refs, err := store.Refs("__init__", "")
	require.NoError(t, err)
	require.Empty(t, refs)

	callees, err := store.Callees("__init__")
	require.NoError(t, err)
	require.Empty(t, callees)
}

func TestInheritanceResolution(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "class Animal:\n    pass\n")
	writeFile(t, root, "b.py", "class Dog(Animal):\n    pass\n")

	store := newTestStore(t)
	registry, err := languages.NewRegistry()
	require.NoError(t, err)

	_, err = IndexDirectory(store, registry, root, true)
	require.NoError(t, err)

	pairs, err := store.Hierarchy("Dog")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	require.Equal(t, "Dog", pairs[0].Child)
	require.Equal(t, "Animal", pairs[0].Parent)

	refs, err := store.Refs("Animal", "inherits")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.NotEmpty(t, refs[0].Edge.TargetID)
}

// A name defined in two unrelated packages, referenced from a third, must
// stay unresolved rather than guess.
func TestAmbiguousCall(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg_a/utils.py", "def helper():\n    pass\n")
	writeFile(t, root, "pkg_b/utils.py", "def helper():\n    pass\n")
	writeFile(t, root, "app/main.py", "def process():\n    helper()\n")

	store := newTestStore(t)
	registry, err := languages.NewRegistry()
	require.NoError(t, err)

	res, err := IndexDirectory(store, registry, root, true)
	require.NoError(t, err)
	require.Equal(t, 0, res.EdgesResolved)

	refs, err := store.Refs("helper", "calls")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	require.Equal(t, "helper", refs[0].Edge.TargetName)
	require.Empty(t, refs[0].Edge.TargetID)
}

func TestImpactTransitivity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "chain.py", "def a():\n    pass\n\n\ndef b():\n    a()\n\n\ndef c():\n    b()\n")

	store := newTestStore(t)
	registry, err := languages.NewRegistry()
	require.NoError(t, err)

	_, err = IndexDirectory(store, registry, root, true)
	require.NoError(t, err)

	entries, err := store.Impact("a", 2)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	depths := map[int]bool{}
	sources := map[string]bool{}
	for _, e := range entries {
		depths[e.Depth] = true
		sources[e.Edge.SourceID] = true
	}
	require.True(t, depths[1])
	require.True(t, depths[2])
	require.True(t, sources[graph.SymbolID("chain.py", "b", 5)])
	require.True(t, sources[graph.SymbolID("chain.py", "c", 9)])
}

func TestIndexDirectoryIdempotentWithoutForce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mod.py", "def x():\n    pass\n")

	store := newTestStore(t)
	registry, err := languages.NewRegistry()
	require.NoError(t, err)

	r1, err := IndexDirectory(store, registry, root, false)
	require.NoError(t, err)
	require.Equal(t, 1, r1.FilesIndexed)

	r2, err := IndexDirectory(store, registry, root, false)
	require.NoError(t, err)
	require.Equal(t, 0, r2.FilesIndexed)
	require.Equal(t, 1, r2.FilesSkipped)
}

func TestIndexDirectoryRemovesOrphanedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.py", "def keep():\n    pass\n")
	writeFile(t, root, "drop.py", "def drop():\n    pass\n")

	store := newTestStore(t)
	registry, err := languages.NewRegistry()
	require.NoError(t, err)

	_, err = IndexDirectory(store, registry, root, true)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "drop.py")))

	res, err := IndexDirectory(store, registry, root, true)
	require.NoError(t, err)
	require.Equal(t, 1, res.FilesRemoved)

	outline, err := store.Outline("drop.py")
	require.NoError(t, err)
	require.Empty(t, outline)
}

func TestIsIgnoredDir(t *testing.T) {
	for _, name := range []string{".git", "node_modules", "__pycache__", "target", "dist", "build", ".venv", ".hidden"} {
		require.True(t, isIgnoredDir(name), name)
	}
	for _, name := range []string{"src", "lib", "tests", "docs"} {
		require.False(t, isIgnoredDir(name), name)
	}
}

func TestFileHashDeterministic(t *testing.T) {
	h1 := fileHash([]byte("def foo(): pass"))
	h2 := fileHash([]byte("def foo(): pass"))
	require.Equal(t, h1, h2)

	h3 := fileHash([]byte("def bar(): pass"))
	require.NotEqual(t, h1, h3)
}
