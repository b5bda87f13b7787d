// Package config centralizes the handful of settings the indexer, watch
// loop, and retrieval layer need: where the store lives, where the
// embedding/rerank servers are, and the watch loop's timing knobs.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// StoreFileName is the fixed, single-tenant store filename created at the
// indexing root. There is no per-project override.
const StoreFileName = ".cartog.db"

// Config is the resolved runtime configuration, bound from flags, env vars,
// and a config file by the cobra command tree via viper.
type Config struct {
	// Root is the directory being indexed/watched.
	Root string

	// EmbedURL is the base URL of the TEI-compatible embedding server.
	EmbedURL string

	// RerankURL is the base URL of the TEI-compatible cross-encoder server.
	RerankURL string

	// WatchDebounce is the filesystem-event coalescing window.
	WatchDebounce time.Duration

	// RAGDelay is how long the watch loop waits after the last index run
	// before refreshing embeddings for newly-indexed symbols.
	RAGDelay time.Duration
}

// New resolves configuration from viper, which the cobra root command binds
// to flags, a config file, and environment variables (CARTOG_ prefix).
func New() Config {
	return Config{
		Root:          viper.GetString("root"),
		EmbedURL:      viper.GetString("rag.embed_url"),
		RerankURL:     viper.GetString("rag.rerank_url"),
		WatchDebounce: viper.GetDuration("watch.debounce"),
		RAGDelay:      viper.GetDuration("watch.rag_delay"),
	}
}

// SetDefaults installs the package defaults into viper before flag binding.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", ".")
	v.SetDefault("rag.embed_url", "http://localhost:8080")
	v.SetDefault("rag.rerank_url", "http://localhost:8081")
	v.SetDefault("watch.debounce", 2*time.Second)
	v.SetDefault("watch.rag_delay", 30*time.Second)
}

// StorePath returns the fixed `.cartog.db` path under root.
func StorePath(root string) string {
	return filepath.Join(root, StoreFileName)
}

// ModelCacheDir resolves the dense-encoder model cache directory:
// FASTEMBED_CACHE_DIR first, then XDG_CACHE_HOME, then HOME/USERPROFILE as
// a last-resort fallback.
func ModelCacheDir() string {
	if dir := os.Getenv("FASTEMBED_CACHE_DIR"); dir != "" {
		return dir
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "cartog", "models")
	}
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE")
	}
	if home != "" {
		return filepath.Join(home, ".cache", "cartog", "models")
	}
	return filepath.Join(".", ".cartog-cache", "models")
}
