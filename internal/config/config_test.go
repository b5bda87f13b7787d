package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCacheDirPrecedence(t *testing.T) {
	t.Setenv("FASTEMBED_CACHE_DIR", "/fastembed/cache")
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	assert.Equal(t, "/fastembed/cache", ModelCacheDir())

	os.Unsetenv("FASTEMBED_CACHE_DIR")
	assert.Equal(t, "/xdg/cache/cartog/models", ModelCacheDir())

	os.Unsetenv("XDG_CACHE_HOME")
	t.Setenv("HOME", "/home/dev")
	assert.Equal(t, "/home/dev/.cache/cartog/models", ModelCacheDir())
}

func TestStorePath(t *testing.T) {
	require.Equal(t, "proj/.cartog.db", StorePath("proj"))
}
