package watch

import "testing"

func TestIsRelevantPath(t *testing.T) {
	root := "/repo"
	cases := []struct {
		path string
		want bool
	}{
		{"/repo/main.go", true},
		{"/repo/pkg/sub/util.py", true},
		{"/repo/README.md", false},              // unsupported extension
		{"/repo/node_modules/lib/index.js", false}, // ignored component
		{"/repo/.git/HEAD", false},
		{"/other/main.go", false}, // outside root
	}
	for _, c := range cases {
		if got := isRelevantPath(c.path, root); got != c.want {
			t.Errorf("isRelevantPath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestIsIgnoredComponent(t *testing.T) {
	for _, name := range []string{".git", "node_modules", "vendor", ".mypy_cache", ".hidden"} {
		if !isIgnoredComponent(name) {
			t.Errorf("expected %q to be ignored", name)
		}
	}
	for _, name := range []string{"src", "internal", "main.go"} {
		if isIgnoredComponent(name) {
			t.Errorf("expected %q not to be ignored", name)
		}
	}
}
