package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNpmScannerCanScan(t *testing.T) {
	s := NewNpmScanner()
	tests := []struct {
		path string
		want bool
	}{
		{"package-lock.json", true},
		{"/foo/bar/package-lock.json", true},
		{"package.json", false},
		{"Cargo.lock", false},
	}
	for _, tt := range tests {
		if got := s.CanScan(tt.path); got != tt.want {
			t.Errorf("CanScan(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNpmScannerScanV2Format(t *testing.T) {
	dir := t.TempDir()
	lockfile := filepath.Join(dir, "package-lock.json")
	content := `{
  "name": "proj", "version": "1.0.0", "lockfileVersion": 3,
  "packages": {
    "": {"name": "proj", "version": "1.0.0"},
    "node_modules/lodash": {"version": "4.17.21", "resolved": "https://registry.npmjs.org/lodash", "integrity": "sha512-x"},
    "node_modules/@types/node": {"version": "18.0.0", "dev": true}
  }
}`
	if err := os.WriteFile(lockfile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewNpmScanner().Scan(lockfile)
	if err != nil {
		t.Fatal(err)
	}
	if result.Ecosystem != "npm" {
		t.Errorf("ecosystem = %q, want npm", result.Ecosystem)
	}
	if len(result.Dependencies) != 2 {
		t.Fatalf("got %d dependencies, want 2", len(result.Dependencies))
	}
	byName := map[string]Dependency{}
	for _, d := range result.Dependencies {
		byName[d.Name] = d
	}
	if byName["lodash"].Version != "4.17.21" {
		t.Errorf("lodash version = %q", byName["lodash"].Version)
	}
	if !byName["@types/node"].Dev {
		t.Error("@types/node should be marked dev")
	}
}

func TestCargoScannerScan(t *testing.T) {
	dir := t.TempDir()
	lockfile := filepath.Join(dir, "Cargo.lock")
	content := `# auto-generated
[[package]]
name = "serde"
version = "1.0.195"
source = "registry+https://github.com/rust-lang/crates.io-index"
checksum = "abc123"

[[package]]
name = "tokio"
version = "1.35.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
`
	if err := os.WriteFile(lockfile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewCargoScanner().Scan(lockfile)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Dependencies) != 2 {
		t.Fatalf("got %d dependencies, want 2", len(result.Dependencies))
	}
	if result.Dependencies[0].Name != "serde" || result.Dependencies[0].Integrity != "abc123" {
		t.Errorf("unexpected first dependency: %+v", result.Dependencies[0])
	}
}

func TestPythonScannerRequirementsTxt(t *testing.T) {
	dir := t.TempDir()
	reqFile := filepath.Join(dir, "requirements.txt")
	content := "# comment\nFlask==2.3.0\nrequests>=2.31.0\n-e .\nSome_Pkg[extra1,extra2]==1.0\n"
	if err := os.WriteFile(reqFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewPythonScanner().Scan(reqFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Dependencies) != 3 {
		t.Fatalf("got %d dependencies, want 3: %+v", len(result.Dependencies), result.Dependencies)
	}
	if result.Dependencies[0].Name != "flask" || result.Dependencies[0].Version != "2.3.0" {
		t.Errorf("unexpected flask entry: %+v", result.Dependencies[0])
	}
	if result.Dependencies[2].Name != "some-pkg" {
		t.Errorf("expected PEP 503 normalized name, got %q", result.Dependencies[2].Name)
	}
}

func TestScanDirectoryAggregatesAcrossEcosystems(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask==2.3.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Cargo.lock"), []byte("[[package]]\nname = \"serde\"\nversion = \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := ScanDirectory(dir, AllScanners())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d scan results, want 2", len(results))
	}
}
