package manifest

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// CargoScanner parses Rust Cargo.lock files.
type CargoScanner struct{}

func NewCargoScanner() *CargoScanner { return &CargoScanner{} }

func (s *CargoScanner) Name() string { return "cargo" }

func (s *CargoScanner) SupportedFiles() []string {
	return []string{"Cargo.lock"}
}

func (s *CargoScanner) CanScan(path string) bool {
	return filepath.Base(path) == "Cargo.lock"
}

// Scan parses a Cargo.lock (TOML, [[package]] sections) without pulling in
// a TOML dependency — the format is regular enough that a per-section
// field regexp is sufficient.
func (s *CargoScanner) Scan(path string) (*ScanResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Lockfile: path, Ecosystem: "crates.io"}

	for _, pkg := range parseCargoPackages(string(content)) {
		result.Dependencies = append(result.Dependencies, Dependency{
			Name: pkg.name, Version: pkg.version, Source: pkg.source,
			Integrity: pkg.checksum, Ecosystem: "crates.io", LockfileRef: path,
		})
	}

	return result, nil
}

type cargoPackage struct {
	name, version, source, checksum string
}

func parseCargoPackages(content string) []cargoPackage {
	var packages []cargoPackage

	namePattern := regexp.MustCompile(`(?m)^name\s*=\s*"([^"]+)"`)
	versionPattern := regexp.MustCompile(`(?m)^version\s*=\s*"([^"]+)"`)
	sourcePattern := regexp.MustCompile(`(?m)^source\s*=\s*"([^"]+)"`)
	checksumPattern := regexp.MustCompile(`(?m)^checksum\s*=\s*"([^"]+)"`)

	for _, section := range strings.Split(content, "[[package]]") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if idx := strings.Index(section, "[["); idx != -1 {
			section = section[:idx]
		}

		var pkg cargoPackage
		if m := namePattern.FindStringSubmatch(section); m != nil {
			pkg.name = m[1]
		}
		if m := versionPattern.FindStringSubmatch(section); m != nil {
			pkg.version = m[1]
		}
		if m := sourcePattern.FindStringSubmatch(section); m != nil {
			pkg.source = m[1]
		}
		if m := checksumPattern.FindStringSubmatch(section); m != nil {
			pkg.checksum = m[1]
		}
		if pkg.name != "" && pkg.version != "" {
			packages = append(packages, pkg)
		}
	}

	return packages
}
