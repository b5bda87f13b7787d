package manifest

import (
	"path/filepath"
	"strings"
)

// NpmScanner parses npm package-lock.json files.
type NpmScanner struct{}

// NewNpmScanner creates a new npm lockfile scanner.
func NewNpmScanner() *NpmScanner {
	return &NpmScanner{}
}

func (s *NpmScanner) Name() string { return "npm" }

func (s *NpmScanner) SupportedFiles() []string {
	return []string{"package-lock.json"}
}

func (s *NpmScanner) CanScan(path string) bool {
	return filepath.Base(path) == "package-lock.json"
}

// Scan parses a package-lock.json and extracts dependencies.
func (s *NpmScanner) Scan(path string) (*ScanResult, error) {
	var lockfile packageLockJSON
	if err := readJSON(path, &lockfile); err != nil {
		return nil, err
	}

	result := &ScanResult{
		Lockfile:  path,
		Ecosystem: "npm",
	}

	// package-lock.json v2/v3 format uses "packages"
	if lockfile.Packages != nil {
		for pkgPath, pkg := range lockfile.Packages {
			if pkgPath == "" {
				continue
			}
			name := extractPackageName(pkgPath)
			if name == "" {
				continue
			}
			dep := Dependency{
				Name: name, Version: pkg.Version, Resolved: pkg.Resolved,
				Integrity: pkg.Integrity, Dev: pkg.Dev, Ecosystem: "npm", LockfileRef: path,
			}
			if pkg.Optional {
				dep.Extras = map[string]string{"optional": "true"}
			}
			result.Dependencies = append(result.Dependencies, dep)
		}
	}

	// v1 format uses "dependencies"
	if lockfile.Dependencies != nil && len(result.Dependencies) == 0 {
		s.extractV1Dependencies(lockfile.Dependencies, path, &result.Dependencies, false)
	}

	return result, nil
}

func (s *NpmScanner) extractV1Dependencies(deps map[string]packageLockV1Dep, lockfilePath string, result *[]Dependency, dev bool) {
	for name, pkg := range deps {
		dep := Dependency{
			Name: name, Version: pkg.Version, Resolved: pkg.Resolved,
			Integrity: pkg.Integrity, Dev: pkg.Dev || dev, Ecosystem: "npm", LockfileRef: lockfilePath,
		}
		if pkg.Optional {
			dep.Extras = map[string]string{"optional": "true"}
		}
		*result = append(*result, dep)
		if pkg.Dependencies != nil {
			s.extractV1Dependencies(pkg.Dependencies, lockfilePath, result, pkg.Dev || dev)
		}
	}
}

// extractPackageName turns a node_modules path into a package name, e.g.
// "node_modules/@types/node" -> "@types/node".
func extractPackageName(path string) string {
	const prefix = "node_modules/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	name := strings.TrimPrefix(path, prefix)
	if idx := strings.LastIndex(name, prefix); idx != -1 {
		name = name[idx+len(prefix):]
	}
	return name
}

type packageLockJSON struct {
	Name            string                      `json:"name"`
	Version         string                      `json:"version"`
	LockfileVersion int                         `json:"lockfileVersion"`
	Packages        map[string]packageLockV2Pkg `json:"packages"`
	Dependencies    map[string]packageLockV1Dep `json:"dependencies"`
}

type packageLockV2Pkg struct {
	Version   string `json:"version"`
	Resolved  string `json:"resolved"`
	Integrity string `json:"integrity"`
	Dev       bool   `json:"dev"`
	Optional  bool   `json:"optional"`
	Peer      bool   `json:"peer"`
}

type packageLockV1Dep struct {
	Version      string                      `json:"version"`
	Resolved     string                      `json:"resolved"`
	Integrity    string                      `json:"integrity"`
	Dev          bool                        `json:"dev"`
	Optional     bool                        `json:"optional"`
	Dependencies map[string]packageLockV1Dep `json:"dependencies"`
}
