package manifest

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// PythonScanner parses poetry.lock and requirements*.txt files.
type PythonScanner struct{}

func NewPythonScanner() *PythonScanner { return &PythonScanner{} }

func (s *PythonScanner) Name() string { return "python" }

func (s *PythonScanner) SupportedFiles() []string {
	return []string{"poetry.lock", "requirements.txt", "requirements-*.txt", "requirements/*.txt"}
}

func (s *PythonScanner) CanScan(path string) bool {
	base := filepath.Base(path)
	return base == "poetry.lock" ||
		base == "requirements.txt" ||
		strings.HasPrefix(base, "requirements-") && strings.HasSuffix(base, ".txt") ||
		filepath.Base(filepath.Dir(path)) == "requirements" && strings.HasSuffix(base, ".txt")
}

func (s *PythonScanner) Scan(path string) (*ScanResult, error) {
	if filepath.Base(path) == "poetry.lock" {
		return s.scanPoetryLock(path)
	}
	return s.scanRequirementsTxt(path)
}

func (s *PythonScanner) scanPoetryLock(path string) (*ScanResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Lockfile: path, Ecosystem: "pypi"}

	for _, pkg := range parsePoetryPackages(string(content)) {
		dep := Dependency{Name: pkg.name, Version: pkg.version, Source: pkg.source, Ecosystem: "pypi", LockfileRef: path}
		if pkg.optional {
			dep.Extras = map[string]string{"optional": "true"}
		}
		result.Dependencies = append(result.Dependencies, dep)
	}

	return result, nil
}

type poetryPackage struct {
	name, version, source string
	optional              bool
}

func parsePoetryPackages(content string) []poetryPackage {
	var packages []poetryPackage

	namePattern := regexp.MustCompile(`(?m)^name\s*=\s*"([^"]+)"`)
	versionPattern := regexp.MustCompile(`(?m)^version\s*=\s*"([^"]+)"`)
	sourcePattern := regexp.MustCompile(`(?m)^source\s*=\s*"([^"]+)"`)
	optionalPattern := regexp.MustCompile(`(?m)^optional\s*=\s*true`)

	for _, section := range strings.Split(content, "[[package]]") {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if idx := strings.Index(section, "[["); idx != -1 {
			section = section[:idx]
		}

		var pkg poetryPackage
		if m := namePattern.FindStringSubmatch(section); m != nil {
			pkg.name = m[1]
		}
		if m := versionPattern.FindStringSubmatch(section); m != nil {
			pkg.version = m[1]
		}
		if m := sourcePattern.FindStringSubmatch(section); m != nil {
			pkg.source = m[1]
		}
		if optionalPattern.MatchString(section) {
			pkg.optional = true
		}
		if pkg.name != "" && pkg.version != "" {
			packages = append(packages, pkg)
		}
	}

	return packages
}

func (s *PythonScanner) scanRequirementsTxt(path string) (*ScanResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result := &ScanResult{Lockfile: path, Ecosystem: "pypi"}

	pkgPattern := regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)\s*(==|>=|<=|~=|!=|>|<)?\s*([^\s;#\[]*)`)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}

		match := pkgPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := strings.ToLower(strings.ReplaceAll(match[1], "_", "-"))
		dep := Dependency{Name: name, Version: match[3], Ecosystem: "pypi", LockfileRef: path}

		if idx := strings.Index(line, "["); idx != -1 {
			if endIdx := strings.Index(line[idx:], "]"); endIdx != -1 {
				dep.Extras = map[string]string{"extras": line[idx+1 : idx+endIdx]}
			}
		}

		result.Dependencies = append(result.Dependencies, dep)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
