// Package git provides shell-based wrappers for the handful of read-only
// git plumbing commands the indexer needs for incremental change detection.
// It uses os/exec instead of go-git to ensure compatibility with the
// user's SSH keys, GPG signing config, and other shell environment settings.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotGitRepository is returned by callers that need a hard failure
// signal; most indexer call sites instead treat "not a repository" as
// "no incremental information available" and fall through to full scan.
var ErrNotGitRepository = errors.New("not a git repository")

// Commander is an interface for executing commands. This allows mocking
// in tests without shelling out to a real git binary.
type Commander interface {
	Run(name string, args ...string) (string, error)
	RunInDir(dir, name string, args ...string) (string, error)
}

// ShellCommander executes real shell commands.
type ShellCommander struct{}

// Run executes a command in the current directory.
func (c *ShellCommander) Run(name string, args ...string) (string, error) {
	return c.RunInDir("", name, args...)
}

// RunInDir executes a command in the specified directory.
func (c *ShellCommander) RunInDir(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%w: %s", err, errMsg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Client wraps the read-only git plumbing operations the indexer relies on.
type Client struct {
	commander Commander
	workDir   string
}

// NewClient creates a new git client for the given directory.
func NewClient(workDir string) *Client {
	return &Client{commander: &ShellCommander{}, workDir: workDir}
}

// NewClientWithCommander creates a client with a custom commander (for testing).
func NewClientWithCommander(workDir string, commander Commander) *Client {
	return &Client{commander: commander, workDir: workDir}
}

// IsGitInstalled checks if the git binary is available in PATH.
func (c *Client) IsGitInstalled() bool {
	_, err := c.commander.Run("git", "--version")
	return err == nil
}

// IsRepository reports whether workDir is inside a git working tree.
func (c *Client) IsRepository() bool {
	out, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// HeadCommit returns the current HEAD commit hash, or ("", false) if there
// is no reachable commit (e.g. a freshly initialized repository).
func (c *Client) HeadCommit() (string, bool) {
	out, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(out), true
}

// CommitExists reports whether commit is a reachable object in this
// repository, used to guard against a stale last_commit metadata value
// (e.g. after a rebase or history rewrite).
func (c *Client) CommitExists(commit string) bool {
	out, err := c.commander.RunInDir(c.workDir, "git", "cat-file", "-t", commit)
	return err == nil && strings.TrimSpace(out) == "commit"
}

// ChangedSince returns the union of files changed between commit and HEAD,
// plus untracked, unstaged, and staged files relative to the working tree
// — the full "possibly touched since last index" set the deferred-read
// change-detection pass in the indexer needs.
func (c *Client) ChangedSince(commit string) ([]string, error) {
	set := make(map[string]bool)

	diffOut, err := c.commander.RunInDir(c.workDir, "git", "diff", "--name-only", commit+"..HEAD")
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	addLines(set, diffOut)

	untrackedOut, err := c.commander.RunInDir(c.workDir, "git", "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("git ls-files --others: %w", err)
	}
	addLines(set, untrackedOut)

	unstagedOut, err := c.commander.RunInDir(c.workDir, "git", "diff", "--name-only")
	if err != nil {
		return nil, fmt.Errorf("git diff (unstaged): %w", err)
	}
	addLines(set, unstagedOut)

	stagedOut, err := c.commander.RunInDir(c.workDir, "git", "diff", "--name-only", "--cached")
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	addLines(set, stagedOut)

	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	return out, nil
}

func addLines(set map[string]bool, text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			set[line] = true
		}
	}
}
