package agent

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// runGit runs a git subcommand in dir, folding combined output into the
// error on failure.
func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...) // #nosec G204 -- "git" is a literal; args are controlled by callers
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, string(out))
	}
	return nil
}

// gitOutput runs a git subcommand in dir and returns its trimmed stdout.
func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...) // #nosec G204 -- "git" is a literal; args are controlled by callers
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = string(ee.Stderr)
		}
		return "", fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, stderr)
	}
	return strings.TrimSpace(string(out)), nil
}

// repoRoot resolves the working-tree root of the repository containing path.
func repoRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	root, err := gitOutput(filepath.Dir(abs), "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("locating repository for %s: %w", path, err)
	}
	return root, nil
}

// isTracked reports whether rel is known to git in the repository at root.
func isTracked(root, rel string) bool {
	return runGit(root, "ls-files", "--error-unmatch", "--", rel) == nil
}

// headCommit returns the current HEAD commit SHA of the repository at root.
func headCommit(root string) (string, error) {
	return gitOutput(root, "rev-parse", "HEAD")
}

// commitFile stages exactly rel and commits it with message, returning the
// new commit SHA. The pathspec on commit keeps unrelated staged changes out
// of the fix commit.
func commitFile(root, rel, message string) (string, error) {
	if err := runGit(root, "add", "--", rel); err != nil {
		return "", err
	}
	if err := runGit(root, "commit", "-m", message, "--", rel); err != nil {
		return "", err
	}
	return headCommit(root)
}

// safeRepoJoin joins base and rel, returning an error if the result would
// escape the base directory. This prevents path traversal when rel comes
// from external sources such as patch headers or PR file listings.
func safeRepoJoin(base, rel string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolving repo root: %w", err)
	}
	joined := filepath.Join(absBase, filepath.Clean(rel))
	if joined != absBase && !strings.HasPrefix(joined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes repo root", rel)
	}
	return joined, nil
}
