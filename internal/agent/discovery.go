package agent

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CollectFiles expands CLI arguments into the ordered file set for a
// session. Explicit file arguments are kept even when missing, so the
// session report can show their failure. Directories are walked for Python
// sources, recursively unless disabled. The result is deduplicated;
// directory contents come out in lexical walk order.
func CollectFiles(paths []string, ignore []string, recursive bool) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			if !ignored(p, ignore) {
				add(p)
			}
			continue
		}
		root := p
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && !recursive {
					return fs.SkipDir
				}
				if d.Name() == ".git" || ignored(path, ignore) {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".py") {
				return nil
			}
			if ignored(path, ignore) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return out, nil
}

// ignored reports whether path matches any ignore glob. Patterns are
// tested against the slash path, the base name, and each path segment, so
// "venv", "*.gen.py", and "build/*" all behave the way users expect.
func ignored(path string, patterns []string) bool {
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		if ok, _ := filepath.Match(pat, slashed); ok {
			return true
		}
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
		for _, seg := range strings.Split(slashed, "/") {
			if ok, _ := filepath.Match(pat, seg); ok {
				return true
			}
		}
	}
	return false
}
