package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestCollectFilesWalksRecursively(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.py":          "x = 1\n",
		"pkg/b.py":      "y = 2\n",
		"pkg/deep/c.py": "z = 3\n",
		"notes.txt":     "not python\n",
		"pkg/data.json": "{}\n",
	})

	files, err := CollectFiles([]string{dir}, nil, true)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.py"),
		filepath.Join(dir, "pkg", "b.py"),
		filepath.Join(dir, "pkg", "deep", "c.py"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("file %d: got %s want %s", i, files[i], want[i])
		}
	}
}

func TestCollectFilesNonRecursive(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.py":     "x = 1\n",
		"pkg/b.py": "y = 2\n",
	})

	files, err := CollectFiles([]string{dir}, nil, false)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 1 || files[0] != filepath.Join(dir, "a.py") {
		t.Fatalf("expected only top-level a.py, got %v", files)
	}
}

func TestCollectFilesHonorsIgnorePatterns(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.py":        "x = 1\n",
		"a_pb2.py":    "generated\n",
		"venv/lib.py": "vendored\n",
		"src/ok.py":   "y = 2\n",
	})

	files, err := CollectFiles([]string{dir}, []string{"venv", "*_pb2.py"}, true)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.py"),
		filepath.Join(dir, "src", "ok.py"),
	}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("file %d: got %s want %s", i, files[i], want[i])
		}
	}
}

func TestCollectFilesKeepsExplicitArguments(t *testing.T) {
	dir := writeTree(t, map[string]string{"notes.txt": "explicit non-python\n"})
	missing := filepath.Join(dir, "gone.py")
	txt := filepath.Join(dir, "notes.txt")

	files, err := CollectFiles([]string{missing, txt}, nil, true)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 || files[0] != missing || files[1] != txt {
		t.Fatalf("explicit arguments must be kept as given, got %v", files)
	}
}

func TestCollectFilesDeduplicates(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.py": "x = 1\n"})
	explicit := filepath.Join(dir, "a.py")

	files, err := CollectFiles([]string{explicit, dir}, nil, true)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 1 || files[0] != explicit {
		t.Fatalf("expected a single deduplicated entry, got %v", files)
	}
}

func TestCollectFilesSkipsGitDir(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"a.py":            "x = 1\n",
		".git/hooks/h.py": "not source\n",
	})

	files, err := CollectFiles([]string{dir}, nil, true)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 1 || files[0] != filepath.Join(dir, "a.py") {
		t.Fatalf("expected .git to be skipped, got %v", files)
	}
}
