package profiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CosmoTheDev/ctrlreview/models"
)

func TestParseFrontmatter(t *testing.T) {
	data := []byte(`---
name: custom
version: 2
description: test profile
focus: [security]
language: pt-BR
---

Focus on injection.`)

	p, err := parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Name != "custom" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Version != 2 {
		t.Errorf("Version = %d", p.Version)
	}
	if len(p.Focus) != 1 || p.Focus[0] != "security" {
		t.Errorf("Focus = %v", p.Focus)
	}
	if p.Language != "pt-BR" {
		t.Errorf("Language = %q", p.Language)
	}
	if p.Body != "Focus on injection." {
		t.Errorf("Body = %q", p.Body)
	}
}

func TestParseWithoutFrontmatter(t *testing.T) {
	p, err := parse([]byte("just guidance text\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Name != "" {
		t.Errorf("Name = %q, want empty", p.Name)
	}
	if p.Body != "just guidance text" {
		t.Errorf("Body = %q", p.Body)
	}
}

func TestParseUnterminatedFrontmatter(t *testing.T) {
	if _, err := parse([]byte("---\nname: broken\n")); err == nil {
		t.Fatal("expected error for unterminated frontmatter")
	}
}

func TestAllowsCategory(t *testing.T) {
	p := &Profile{Focus: []string{"security", "docs"}}
	if !p.AllowsCategory(models.CategorySecurity) {
		t.Error("security should be allowed")
	}
	if !p.AllowsCategory(models.CategoryDocumentation) {
		t.Error("docs alias should allow documentation")
	}
	if p.AllowsCategory(models.CategoryStyleIssue) {
		t.Error("style should be filtered out")
	}

	empty := &Profile{}
	if !empty.AllowsCategory(models.CategoryStyleIssue) {
		t.Error("empty focus should allow everything")
	}
}

func TestLoadUserProfileShadowsBundled(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "default.md"), []byte("custom body"), 0o640); err != nil {
		t.Fatal(err)
	}

	p, err := Load("default", dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Body != "custom body" {
		t.Errorf("Body = %q, want user override", p.Body)
	}
	if p.Bundled {
		t.Error("user profile reported as bundled")
	}
	if p.Name != "default" {
		t.Errorf("Name = %q", p.Name)
	}
}

func TestLoadBundled(t *testing.T) {
	p, err := Load("security", t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !p.Bundled {
		t.Error("expected bundled profile")
	}
	if p.Name != "security" {
		t.Errorf("Name = %q", p.Name)
	}
	if len(p.Focus) == 0 {
		t.Error("security profile should restrict focus")
	}
	if p.Body == "" {
		t.Error("empty body")
	}
}

func TestLoadUnknownProfile(t *testing.T) {
	if _, err := Load("does-not-exist", t.TempDir()); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestListIncludesBundledDefaults(t *testing.T) {
	ps, err := List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	have := make(map[string]bool, len(ps))
	for _, p := range ps {
		have[p.Name] = true
	}
	for _, want := range []string{"default", "strict", "security", "docs"} {
		if !have[want] {
			t.Errorf("bundled profile %q missing from List", want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	p := &Profile{Name: "x"}
	ctx := ToContext(context.Background(), p)
	if FromContext(ctx) != p {
		t.Fatal("profile lost in context round trip")
	}
	if FromContext(context.Background()) != nil {
		t.Fatal("empty context should yield nil profile")
	}
}
