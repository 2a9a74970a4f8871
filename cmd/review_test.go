package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
)

func resetReviewFlags() {
	reviewShowFixes = false
	reviewApply = false
	reviewAutoApply = false
}

// The usage check runs before config loading and provider construction, so
// a bad flag combination can never cost an API call.
func TestAutoApplyRequiresShowFixes(t *testing.T) {
	defer resetReviewFlags()

	rootCmd.SetArgs([]string{"review-files", "app.py", "--auto-apply"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected a usage error")
	}
	if !strings.Contains(err.Error(), "--auto-apply requires --show-fixes") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyRequiresShowFixes(t *testing.T) {
	defer resetReviewFlags()

	rootCmd.SetArgs([]string{"review-files", "app.py", "--apply"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected a usage error")
	}
	if !strings.Contains(err.Error(), "--apply requires --show-fixes") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"en":    "en",
		"EN":    "en",
		"pt-br": "pt-BR",
		"PT-BR": "pt-BR",
		"es":    "es",
	}
	for in, want := range cases {
		got, err := normalizeLanguage(in)
		if err != nil {
			t.Fatalf("normalizeLanguage(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("normalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}

	_, err := normalizeLanguage("fr")
	if err == nil {
		t.Fatal("expected an error for an unsupported language")
	}
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected a config error, got %T", err)
	}
}

func TestHostedReviewRejectsBadNumber(t *testing.T) {
	for _, arg := range []string{"abc", "0", "-3"} {
		err := runHostedReview("github", "acme/billing", arg)
		if err == nil {
			t.Fatalf("expected an error for number %q", arg)
		}
		if !strings.Contains(err.Error(), "invalid change request number") {
			t.Fatalf("unexpected error for %q: %v", arg, err)
		}
	}
}
