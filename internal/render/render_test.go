package render

import (
	"strings"
	"testing"
	"time"

	"github.com/CosmoTheDev/ctrlreview/models"
)

func sampleReport(t *testing.T) *models.SessionReport {
	t.Helper()
	started, err := time.Parse(time.RFC3339, "2026-03-14T09:30:00Z")
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return &models.SessionReport{
		SessionID:  "ab12cd34ef56",
		Provider:   "openai",
		Model:      "gpt-4o",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Results: []*models.ReviewResult{
			{
				FilePath: "main.py",
				Findings: []models.Finding{
					{FilePath: "main.py", Line: 3, Category: models.CategoryStyleIssue, Message: "Variable name should be snake_case", Source: models.SourceAIProvider},
					{FilePath: "main.py", Category: models.CategorySecurity, Message: "Avoid eval on user input", Source: models.SourceAIProvider},
				},
				Fixes: []*models.SuggestedFix{{
					ID:          1,
					TargetFile:  "main.py",
					Title:       "Rename variable",
					Description: "Improves readability.",
					Patch:       "--- a/main.py\n+++ b/main.py\n@@ -1 +1 @@\n-x = 1\n+count = 1\n",
					Status:      models.FixProposed,
				}},
			},
			{FilePath: "util.py", Err: "provider unavailable after 3 attempts"},
		},
	}
}

func TestPlainReportListsFindings(t *testing.T) {
	out := Report(sampleReport(t), Options{})

	for _, want := range []string{
		"main.py\n=======\n",
		"3: [style_issue] Variable name should be snake_case",
		"[security] Avoid eval on user input",
		"error: provider unavailable after 3 attempts",
		"Files: 2  Failed: 1  Findings: 2  Fixes applied: 0",
		"Session ab12cd34ef56",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plain output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Fix #1") {
		t.Errorf("fixes rendered without ShowFixes\n%s", out)
	}
}

func TestPlainReportShowsFixes(t *testing.T) {
	out := Report(sampleReport(t), Options{ShowFixes: true})

	if !strings.Contains(out, "Fix #1: Rename variable (proposed)") {
		t.Errorf("fix header missing\n%s", out)
	}
	if !strings.Contains(out, "+count = 1") {
		t.Errorf("patch body missing\n%s", out)
	}
}

func TestHumanReportOrdersSectionsByWeight(t *testing.T) {
	out := Report(sampleReport(t), Options{HumanReadable: true, ShowFixes: true})

	sec := strings.Index(out, "Security:")
	style := strings.Index(out, "Style Issues:")
	if sec < 0 || style < 0 {
		t.Fatalf("section headings missing\n%s", out)
	}
	if sec > style {
		t.Errorf("Security section should come before Style Issues\n%s", out)
	}
	for _, want := range []string{
		"• Variable name should be snake_case",
		"(line 3)",
		"Code Fixes:",
		"Fix #1: Rename variable",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("human output missing %q\n%s", want, out)
		}
	}
}

func TestCommentFormat(t *testing.T) {
	md := Comment(sampleReport(t))

	if !strings.HasPrefix(md, "# AI Code Review Results") {
		t.Fatalf("comment header wrong:\n%s", md)
	}
	sec := strings.Index(md, "### Security")
	style := strings.Index(md, "### Style Issues")
	if sec < 0 || style < 0 || sec > style {
		t.Errorf("category sections missing or misordered\n%s", md)
	}
	for _, want := range []string{
		"## main.py",
		"- Line 3: Variable name should be snake_case",
		"### Suggested Fixes",
		"**Rename variable**",
		"```diff",
		"Review failed: provider unavailable after 3 attempts",
		"_2 files reviewed, 2 findings. ctrlreview session ab12cd34ef56._",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("comment missing %q\n%s", want, md)
		}
	}
	if got := strings.Count(md, "\n---\n"); got != 2 {
		t.Errorf("expected one separator per file, got %d", got)
	}
}

func TestCommentCleanFile(t *testing.T) {
	report := sampleReport(t)
	report.Results = []*models.ReviewResult{{FilePath: "clean.py"}}

	md := Comment(report)
	if !strings.Contains(md, "## clean.py") || !strings.Contains(md, "No issues found.") {
		t.Errorf("clean file not reported\n%s", md)
	}
}
