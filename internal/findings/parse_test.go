package findings

import (
	"strings"
	"testing"

	"github.com/CosmoTheDev/ctrlreview/models"
)

const sampleBase = "import os\n\ndef main():\n    print(os.name)\n"

func findingsByCategory(res *models.ReviewResult, cat models.Category) []models.Finding {
	var out []models.Finding
	for _, f := range res.Findings {
		if f.Category == cat {
			out = append(out, f)
		}
	}
	return out
}

func TestParseFourSectionResponse(t *testing.T) {
	raw := `Here is my review of the file.

1. Style Issues:
- [Line 3] Variable name x is not descriptive.
- Missing blank line after imports.
  This violates PEP 8.

2. Code Improvements:
- None.

3. Documentation:
1. Add a module docstring.

4. Security:
- **[Line 10]** Avoid eval on user input.
`

	res := Parse(raw, "app.py", []byte(sampleBase))

	if res.FilePath != "app.py" {
		t.Errorf("FilePath = %q", res.FilePath)
	}
	if len(res.Fixes) != 0 {
		t.Errorf("fixes = %d, want 0", len(res.Fixes))
	}

	style := findingsByCategory(res, models.CategoryStyleIssue)
	if len(style) != 2 {
		t.Fatalf("style findings = %d, want 2: %+v", len(style), res.Findings)
	}
	if style[0].Line != 3 {
		t.Errorf("style[0].Line = %d, want 3", style[0].Line)
	}
	if style[0].Message != "Variable name x is not descriptive." {
		t.Errorf("style[0].Message = %q", style[0].Message)
	}
	if want := "Missing blank line after imports. This violates PEP 8."; style[1].Message != want {
		t.Errorf("continuation not joined: %q", style[1].Message)
	}

	if n := len(findingsByCategory(res, models.CategoryCodeImprovement)); n != 0 {
		t.Errorf("improvements = %d, want 0 (None. skipped)", n)
	}

	docs := findingsByCategory(res, models.CategoryDocumentation)
	if len(docs) != 1 || docs[0].Message != "Add a module docstring." {
		t.Errorf("docs = %+v", docs)
	}

	sec := findingsByCategory(res, models.CategorySecurity)
	if len(sec) != 1 {
		t.Fatalf("security findings = %d, want 1", len(sec))
	}
	if sec[0].Line != 10 || sec[0].Message != "Avoid eval on user input." {
		t.Errorf("security finding = %+v", sec[0])
	}

	other := findingsByCategory(res, models.CategoryOther)
	if len(other) != 1 || other[0].Message != "Here is my review of the file." {
		t.Errorf("preamble not kept as Other: %+v", other)
	}

	for _, f := range res.Findings {
		if f.Source != models.SourceAIProvider {
			t.Errorf("finding source = %q", f.Source)
		}
	}
}

func TestParseMissingSectionsYieldEmptyLists(t *testing.T) {
	res := Parse("4. Security:\n- [Line 1] Hardcoded token.\n", "a.py", []byte(sampleBase))

	if len(res.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(res.Findings))
	}
	if res.Findings[0].Category != models.CategorySecurity {
		t.Errorf("category = %q", res.Findings[0].Category)
	}
	if res.Failed() {
		t.Error("missing sections must not fail the result")
	}
}

func TestParseDecoratedHeaders(t *testing.T) {
	raw := "## 🔍 STYLE ISSUES\n- Inconsistent quotes.\n\n**Security:**\n- Uses pickle.\n"
	res := Parse(raw, "a.py", []byte(sampleBase))

	if n := len(findingsByCategory(res, models.CategoryStyleIssue)); n != 1 {
		t.Errorf("style = %d, want 1", n)
	}
	if n := len(findingsByCategory(res, models.CategorySecurity)); n != 1 {
		t.Errorf("security = %d, want 1", n)
	}
	if n := len(findingsByCategory(res, models.CategoryOther)); n != 0 {
		t.Errorf("other = %d, want 0", n)
	}
}

func TestParseItemMentioningSecurityIsNotAHeader(t *testing.T) {
	raw := "1. Style Issues:\n- Security\n- security concerns everywhere\n"
	res := Parse(raw, "a.py", []byte(sampleBase))

	// "- Security" strips to the bare word and must not switch sections.
	for _, f := range res.Findings {
		if f.Category != models.CategoryStyleIssue {
			t.Errorf("finding %q classified as %q", f.Message, f.Category)
		}
	}
}

func TestParseValidFixBlock(t *testing.T) {
	raw := "5. Code Fixes:\n" +
		"[Fix: Use getcwd instead of name]\n" +
		"Replaces the attribute with a call that returns the working directory.\n" +
		"```diff\n" +
		"--- a/app.py\n" +
		"+++ b/app.py\n" +
		"@@ -1,4 +1,4 @@\n" +
		" import os\n" +
		" \n" +
		" def main():\n" +
		"-    print(os.name)\n" +
		"+    print(os.getcwd())\n" +
		"```\n"

	res := Parse(raw, "app.py", []byte(sampleBase))

	if len(res.Fixes) != 1 {
		t.Fatalf("fixes = %d, want 1", len(res.Fixes))
	}
	fix := res.Fixes[0]
	if fix.Status != models.FixProposed {
		t.Fatalf("status = %q (reason %q), want proposed", fix.Status, fix.Reason)
	}
	if fix.Title != "Use getcwd instead of name" {
		t.Errorf("title = %q", fix.Title)
	}
	if !strings.Contains(fix.Description, "working directory") {
		t.Errorf("description = %q", fix.Description)
	}
	if fix.TargetFile != "app.py" {
		t.Errorf("target = %q", fix.TargetFile)
	}
	if !strings.Contains(fix.Patch, "+    print(os.getcwd())") {
		t.Errorf("patch body lost:\n%s", fix.Patch)
	}
	if fix.BaseHash != models.HashContent([]byte(sampleBase)) {
		t.Errorf("base hash = %q", fix.BaseHash)
	}
}

func TestParseIssueAliasOpensFixBlock(t *testing.T) {
	raw := "5. Code Fixes:\n" +
		"[Issue: Drop the unused import]\n" +
		"```diff\n" +
		"--- a/app.py\n" +
		"+++ b/app.py\n" +
		"@@ -1,2 +1,1 @@\n" +
		"-import os\n" +
		" \n" +
		"```\n"

	res := Parse(raw, "app.py", []byte(sampleBase))
	if len(res.Fixes) != 1 {
		t.Fatalf("fixes = %d, want 1", len(res.Fixes))
	}
	if res.Fixes[0].Title != "Drop the unused import" {
		t.Errorf("title = %q", res.Fixes[0].Title)
	}
}

func TestParseMalformedPatchFailsButSurfaces(t *testing.T) {
	raw := "5. Code Fixes:\n" +
		"[Fix: Broken suggestion]\n" +
		"The model produced prose instead of a diff.\n" +
		"```diff\n" +
		"replace the print call with logging\n" +
		"```\n"

	res := Parse(raw, "app.py", []byte(sampleBase))

	if len(res.Fixes) != 1 {
		t.Fatalf("malformed fix dropped: fixes = %d", len(res.Fixes))
	}
	fix := res.Fixes[0]
	if fix.Status != models.FixFailed {
		t.Errorf("status = %q, want failed", fix.Status)
	}
	if fix.Patch != "" {
		t.Errorf("failed fix must carry an empty patch, got %q", fix.Patch)
	}
	if fix.Reason != "patch does not parse" {
		t.Errorf("reason = %q", fix.Reason)
	}
}

func TestParseFixWithoutDiffFails(t *testing.T) {
	raw := "5. Code Fixes:\n[Fix: No patch given]\nJust a description.\n"

	res := Parse(raw, "app.py", []byte(sampleBase))
	if len(res.Fixes) != 1 {
		t.Fatalf("fixes = %d, want 1", len(res.Fixes))
	}
	if res.Fixes[0].Status != models.FixFailed || res.Fixes[0].Patch != "" {
		t.Errorf("fix = %+v", res.Fixes[0])
	}
}

func TestParseRepairsBareHunkHeaders(t *testing.T) {
	base := "import os\nprint(os.name)\n"
	raw := "5. Code Fixes:\n" +
		"[Fix: Print the working directory]\n" +
		"```diff\n" +
		"--- a/app.py\n" +
		"+++ b/app.py\n" +
		"@@ @@\n" +
		" import os\n" +
		"-print(os.name)\n" +
		"+print(os.getcwd())\n" +
		"```\n"

	res := Parse(raw, "app.py", []byte(base))

	if len(res.Fixes) != 1 {
		t.Fatalf("fixes = %d, want 1", len(res.Fixes))
	}
	fix := res.Fixes[0]
	if fix.Status != models.FixProposed {
		t.Fatalf("status = %q (reason %q), want proposed after header repair", fix.Status, fix.Reason)
	}
	if !strings.Contains(fix.Patch, "@@ -1,2 +1,2 @@") {
		t.Errorf("hunk header not repaired:\n%s", fix.Patch)
	}
}

func TestParseMultipleFixBlocks(t *testing.T) {
	raw := "5. Code Fixes:\n" +
		"None of these are mandatory.\n" +
		"[Fix: First]\n" +
		"```diff\n" +
		"--- a/app.py\n" +
		"+++ b/app.py\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-import os\n" +
		"+import sys\n" +
		"```\n" +
		"[Fix: Second]\n" +
		"not a diff at all\n"

	res := Parse(raw, "app.py", []byte(sampleBase))

	if len(res.Fixes) != 2 {
		t.Fatalf("fixes = %d, want 2", len(res.Fixes))
	}
	if res.Fixes[0].Status != models.FixProposed {
		t.Errorf("first fix status = %q (reason %q)", res.Fixes[0].Status, res.Fixes[0].Reason)
	}
	if res.Fixes[1].Status != models.FixFailed {
		t.Errorf("second fix status = %q, want failed", res.Fixes[1].Status)
	}
}

func TestParseEmptyResponse(t *testing.T) {
	res := Parse("", "a.py", []byte(sampleBase))
	if len(res.Findings) != 0 || len(res.Fixes) != 0 {
		t.Errorf("empty response produced %d findings, %d fixes", len(res.Findings), len(res.Fixes))
	}
}
