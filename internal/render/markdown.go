package render

import (
	"fmt"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/models"
)

// Comment renders the report as a single markdown comment for a pull
// request: one top-level header, one section per file, one subsection per
// finding category, suggested fixes as diff blocks.
func Comment(report *models.SessionReport) string {
	var b strings.Builder
	b.WriteString("# AI Code Review Results 🔍\n\n")

	for _, res := range report.Results {
		fmt.Fprintf(&b, "## %s\n\n", res.FilePath)

		if res.Failed() {
			fmt.Fprintf(&b, "Review failed: %s\n", res.Err)
			b.WriteString("\n---\n\n")
			continue
		}
		if len(res.Findings) == 0 && len(res.Fixes) == 0 {
			b.WriteString("No issues found.\n")
			b.WriteString("\n---\n\n")
			continue
		}

		groups := groupFindings(res.Findings)
		for _, cat := range orderedCategories(groups) {
			fmt.Fprintf(&b, "### %s\n", cat.DisplayName())
			for _, f := range groups[cat] {
				if f.Line > 0 {
					fmt.Fprintf(&b, "- Line %d: %s\n", f.Line, f.Message)
				} else {
					fmt.Fprintf(&b, "- %s\n", f.Message)
				}
			}
			b.WriteString("\n")
		}

		if len(res.Fixes) > 0 {
			b.WriteString("### Suggested Fixes\n")
			for _, fix := range res.Fixes {
				fmt.Fprintf(&b, "\n**%s**\n\n", fix.Title)
				if fix.Description != "" {
					b.WriteString(fix.Description)
					b.WriteString("\n\n")
				}
				if fix.Patch != "" {
					b.WriteString("```diff\n")
					b.WriteString(fix.Patch)
					if !strings.HasSuffix(fix.Patch, "\n") {
						b.WriteString("\n")
					}
					b.WriteString("```\n")
				}
			}
			b.WriteString("\n")
		}

		b.WriteString("---\n\n")
	}

	fmt.Fprintf(&b, "_%d files reviewed, %d findings. ctrlreview session %s._\n",
		len(report.Results), report.TotalFindings(), report.SessionID)
	return b.String()
}
