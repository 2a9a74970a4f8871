// Package render turns session reports into terminal text and markdown.
// Rendering only reads the report; fixes and findings are never mutated.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/models"
)

// Options select how a session report is rendered for the terminal.
type Options struct {
	// ShowFixes includes suggested fixes in the output.
	ShowFixes bool
	// HumanReadable switches to the styled section layout.
	HumanReadable bool
}

// Report renders a session report for the terminal.
func Report(report *models.SessionReport, opts Options) string {
	if opts.HumanReadable {
		return humanReport(report, opts)
	}
	return plainReport(report, opts)
}

func plainReport(report *models.SessionReport, opts Options) string {
	var b strings.Builder
	for _, res := range report.Results {
		b.WriteString("\n")
		b.WriteString(res.FilePath)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", len(res.FilePath)))
		b.WriteString("\n")

		if res.Failed() {
			fmt.Fprintf(&b, "error: %s\n", res.Err)
			continue
		}
		if len(res.Findings) == 0 {
			b.WriteString("No issues found.\n")
		}
		for _, f := range res.Findings {
			if f.Line > 0 {
				fmt.Fprintf(&b, "%d: [%s] %s\n", f.Line, f.Category, f.Message)
			} else {
				fmt.Fprintf(&b, "[%s] %s\n", f.Category, f.Message)
			}
		}
		if opts.ShowFixes {
			for _, fix := range res.Fixes {
				fmt.Fprintf(&b, "\nFix #%d: %s (%s)\n", fix.ID, fix.Title, fix.Status)
				if fix.Reason != "" {
					fmt.Fprintf(&b, "reason: %s\n", fix.Reason)
				}
				if fix.Description != "" {
					b.WriteString(fix.Description)
					b.WriteString("\n")
				}
				if fix.Patch != "" {
					b.WriteString(fix.Patch)
					if !strings.HasSuffix(fix.Patch, "\n") {
						b.WriteString("\n")
					}
				}
			}
		}
	}

	b.WriteString("\n=== Review Summary ===\n")
	b.WriteString(summaryLine(report))
	b.WriteString("\n")
	return b.String()
}

func summaryLine(report *models.SessionReport) string {
	elapsed := report.FinishedAt.Sub(report.StartedAt).Seconds()
	return fmt.Sprintf("Files: %d  Failed: %d  Findings: %d  Fixes applied: %d\nSession %s — %s (%s), %.1fs",
		len(report.Results), report.FailedFiles(), report.TotalFindings(), report.AppliedFixes(),
		report.SessionID, report.Provider, report.Model, elapsed)
}

// groupFindings buckets findings by category, keeping input order inside
// each bucket.
func groupFindings(findings []models.Finding) map[models.Category][]models.Finding {
	groups := make(map[models.Category][]models.Finding)
	for _, f := range findings {
		groups[f.Category] = append(groups[f.Category], f)
	}
	return groups
}

// orderedCategories returns the categories present in the groups, highest
// weight first.
func orderedCategories(groups map[models.Category][]models.Finding) []models.Category {
	cats := make([]models.Category, 0, len(groups))
	for c := range groups {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Weight() > cats[j].Weight() })
	return cats
}
