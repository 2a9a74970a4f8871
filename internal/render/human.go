package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/CosmoTheDev/ctrlreview/models"
)

var (
	fileStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5E7EB"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	fixStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	lineRefStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func humanReport(report *models.SessionReport, opts Options) string {
	var b strings.Builder
	for _, res := range report.Results {
		b.WriteString("\n")
		b.WriteString(fileStyle.Render(res.FilePath))
		b.WriteString("\n")
		b.WriteString(ruleStyle.Render(strings.Repeat("=", len(res.FilePath))))
		b.WriteString("\n")

		if res.Failed() {
			b.WriteString(failStyle.Render("error: " + res.Err))
			b.WriteString("\n")
			continue
		}
		if len(res.Findings) == 0 {
			b.WriteString(okStyle.Render("No issues found."))
			b.WriteString("\n")
		}

		groups := groupFindings(res.Findings)
		for _, cat := range orderedCategories(groups) {
			b.WriteString("\n")
			b.WriteString(sectionStyle.Render(cat.DisplayName() + ":"))
			b.WriteString("\n")
			for _, f := range groups[cat] {
				b.WriteString("• ")
				b.WriteString(f.Message)
				if f.Line > 0 {
					b.WriteString(" ")
					b.WriteString(lineRefStyle.Render(fmt.Sprintf("(line %d)", f.Line)))
				}
				b.WriteString("\n")
			}
		}

		if opts.ShowFixes && len(res.Fixes) > 0 {
			b.WriteString("\n")
			b.WriteString(sectionStyle.Render("Code Fixes:"))
			b.WriteString("\n")
			for _, fix := range res.Fixes {
				b.WriteString("\n")
				b.WriteString(fixStyle.Render(fmt.Sprintf("Fix #%d: %s", fix.ID, fix.Title)))
				b.WriteString(" ")
				b.WriteString(statusBadge(fix))
				b.WriteString("\n")
				if fix.Description != "" {
					b.WriteString(fix.Description)
					b.WriteString("\n")
				}
				if fix.Patch != "" {
					b.WriteString(ruleStyle.Render(strings.TrimRight(fix.Patch, "\n")))
					b.WriteString("\n")
				}
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("=== Review Summary ==="))
	b.WriteString("\n")
	if report.FailedFiles() > 0 {
		b.WriteString(failStyle.Render(summaryLine(report)))
	} else {
		b.WriteString(okStyle.Render(summaryLine(report)))
	}
	b.WriteString("\n")
	return b.String()
}

func statusBadge(fix *models.SuggestedFix) string {
	switch fix.Status {
	case models.FixApplied:
		return okStyle.Render("[applied]")
	case models.FixRejected, models.FixFailed:
		text := "[" + fix.Status.String()
		if fix.Reason != "" {
			text += ": " + fix.Reason
		}
		text += "]"
		return failStyle.Render(text)
	default:
		return lineRefStyle.Render("[proposed]")
	}
}
