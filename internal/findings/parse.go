// Package findings turns raw provider responses into structured review
// results. The parser is deliberately forgiving: models decorate headers
// with numbering, emoji, and bold markers, skip sections, and wrap patches
// in fences — none of that may lose information. Text that fits no known
// section is kept under the Other category instead of being dropped.
package findings

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/CosmoTheDev/ctrlreview/internal/patch"
	"github.com/CosmoTheDev/ctrlreview/models"
)

// failedPatchReason marks fixes whose diff body never parsed. They are
// surfaced in the report but carry an empty patch and are never applied.
const failedPatchReason = "patch does not parse"

type section int

const (
	sectionPreamble section = iota
	sectionStyle
	sectionImprovements
	sectionDocs
	sectionSecurity
	sectionFixes
)

func (s section) category() models.Category {
	switch s {
	case sectionStyle:
		return models.CategoryStyleIssue
	case sectionImprovements:
		return models.CategoryCodeImprovement
	case sectionDocs:
		return models.CategoryDocumentation
	case sectionSecurity:
		return models.CategorySecurity
	default:
		return models.CategoryOther
	}
}

var (
	// [Line 12] / line 12: / **[Line 12]** prefixes on a line-item.
	lineRefRe = regexp.MustCompile(`(?i)^[*_]*\[?line\s+(\d+)\]?[*_]*\s*[:.\-]?\s*`)

	// [Fix: title] opens a fix block; [Issue: title] is the legacy alias
	// older model snapshots still emit.
	fixHeaderRe = regexp.MustCompile(`(?i)^[*_]*\[(?:fix|issue):\s*(.*?)\][*_]*\s*$`)

	numberedItemRe = regexp.MustCompile(`^\d+[.)]\s+`)
)

// Parse segments a raw provider response for one file into findings and
// suggested fixes. base is the file content the prompt was built from; fix
// patches are validated and hash-stamped against it. Parse never fails:
// unrecognizable input degrades to Other-category findings.
func Parse(raw, filePath string, base []byte) *models.ReviewResult {
	res := &models.ReviewResult{FilePath: filePath}

	cur := sectionPreamble
	lastFinding := -1 // index into res.Findings, reset on section change

	var block *fixBlock
	inFence := false

	flushBlock := func() {
		if block == nil {
			return
		}
		res.Fixes = append(res.Fixes, buildFix(*block, filePath, base))
		block = nil
		inFence = false
	}

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)

		// Inside a diff fence every line belongs to the patch verbatim.
		if inFence {
			if strings.HasPrefix(trimmed, "```") {
				inFence = false
				continue
			}
			block.diff = append(block.diff, line)
			continue
		}

		if sec, ok := matchSectionHeader(trimmed); ok {
			flushBlock()
			cur = sec
			lastFinding = -1
			continue
		}

		if cur == sectionFixes {
			if m := fixHeaderRe.FindStringSubmatch(trimmed); m != nil {
				flushBlock()
				block = &fixBlock{title: strings.TrimSpace(m[1])}
				continue
			}
			if block == nil {
				// Stray prose before the first fix block ("None.", filler).
				continue
			}
			if strings.HasPrefix(trimmed, "```") {
				inFence = true
				continue
			}
			if trimmed != "" {
				block.desc = append(block.desc, trimmed)
			}
			continue
		}

		if trimmed == "" {
			continue
		}

		if item, ok := stripListMarker(trimmed); ok {
			f, ok := itemToFinding(item, filePath, cur.category())
			if !ok {
				continue
			}
			res.Findings = append(res.Findings, f)
			lastFinding = len(res.Findings) - 1
			continue
		}

		// Plain prose. Continuation of the previous item when one exists,
		// otherwise its own finding so nothing is discarded.
		if onlyPunctuation(trimmed) {
			continue
		}
		if lastFinding >= 0 {
			res.Findings[lastFinding].Message += " " + trimmed
			continue
		}
		f, ok := itemToFinding(trimmed, filePath, cur.category())
		if !ok {
			continue
		}
		res.Findings = append(res.Findings, f)
		lastFinding = len(res.Findings) - 1
	}

	flushBlock()
	return res
}

type fixBlock struct {
	title string
	desc  []string
	diff  []string
}

// buildFix validates the block's diff body and produces a Proposed fix, or
// a Failed placeholder when the body is not a structurally valid unified
// diff. Failed fixes keep an empty patch so nothing downstream can apply
// them.
func buildFix(b fixBlock, filePath string, base []byte) *models.SuggestedFix {
	fix := &models.SuggestedFix{
		TargetFile:  filePath,
		Title:       b.title,
		Description: strings.TrimSpace(strings.Join(b.desc, "\n")),
		Status:      models.FixProposed,
	}
	if fix.Title == "" {
		fix.Title = "Suggested fix"
	}

	cleaned := patch.Clean(strings.Join(b.diff, "\n"))
	if strings.TrimSpace(cleaned) == "" {
		fix.MarkFailed(failedPatchReason)
		return fix
	}

	repaired := patch.RepairHunkHeaders(cleaned, base)
	if !patch.LooksLikeUnifiedDiff(repaired) {
		fix.MarkFailed(failedPatchReason)
		return fix
	}
	if _, err := patch.Parse(repaired); err != nil {
		fix.MarkFailed(failedPatchReason)
		return fix
	}

	fix.Patch = repaired
	fix.BaseHash = models.HashContent(base)
	return fix
}

// matchSectionHeader reports whether a line is one of the five fixed section
// headers, tolerating numbering, markdown prefixes, emoji, and a trailing
// colon. Matching is exact after decoration stripping so list items that
// merely mention "security" are not mistaken for headers. Bulleted lines are
// always items, never headers.
func matchSectionHeader(line string) (section, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return 0, false
		}
	}
	name := strings.ToLower(collapseSpaces(stripDecorations(line)))
	switch name {
	case "style issues":
		return sectionStyle, true
	case "code improvements":
		return sectionImprovements, true
	case "documentation":
		return sectionDocs, true
	case "security":
		return sectionSecurity, true
	case "code fixes":
		return sectionFixes, true
	}
	return 0, false
}

// itemToFinding converts one line-item into a Finding, extracting an
// optional [Line N] reference. Returns false for empty and "None." items.
func itemToFinding(item, filePath string, cat models.Category) (models.Finding, bool) {
	lineNo := 0
	if m := lineRefRe.FindStringSubmatch(item); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			lineNo = n
			item = item[len(m[0]):]
		}
	}

	msg := strings.TrimSpace(item)
	if msg == "" || isNoneMarker(msg) {
		return models.Finding{}, false
	}
	return models.Finding{
		FilePath: filePath,
		Line:     lineNo,
		Category: cat,
		Message:  msg,
		Source:   models.SourceAIProvider,
	}, true
}

// stripListMarker removes a leading bullet or numbering and reports whether
// the line was a list item.
func stripListMarker(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(line[len(marker):]), true
		}
	}
	if m := numberedItemRe.FindString(line); m != "" {
		return strings.TrimSpace(line[len(m):]), true
	}
	return line, false
}

// stripDecorations removes everything that is not a letter from both ends
// of a would-be header line, leaving only its words.
func stripDecorations(line string) string {
	return strings.TrimFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func onlyPunctuation(s string) bool {
	return stripDecorations(s) == "" && !strings.ContainsFunc(s, unicode.IsDigit)
}

func isNoneMarker(msg string) bool {
	m := strings.ToLower(strings.TrimRight(strings.TrimSpace(msg), "."))
	return m == "none" || m == "nothing to report"
}
