// Package patch normalises, validates, and applies AI-generated unified
// diffs. Providers wrap patches in markdown fences, emit CRLF line endings,
// and produce @@ headers with missing or wrong offsets; this package cleans
// all of that up before the text reaches the strict go-gitdiff parser.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

var (
	// ErrStaleBase means the file content changed since the patch was computed.
	ErrStaleBase = errors.New("stale base: file content changed since the patch was generated")
	// ErrApplyConflict means at least one hunk's context no longer matches.
	ErrApplyConflict = errors.New("patch does not apply")
)

// Clean normalises raw AI patch output: strips surrounding markdown code
// fences (```diff … ```), converts CRLF to LF, and guarantees a trailing
// newline.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(s, "\n")

	// Find the first markdown fence line.
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			start = i
			break
		}
	}
	if start >= 0 {
		contentStart := start + 1
		end := len(lines)
		for i := len(lines) - 1; i > contentStart; i-- {
			if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
				end = i
				break
			}
		}
		s = strings.Join(lines[contentStart:end], "\n")
	}

	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

// LooksLikeUnifiedDiff is a lightweight structural pre-check: old/new file
// markers, at least one hunk header, and at least one +/- change line.
func LooksLikeUnifiedDiff(patch string) bool {
	p := strings.TrimSpace(patch)
	if p == "" {
		return false
	}
	hasOld := false
	hasNew := false
	hasHunk := false
	hasChange := false
	for _, line := range strings.Split(p, "\n") {
		switch {
		case strings.HasPrefix(line, "--- "):
			hasOld = true
		case strings.HasPrefix(line, "+++ "):
			hasNew = true
		case strings.HasPrefix(line, "@@"):
			hasHunk = true
		case strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-"):
			hasChange = true
		}
	}
	return hasOld && hasNew && hasHunk && hasChange
}

// RepairHunkHeaders reconstructs @@ headers that models emit as bare "@@"
// with no offsets. The hunk's old-side lines (context + deletions) are
// located in base to derive the correct line numbers; hunks that cannot be
// located are left as-is for Parse to reject.
func RepairHunkHeaders(patch string, base []byte) string {
	lines := strings.Split(patch, "\n")

	needsRepair := false
	for _, l := range lines {
		if isBareHunkHeader(l) {
			needsRepair = true
			break
		}
	}
	if !needsRepair {
		return patch
	}

	baseLines := strings.Split(strings.ReplaceAll(string(base), "\r\n", "\n"), "\n")

	var out []string
	i := 0
	for i < len(lines) {
		l := lines[i]
		if !isBareHunkHeader(l) {
			out = append(out, l)
			i++
			continue
		}

		// Collect the hunk body (lines until the next @@ or end of patch).
		bodyStart := i + 1
		bodyEnd := len(lines)
		for j := bodyStart; j < len(lines); j++ {
			if strings.HasPrefix(lines[j], "@@") {
				bodyEnd = j
				break
			}
		}
		body := lines[bodyStart:bodyEnd]
		// A trailing newline on the patch leaves one empty element behind;
		// it is not part of the hunk.
		if bodyEnd == len(lines) && len(body) > 0 && body[len(body)-1] == "" {
			body = body[:len(body)-1]
		}

		// Build the old-side line sequence (context + deleted) to search for.
		var oldSide []string
		oldCount, newCount := 0, 0
		for _, bl := range body {
			switch {
			case strings.HasPrefix(bl, "-"):
				oldSide = append(oldSide, strings.TrimPrefix(bl, "-"))
				oldCount++
			case strings.HasPrefix(bl, "+"):
				newCount++
			default:
				ctx := bl
				if strings.HasPrefix(bl, " ") {
					ctx = strings.TrimPrefix(bl, " ")
				}
				oldSide = append(oldSide, ctx)
				oldCount++
				newCount++
			}
		}

		lineNo := findConsecutive(baseLines, oldSide)
		if lineNo >= 0 {
			out = append(out, fmt.Sprintf("@@ -%d,%d +%d,%d @@", lineNo+1, oldCount, lineNo+1, newCount))
		} else {
			out = append(out, l)
		}
		i++
	}
	return strings.Join(out, "\n")
}

// isBareHunkHeader returns true for a @@ line that is missing line numbers,
// e.g. "@@" or "@@ @@" but not "@@ -1,3 +1,4 @@".
func isBareHunkHeader(l string) bool {
	t := strings.TrimSpace(l)
	if !strings.HasPrefix(t, "@@") {
		return false
	}
	return !strings.Contains(t, "-")
}

// findConsecutive returns the 0-based index of the first position where all
// needles appear consecutively in order, or -1. Trailing whitespace is
// ignored for comparison.
func findConsecutive(haystack, needles []string) int {
	if len(needles) == 0 {
		return -1
	}
	for i := 0; i <= len(haystack)-len(needles); i++ {
		match := true
		for j, needle := range needles {
			if strings.TrimRight(haystack[i+j], " \t") != strings.TrimRight(needle, " \t") {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Parse validates patch text as a structurally valid unified diff touching
// exactly one text file, and returns the parsed representation.
func Parse(patchText string) (*gitdiff.File, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(patchText))
	if err != nil {
		return nil, fmt.Errorf("parsing unified diff: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no file changes in patch")
	}
	if len(files) > 1 {
		return nil, fmt.Errorf("patch touches %d files, expected exactly one", len(files))
	}
	f := files[0]
	if f.IsBinary {
		return nil, fmt.Errorf("binary patches are not supported")
	}
	if len(f.TextFragments) == 0 {
		return nil, fmt.Errorf("patch has no hunks")
	}
	return f, nil
}

// TargetPath returns the path a parsed patch modifies.
func TargetPath(f *gitdiff.File) string {
	if f.NewName != "" {
		return f.NewName
	}
	return f.OldName
}

// Apply applies a parsed single-file patch to base in memory and returns
// the patched content. A context mismatch yields ErrApplyConflict; the
// original base is never modified.
func Apply(base []byte, f *gitdiff.File) ([]byte, error) {
	var out bytes.Buffer
	if err := gitdiff.Apply(&out, bytes.NewReader(base), f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrApplyConflict, err)
	}
	return out.Bytes(), nil
}
