package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/internal/profiles"
)

// languageNames maps response-language codes to the instruction handed to
// the model. Codes outside the map fall back to English.
var languageNames = map[string]string{
	"en":    "English",
	"pt-br": "Brazilian Portuguese",
	"pt":    "Portuguese",
	"es":    "Spanish",
}

// BuildReviewPrompt renders req into the user prompt sent to the model.
// The output is a pure function of req: identical requests produce
// byte-identical prompts, so stubbed providers see reproducible input.
func BuildReviewPrompt(req ReviewRequest) string {
	var sb strings.Builder

	sb.WriteString("Review the following code and organise your feedback into exactly these numbered sections:\n\n")
	sb.WriteString("1. Style Issues:\n")
	sb.WriteString("2. Code Improvements:\n")
	sb.WriteString("3. Documentation:\n")
	sb.WriteString("4. Security:\n")
	if req.IncludeFixes {
		sb.WriteString("5. Code Fixes:\n")
	}

	sb.WriteString("\nRules for sections 1-4:\n")
	sb.WriteString("- One observation per line, starting with \"- \".\n")
	sb.WriteString("- When an observation concerns a specific line, start it with [Line N], numbering lines exactly as in the file below.\n")
	sb.WriteString("- Write \"- None.\" under a section with nothing to report.\n")

	if req.IncludeFixes {
		sb.WriteString(`
Rules for section 5:
- Propose at most 3 fixes, highest value first, or write "None." if you have nothing.
- Each fix must follow this exact format:

[Fix: <short imperative title>]
<one or two sentences describing the change>
` + "```diff" + `
--- a/<file path>
+++ b/<file path>
@@ -<old_start>,<old_count> +<new_start>,<new_count> @@
 <context, removed and added lines>
` + "```" + `

- Hunk headers MUST carry real line numbers; never emit bare "@@ @@".
- Context lines start with a single space, removals with -, additions with +.
- Patches must apply cleanly to the file content exactly as given below.
`)
	}

	if len(req.Findings) > 0 {
		sb.WriteString("\nA static analyzer reported these findings; address each one in the matching section:\n")
		for _, f := range req.Findings {
			if f.Line > 0 {
				fmt.Fprintf(&sb, "- %s line %d [%s]: %s\n", f.FilePath, f.Line, f.Category.DisplayName(), f.Message)
			} else {
				fmt.Fprintf(&sb, "- %s [%s]: %s\n", f.FilePath, f.Category.DisplayName(), f.Message)
			}
		}
	}

	fmt.Fprintf(&sb, "\nWrite all feedback in %s.\n", languageName(req.Language))

	fmt.Fprintf(&sb, "\nFile: %s\n```\n%s", req.FilePath, req.FileContent)
	if !strings.HasSuffix(req.FileContent, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")

	return sb.String()
}

// systemPrompt is shared by every provider so reviews read the same no
// matter which backend produced them. The active review profile, when one
// is attached to ctx, extends it.
func systemPrompt(ctx context.Context) string {
	return "You are an expert code reviewer. Be precise, concrete, and concise." + profileSystemAddendum(ctx)
}

// profileSystemAddendum returns the active profile body formatted as a
// system prompt addendum, or an empty string when ctx carries no profile.
func profileSystemAddendum(ctx context.Context) string {
	p := profiles.FromContext(ctx)
	if p == nil || strings.TrimSpace(p.Body) == "" {
		return ""
	}
	return "\n\n## ACTIVE REVIEW PROFILE: " + p.Name + "\n" + p.Body
}

// languageName resolves a response-language code, defaulting to English.
func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return "English"
}
