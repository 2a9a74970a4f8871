package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/CosmoTheDev/ctrlreview/models"
)

// PylintAnalyzer implements Analyzer by shelling out to pylint.
type PylintAnalyzer struct {
	bin    string
	rcfile string
}

// NewPylint creates a PylintAnalyzer. rcfile is passed as --rcfile when
// non-empty (the analysis.pylint_config setting).
func NewPylint(rcfile string) *PylintAnalyzer {
	return &PylintAnalyzer{bin: "pylint", rcfile: rcfile}
}

func (p *PylintAnalyzer) Name() string { return "pylint" }

func (p *PylintAnalyzer) Available(ctx context.Context) bool {
	path, err := exec.LookPath(p.bin)
	if err != nil {
		return false
	}
	// Verify it actually runs.
	return exec.CommandContext(ctx, path, "--version").Run() == nil
}

// pylintMessage mirrors one entry of pylint's --output-format=json output.
// Fields pylint may omit or null out are kept tolerant.
type pylintMessage struct {
	Type      string `json:"type"`
	MessageID string `json:"message-id"`
	Symbol    string `json:"symbol"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Message   string `json:"message"`
}

// Analyze runs pylint against path. content is unused; pylint reads from
// disk. A missing or broken pylint is reported by Available, not here.
func (p *PylintAnalyzer) Analyze(ctx context.Context, path string, content []byte) ([]models.Finding, error) {
	args := []string{"--output-format=json", "--score=n"}
	if p.rcfile != "" {
		args = append(args, "--rcfile="+p.rcfile)
	}
	args = append(args, path)

	// nosemgrep: go.lang.security.audit.dangerous-exec-command.dangerous-exec-command
	cmd := exec.CommandContext(ctx, p.bin, args...)
	out, err := cmd.Output()
	if err != nil {
		// pylint's exit code is a bitmask of message classes found
		// (1=fatal 2=error 4=warning 8=refactor 16=convention); any
		// combination up to 31 still means the run itself succeeded.
		if !isMessageExit(err) {
			var exitErr *exec.ExitError
			if isExitError(err, &exitErr) {
				slog.Debug("pylint stderr", "output", string(exitErr.Stderr))
			}
			return nil, fmt.Errorf("executing pylint: %w", err)
		}
	}

	return parsePylintOutput(out, path), nil
}

// parsePylintOutput converts pylint JSON into findings. Unparseable output
// yields no findings rather than an error; the AI review still runs.
func parsePylintOutput(data []byte, fallbackPath string) []models.Finding {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var messages []pylintMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		slog.Warn("Failed to parse pylint output", "error", err)
		return nil
	}

	out := make([]models.Finding, 0, len(messages))
	for _, m := range messages {
		filePath := m.Path
		if filePath == "" {
			filePath = fallbackPath
		}
		msg := strings.TrimSpace(m.Message)
		if m.Symbol != "" {
			msg = fmt.Sprintf("%s (%s)", msg, m.Symbol)
		}
		out = append(out, models.Finding{
			FilePath: filePath,
			Line:     m.Line,
			Category: categoryForMessageID(m.MessageID, m.Type),
			Message:  msg,
			Source:   models.SourceStaticAnalyzer,
		})
	}
	return out
}

// categoryForMessageID maps pylint message classes onto review categories:
// conventions and refactors read as style, warnings/errors/fatals as
// substantive improvements.
func categoryForMessageID(messageID, msgType string) models.Category {
	class := ""
	if messageID != "" {
		class = strings.ToUpper(messageID[:1])
	}
	switch class {
	case "C", "R":
		return models.CategoryStyleIssue
	case "W", "E", "F":
		return models.CategoryCodeImprovement
	}
	// Older pylint builds omit message-id; fall back to the type word.
	switch strings.ToLower(msgType) {
	case "convention", "refactor":
		return models.CategoryStyleIssue
	case "warning", "error", "fatal":
		return models.CategoryCodeImprovement
	}
	return models.CategoryOther
}

// isMessageExit reports whether err is a pylint exit code that only signals
// findings (bitmask 1..31), not a crashed run.
func isMessageExit(err error) bool {
	if e, ok := err.(*exec.ExitError); ok {
		code := e.ExitCode()
		return code >= 1 && code <= 31
	}
	return false
}

func isExitError(err error, target **exec.ExitError) bool {
	if e, ok := err.(*exec.ExitError); ok {
		*target = e
		return true
	}
	return false
}
