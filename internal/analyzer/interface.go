package analyzer

import (
	"context"

	"github.com/CosmoTheDev/ctrlreview/models"
)

// Analyzer is the interface every static analysis tool must implement.
// To add a new analyzer:
//  1. Create a new file in internal/analyzer/ (e.g. mytool.go)
//  2. Implement the Analyzer interface
//  3. Register it in Build()
type Analyzer interface {
	// Name returns the tool name (e.g. "pylint").
	Name() string

	// Available checks whether the tool can run on this machine.
	Available(ctx context.Context) bool

	// Analyze runs the tool against one file and returns its findings.
	// path is the on-disk location; content is the already-read file body
	// for tools that analyze in memory.
	Analyze(ctx context.Context, path string, content []byte) ([]models.Finding, error)
}

// Build constructs the analyzers for the given configuration. The set is
// currently pylint only; unavailable tools are the caller's problem to
// detect (and degrade on) via Available.
func Build(pylintConfig string) []Analyzer {
	return []Analyzer{NewPylint(pylintConfig)}
}
