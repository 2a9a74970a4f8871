package models

// Category classifies a review finding.
type Category string

const (
	CategoryStyleIssue      Category = "style_issue"
	CategoryCodeImprovement Category = "code_improvement"
	CategoryDocumentation   Category = "documentation"
	CategorySecurity        Category = "security"
	CategoryOther           Category = "other"
)

// DisplayName returns the human-readable section heading for the category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryStyleIssue:
		return "Style Issues"
	case CategoryCodeImprovement:
		return "Code Improvements"
	case CategoryDocumentation:
		return "Documentation"
	case CategorySecurity:
		return "Security"
	default:
		return "Other"
	}
}

func (c Category) String() string {
	return string(c)
}

// Weight returns a numeric weight for ordering report sections
// (higher = shown first).
func (c Category) Weight() int {
	switch c {
	case CategorySecurity:
		return 5
	case CategoryCodeImprovement:
		return 4
	case CategoryStyleIssue:
		return 3
	case CategoryDocumentation:
		return 2
	default:
		return 1
	}
}

// FindingSource records which stage of the pipeline produced a finding.
type FindingSource string

const (
	SourceStaticAnalyzer FindingSource = "static_analyzer"
	SourceAIProvider     FindingSource = "ai_provider"
)

// Finding is one reported issue attached to a file (and optionally a line).
// Findings are immutable once created.
type Finding struct {
	FilePath string        `json:"file_path" db:"file_path"`
	Line     int           `json:"line"      db:"line"` // 0 = file-level
	Category Category      `json:"category"  db:"category"`
	Message  string        `json:"message"   db:"message"`
	Source   FindingSource `json:"source"    db:"source"`
}
