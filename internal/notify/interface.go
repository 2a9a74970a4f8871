package notify

import "context"

// Event types raised by review sessions.
const (
	EventSessionCompleted = "session_completed"
	EventSessionFailed    = "session_failed"
	EventFixesApplied     = "fixes_applied"
	EventPRCommented      = "pr_commented"
)

// Event represents one notification from a review session.
type Event struct {
	Type      string // one of the Event* constants
	Title     string
	Body      string
	URL       string         // optional deep link (e.g. PR URL)
	SessionID string         // originating review session
	Metadata  map[string]any // extra structured data
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
