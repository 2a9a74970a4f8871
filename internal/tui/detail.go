package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/history"
	"github.com/CosmoTheDev/ctrlreview/models"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DetailModel shows one session expanded: per-file results with their
// findings and fixes, plus any repository commits the session recorded.
type DetailModel struct {
	store   *history.Store
	session history.SessionRow
	results []resultView
	commits []history.CommitRow
	width   int
	height  int
	offset  int
	loading bool
}

type resultView struct {
	row      history.ResultRow
	findings []history.FindingRow
	fixes    []history.FixRow
}

type detailLoadedMsg struct {
	results []resultView
	commits []history.CommitRow
}

// NewDetailModel creates a DetailModel.
func NewDetailModel(store *history.Store) DetailModel {
	return DetailModel{store: store}
}

func (m DetailModel) Init() tea.Cmd {
	return nil
}

// Load points the model at a session and returns the command that
// fetches its results. Scroll state from a previous session is reset.
func (m DetailModel) Load(session history.SessionRow) (DetailModel, tea.Cmd) {
	m.session = session
	m.results = nil
	m.commits = nil
	m.offset = 0
	m.loading = true
	return m, m.loadCmd()
}

func (m DetailModel) loadCmd() tea.Cmd {
	sessionID := m.session.ID
	return func() tea.Msg {
		ctx := context.Background()
		rows, _ := m.store.SessionResults(ctx, sessionID)
		results := make([]resultView, 0, len(rows))
		for _, row := range rows {
			findings, _ := m.store.ResultFindings(ctx, row.ID)
			fixes, _ := m.store.ResultFixes(ctx, row.ID)
			results = append(results, resultView{row: row, findings: findings, fixes: fixes})
		}
		commits, _ := m.store.SessionCommits(ctx, sessionID)
		return detailLoadedMsg{results: results, commits: commits}
	}
}

func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case detailLoadedMsg:
		m.results = msg.results
		m.commits = msg.commits
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			m.offset++
		case "k", "up":
			if m.offset > 0 {
				m.offset--
			}
		case "g":
			m.offset = 0
		}
	}
	return m, nil
}

func (m *DetailModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SessionKey names the loaded session for the header badge.
func (m DetailModel) SessionKey() string {
	return m.session.SessionKey
}

func (m DetailModel) View() string {
	if m.loading {
		return panelStyle.Width(max(20, m.width-2)).Render("Loading session...")
	}

	lines := m.buildLines()
	window := m.height - 4
	if window < 5 {
		window = 5
	}
	offset := m.offset
	if offset > len(lines)-window {
		offset = len(lines) - window
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + window
	if end > len(lines) {
		end = len(lines)
	}

	body := strings.Join(lines[offset:end], "\n")
	if len(lines) > window {
		body += "\n" + dimStyle.Render(fmt.Sprintf("… %d more lines (j/k to scroll)", len(lines)-end))
	}

	return panelStyle.Width(max(20, m.width-2)).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.renderSummary(),
			body,
		),
	)
}

func (m DetailModel) renderSummary() string {
	s := m.session
	status := statusBadge("completed", green)
	if s.FailedFiles > 0 {
		status = statusBadge(fmt.Sprintf("%d failed", s.FailedFiles), red)
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		panelHeaderStyle.Render("Session "+s.SessionKey),
		"  ",
		dimStyle.Render(fmt.Sprintf("%s · %s/%s · %d files · %s", formatWhen(s.StartedAt), s.Provider, s.Model, s.TotalFiles, formatDuration(s.StartedAt, s.FinishedAt))),
		"  ",
		status,
	)
}

// buildLines flattens the session into renderable lines so the view can
// window them by scroll offset.
func (m DetailModel) buildLines() []string {
	var lines []string

	for _, res := range m.results {
		lines = append(lines, "")
		lines = append(lines, lipgloss.NewStyle().Foreground(ink).Bold(true).Render(res.row.FilePath))

		if res.row.ErrorMsg != "" {
			lines = append(lines, "  "+securityStyle.Render("error: "+res.row.ErrorMsg))
			continue
		}
		if len(res.findings) == 0 {
			lines = append(lines, "  "+okStyle.Render("no findings"))
		}
		for _, f := range res.findings {
			badge := categoryStyle(f.Category).Render("[" + categoryLabel(f.Category) + "]")
			loc := dimStyle.Render(fmt.Sprintf("L%03d", f.Line))
			src := ""
			if f.Source != "" && f.Source != string(models.SourceAIProvider) {
				src = " " + mutedBadgeStyle.Render(f.Source)
			}
			lines = append(lines, fmt.Sprintf("  %s %s %s%s", loc, badge, truncate(f.Message, max(30, m.width-28)), src))
		}
		for _, fx := range res.fixes {
			badge := mutedBadgeStyle.Render("proposed")
			switch fx.Status {
			case "applied":
				badge = statusBadge("applied", green)
			case "rejected":
				badge = statusBadge("rejected", red)
			case "failed":
				badge = statusBadge("failed", red)
			}
			lines = append(lines, fmt.Sprintf("  Fix #%d: %s %s", fx.FixID, truncate(fx.Title, max(30, m.width-30)), badge))
		}
	}

	if len(m.commits) > 0 {
		lines = append(lines, "")
		lines = append(lines, panelHeaderStyle.Render("Commits"))
		for _, c := range m.commits {
			lines = append(lines, fmt.Sprintf("  %s fix #%d  %s", improvementStyle.Render(shortSHA(c.CommitSHA)), c.FixID, dimStyle.Render(formatWhen(c.CreatedAt))))
		}
	}

	if len(lines) == 0 {
		lines = append(lines, dimStyle.Render("No per-file results recorded for this session."))
	}
	return lines
}

func categoryLabel(category string) string {
	switch category {
	case "security":
		return "Security"
	case "code_improvement":
		return "Improvement"
	case "style_issue":
		return "Style"
	case "documentation":
		return "Docs"
	}
	return category
}

func shortSHA(sha string) string {
	if len(sha) <= 8 {
		return sha
	}
	return sha[:8]
}

// formatDuration renders the wall time between two stored RFC3339 stamps.
func formatDuration(started, finished string) string {
	s, err1 := time.Parse(time.RFC3339, started)
	f, err2 := time.Parse(time.RFC3339, finished)
	if err1 != nil || err2 != nil || f.Before(s) {
		return "-"
	}
	return f.Sub(s).Round(time.Second).String()
}
