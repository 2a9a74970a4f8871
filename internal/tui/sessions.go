package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/ctrlreview/internal/history"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SessionsModel lists stored review sessions, newest first.
type SessionsModel struct {
	store    *history.Store
	rows     []history.SessionRow
	width    int
	height   int
	cursor   int
	lastLoad time.Time
	loading  bool
}

// sessionsLoadedMsg carries the refreshed session list.
type sessionsLoadedMsg struct{ rows []history.SessionRow }

// NewSessionsModel creates a SessionsModel.
func NewSessionsModel(store *history.Store) SessionsModel {
	return SessionsModel{store: store, loading: true}
}

func (m SessionsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m SessionsModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		rows, _ := m.store.ListSessions(context.Background(), 100)
		return sessionsLoadedMsg{rows: rows}
	}
}

func (m SessionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionsLoadedMsg:
		m.rows = msg.rows
		m.loading = false
		m.lastLoad = time.Now()
		// Refresh every 10 seconds; serve mode keeps writing sessions.
		return m.clampCursor(), tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
			return m.loadCmd()()
		})

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			m.cursor++
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "r":
			m.loading = true
			return m, m.loadCmd()
		}
	}
	return m.clampCursor(), nil
}

func (m *SessionsModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Selected returns the session row under the cursor.
func (m SessionsModel) Selected() (history.SessionRow, bool) {
	if len(m.rows) == 0 {
		return history.SessionRow{}, false
	}
	return m.rows[m.cursor], true
}

func (m SessionsModel) View() string {
	if m.loading && len(m.rows) == 0 {
		return panelStyle.Width(max(20, m.width-2)).Render("Loading sessions...")
	}

	// Summary counts across the loaded window.
	var findings, applied, failed int
	for _, r := range m.rows {
		findings += r.Findings
		applied += r.AppliedFixes
		failed += r.FailedFiles
	}

	cardW := 18
	if m.width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("Sessions", len(m.rows), okStyle, cardW),
		renderCounter("Findings", findings, improvementStyle, cardW),
		renderCounter("Fixes applied", applied, okStyle, cardW),
		renderCounter("Failed files", failed, securityStyle, cardW),
	)

	lineLimit := m.height - 12
	if lineLimit < 5 {
		lineLimit = 5
	}
	rows := ""
	for i, r := range m.rows {
		if i >= lineLimit {
			break
		}
		rows += m.renderRow(i, r)
	}
	if len(m.rows) == 0 {
		rows = dimStyle.Render("No sessions yet. Run: ctrlreview review-files <path>\n")
	}

	updated := "never"
	if !m.lastLoad.IsZero() {
		updated = m.lastLoad.Format("15:04:05")
	}
	refreshInfo := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
		"   ",
		dimStyle.Render("updated "+updated),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, m.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Review Sessions"),
				dimStyle.Render("Session        When              Provider              Files  Findings  Fixes   Status"),
				rows,
				refreshInfo,
			),
		),
	)
}

func (m SessionsModel) renderRow(idx int, r history.SessionRow) string {
	cursor := " "
	if idx == m.cursor {
		cursor = "▌"
	}
	status := statusBadge("ok", green)
	if r.FailedFiles > 0 {
		status = statusBadge(fmt.Sprintf("%d failed", r.FailedFiles), red)
	}
	provider := truncate(r.Provider+"/"+r.Model, 20)

	line := lipgloss.JoinHorizontal(lipgloss.Left,
		lipgloss.NewStyle().Width(2).Foreground(accent).Render(cursor),
		lipgloss.NewStyle().Width(15).Foreground(ink).Render(r.SessionKey),
		lipgloss.NewStyle().Width(18).Foreground(slate).Render(formatWhen(r.StartedAt)),
		lipgloss.NewStyle().Width(22).Foreground(slate).Render(provider),
		lipgloss.NewStyle().Width(7).Foreground(ink).Render(fmt.Sprintf("%d", r.TotalFiles)),
		lipgloss.NewStyle().Width(10).Foreground(ink).Render(fmt.Sprintf("%d", r.Findings)),
		lipgloss.NewStyle().Width(8).Foreground(ink).Render(fmt.Sprintf("%d", r.AppliedFixes)),
		status,
	)
	if idx == m.cursor {
		return selectedRowStyle.Width(max(20, m.width-6)).Render(line) + "\n"
	}
	return line + "\n"
}

func (m SessionsModel) clampCursor() SessionsModel {
	if len(m.rows) == 0 {
		m.cursor = 0
		return m
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	return m
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Bold(true).Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(label),
		),
	) + "  "
}

// formatWhen renders a stored RFC3339 timestamp compactly, in local time.
func formatWhen(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("Jan 02 15:04")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "…" + s[len(s)-max+1:]
}
