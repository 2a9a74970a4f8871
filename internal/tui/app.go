package tui

import (
	"github.com/CosmoTheDev/ctrlreview/internal/config"
	"github.com/CosmoTheDev/ctrlreview/internal/database"
	"github.com/CosmoTheDev/ctrlreview/internal/history"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// screen identifies which view the App is showing.
type screen int

const (
	screenSessions screen = iota
	screenDetail
)

// App is the root bubbletea model: the stored-session list with a
// drill-down view of one session's results.
type App struct {
	cfg      *config.Config
	store    *history.Store
	width    int
	height   int
	active   screen
	sessions SessionsModel
	detail   DetailModel
}

// NewApp creates the TUI application over the session history store.
func NewApp(cfg *config.Config, db database.DB) *App {
	store := history.NewStore(db)
	return &App{
		cfg:      cfg,
		store:    store,
		sessions: NewSessionsModel(store),
		detail:   NewDetailModel(store),
	}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.sessions.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		contentW := msg.Width - 2
		if contentW < 20 {
			contentW = 20
		}
		contentH := msg.Height - 6
		if contentH < 8 {
			contentH = 8
		}
		a.sessions.SetSize(contentW, contentH)
		a.detail.SetSize(contentW, contentH)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "enter":
			if a.active == screenSessions {
				if row, ok := a.sessions.Selected(); ok {
					var cmd tea.Cmd
					a.detail, cmd = a.detail.Load(row)
					a.active = screenDetail
					return a, cmd
				}
			}
		case "esc", "backspace":
			if a.active == screenDetail {
				a.active = screenSessions
				return a, nil
			}
		}
	}

	// Delegate to the active view.
	switch a.active {
	case screenSessions:
		newSessions, cmd := a.sessions.Update(msg)
		a.sessions = newSessions.(SessionsModel)
		cmds = append(cmds, cmd)
	case screenDetail:
		newDetail, cmd := a.detail.Update(msg)
		a.detail = newDetail.(DetailModel)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()

	var content, keys string
	switch a.active {
	case screenDetail:
		content = a.detail.View()
		keys = "esc back  j/k scroll  q quit"
	default:
		content = a.sessions.View()
		keys = "enter open  j/k navigate  r refresh  q quit"
	}

	contentBox := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		MaxHeight(max(1, a.height-3)).
		Render(content)

	status := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(slateDim).
		Render(keys)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		contentBox,
		status,
	)
}

func (a *App) renderHeader() string {
	badge := "Sessions"
	if a.active == screenDetail {
		badge = a.detail.SessionKey()
	}
	row := lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("ctrlreview"),
		"  ",
		dimStyle.Render("AI code review history"),
		"  ",
		mutedBadgeStyle.Render(" "+badge+" "),
	)
	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(row)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
