// Package tui implements the conductor watch dashboard: a live view of
// sessions and tasks fed by the client reconciliation cache.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/randalmurphal/conductor/internal/client"
	"github.com/randalmurphal/conductor/internal/entity"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	paneStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
	statusBar  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	workingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	needsStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	terminalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// changeMsg is posted into the bubbletea loop for every realtime event
// applied to the cache.
type changeMsg struct {
	event client.WireEvent
}

// connStateMsg reports realtime connection transitions for the status
// bar.
type connStateMsg struct {
	connected bool
	err       error
}

// model is the watch dashboard state. Entity data lives in the client
// cache; the model only tracks view state and re-reads the cache on
// every change message.
type model struct {
	client    *client.Client
	projectID string

	sessions  table.Model
	tasks     table.Model
	focusLeft bool

	width     int
	height    int
	connected bool
	lastEvent string
	lastErr   error
}

// Run starts the dashboard and blocks until the user quits or the
// context is canceled.
func Run(ctx context.Context, c *client.Client, projectID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(c, projectID)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	rt := client.NewRealtime(c, projectID, nil)
	rt.OnChange = func(e client.WireEvent) {
		p.Send(changeMsg{event: e})
	}
	go func() {
		err := rt.Run(ctx)
		if ctx.Err() == nil {
			p.Send(connStateMsg{connected: false, err: err})
		}
	}()

	_, err := p.Run()
	return err
}

func newModel(c *client.Client, projectID string) model {
	sessions := table.New(
		table.WithColumns([]table.Column{
			{Title: "Session", Width: 10},
			{Title: "Status", Width: 10},
			{Title: "Input", Width: 6},
			{Title: "Tasks", Width: 24},
		}),
		table.WithFocused(true),
	)
	tasks := table.New(
		table.WithColumns([]table.Column{
			{Title: "Task", Width: 10},
			{Title: "Status", Width: 12},
			{Title: "Work", Width: 16},
			{Title: "Title", Width: 32},
		}),
	)
	return model{
		client:    c,
		projectID: projectID,
		sessions:  sessions,
		tasks:     tasks,
		focusLeft: true,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.focusLeft = !m.focusLeft
			if m.focusLeft {
				m.sessions.Focus()
				m.tasks.Blur()
			} else {
				m.tasks.Focus()
				m.sessions.Blur()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.reload()
		return m, nil

	case changeMsg:
		m.connected = true
		m.lastEvent = msg.event.Event
		m.lastErr = nil
		m.reload()
		return m, nil

	case connStateMsg:
		m.connected = msg.connected
		m.lastErr = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	if m.focusLeft {
		m.sessions, cmd = m.sessions.Update(msg)
	} else {
		m.tasks, cmd = m.tasks.Update(msg)
	}
	return m, cmd
}

// reload re-reads the cache into the table rows.
func (m *model) reload() {
	cache := m.client.Cache()
	scope := m.projectID
	if scope == "*" {
		scope = ""
	}

	sessionRows := make([]table.Row, 0)
	for _, s := range cache.Sessions(scope) {
		input := ""
		if s.NeedsInput.Active {
			input = "yes"
		}
		ids := make([]string, 0, len(s.TaskIDs))
		for _, id := range s.TaskIDs {
			ids = append(ids, short(id))
		}
		sessionRows = append(sessionRows, table.Row{
			short(s.ID), styledSessionStatus(s), input, strings.Join(ids, ","),
		})
	}
	m.sessions.SetRows(sessionRows)

	taskRows := make([]table.Row, 0)
	for _, t := range cache.Tasks(scope) {
		taskRows = append(taskRows, table.Row{
			short(t.ID), string(t.Status), workSummary(t), t.Title,
		})
	}
	m.tasks.SetRows(taskRows)
}

func (m *model) resize() {
	if m.width <= 0 {
		return
	}
	half := m.width/2 - 4
	if half < 30 {
		half = 30
	}
	m.sessions.SetWidth(half)
	m.tasks.SetWidth(half)
	h := m.height - 6
	if h < 5 {
		h = 5
	}
	m.sessions.SetHeight(h)
	m.tasks.SetHeight(h)
}

func (m model) View() string {
	left := paneStyle.Render(m.sessions.View())
	right := paneStyle.Render(m.tasks.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	conn := "connecting..."
	if m.connected {
		conn = "live"
	}
	if m.lastErr != nil {
		conn = fmt.Sprintf("disconnected: %v", m.lastErr)
	}
	status := statusBar.Render(fmt.Sprintf(" %s · last event: %s · tab to switch panes · q to quit", conn, orDash(m.lastEvent)))

	return titleStyle.Render(" conductor watch ") + "\n" + body + "\n" + status
}

// styledSessionStatus colors terminal, working, and failed states.
func styledSessionStatus(s *entity.Session) string {
	status := string(s.Status)
	switch s.Status {
	case entity.SessionWorking, entity.SessionSpawning:
		if s.NeedsInput.Active {
			return needsStyle.Render(status)
		}
		return workingStyle.Render(status)
	case entity.SessionFailed:
		return failedStyle.Render(status)
	default:
		return terminalStyle.Render(status)
	}
}

// workSummary condenses per-session work statuses into "2 working, 1
// failed" form.
func workSummary(t *entity.Task) string {
	if len(t.TaskSessionStatuses) == 0 {
		return "-"
	}
	counts := map[entity.WorkStatus]int{}
	for _, ws := range t.TaskSessionStatuses {
		counts[ws]++
	}
	parts := make([]string, 0, len(counts))
	for _, ws := range []entity.WorkStatus{
		entity.WorkWorking, entity.WorkQueued, entity.WorkBlocked,
		entity.WorkCompleted, entity.WorkFailed, entity.WorkStopped,
	} {
		if n := counts[ws]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, ws))
		}
	}
	return strings.Join(parts, ", ")
}

func short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
