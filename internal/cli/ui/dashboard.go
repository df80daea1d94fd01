package ui

import (
	"fmt"
	"gamewarden/pkg/sdk"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type model struct {
	table   table.Model
	servers []sdk.ServerStatus
	err     error
	width   int
	height  int
	message string
	quit    bool
	open    string
	client  *sdk.Client
}

type serverDataMsg []sdk.ServerStatus

type errMsg error

type opDoneMsg struct {
	res *sdk.OperationResult
	err error
}

type clearMessageMsg struct{}

// RunDashboard shows the server table until the user quits or picks a
// server. It returns the picked name, or "" on quit.
func RunDashboard(client *sdk.Client) string {
	columns := []table.Column{
		{Title: "Sts", Width: 3},
		{Title: "Name", Width: 20},
		{Title: "Region", Width: 14},
		{Title: "Activity", Width: 28},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := model{table: t, client: client}

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	finalModel, err := program.Run()
	if err != nil {
		fmt.Printf("Error running dashboard: %v", err)
		os.Exit(1)
	}

	if m, ok := finalModel.(model); ok && !m.quit {
		return m.open
	}
	return ""
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchDataCmd(m.client), tickCmd())
}

func (m model) selected() string {
	row := m.table.SelectedRow()
	if len(row) > 1 {
		return row[1]
	}
	return ""
}

func (m model) busy(name string) bool {
	for _, s := range m.servers {
		if s.Name == name {
			return s.Busy
		}
	}
	return false
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		case "s", "x", "g":
			name := m.selected()
			if name == "" {
				return m, nil
			}
			if m.busy(name) {
				m.message = fmt.Sprintf("%s already has an operation in progress", name)
				return m, clearMessageCmd()
			}
			var verb string
			var call func(string) (*sdk.OperationResult, error)
			switch msg.String() {
			case "s":
				verb, call = "Starting", m.client.StartServer
			case "x":
				verb, call = "Stopping", m.client.StopServer
			default:
				verb, call = "Saving and shutting down", m.client.GracefulStopServer
			}
			m.message = fmt.Sprintf("%s %s...", verb, name)
			return m, tea.Batch(operationCmd(call, name), fetchDataCmd(m.client))
		case "enter":
			if name := m.selected(); name != "" {
				m.open = name
				return m, tea.Quit
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 10)
		m.table.SetHeight(msg.Height - 10)
	case serverDataMsg:
		m.err = nil
		m.servers = msg
		m.updateTable()
		return m, nil
	case opDoneMsg:
		if msg.err != nil && msg.res == nil {
			m.message = msg.err.Error()
		} else {
			m.message = fmt.Sprintf("%s %s: %s", msg.res.Intent, msg.res.Server, msg.res.Status)
			if msg.res.Error != "" {
				m.message += " (" + msg.res.Error + ")"
			}
		}
		return m, tea.Batch(fetchDataCmd(m.client), clearMessageCmd())
	case clearMessageMsg:
		m.message = ""
		return m, nil
	case tickMsg:
		return m, tea.Batch(fetchDataCmd(m.client), tickCmd())
	case errMsg:
		m.err = msg
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) updateTable() {
	rows := []table.Row{}
	for _, s := range m.servers {
		status := "🟢"
		if s.Busy {
			status = "🟡"
		}
		rows = append(rows, table.Row{status, s.Name, s.Region, activity(s)})
	}
	m.table.SetRows(rows)
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := headerStyle.Render("GAMEWARDEN")
	clock := subHeaderStyle.Render(time.Now().Format("Mon Jan 2 15:04:05"))

	hostInfo := fmt.Sprintf("Daemon: %s  |  Servers: %d", m.client.BaseURL(), len(m.servers))
	if m.err != nil {
		hostInfo += "  |  " + statusStyle("failed").Render("unreachable")
	}
	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Center, title, clock, " ", hostInfo))

	tableContainer := baseStyle.
		Width(m.width - 4).
		Height(m.height - 12).
		Render(m.table.View())

	footerText := lipgloss.NewStyle().MarginLeft(2).Render(helpLine(
		[2]string{"↑/↓", "navigate"},
		[2]string{"s", "start"},
		[2]string{"x", "stop"},
		[2]string{"g", "graceful stop"},
		[2]string{"enter", "console"},
		[2]string{"q", "quit"},
	))

	if m.message != "" {
		footerText = fmt.Sprintf("%s\n%s", messageStyle.Render(m.message), footerText)
	}

	return lipgloss.JoinVertical(lipgloss.Center,
		headerBox,
		tableContainer,
		footerText,
	)
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func clearMessageCmd() tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return clearMessageMsg{}
	})
}

func fetchDataCmd(client *sdk.Client) tea.Cmd {
	return func() tea.Msg {
		servers, err := client.ListServers()
		if err != nil {
			return errMsg(err)
		}
		return serverDataMsg(servers)
	}
}

func operationCmd(call func(string) (*sdk.OperationResult, error), name string) tea.Cmd {
	return func() tea.Msg {
		res, err := call(name)
		return opDoneMsg{res: res, err: err}
	}
}
