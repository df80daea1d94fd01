package ui

import (
	"encoding/json"
	"fmt"
	"gamewarden/pkg/sdk"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

type consoleModel struct {
	sub       chan sdk.Event
	viewport  viewport.Model
	textInput textinput.Model
	ready     bool
	name      string
	server    *sdk.ServerStatus
	lines     []string
	running   bool
	quitting  bool
	back      bool
	client    *sdk.Client
	width     int
	height    int
}

func initialConsoleModel(name string, sub chan sdk.Event, client *sdk.Client) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "Type an RCON command..."
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 40

	return consoleModel{
		sub:       sub,
		textInput: ti,
		name:      name,
		client:    client,
	}
}

type eventMsg sdk.Event

type execDoneMsg struct {
	command string
	res     *sdk.OperationResult
	err     error
}

type serverStatusMsg *sdk.ServerStatus

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForEvent(m.sub),
		getServerStatus(m.client, m.name),
		tickCmd(),
	)
}

func waitForEvent(sub chan sdk.Event) tea.Cmd {
	return func() tea.Msg {
		if sub == nil {
			return nil
		}
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

func getServerStatus(client *sdk.Client, name string) tea.Cmd {
	return func() tea.Msg {
		servers, err := client.ListServers()
		if err != nil {
			return nil
		}
		for i := range servers {
			if servers[i].Name == name {
				return serverStatusMsg(&servers[i])
			}
		}
		return nil
	}
}

func execCmd(client *sdk.Client, name, command string) tea.Cmd {
	return func() tea.Msg {
		res, err := client.Exec(name, command)
		return execDoneMsg{command: command, res: res, err: err}
	}
}

func (m *consoleModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEsc:
			m.back = true
			return m, tea.Quit
		case tea.KeyEnter:
			command := strings.TrimSpace(m.textInput.Value())
			if command == "" || m.running {
				return m, nil
			}
			m.textInput.SetValue("")
			m.running = true
			m.appendLine(keyStyle.Render("> ") + command)
			return m, execCmd(m.client, m.name, command)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 12
		contentWidth := msg.Width - 6

		if !m.ready {
			m.viewport = viewport.New(contentWidth, msg.Height-headerHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = msg.Height - headerHeight
		}

	case eventMsg:
		m.appendLine(FormatEvent(sdk.Event(msg)))
		return m, waitForEvent(m.sub)

	case execDoneMsg:
		m.running = false
		switch {
		case msg.res != nil && msg.res.Status == "completed":
			out := strings.TrimRight(msg.res.Output, "\n")
			if out == "" {
				out = descStyle.Render("(no output)")
			}
			m.appendLine(out)
		case msg.res != nil:
			m.appendLine(statusStyle(msg.res.Status).Render(msg.res.Status) + " " + msg.res.Error)
		default:
			m.appendLine(statusStyle("failed").Render("error") + " " + msg.err.Error())
		}
		return m, nil

	case serverStatusMsg:
		m.server = msg

	case tickMsg:
		return m, tea.Batch(getServerStatus(m.client, m.name), tickCmd())
	}

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m consoleModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	title := headerStyle.Width(m.width).Render("SERVER CONSOLE")

	info := "Loading server details..."
	if m.server != nil {
		icon := "🟢"
		if m.server.Busy {
			icon = "🟡"
		}
		info = fmt.Sprintf("Server: %s %s  •  Region: %s  •  %s",
			icon, m.server.Name, m.server.Region, activity(*m.server))
	}

	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(info)

	console := baseStyle.
		Width(m.width - 4).
		Render(m.viewport.View())

	prompt := "→ "
	if m.running {
		prompt = "… "
	}
	inputLine := prompt + m.textInput.View()

	help := lipgloss.NewStyle().
		Width(m.width - 6).
		Align(lipgloss.Center).
		Render(helpLine([2]string{"enter", "run"}, [2]string{"esc", "back"}, [2]string{"ctrl+c", "quit"}))

	footerBox := footerStyle.
		Width(m.width - 4).
		Align(lipgloss.Left).
		Render(lipgloss.JoinVertical(lipgloss.Left, inputLine, "", help))

	return lipgloss.JoinVertical(lipgloss.Center,
		title,
		headerBox,
		console,
		footerBox,
	)
}

// RunConsole streams lifecycle events for name and runs RCON commands typed
// by the user. It reports whether the user asked to go back.
func RunConsole(client *sdk.Client, name string) bool {
	wsURL, err := client.EventsURL(name)
	if err != nil {
		log.Fatal("Error parsing base URL:", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Printf("Error connecting to event stream: %v\nPress Enter to continue...", err)
		fmt.Scanln()
		return true
	}
	defer conn.Close()

	sub := make(chan sdk.Event)
	go func() {
		defer close(sub)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev sdk.Event
			if err := json.Unmarshal(message, &ev); err != nil {
				continue
			}
			sub <- ev
		}
	}()

	p := tea.NewProgram(
		initialConsoleModel(name, sub, client),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	m, err := p.Run()
	if err != nil {
		log.Printf("Error running console UI: %v", err)
		return true
	}

	if cm, ok := m.(consoleModel); ok {
		return cm.back
	}
	return false
}
