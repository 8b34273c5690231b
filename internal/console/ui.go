package console

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/unclewu3242592726/tritalk/internal/keys"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/threading"
)

type theme struct {
	header    lipgloss.Style
	panel     lipgloss.Style
	input     lipgloss.Style
	footer    lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	human     lipgloss.Style
	muted     lipgloss.Style
	agents    []lipgloss.Style
}

func newTheme() theme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint).
			Padding(0, 1),
		footer:    lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		status:    lipgloss.NewStyle().Foreground(blue).Bold(true),
		errStatus: lipgloss.NewStyle().Foreground(pink).Bold(true),
		human:     lipgloss.NewStyle().Foreground(lipgloss.Color("#f3f3ff")).Bold(true),
		muted:     lipgloss.NewStyle().Foreground(muted),
		agents: []lipgloss.Style{
			lipgloss.NewStyle().Foreground(pink).Bold(true),
			lipgloss.NewStyle().Foreground(blue).Bold(true),
			lipgloss.NewStyle().Foreground(mint).Bold(true),
			lipgloss.NewStyle().Foreground(lipgloss.Color("#fffb96")).Bold(true),
		},
	}
}

// Model is the terminal front end. Outside of typing mode every key press
// goes through the keymap.
type Model struct {
	sender Sender
	frames <-chan tea.Msg

	keyConf keys.Conf
	keymap  *keys.Keymap

	agents   []model.Agent
	state    model.ActivationState
	messages []model.Message
	speaking *model.AgentID
	status   string
	failed   bool
	typing   bool

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme
}

func New(sender Sender, frames <-chan tea.Msg, conf keys.Conf) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "say something, or /help"

	sp := spinner.New()
	sp.Spinner = spinner.Points

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	km, err := keys.New(conf, 3)
	if err != nil {
		km = keys.Default()
	}
	return Model{
		sender:   sender,
		frames:   frames,
		keyConf:  conf,
		keymap:   km,
		status:   "connecting...",
		input:    input,
		timeline: timeline,
		spinner:  sp,
		theme:    newTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitFrame(m.frames))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case sentMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("%s failed: %v", msg.cmd.Command, msg.err))
		}
		return m, nil
	case welcomeMsg:
		m.agents = msg.Agents
		m.state = msg.State
		if km, err := keys.New(m.keyConf, len(m.agents)); err != nil {
			m.setError(err.Error())
		} else {
			m.keymap = km
			m.setStatus(fmt.Sprintf("connected · %d agents", len(m.agents)))
		}
	case chatMsg:
		m.messages = append(m.messages, model.Message(msg))
		m.render()
	case stateMsg:
		m.state = model.ActivationState(msg)
	case serverErrorMsg:
		text := msg.Message
		if msg.Agent != model.Human {
			text = m.agentName(msg.Agent) + ": " + text
		}
		m.setError(text)
	case ackMsg:
		if msg.Agent != nil {
			m.updateAgent(*msg.Agent)
		}
		m.setStatus("ok · " + strings.ReplaceAll(msg.Command, "_", " "))
	case speakingMsg:
		if msg.Final {
			m.speaking = nil
		} else {
			id := msg.Agent
			m.speaking = &id
		}
	case disconnectedMsg:
		m.frames = nil
		m.setError(fmt.Sprintf("disconnected: %v", msg.err))
		return m, nil
	default:
		return m, nil
	}
	return m, waitFrame(m.frames)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.typing {
		switch msg.Type {
		case tea.KeyEsc:
			m.typing = false
			m.input.Blur()
			return m, nil
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			return m.submit(line)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if cmd, ok := m.keymap.Resolve(msg.String()); ok {
		return m, m.send(cmd)
	}
	switch msg.String() {
	case "i", "enter":
		m.typing = true
		return m, m.input.Focus()
	case "q":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.timeline, cmd = m.timeline.Update(msg)
	return m, cmd
}

// submit handles a typed line: plain text goes to the conversation, a
// leading slash selects a command.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(line, "/") {
		return m, m.send(model.CommandFrame{Command: model.CommandText, Text: line})
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return m, tea.Quit
	case "/help":
		m.setStatus(strings.Join(m.keymap.Help(), " · "))
		return m, nil
	case "/pause", "/resume":
		cmd := model.CommandFrame{Command: strings.TrimPrefix(fields[0], "/")}
		if len(fields) > 1 {
			id, err := m.parseAgent(fields[1])
			if err != nil {
				m.setError(err.Error())
				return m, nil
			}
			cmd.Agent = id
		}
		return m, m.send(cmd)
	case "/provider":
		if len(fields) < 3 {
			m.setError("usage: /provider <agent> <openai|claude|gemini> [model]")
			return m, nil
		}
		id, err := m.parseAgent(fields[1])
		if err != nil {
			m.setError(err.Error())
			return m, nil
		}
		cmd := model.CommandFrame{Command: model.CommandSelectProvider, Agent: id, Provider: fields[2]}
		if len(fields) > 3 {
			cmd.Model = fields[3]
		}
		return m, m.send(cmd)
	case "/image":
		if len(fields) < 2 {
			m.setError("usage: /image <file|url> [text]")
			return m, nil
		}
		return m, m.sendImage(fields[1], strings.Join(fields[2:], " "))
	case "/audio":
		if len(fields) != 2 {
			m.setError("usage: /audio <file>")
			return m, nil
		}
		return m, m.sendAudio(fields[1])
	default:
		m.setError("unknown command " + fields[0])
		return m, nil
	}
}

// parseAgent accepts an agent number or name.
func (m Model) parseAgent(s string) (model.AgentID, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return model.AgentID(n), nil
	}
	for _, a := range m.agents {
		if strings.EqualFold(a.Name, s) {
			return a.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown agent %q", s)
}

func (m Model) send(cmd model.CommandFrame) tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		return sentMsg{cmd: cmd, err: sender.Send(cmd)}
	}
}

func (m Model) sendImage(ref, text string) tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		cmd := model.CommandFrame{Command: model.CommandText, Text: text, Image: ref}
		if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
			data, err := os.ReadFile(ref)
			if err != nil {
				return sentMsg{cmd: cmd, err: err}
			}
			cmd.Image = model.DataURL(http.DetectContentType(data), data)
		}
		return sentMsg{cmd: cmd, err: sender.Send(cmd)}
	}
}

// sendAudio replays a recorded file through the speech input path.
func (m Model) sendAudio(path string) tea.Cmd {
	sender := m.sender
	return func() tea.Msg {
		stop := model.CommandFrame{Command: model.CommandStopRecording}
		data, err := os.ReadFile(path)
		if err != nil {
			return sentMsg{cmd: stop, err: err}
		}
		if err := sender.Send(model.CommandFrame{Command: model.CommandStartRecording}); err != nil {
			return sentMsg{cmd: stop, err: err}
		}
		if err := sender.SendAudio(data); err != nil {
			return sentMsg{cmd: stop, err: err}
		}
		return sentMsg{cmd: stop, err: sender.Send(stop)}
	}
}

func (m *Model) setStatus(s string) {
	m.status, m.failed = s, false
}

func (m *Model) setError(s string) {
	m.status, m.failed = s, true
}

func (m *Model) updateAgent(a model.Agent) {
	for i := range m.agents {
		if m.agents[i].ID == a.ID {
			m.agents[i] = a
			return
		}
	}
}

func (m Model) agentName(id model.AgentID) string {
	if id == model.Human {
		return "Human"
	}
	for _, a := range m.agents {
		if a.ID == id {
			return a.Name
		}
	}
	return id.String()
}

func (m *Model) layout() {
	m.timeline.Width = max(m.width-4, 10)
	m.timeline.Height = max(m.height-10, 3)
	m.input.Width = max(m.width-8, 10)
	m.render()
}

func (m *Model) render() {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
	}
	m.timeline.SetContent(b.String())
	m.timeline.GotoBottom()
}

func (m Model) renderMessage(msg model.Message) string {
	style := m.theme.human
	if msg.Speaker != model.Human {
		style = m.theme.agents[(int(msg.Speaker)-1+len(m.theme.agents))%len(m.theme.agents)]
	}
	name := msg.SpeakerName
	if name == "" {
		name = m.agentName(msg.Speaker)
	}
	line := m.theme.muted.Render(msg.Timestamp.Local().Format(time.TimeOnly)) + " " + style.Render(name) + ": " + msg.Content
	if msg.Image != nil {
		line += m.theme.muted.Render(" [image]")
	}
	return line
}

func (m Model) header() string {
	var b strings.Builder
	b.WriteString("TriTalk · ")
	switch {
	case m.state.Paused:
		b.WriteString("paused")
	case m.state.Active != nil:
		b.WriteString(m.spinner.View() + " " + m.agentName(*m.state.Active) + " is thinking")
	default:
		b.WriteString("idle")
	}
	if m.speaking != nil {
		b.WriteString(" · " + m.agentName(*m.speaking) + " speaking")
	}
	for _, a := range m.agents {
		mark := ""
		if a.Paused {
			mark = " (paused)"
		}
		fmt.Fprintf(&b, " · %d %s [%s]%s", int(a.ID), a.Name, a.Provider, mark)
	}
	return m.theme.header.Width(max(m.width-2, 10)).Render(b.String())
}

func (m Model) View() string {
	status := m.theme.status.Render(m.status)
	if m.failed {
		status = m.theme.errStatus.Render(m.status)
	}
	hint := "i type · q quit · " + strings.Join(m.keymap.Help(), " · ")
	if m.typing {
		hint = "enter send · esc keys · /help"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		m.theme.panel.Render(m.timeline.View()),
		m.theme.input.Render(m.input.View()),
		status,
		m.theme.footer.Render(hint),
	)
}

// Run connects to the server at url and blocks until the user quits.
func Run(ctx context.Context, url string, conf keys.Conf) error {
	client, err := Dial(ctx, url)
	if err != nil {
		return err
	}
	defer client.Close()

	frames := make(chan tea.Msg, 64)
	threading.GoSafe(func() {
		client.Listen(frames)
	})

	p := tea.NewProgram(New(client, frames, conf), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
