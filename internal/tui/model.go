package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"evidence-rag/internal/models"
)

// ChatPort sends the conversation and returns the assistant reply
type ChatPort interface {
	Send(ctx context.Context, messages []models.ChatMessage) (models.ChatMessage, error)
}

type replyMsg struct {
	reply models.ChatMessage
	err   error
}

// Model is the Bubble Tea model of the terminal chat. The conversation lives
// here and is posted in full on every turn.
type Model struct {
	client   ChatPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	messages []models.ChatMessage
	loading  bool
	ready    bool
}

func New(client ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the evidence..."
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		client:   client,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		messages: []models.ChatMessage{{Role: models.RoleAssistant, Content: models.Greeting}},
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Messages returns the conversation so far
func (m Model) Messages() []models.ChatMessage {
	return m.messages
}

func (m Model) Loading() bool {
	return m.loading
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := boxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-2*fh-4)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.loading {
				return m, nil
			}
			m.messages = append(m.messages, models.ChatMessage{Role: models.RoleUser, Content: m.input.Value()})
			m.input.Reset()
			m.loading = true
			m.refresh()
			return m, tea.Batch(m.send(), m.spinner.Tick)
		}
	case replyMsg:
		m.loading = false
		if msg.err != nil {
			log.Error().Err(msg.err).Msg("Chat request failed")
			m.messages = append(m.messages, models.ChatMessage{Role: models.RoleAssistant, Content: models.ConnectionErrorText})
		} else {
			m.messages = append(m.messages, models.ChatMessage{Role: models.RoleAssistant, Content: msg.reply.Content})
		}
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() tea.Cmd {
	history := append([]models.ChatMessage(nil), m.messages...)
	client := m.client
	return func() tea.Msg {
		reply, err := client.Send(context.Background(), history)
		return replyMsg{reply: reply, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("COLD CASE") + " " + subtitleStyle.Render("RAG SYSTEM V1.0")
	status := subtitleStyle.Render("esc to quit")
	if m.loading {
		status = m.spinner.View() + " " + subtitleStyle.Render("ANALYZING EVIDENCE...")
	}
	return header + "\n" + boxStyle.Render(m.viewport.View()) + "\n" + boxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderConversation() string {
	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if msg.Role == models.RoleUser {
			b.WriteString(userStyle.Render("You: "))
		} else {
			b.WriteString(detectiveStyle.Render("Detective: "))
		}
		b.WriteString(msg.Content)
	}
	return b.String()
}

var (
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	detectiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)
