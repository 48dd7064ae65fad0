package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragkb/internal/service"
)

// ChatPort is the TUI-facing subset of the RAG pipeline.
type ChatPort interface {
	Ask(ctx context.Context, question, kbName string, topK int) (*service.Answer, error)
}

// Model is the Bubble Tea model for the chat console.
type Model struct {
	rag      ChatPort
	kbName   string
	topK     int
	input    textinput.Model
	viewport viewport.Model
	history  []string
	status   string
	ready    bool
}

// New creates a chat console bound to one knowledge base.
func New(rag ChatPort, kbName string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		rag:      rag,
		kbName:   kbName,
		topK:     topK,
		input:    ti,
		viewport: vp,
		status:   fmt.Sprintf("Connected to knowledge base %q. Type to chat.", kbName),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around the transcript and query boxes
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + query frame + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.history = append(m.history, youStyle.Render("you: ")+q)
				answer, err := m.rag.Ask(context.Background(), q, m.kbName, m.topK)
				if err != nil {
					m.status = "Error: " + err.Error()
				} else {
					m.history = append(m.history, botStyle.Render("kb: ")+answer.Answer)
					m.history = append(m.history, renderSources(answer))
					m.status = fmt.Sprintf("Answered from %d snippets", answer.SnippetCount)
				}
				m.input.SetValue("")
				m.viewport.SetContent(m.renderTranscript())
				m.viewport.GotoBottom()
				return m, nil
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Knowledge Base Chat: " + m.kbName)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return "No messages yet."
	}
	return strings.Join(m.history, "\n\n")
}

func renderSources(answer *service.Answer) string {
	if len(answer.Sources) == 0 {
		return sourceStyle.Render("(no sources)")
	}
	parts := make([]string, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		parts = append(parts, fmt.Sprintf("%s#%d (%.3f)", src.Filename, src.ChunkIndex, src.Score))
	}
	return sourceStyle.Render("sources: " + strings.Join(parts, ", "))
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
