package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfchat/internal/domain"
)

const answerTimeout = 2 * time.Minute

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	AnswerQuestion(ctx context.Context, question string) (*domain.Answer, error)
}

type answerMsg struct {
	question string
	answer   *domain.Answer
	err      error
}

// Model is the Bubble Tea model for the question prompt.
type Model struct {
	service  RAGPort
	input    textinput.Model
	viewport viewport.Model
	summary  string
	status   string
	pending  bool
	ready    bool

	question string
	answer   *domain.Answer
}

func New(service RAGPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the PDFs and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, summary: summary, status: "Documents processed. Ask away."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ah)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.pending = false
		m.question = msg.question
		m.answer = msg.answer
		m.status = statusFor(msg)
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.status = "Thinking..."
			m.input.SetValue("")
			return m, m.ask(q)
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
		defer cancel()
		ans, err := service.AnswerQuestion(ctx, q)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

func statusFor(msg answerMsg) string {
	switch {
	case errors.Is(msg.err, domain.ErrNotReady):
		return "No documents have been processed."
	case errors.Is(msg.err, domain.ErrRateLimited):
		return "Rate limited by the model provider, try again shortly."
	case errors.Is(msg.err, domain.ErrModelUnavailable):
		return "The generation model is unavailable."
	case msg.err != nil:
		return "Error: " + msg.err.Error()
	case msg.answer.Status == domain.StatusNoMatch:
		return fmt.Sprintf("Nothing in the documents relates to %q", msg.question)
	case msg.answer.Cached:
		return fmt.Sprintf("Answered %q (cached)", msg.question)
	default:
		return fmt.Sprintf("Answered %q", msg.question)
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Chat with PDF")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answer := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	if m.answer.Status == domain.StatusNoMatch {
		return "No relevant passages found."
	}
	var b strings.Builder
	b.WriteString(m.answer.Text)
	if len(m.answer.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sourceTitleStyle.Render("Sources"))
		for _, s := range m.answer.Sources {
			fmt.Fprintf(&b, "\n\n#%d  score=%.3f\n%s", s.Order+1, s.Score, highlightTerms(s.Text, m.question))
		}
	}
	return b.String()
}

var (
	answerBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceTitleStyle = lipgloss.NewStyle().Underline(true)
	wordRe           = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// highlightTerms marks words of text that also occur in query. Words of
// three letters or fewer are left alone.
func highlightTerms(text, query string) string {
	terms := map[string]struct{}{}
	for _, w := range wordRe.FindAllString(strings.ToLower(query), -1) {
		if len([]rune(w)) > 3 {
			terms[w] = struct{}{}
		}
	}
	if len(terms) == 0 {
		return text
	}
	return wordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := terms[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}
