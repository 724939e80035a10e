// Package console is the interactive terminal chat. It runs the same
// router the chat channels use, under the fixed "console" session, so
// override lines (model:, skill:, verbose) and "new session:" work
// exactly as they do in Discord or Telegram.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dirigent/cmd/dirigent/ui"
	"dirigent/internal/router"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

const sessionKey = "console"

const defaultPlaceholder = "Ask me anything... (Enter to send, Alt+Enter for newline, Ctrl+C to exit)"

const helpText = `**Console commands**

  /help          show this help
  /quit          leave the console

**Override lines** (put them on their own lines before your question):

  model: llama3          switch the model for this turn
  temperature: 0.2       sampling temperature
  num_ctx: 8192          context window size
  skill: 2               load a skill by number or topic
  agent: writer          delegate the turn to an agent
  verbose                include the raw tool exchange

Start a message with ` + "`new session:`" + ` to clear the conversation history.`

// Run starts the interactive console and blocks until the user quits.
func Run(ctx context.Context, rtr *router.Router, userName string) error {
	p := tea.NewProgram(newModel(ctx, rtr, userName), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// message is one rendered chat entry.
type message struct {
	role    string // "user" or "assistant"
	content string
	at      time.Time
}

// Messages for tea updates.
type (
	responseMsg string
	errorMsg    error
)

// Model is the bubbletea model for the console.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	history   []message
	isLoading bool
	err       error
	width     int
	height    int
	ready     bool

	ctx      context.Context
	router   *router.Router
	userName string
}

func newModel(ctx context.Context, rtr *router.Router, userName string) Model {
	styles := ui.DefaultStyles()

	ta := textarea.New()
	ta.Placeholder = defaultPlaceholder
	ta.Focus()
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return Model{
		textarea: ta,
		viewport: vp,
		spinner:  sp,
		styles:   styles,
		renderer: renderer,
		ctx:      ctx,
		router:   rtr,
		userName: userName,
	}
}

// Init starts the cursor blink and spinner tickers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			// Alt+Enter inserts a newline; plain Enter sends.
			if msg.Alt {
				break
			}
			if !m.isLoading {
				return m.handleSubmit()
			}
			return m, nil
		}

		if !m.isLoading {
			m.textarea, tiCmd = m.textarea.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case responseMsg:
		m.isLoading = false
		m.history = append(m.history, message{role: "assistant", content: string(msg), at: time.Now()})
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case errorMsg:
		m.isLoading = false
		m.err = msg
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

// layout recomputes component sizes after a terminal resize.
func (m *Model) layout() {
	headerHeight := 2
	footerHeight := 1
	inputHeight := 5

	w := m.width - 2
	if w < 20 {
		w = 20
	}
	h := m.height - headerHeight - footerHeight - inputHeight
	if h < 3 {
		h = 3
	}

	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	m.textarea.SetWidth(w - 4)

	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(w-4),
	)
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.err = nil
	m.history = append(m.history, message{role: "user", content: input, at: time.Now()})
	m.textarea.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	m.isLoading = true

	return m, tea.Batch(m.spinner.Tick, m.ask(input))
}

// ask runs the turn in the background and delivers the answer as a
// message.
func (m Model) ask(input string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.router.Turn(m.ctx, router.Request{
			Session:  sessionKey,
			UserName: m.userName,
			Content:  input,
		})
		if err != nil {
			return errorMsg(err)
		}
		return responseMsg(answer)
	}
}

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	m.textarea.Reset()

	switch strings.Fields(input)[0] {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/help":
		m.history = append(m.history, message{role: "assistant", content: helpText, at: time.Now()})
	default:
		m.history = append(m.history, message{
			role:    "assistant",
			content: fmt.Sprintf("Unknown command `%s`. Try /help.", input),
			at:      time.Now(),
		})
	}

	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
	return m, nil
}
