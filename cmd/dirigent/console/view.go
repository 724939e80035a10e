package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	header := m.renderHeader()
	chat := m.viewport.View()
	input := m.styles.Input.Render(m.textarea.View())
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, chat, input, footer)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" dirigent ")

	var status string
	if m.isLoading {
		status = lipgloss.JoinHorizontal(lipgloss.Center, m.spinner.View(), " ", m.styles.Muted.Render("thinking..."))
	} else {
		status = m.styles.Success.Render("ready")
	}

	line := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)
	return lipgloss.JoinVertical(lipgloss.Left, line, m.styles.RenderDivider(m.width))
}

func (m Model) renderFooter() string {
	left := "/help for commands"
	if m.err != nil {
		left = m.styles.Error.Render(fmt.Sprintf("error: %v", m.err))
	}
	clock := time.Now().Format("15:04")
	return m.styles.Muted.Render(fmt.Sprintf("%s | %s", left, clock))
}

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		switch msg.role {
		case "user":
			name := m.userName
			if name == "" {
				name = "You"
			}
			sb.WriteString(m.styles.UserLabel.Render(name) + "\n")
			sb.WriteString(msg.content)
			sb.WriteString("\n")
		default:
			sb.WriteString(m.styles.BotLabel.Render("dirigent") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown, falling back to the raw text if
// the renderer fails or panics.
func (m Model) safeRenderMarkdown(content string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}
