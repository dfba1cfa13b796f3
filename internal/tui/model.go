package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/PabloGalante/msgboard/internal/client"
	"github.com/PabloGalante/msgboard/internal/domain"
	"github.com/PabloGalante/msgboard/internal/observability"
)

const defaultRequestTimeout = 15 * time.Second

// Options configures the TUI behavior.
type Options struct {
	Title          string
	RequestTimeout time.Duration
}

// requestDoneMsg is sent when a controller call has resolved.
type requestDoneMsg struct {
	op  string
	err error
}

// Model is the Bubble Tea model. It only renders controller state and forwards input to it.
type Model struct {
	ctrl    *client.Controller
	opts    Options
	keys    keyMap
	input   textinput.Model
	spinner spinner.Model
	cursor  int
	width   int
}

func New(ctrl *client.Controller, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Message Board"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	ti := textinput.New()
	ti.Placeholder = "Write a message…"
	ti.CharLimit = domain.MaxTextLength
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(spinnerStyle),
	)

	return Model{
		ctrl:    ctrl,
		opts:    opts,
		keys:    defaultKeyMap(),
		input:   ti,
		spinner: sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.load())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case requestDoneMsg:
		if msg.err != nil {
			observability.WithFields("op", msg.op).Warn("request failed", "error", msg.err)
		}
		if msg.op == "create" {
			m.input.SetValue(m.ctrl.Snapshot().Draft)
			m.input.CursorEnd()
		}
		m.clampCursor()
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Snapshot().Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Dismiss):
		m.ctrl.DismissError()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.ctrl.Snapshot().Messages)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		msgs := m.ctrl.Snapshot().Messages
		if m.cursor < 0 || m.cursor >= len(msgs) {
			return m, nil
		}
		return m, m.remove(msgs[m.cursor].ID)

	case key.Matches(msg, m.keys.Submit):
		m.ctrl.SetDraft(m.input.Value())
		return m, m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetDraft(m.input.Value())
	return m, cmd
}

func (m Model) load() tea.Cmd {
	return m.run("load", m.ctrl.Load)
}

func (m Model) submit() tea.Cmd {
	return m.run("create", m.ctrl.Submit)
}

func (m Model) remove(id string) tea.Cmd {
	return m.run("delete", func(ctx context.Context) error {
		return m.ctrl.Delete(ctx, id)
	})
}

func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	timeout := m.opts.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return requestDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Snapshot().Messages)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) View() string {
	s := m.ctrl.Snapshot()

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.opts.Title))
	b.WriteString("\n")

	if s.HasError() {
		b.WriteString(errorBannerStyle.Render(s.Error + "  (esc to dismiss)"))
		b.WriteString("\n\n")
	}

	switch {
	case s.Loading:
		fmt.Fprintf(&b, "%s Loading messages…\n", m.spinner.View())
	case len(s.Messages) == 0:
		b.WriteString(timestampStyle.Render("No messages yet. Be the first to post!"))
		b.WriteString("\n")
	default:
		for i, msg := range s.Messages {
			b.WriteString(m.renderMessage(i, msg, s.DeletePhases[msg.ID]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.keys.help()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderMessage(i int, msg client.Message, phase client.Phase) string {
	marker := "  "
	style := normalStyle
	if i == m.cursor {
		marker = "▌ "
		style = selectedStyle
	}
	if phase == client.PhasePending {
		style = pendingStyle
	}
	ts := timestampStyle.Render(msg.Timestamp.Local().Format("Jan 2 15:04:05"))
	return marker + style.Render(msg.Text) + "  " + ts
}
