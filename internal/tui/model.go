package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultMaxLines = 2000

// Dispatcher runs one console line and returns its exit status.
type Dispatcher interface {
	Dispatch(ctx context.Context, line string) int
	Names() []string
}

// Options configure the console.
type Options struct {
	Title  string
	Prompt string
	// Status reports the station state shown in the title bar.
	Status func() (label string, online bool)
	// MaxLines bounds the scrollback.
	MaxLines int
}

// LineMsg appends one line of output to the scrollback.
type LineMsg string

// commandDoneMsg reports that a dispatched line finished.
type commandDoneMsg struct {
	line   string
	status int
}

// Model is the Bubbletea model of the interactive console.
type Model struct {
	ctx  context.Context
	d    Dispatcher
	opts Options

	width  int
	height int
	ready  bool

	lines   []string
	history []string
	histPos int
	running string
	last    int

	// Components
	input   textinput.Model
	view    viewport.Model
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles
}

// NewModel creates a console dispatching lines to d.
func NewModel(ctx context.Context, d Dispatcher, opts Options) Model {
	if opts.Prompt == "" {
		opts.Prompt = "wifi> "
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = defaultMaxLines
	}
	styles := DefaultStyles()

	in := textinput.New()
	in.Prompt = styles.Prompt.Render(opts.Prompt)
	in.Placeholder = "help"
	in.ShowSuggestions = true
	in.SetSuggestions(d.Names())
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return Model{
		ctx:     ctx,
		d:       d,
		opts:    opts,
		input:   in,
		view:    viewport.New(80, 20),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		styles:  styles,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-lipgloss.Width(m.input.Prompt)-1, 1)
		m.layout()
		m.ready = true
		return m, nil

	case spinner.TickMsg:
		if m.running == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case LineMsg:
		m.appendLine(m.styleLine(string(msg)))
		return m, nil

	case commandDoneMsg:
		m.running = ""
		m.last = msg.status
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		if m.running != "" {
			return m, nil
		}
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		m.appendLine(m.styles.Echo.Render(m.opts.Prompt + line))
		if line == "" {
			return m, nil
		}
		if n := len(m.history); n == 0 || m.history[n-1] != line {
			m.history = append(m.history, line)
		}
		m.histPos = len(m.history)
		m.running = line
		return m, tea.Batch(m.dispatch(line), m.spinner.Tick)

	case key.Matches(msg, m.keys.Prev):
		if m.histPos > 0 {
			m.histPos--
			m.input.SetValue(m.history[m.histPos])
			m.input.CursorEnd()
		}
		return m, nil

	case key.Matches(msg, m.keys.Next):
		if m.histPos < len(m.history) {
			m.histPos++
		}
		if m.histPos == len(m.history) {
			m.input.Reset()
		} else {
			m.input.SetValue(m.history[m.histPos])
			m.input.CursorEnd()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.view.PageUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.view.PageDown()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.lines = nil
		m.view.SetContent("")
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch runs line off the event loop; handlers may block on the device.
func (m Model) dispatch(line string) tea.Cmd {
	ctx, d := m.ctx, m.d
	return func() tea.Msg {
		return commandDoneMsg{line: line, status: d.Dispatch(ctx, line)}
	}
}

func (m *Model) appendLine(s string) {
	follow := m.view.AtBottom()
	m.lines = append(m.lines, s)
	if over := len(m.lines) - m.opts.MaxLines; over > 0 {
		m.lines = m.lines[over:]
	}
	m.view.SetContent(strings.Join(m.lines, "\n"))
	if follow {
		m.view.GotoBottom()
	}
}

// styleLine colors log lines by level.
func (m Model) styleLine(s string) string {
	switch {
	case strings.Contains(s, "\tERROR\t"):
		return m.styles.Error.Render(s)
	case strings.Contains(s, "\tWARN\t"):
		return m.styles.Warning.Render(s)
	case strings.Contains(s, "\tDEBUG\t"):
		return m.styles.Muted.Render(s)
	}
	return s
}

func (m *Model) layout() {
	if m.height == 0 {
		return
	}
	chrome := lipgloss.Height(m.titleBar()) + 1 + lipgloss.Height(m.help.View(m.keys))
	m.view.Width = m.width
	m.view.Height = max(m.height-chrome, 1)
	m.view.GotoBottom()
}

// View renders the model.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.titleBar(),
		m.view.View(),
		m.input.View(),
		m.styles.Help.Render(m.help.View(m.keys)),
	)
}

func (m Model) titleBar() string {
	parts := []string{m.styles.Title.Render(m.opts.Title)}
	if m.opts.Status != nil {
		label, online := m.opts.Status()
		if online {
			parts = append(parts, m.styles.StatusOnline.Render("● "+label))
		} else {
			parts = append(parts, m.styles.StatusOffline.Render("○ "+label))
		}
	}
	if m.running != "" {
		parts = append(parts, m.spinner.View()+" "+m.styles.Warning.Render(m.running))
	} else if m.last != 0 {
		parts = append(parts, m.styles.Muted.Render(fmt.Sprintf("exit %d", m.last)))
	}
	return strings.Join(parts, "  ")
}
