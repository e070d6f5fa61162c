package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/rbe/model"
	"github.com/sokinpui/rbe/rbe"
)

// ErrInterrupted is returned when the user quits before the task finishes.
var ErrInterrupted = errors.New("interrupted")

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Task is the work shown behind the spinner. It reports progress through
// the given callback.
type Task func(progress rbe.ProgressUpdate) (model.Summary, error)

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

type progressMsg struct {
	done, total int
}

// --- Model ---
type Model struct {
	title   string
	run     func() (model.Summary, error)
	spinner spinner.Model
	state   state
	done    int
	total   int
	summary summaryMsg
	err     error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(title string, run func() (model.Summary, error)) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		title:   title,
		run:     run,
		spinner: s,
		state:   stateProcessing,
	}
}

// Run shows a spinner while task runs and then the summary it returned.
func Run(title string, task Task) (model.Summary, error) {
	var p *tea.Program
	m := New(title, func() (model.Summary, error) {
		return task(func(done, total int) {
			p.Send(progressMsg{done: done, total: total})
		})
	})
	p = tea.NewProgram(m, tea.WithOutput(os.Stderr))

	final, err := p.Run()
	if err != nil {
		return model.Summary{}, fmt.Errorf("tui failed: %w", err)
	}
	fm, ok := final.(Model)
	if !ok {
		return model.Summary{}, fmt.Errorf("unexpected tui model %T", final)
	}
	switch fm.state {
	case stateSummary:
		return fm.summary.Summary, nil
	case stateError:
		return model.Summary{}, fm.err
	default:
		return model.Summary{}, ErrInterrupted
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runTask)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case progressMsg:
		m.done, m.total = msg.done, msg.total
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.total > 0 {
			return fmt.Sprintf("%s %s... [%d/%d]", m.spinner.View(), m.title, m.done, m.total)
		}
		return fmt.Sprintf("%s %s...", m.spinner.View(), m.title)
	case stateError:
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	sections := []struct {
		title string
		style lipgloss.Style
		files []string
	}{
		{"Created:", successStyle, m.summary.Created},
		{"Modified:", successStyle, m.summary.Modified},
		{"Failed:", errorStyle, m.summary.Failed},
	}
	for _, s := range sections {
		if len(s.files) == 0 {
			continue
		}
		hasContent = true
		b.WriteString(s.style.Render(s.title))
		b.WriteString("\n")
		for _, f := range s.files {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}

	if len(m.summary.Notes) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Notes:"))
		b.WriteString("\n")
		for _, n := range m.summary.Notes {
			b.WriteString(faintStyle.Render(n))
			b.WriteString("\n")
		}
	}

	if !hasContent && m.summary.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) runTask() tea.Msg {
	summary, err := m.run()
	if err != nil {
		var detailed *rbe.DetailedError
		if errors.As(err, &detailed) {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}
