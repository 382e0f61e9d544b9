// Package progress renders the step-by-step feedback for the two
// operations that may walk a long chain of commits: swap --keep-going/
// --up, and git queue rebase. It drives a bubbletea program rendering
// one line per step with a spinner/checkmark/cross, modeled on av's
// stackRestackViewModel, falling back to plain text when stdout isn't a
// terminal or the TUI has been disabled in config.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	styleDone   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	stylePend   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Status is the terminal state of one step once it stops running.
type Status int

const (
	Pending Status = iota
	Running
	Done
	Failed
)

// Step is one commit (or baseline) being walked by a long-running
// operation, and its current rendering status.
type Step struct {
	Label  string
	Status Status
}

// stepResult reports that a step finished, successfully or not; a nil
// error advances to the next step, a non-nil one halts the walk.
type stepResult struct {
	index int
	err   error
}

type finished struct{}

// Runner drives a sequence of steps, invoking next for one step at a
// time, and renders their progress either as a TUI or as plain lines,
// depending on Headless.
type Runner struct {
	Steps    []string
	Headless bool
	Out      io.Writer
}

// IsInteractive reports whether stdout is a terminal. Callers combine
// this with config.NoTUI to decide whether to force headless mode.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// NewRunner builds a Runner for the given step labels, choosing headless
// rendering automatically when stdout isn't a terminal.
func NewRunner(labels []string, noTUI bool) *Runner {
	return &Runner{
		Steps:    labels,
		Headless: noTUI || !IsInteractive(),
		Out:      os.Stdout,
	}
}

// Run walks each step in order, calling next(i) for step i. It stops at
// the first error next returns and returns that error; a nil return from
// next means the step succeeded and the walk continues.
func (r *Runner) Run(next func(i int) error) error {
	if r.Headless || len(r.Steps) == 0 {
		return r.runHeadless(next)
	}
	return r.runTUI(next)
}

func (r *Runner) runHeadless(next func(i int) error) error {
	for i, label := range r.Steps {
		fmt.Fprintf(r.Out, "%s...\n", label)
		if err := next(i); err != nil {
			fmt.Fprintf(r.Out, "%s failed: %v\n", label, err)
			return err
		}
		fmt.Fprintf(r.Out, "%s done\n", label)
	}
	return nil
}

func (r *Runner) runTUI(next func(i int) error) error {
	m := model{
		steps:   make([]Step, len(r.Steps)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		next:    next,
	}
	for i, label := range r.Steps {
		m.steps[i] = Step{Label: label, Status: Pending}
	}
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return err
	}
	return final.(model).err
}

type model struct {
	steps   []Step
	current int
	spinner spinner.Model
	next    func(i int) error
	err     error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runCurrent)
}

func (m model) runCurrent() tea.Msg {
	if m.current >= len(m.steps) {
		return finished{}
	}
	err := m.next(m.current)
	return stepResult{index: m.current, err: err}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepResult:
		if msg.err != nil {
			m.steps[msg.index].Status = Failed
			m.err = msg.err
			return m, tea.Quit
		}
		m.steps[msg.index].Status = Done
		m.current = msg.index + 1
		if m.current >= len(m.steps) {
			return m, tea.Quit
		}
		return m, m.runCurrent
	case finished:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var out string
	for i, s := range m.steps {
		switch {
		case s.Status == Done:
			out += styleDone.Render("✓ "+s.Label) + "\n"
		case s.Status == Failed:
			out += styleFailed.Render("✗ "+s.Label) + "\n"
		case i == m.current:
			out += stylePend.Render(m.spinner.View()+" "+s.Label) + "\n"
		default:
			out += s.Label + "\n"
		}
	}
	return out
}
