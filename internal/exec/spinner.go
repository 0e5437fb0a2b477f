package exec

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// runWithSpinner runs a command with a progress spinner. Output is captured
// but not streamed; on failure the captured stderr tail is replayed.
func (e *Executor) runWithSpinner(ctx context.Context, cmd Command) (Result, error) {
	done := make(chan struct{})
	var (
		res Result
		err error
	)

	go func() {
		defer close(done)
		res, err = e.run(ctx, cmd, io.Discard, io.Discard)
	}()

	m := newSpinnerModel(cmd.String())
	p := tea.NewProgram(m, tea.WithOutput(e.stderr), tea.WithInput(nil))

	spinnerDone := make(chan struct{})
	go func() {
		defer close(spinnerDone)
		// Spinner errors are cosmetic.
		_, _ = p.Run()
	}()

	<-done
	p.Send(spinnerDoneMsg{err: err})

	select {
	case <-spinnerDone:
	case <-time.After(200 * time.Millisecond):
		p.Quit()
		<-spinnerDone
	}

	if err != nil && res.Stderr != "" {
		fmt.Fprint(e.stderr, res.Stderr)
	}
	return res, err
}

// spinnerModel is the bubbletea model for the spinner
type spinnerModel struct {
	spinner spinner.Model
	message string
	done    bool
	err     error
}

type spinnerDoneMsg struct {
	err error
}

func newSpinnerModel(message string) *spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &spinnerModel{
		spinner: s,
		message: message,
	}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return fmt.Sprintf("❌ %s\n", m.message)
		}
		return fmt.Sprintf("✅ %s\n", m.message)
	}
	return fmt.Sprintf("%s %s...", m.spinner.View(), m.message)
}
