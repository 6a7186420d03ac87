package reporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by Interactive.
type Styles struct {
	Info    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Task    lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles.
func DefaultStyles() Styles {
	return Styles{
		Info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")), // Cyan
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Task: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
	}
}

// ConfirmFunc asks a yes/no question.
type ConfirmFunc func(prompt string, defaultYes bool) (bool, error)

// Interactive renders styled messages and progress bars to a terminal and
// asks confirmations with a form.
type Interactive struct {
	mu      sync.Mutex
	out     io.Writer
	styles  Styles
	confirm ConfirmFunc
}

// NewInteractive creates an Interactive reporter writing to out.
func NewInteractive(out io.Writer) *Interactive {
	return &Interactive{out: out, styles: DefaultStyles(), confirm: formConfirm}
}

// WithConfirm replaces the confirmation prompt.
func (r *Interactive) WithConfirm(fn ConfirmFunc) *Interactive {
	r.confirm = fn
	return r
}

func (r *Interactive) println(style lipgloss.Style, prefix, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, style.Render(prefix+" "+msg))
}

func (r *Interactive) Info(msg string)    { r.println(r.styles.Info, "•", msg) }
func (r *Interactive) Success(msg string) { r.println(r.styles.Success, "✓", msg) }
func (r *Interactive) Warning(msg string) { r.println(r.styles.Warning, "!", msg) }
func (r *Interactive) Error(msg string)   { r.println(r.styles.Error, "✗", msg) }

// Confirm asks the question; a failed prompt counts as the default answer.
func (r *Interactive) Confirm(prompt string, defaultYes bool) bool {
	ok, err := r.confirm(prompt, defaultYes)
	if err != nil {
		r.Warning(fmt.Sprintf("prompt failed, using default answer: %v", err))
		return defaultYes
	}
	return ok
}

func formConfirm(prompt string, defaultYes bool) (bool, error) {
	confirmed := defaultYes
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(prompt).
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

func (r *Interactive) Task(description string, total float64) Task {
	t := &interactiveTask{
		r:           r,
		description: description,
		total:       total,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
	t.render()
	return t
}

type interactiveTask struct {
	r           *Interactive
	description string
	total       float64
	completed   float64
	bar         progress.Model
	closed      bool
}

func (t *interactiveTask) percent() float64 {
	if t.total <= 0 {
		return 0
	}
	return min(1, max(0, t.completed/t.total))
}

func (t *interactiveTask) render() {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	fmt.Fprintf(t.r.out, "\r\033[K%s %s", t.bar.ViewAs(t.percent()), t.r.styles.Task.Render(t.description))
}

func (t *interactiveTask) Update(description string, completed float64) {
	if t.closed {
		return
	}
	if description != "" {
		t.description = description
	}
	t.completed = completed
	t.render()
}

func (t *interactiveTask) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	fmt.Fprintln(t.r.out)
}
