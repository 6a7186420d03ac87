// Package reporter delivers user-facing progress and messages from the
// deployment engine. Every builder, runner and executor receives a Reporter
// through its constructor; nothing writes to the terminal directly.
package reporter

// Reporter receives user-facing messages, progress tasks and confirmation
// requests.
type Reporter interface {
	Info(msg string)
	Success(msg string)
	Warning(msg string)
	Error(msg string)

	// Task starts a progress task measured against total.
	Task(description string, total float64) Task

	// Confirm asks a yes/no question. Non-interactive reporters answer
	// defaultYes.
	Confirm(prompt string, defaultYes bool) bool
}

// Task is a running progress task.
type Task interface {
	// Update sets the description and the completed amount. An empty
	// description keeps the current one.
	Update(description string, completed float64)
	Close()
}

// =============================================================================
// Silent
// =============================================================================

// Silent discards everything and answers confirmations with their default.
type Silent struct{}

func (Silent) Info(string)                            {}
func (Silent) Success(string)                         {}
func (Silent) Warning(string)                         {}
func (Silent) Error(string)                           {}
func (Silent) Task(string, float64) Task              { return silentTask{} }
func (Silent) Confirm(_ string, defaultYes bool) bool { return defaultYes }

type silentTask struct{}

func (silentTask) Update(string, float64) {}
func (silentTask) Close()                 {}

// OrSilent returns r, or Silent when r is nil.
func OrSilent(r Reporter) Reporter {
	if r == nil {
		return Silent{}
	}
	return r
}
