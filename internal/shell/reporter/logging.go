package reporter

import (
	"log/slog"
)

// Logging writes every message to a structured logger. Task progress is
// logged only when the description changes or the task completes, so polling
// loops do not flood the log.
type Logging struct {
	logger *slog.Logger
}

// NewLogging creates a Logging reporter. A nil logger uses slog.Default().
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger.With("component", "reporter")}
}

func (l *Logging) Info(msg string)    { l.logger.Info(msg) }
func (l *Logging) Success(msg string) { l.logger.Info(msg, "outcome", "success") }
func (l *Logging) Warning(msg string) { l.logger.Warn(msg) }
func (l *Logging) Error(msg string)   { l.logger.Error(msg) }

// Confirm logs the question and answers defaultYes.
func (l *Logging) Confirm(prompt string, defaultYes bool) bool {
	l.logger.Info("confirmation answered with default", "prompt", prompt, "answer", defaultYes)
	return defaultYes
}

func (l *Logging) Task(description string, total float64) Task {
	l.logger.Info(description, "task", "start", "total", total)
	return &loggingTask{logger: l.logger, description: description, total: total}
}

type loggingTask struct {
	logger      *slog.Logger
	description string
	total       float64
	done        bool
}

func (t *loggingTask) Update(description string, completed float64) {
	changed := description != "" && description != t.description
	if changed {
		t.description = description
	}
	if changed || (!t.done && completed >= t.total) {
		t.logger.Info(t.description, "task", "progress", "completed", completed, "total", t.total)
	}
	if completed >= t.total {
		t.done = true
	}
}

func (t *loggingTask) Close() {
	t.logger.Debug(t.description, "task", "end")
}
