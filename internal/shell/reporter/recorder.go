package reporter

import "sync"

// Level names a message kind.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one recorded message.
type Message struct {
	Level Level
	Text  string
}

// TaskUpdate is one recorded task update.
type TaskUpdate struct {
	Description string
	Completed   float64
}

// RecordedTask captures everything that happened to one task.
type RecordedTask struct {
	Description string
	Total       float64
	Updates     []TaskUpdate
	Closed      bool
}

// Last returns the final update, or the zero value when there was none.
func (t *RecordedTask) Last() TaskUpdate {
	if len(t.Updates) == 0 {
		return TaskUpdate{}
	}
	return t.Updates[len(t.Updates)-1]
}

// Recorder keeps every message, task and confirmation in memory. Answers
// are consumed in order by Confirm; when they run out the default is used.
type Recorder struct {
	mu            sync.Mutex
	Messages      []Message
	Tasks         []*RecordedTask
	Confirmations []string
	Answers       []bool
}

// NewRecorder creates a Recorder that answers confirmations with answers.
func NewRecorder(answers ...bool) *Recorder {
	return &Recorder{Answers: answers}
}

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Message{Level: level, Text: msg})
}

func (r *Recorder) Info(msg string)    { r.add(LevelInfo, msg) }
func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Warning(msg string) { r.add(LevelWarning, msg) }
func (r *Recorder) Error(msg string)   { r.add(LevelError, msg) }

func (r *Recorder) Confirm(prompt string, defaultYes bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Confirmations = append(r.Confirmations, prompt)
	if len(r.Answers) == 0 {
		return defaultYes
	}
	answer := r.Answers[0]
	r.Answers = r.Answers[1:]
	return answer
}

func (r *Recorder) Task(description string, total float64) Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &RecordedTask{Description: description, Total: total}
	r.Tasks = append(r.Tasks, t)
	return &recordingTask{r: r, t: t}
}

// Texts returns the text of every message at level.
func (r *Recorder) Texts(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.Messages {
		if m.Level == level {
			out = append(out, m.Text)
		}
	}
	return out
}

type recordingTask struct {
	r *Recorder
	t *RecordedTask
}

func (rt *recordingTask) Update(description string, completed float64) {
	rt.r.mu.Lock()
	defer rt.r.mu.Unlock()
	if description != "" {
		rt.t.Description = description
	}
	rt.t.Updates = append(rt.t.Updates, TaskUpdate{Description: rt.t.Description, Completed: completed})
}

func (rt *recordingTask) Close() {
	rt.r.mu.Lock()
	defer rt.r.mu.Unlock()
	rt.t.Closed = true
}
