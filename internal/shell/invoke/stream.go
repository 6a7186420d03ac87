package invoke

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/core/invocation"
)

// ErrStreamConsumed is yielded when a stream is iterated a second time.
var ErrStreamConsumed = errors.New("event stream already consumed")

// Stream reads "data:" lines from a response body as events. It implements
// domain.EventStream.
type Stream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	logger *slog.Logger

	mu       sync.Mutex
	consumed bool
	closed   bool
}

var _ domain.EventStream = (*Stream)(nil)

// NewStream wraps body. cancel, when non-nil, is called on Close.
func NewStream(body io.ReadCloser, cancel context.CancelFunc, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{body: body, cancel: cancel, logger: logger}
}

// Events yields parsed events until the body ends or a [DONE] line. Lines
// that fail to parse are logged and skipped. The body is closed when
// iteration stops for any reason.
func (s *Stream) Events() iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		s.mu.Lock()
		if s.consumed || s.closed {
			s.mu.Unlock()
			yield(nil, ErrStreamConsumed)
			return
		}
		s.consumed = true
		s.mu.Unlock()
		defer s.Close()

		scanner := bufio.NewScanner(s.body)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			event, kind, err := invocation.ParseLine(scanner.Text())
			if err != nil {
				s.logger.Warn("skipping unparsable stream line", "error", err)
				continue
			}
			switch kind {
			case invocation.LineDone:
				return
			case invocation.LineData:
				if !yield(domain.Event(event), nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && !s.isClosed() {
			yield(nil, err)
		}
	}
}

// Collect drains the stream into a slice.
func (s *Stream) Collect() ([]domain.Event, error) {
	var events []domain.Event
	for e, err := range s.Events() {
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
	return events, nil
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.body.Close()
	if s.cancel != nil {
		s.cancel()
	}
	return err
}
