// Package audit records deployment run events for later inspection.
// Recording is fire-and-forget: sinks never block and never fail the run.
package audit

import (
	"log/slog"
	"time"
)

// Event is a single audit record.
type Event struct {
	Time     time.Time         `json:"time"`
	Kind     string            `json:"kind"`
	RunID    string            `json:"runId"`
	Resource string            `json:"resource,omitempty"`
	Detail   map[string]string `json:"detail,omitempty"`
}

// Sink receives audit events. Implementations must not block.
type Sink interface {
	Record(event Event)
}

type logSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs events at info level.
func NewLogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &logSink{logger: logger}
}

func (s *logSink) Record(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	attrs := []any{"kind", event.Kind, "run", event.RunID}
	if event.Resource != "" {
		attrs = append(attrs, "resource", event.Resource)
	}
	for k, v := range event.Detail {
		attrs = append(attrs, k, v)
	}
	s.logger.Info("audit", attrs...)
}

type multiSink struct {
	sinks []Sink
}

// Multi fans events out to every given sink.
func Multi(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

func (m *multiSink) Record(event Event) {
	for _, s := range m.sinks {
		s.Record(event)
	}
}

type nopSink struct{}

// Nop returns a sink that discards all events.
func Nop() Sink { return nopSink{} }

func (nopSink) Record(Event) {}
