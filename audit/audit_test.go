package audit

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

type memSink struct {
	events []Event
}

func (m *memSink) Record(event Event) { m.events = append(m.events, event) }

func TestLogSinkWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	sink.Record(Event{
		Kind:     "resource.created",
		RunID:    "run-1",
		Resource: "workspace/W",
		Detail:   map[string]string{"id": "ws-1"},
	})

	out := buf.String()
	for _, frag := range []string{"resource.created", "run-1", "workspace/W", "ws-1"} {
		if !strings.Contains(out, frag) {
			t.Errorf("missing %q in log output: %s", frag, out)
		}
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	sink := Multi(a, b)

	sink.Record(Event{Kind: "run.started", RunID: "run-1"})
	sink.Record(Event{Kind: "run.finished", RunID: "run-1"})

	if len(a.events) != 2 || len(b.events) != 2 {
		t.Errorf("expected both sinks to see 2 events, got %d and %d", len(a.events), len(b.events))
	}
	if a.events[0].Kind != "run.started" {
		t.Errorf("order lost: %+v", a.events)
	}
}

func TestNopDiscards(t *testing.T) {
	Nop().Record(Event{Kind: "anything"})
}
