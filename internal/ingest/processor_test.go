package ingest

import (
	"testing"

	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/store"
)

func TestProcessEnvelopePushesNormalizedEntry(t *testing.T) {
	s := store.New(10, 0)
	p := New(s)

	seq, ok := p.ProcessEnvelope(model.IngestEnvelope{
		Source:   "stdin",
		FeedKind: model.FeedStdin,
		Line:     `{"message":"hello","level":"info"}`,
	})
	if !ok {
		t.Fatal("expected a complete entry")
	}
	e, found := s.Get(seq)
	if !found {
		t.Fatal("expected entry resident in the store")
	}
	if e.Message != "hello" || e.Level != model.LevelInfo {
		t.Fatalf("entry = %+v", e)
	}
	if e.Producer != "stdin" {
		t.Fatalf("Producer = %q, want stdin (from Source when Producer unset)", e.Producer)
	}
}

func TestProcessEnvelopeUsesExplicitProducerOverSource(t *testing.T) {
	s := store.New(10, 0)
	p := New(s)

	seq, ok := p.ProcessEnvelope(model.IngestEnvelope{
		Source:   "tcp",
		Producer: "conn-42",
		Line:     "plain text line",
	})
	if !ok {
		t.Fatal("expected a complete entry")
	}
	e, _ := s.Get(seq)
	if e.Producer != "conn-42" {
		t.Fatalf("Producer = %q, want conn-42", e.Producer)
	}
}

func TestProcessEnvelopeAccumulatesMultilineJSON(t *testing.T) {
	s := store.New(10, 0)
	p := New(s)

	lines := []string{
		`{`,
		`  "message": "multi line event",`,
		`  "level": "warn"`,
		`}`,
	}
	var lastSeq uint64
	var gotEntry bool
	for _, l := range lines {
		seq, ok := p.ProcessEnvelope(model.IngestEnvelope{Source: "stdin", Line: l})
		if ok {
			lastSeq = seq
			gotEntry = true
		}
	}
	if !gotEntry {
		t.Fatal("expected the accumulated JSON object to complete into an entry")
	}
	e, found := s.Get(lastSeq)
	if !found {
		t.Fatal("expected entry resident in the store")
	}
	if e.Message != "multi line event" || e.Level != model.LevelWarn {
		t.Fatalf("entry = %+v", e)
	}
}

func TestProcessEnvelopeEmptyLineStillProducesEntry(t *testing.T) {
	s := store.New(10, 0)
	p := New(s)

	_, ok := p.ProcessEnvelope(model.IngestEnvelope{Source: "stdin", Line: ""})
	if !ok {
		t.Fatal("expected an empty line to fall through to a (empty) fallback entry rather than stall")
	}
}
