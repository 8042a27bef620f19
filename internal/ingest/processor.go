// Package ingest is the normaliser between the ingestion transports and the
// Store: it turns a raw IngestEnvelope into a model.LogEntry and pushes it.
package ingest

import (
	"strings"

	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/store"
)

// Processor parses lines in JSON -> logfmt -> fallback order and pushes the
// resulting entries to a Store. It also accumulates multi-line JSON objects
// (a single log event pretty-printed across several lines), a shape some
// producers on stdin/TCP emit.
type Processor struct {
	store *store.Store

	jsonBuffer   strings.Builder
	jsonDepth    int
	inJSONObject bool
}

// New creates a Processor that pushes normalised entries to s.
func New(s *store.Store) *Processor {
	return &Processor{store: s}
}

// ProcessEnvelope normalises and pushes one source-tagged line, returning
// the sequence number it was assigned. It returns false if the line was
// consumed into an in-progress multi-line JSON accumulation rather than
// producing an entry yet.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) (uint64, bool) {
	line, ok := p.accumulate(env.Line)
	if !ok {
		return 0, false
	}
	e := normalizeLine(line)
	e.FeedKind = env.FeedKind
	e.Producer = env.Producer
	if e.Producer == "" {
		e.Producer = env.Source
	}
	return p.store.Push(e), true
}

// accumulate folds multi-line JSON objects into a single line before
// normalisation. It returns the complete line (verbatim, or reassembled
// from a multi-line buffer) and whether one is ready to process.
func (p *Processor) accumulate(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)

	if !p.inJSONObject {
		if !strings.HasPrefix(trimmed, "{") {
			return line, true
		}
		p.inJSONObject = true
		p.jsonBuffer.Reset()
		p.jsonDepth = 0
	}

	p.jsonBuffer.WriteString(line)
	p.jsonBuffer.WriteString("\n")
	p.jsonDepth += countJSONDepth(line)

	if p.jsonDepth > 0 {
		return "", false
	}

	complete := strings.TrimSpace(p.jsonBuffer.String())
	p.inJSONObject = false
	p.jsonDepth = 0
	p.jsonBuffer.Reset()
	return complete, true
}

// countJSONDepth counts the net change in brace/bracket nesting a line
// contributes, ignoring braces inside quoted strings.
func countJSONDepth(line string) int {
	depth := 0
	inString := false
	escaped := false
	for _, c := range line {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}
	return depth
}
