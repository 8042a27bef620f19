package socketrpc

import (
	"time"

	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/query"
)

// WireEntry is the over-the-wire representation of a model.LogEntry: Fields
// flattened to a plain map since model.Fields is not itself JSON-shaped.
type WireEntry struct {
	Seq       uint64            `json:"seq"`
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	FeedKind  string            `json:"feed_kind"`
	Producer  string            `json:"producer"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func toWireEntry(e model.LogEntry) WireEntry {
	var fields map[string]string
	if e.Fields.Len() > 0 {
		fields = make(map[string]string, e.Fields.Len())
		e.Fields.Each(func(k, v string) { fields[k] = v })
	}
	return WireEntry{
		Seq:       e.Seq,
		Timestamp: e.Timestamp,
		Level:     e.Level.String(),
		FeedKind:  e.FeedKind.String(),
		Producer:  e.Producer,
		Message:   e.Message,
		Fields:    fields,
	}
}

func toWireEntries(es []model.LogEntry) []WireEntry {
	out := make([]WireEntry, len(es))
	for i, e := range es {
		out[i] = toWireEntry(e)
	}
	return out
}

// WireResult is the over-the-wire representation of a query.Result, with
// the matched entry inlined so the client does not need a second round
// trip to resolve a sequence number.
type WireResult struct {
	Entry WireEntry `json:"entry"`
	Score float64   `json:"score"`
}

func toWireResults(results []query.Result, resolve func(seq uint64) (model.LogEntry, bool)) []WireResult {
	out := make([]WireResult, 0, len(results))
	for _, r := range results {
		e, ok := resolve(r.Seq)
		if !ok {
			continue
		}
		out = append(out, WireResult{Entry: toWireEntry(e), Score: r.Score})
	}
	return out
}
