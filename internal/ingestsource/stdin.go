// Package ingestsource implements the line-oriented ingestion transports:
// stdin and a newline-delimited TCP listener. Each produces
// model.IngestEnvelope values on a buffered channel.
package ingestsource

import (
	"bufio"
	"context"
	"errors"
	"log"
	"os"

	"github.com/feedtriage/triage/internal/model"
)

const (
	// DefaultStdinBuffer is the default channel buffer size for stdin lines.
	DefaultStdinBuffer = 50_000
	// DefaultStdinMaxLineSize is the default maximum size (in bytes) of a single stdin line.
	DefaultStdinMaxLineSize = 1024 * 1024
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
}

// StdinSource reads log lines from stdin in a background goroutine.
type StdinSource struct {
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
}

// NewStdinSource creates a StdinSource reading from os.Stdin until ctx is
// cancelled or stdin is closed.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	bufferSize := DefaultStdinBuffer
	maxLineSize := DefaultStdinMaxLineSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, maxLineSize)
	return s
}

func (s *StdinSource) read(ctx context.Context, maxLineSize int) {
	defer close(s.ch)

	scanner := bufio.NewScanner(os.Stdin)
	buf := make([]byte, maxLineSize)
	scanner.Buffer(buf, maxLineSize)

	// Bridge the blocking Scan() call to a channel on its own goroutine so
	// context cancellation can interrupt cleanly without waiting on stdin.
	type scanResult struct {
		line string
		ok   bool
	}
	results := make(chan scanResult)
	go func() {
		defer close(results)
		for scanner.Scan() {
			line := scanner.Text()
			select {
			case results <- scanResult{line: line, ok: true}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				log.Printf("ingestsource: stdin line exceeded max size (%d bytes), stopping", maxLineSize)
				return
			}
			log.Printf("ingestsource: stdin scanner error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok || !r.ok {
				return
			}
			if r.line == "" {
				continue
			}
			env := model.IngestEnvelope{Source: s.Name(), FeedKind: model.FeedStdin, Producer: "stdin", Line: r.line}
			select {
			case s.ch <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Lines returns the channel of received envelopes.
func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }

// Stop cancels the background reader.
func (s *StdinSource) Stop() { s.cancel() }

// Name identifies this source.
func (s *StdinSource) Name() string { return "stdin" }
