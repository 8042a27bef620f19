package ingestsource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/feedtriage/triage/internal/model"
)

const (
	// DefaultTCPLineBuffer is the default buffer size for the incoming line channel.
	DefaultTCPLineBuffer = 100_000
	// DefaultTCPMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultTCPMaxLineSize = 1024 * 1024
)

// TCPConfig holds tunable parameters for the TCP source.
type TCPConfig struct {
	LineBuffer  int
	MaxLineSize int
}

// TCPSource listens for newline-delimited log lines over TCP, one producer
// identity per accepted connection.
type TCPSource struct {
	listener    net.Listener
	addr        string
	ch          chan model.IngestEnvelope
	maxLineSize int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	connSeq     atomic.Uint64
}

// NewTCPSource creates a TCPSource. It does not start listening until Start
// is called.
func NewTCPSource(ctx context.Context, addr string, conf ...TCPConfig) *TCPSource {
	if addr == "" {
		addr = "127.0.0.1:4000"
	}
	lineBuffer := DefaultTCPLineBuffer
	maxLineSize := DefaultTCPMaxLineSize
	if len(conf) > 0 {
		if conf[0].LineBuffer > 0 {
			lineBuffer = conf[0].LineBuffer
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &TCPSource{
		addr:        addr,
		ch:          make(chan model.IngestEnvelope, lineBuffer),
		maxLineSize: maxLineSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins accepting TCP connections.
func (s *TCPSource) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ingestsource: tcp listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *TCPSource) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *TCPSource) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	producer := fmt.Sprintf("tcp-%d", s.connSeq.Add(1))

	scanner := bufio.NewScanner(conn)
	buf := make([]byte, s.maxLineSize)
	scanner.Buffer(buf, s.maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		env := model.IngestEnvelope{Source: s.Name(), FeedKind: model.FeedUnknown, Producer: producer, Line: line}
		select {
		case s.ch <- env:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			log.Printf("ingestsource: dropped tcp connection %s, line exceeded %d bytes", conn.RemoteAddr(), s.maxLineSize)
			return
		}
		log.Printf("ingestsource: tcp scanner error from %s: %v", conn.RemoteAddr(), err)
	}
}

// Stop closes the listener and waits for in-flight connections to drain.
func (s *TCPSource) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	close(s.ch)
}

// Lines returns the channel of received envelopes.
func (s *TCPSource) Lines() <-chan model.IngestEnvelope { return s.ch }

// Addr returns the active listen address, or the configured address before Start.
func (s *TCPSource) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Name identifies this source.
func (s *TCPSource) Name() string { return "tcp" }
