package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/query"
	"github.com/feedtriage/triage/internal/store"
	"github.com/feedtriage/triage/internal/tab"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner (1 MB).
	scannerInitBufSize = 1024 * 1024
	// scannerMaxTokenSize is the maximum token size the scanner will accept (10 MB).
	scannerMaxTokenSize = 10 * 1024 * 1024
)

// Server exposes a Store's query and tab surface over a Unix domain socket
// using JSON-RPC 2.0. Each OpenTab call creates server-side tab state keyed
// by a generated ID; a single connection may open and hold many tabs.
type Server struct {
	socketPath string
	store      *store.Store
	engine     *query.Engine

	mu       sync.Mutex
	tabs     map[string]*tab.Tab
	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
}

// NewServer creates a new socket RPC server over s, running queries
// through engine.
func NewServer(socketPath string, s *store.Store, engine *query.Engine) *Server {
	return &Server{
		socketPath: socketPath,
		store:      s,
		engine:     engine,
		tabs:       make(map[string]*tab.Tab),
		quit:       make(chan struct{}),
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	// Ensure the parent directory exists.
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// Remove stale socket if it exists.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			// Socket file exists but nobody is listening — stale.
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("socketrpc: listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener, waits for connections to drain, closes every
// open tab, and removes the socket file.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	for _, t := range s.tabs {
		t.Close()
	}
	s.tabs = make(map[string]*tab.Tab)
	s.mu.Unlock()

	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("socketrpc: accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp := Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: -32700, Message: "parse error"}}
			encoder.Encode(resp)
			continue
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshal := func(v interface{}) Response {
		data, err := json.Marshal(v)
		if err != nil {
			resp.Error = &RPCError{Code: -32603, Message: err.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}
	appErr := func(err error) Response {
		resp.Error = &RPCError{Code: -32000, Message: err.Error()}
		return resp
	}
	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: -32602, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	switch req.Method {
	case "OpenTab":
		var p struct {
			Kind       string
			Producer   string
			FieldKey   string
			FieldValue string
		}
		if err := json.Unmarshal(req.Params, &p); err != nil && len(req.Params) > 0 {
			return invalidParams(err)
		}
		id, initial, err := s.openTab(p.Kind, p.Producer, p.FieldKey, p.FieldValue)
		if err != nil {
			return appErr(err)
		}
		return marshal(struct {
			TabID   string      `json:"tab_id"`
			Initial []WireEntry `json:"initial"`
		}{TabID: id, Initial: toWireEntries(initial)})

	case "Query":
		var p struct {
			TabID string
			Text  string
			Greed *int
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		t, ok := s.getTab(p.TabID)
		if !ok {
			return appErr(fmt.Errorf("unknown tab %q", p.TabID))
		}
		results, err := s.engine.Query(p.Text, p.Greed, t.Filter())
		if err != nil {
			return appErr(err)
		}
		return marshal(toWireResults(results, s.store.Get))

	case "Next":
		var p struct{ TabID string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		t, ok := s.getTab(p.TabID)
		if !ok {
			return appErr(fmt.Errorf("unknown tab %q", p.TabID))
		}
		entries, err := t.Next(context.Background())
		if err != nil {
			return appErr(err)
		}
		return marshal(struct {
			Entries []WireEntry `json:"entries"`
			Lag     bool        `json:"lag"`
		}{Entries: toWireEntries(entries), Lag: entries == nil})

	case "Backfill":
		var p struct{ TabID string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		t, ok := s.getTab(p.TabID)
		if !ok {
			return appErr(fmt.Errorf("unknown tab %q", p.TabID))
		}
		return marshal(toWireEntries(t.Backfill()))

	case "CloseTab":
		var p struct{ TabID string }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if err := s.closeTab(p.TabID); err != nil {
			return appErr(err)
		}
		return marshal(struct{}{})

	case "Producers":
		return marshal(s.store.Producers())

	default:
		resp.Error = &RPCError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

func (s *Server) openTab(kind, producer, fieldKey, fieldValue string) (string, []model.LogEntry, error) {
	var t *tab.Tab
	var initial []model.LogEntry

	switch kind {
	case "main", "":
		t, initial = tab.NewMain(s.store, store.Filter{})
	case "freeze":
		if producer == "" {
			return "", nil, fmt.Errorf("freeze tab requires a producer")
		}
		t, initial = tab.NewFreeze(s.store, producer)
	case "correlate":
		if fieldKey == "" {
			return "", nil, fmt.Errorf("correlate tab requires a field key")
		}
		t, initial = tab.NewCorrelate(s.store, fieldKey, fieldValue)
	default:
		return "", nil, fmt.Errorf("unknown tab kind %q", kind)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.tabs[id] = t
	s.mu.Unlock()
	return id, initial, nil
}

func (s *Server) getTab(id string) (*tab.Tab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[id]
	return t, ok
}

func (s *Server) closeTab(id string) error {
	s.mu.Lock()
	t, ok := s.tabs[id]
	if ok {
		delete(s.tabs, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown tab %q", id)
	}
	return t.Close()
}
