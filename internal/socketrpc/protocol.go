package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the Store's query and tab surface over a
// Unix domain socket. Tabs are server-side state keyed by TabID; one
// connection may open and use many tabs.
//
//   Method       Params                                       Result
//   ──────────   ──────────────────────────────────────────   ──────────────────
//   OpenTab      {Kind, Producer, FieldKey, FieldValue}        {TabID, Initial}
//   Query        {TabID, Text, Greed}                          []WireResult
//   Next         {TabID}                                       {Entries, Lag}
//   Backfill     {TabID}                                       []WireEntry
//   CloseTab     {TabID}                                       {}
//   Producers    (none)                                        []string
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (unknown tab, malformed query, etc.)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path, preferring
// $XDG_RUNTIME_DIR/triage/triage.sock and falling back to a path under the
// user's state directory.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "triage", "triage.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/triage.sock"
	}
	return filepath.Join(home, ".local", "state", "triage", "triage.sock")
}
