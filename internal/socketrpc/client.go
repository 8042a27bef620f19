package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client is a JSON-RPC 2.0 client for the socket RPC server's tab and
// query surface.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// OpenTabResult is the result of OpenTab.
type OpenTabResult struct {
	TabID   string      `json:"tab_id"`
	Initial []WireEntry `json:"initial"`
}

// OpenTab opens a tab of the given kind ("main", "freeze", "correlate") on
// the server and returns its ID plus the entries resident in the Store's
// window at open time. producer is required for "freeze"; fieldKey (and
// optionally fieldValue) is required for "correlate".
func (c *Client) OpenTab(kind, producer, fieldKey, fieldValue string) (OpenTabResult, error) {
	var result OpenTabResult
	err := c.call("OpenTab", map[string]interface{}{
		"Kind":       kind,
		"Producer":   producer,
		"FieldKey":   fieldKey,
		"FieldValue": fieldValue,
	}, &result)
	return result, err
}

// Query runs a query against a tab's filter. greed of nil uses the
// server's configured default.
func (c *Client) Query(tabID, text string, greed *int) ([]WireResult, error) {
	var result []WireResult
	err := c.call("Query", map[string]interface{}{
		"TabID": tabID,
		"Text":  text,
		"Greed": greed,
	}, &result)
	return result, err
}

// NextResult is the result of Next.
type NextResult struct {
	Entries []WireEntry `json:"entries"`
	Lag     bool        `json:"lag"`
}

// Next blocks on the server until a new entry notification arrives for
// the tab, then returns it. Lag true means the subscription fell behind
// the Store's buffer and the caller should call Backfill to resynchronize.
func (c *Client) Next(tabID string) (NextResult, error) {
	var result NextResult
	err := c.call("Next", map[string]interface{}{"TabID": tabID}, &result)
	return result, err
}

// Backfill re-scans the tab's catch-up point through the present and
// returns the matching window.
func (c *Client) Backfill(tabID string) ([]WireEntry, error) {
	var result []WireEntry
	err := c.call("Backfill", map[string]interface{}{"TabID": tabID}, &result)
	return result, err
}

// CloseTab releases a tab's subscription. The main tab cannot be closed.
func (c *Client) CloseTab(tabID string) error {
	return c.call("CloseTab", map[string]interface{}{"TabID": tabID}, nil)
}

// Producers returns every distinct producer label currently resident in
// the Store's window.
func (c *Client) Producers() ([]string, error) {
	var result []string
	err := c.call("Producers", map[string]interface{}{}, &result)
	return result, err
}
