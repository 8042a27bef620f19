package tests

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feedtriage/triage/internal/expansion"
	"github.com/feedtriage/triage/internal/graph"
	"github.com/feedtriage/triage/internal/httpapi"
	"github.com/feedtriage/triage/internal/ingest"
	"github.com/feedtriage/triage/internal/ingestsource"
	"github.com/feedtriage/triage/internal/ontology"
	"github.com/feedtriage/triage/internal/query"
	"github.com/feedtriage/triage/internal/socketrpc"
	"github.com/feedtriage/triage/internal/store"
	"github.com/feedtriage/triage/internal/tab"
)

type e2eConfig struct {
	StoreCapacity     int
	BroadcastCapacity int
}

type e2eStack struct {
	store   *store.Store
	engine  *query.Engine
	api     *httpapi.Server
	socket  *socketrpc.Server
	source  *ingestsource.TCPSource
	mainTab *tab.Tab
	apiAddr string
	sock    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startE2EStack(t *testing.T, cfg e2eConfig) *e2eStack {
	t.Helper()

	if cfg.StoreCapacity <= 0 {
		cfg.StoreCapacity = 50_000
	}
	if cfg.BroadcastCapacity <= 0 {
		cfg.BroadcastCapacity = 1024
	}

	onto, err := ontology.Load()
	if err != nil {
		t.Fatalf("ontology.Load: %v", err)
	}
	expander := expansion.New(graph.Build(onto))

	s := store.New(cfg.StoreCapacity, cfg.BroadcastCapacity)
	engine := query.New(s, expander, 4, 1.0, 0.25)
	processor := ingest.New(s)

	mainTab, _ := tab.NewMain(s, store.Filter{})

	apiListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve api port: %v", err)
	}
	apiAddr := apiListener.Addr().String()
	apiListener.Close()

	api := httpapi.NewServer(apiAddr, s, engine, mainTab)
	if err := api.Start(); err != nil {
		t.Fatalf("http Start: %v", err)
	}

	sock := filepath.Join(os.TempDir(), fmt.Sprintf("triage-e2e-%d.sock", time.Now().UnixNano()))
	socketServer := socketrpc.NewServer(sock, s, engine)
	if err := socketServer.Start(); err != nil {
		t.Fatalf("socket Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	source := ingestsource.NewTCPSource(ctx, "127.0.0.1:0")
	if err := source.Start(); err != nil {
		t.Fatalf("tcp source Start: %v", err)
	}

	stack := &e2eStack{
		store:   s,
		engine:  engine,
		api:     api,
		socket:  socketServer,
		source:  source,
		mainTab: mainTab,
		apiAddr: apiAddr,
		sock:    sock,
		cancel:  cancel,
	}

	stack.wg.Add(1)
	go func() {
		defer stack.wg.Done()
		for env := range source.Lines() {
			processor.ProcessEnvelope(env)
		}
	}()

	waitEventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		resp, err := http.Get("http://" + stack.apiAddr + "/api/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, "api health endpoint did not become ready")

	waitEventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		c, err := socketrpc.Dial(stack.sock)
		if err != nil {
			return false
		}
		_ = c.Close()
		return true
	}, "socket endpoint did not become ready")

	t.Cleanup(func() {
		stack.cancel()
		stack.source.Stop()
		stack.wg.Wait()
		stack.socket.Stop()
		_ = stack.api.Stop()
	})

	return stack
}

func waitEventually(t *testing.T, timeout, interval time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("eventually timeout: %s", msg)
		}
		time.Sleep(interval)
	}
}

func sendTCPLines(t *testing.T, addr string, lines []string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		t.Fatalf("dial tcp %s: %v", addr, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	w := bufio.NewWriterSize(conn, 256*1024)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			t.Fatalf("write line: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func generateJSONBurst(n int, producer, level string) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf(
			`{"message":"burst-%d","level":%q,"service":%q}`,
			i, level, producer,
		))
	}
	return lines
}

func waitForLogCount(t *testing.T, s *store.Store, expected int, timeout time.Duration) {
	t.Helper()
	waitEventually(t, timeout, 20*time.Millisecond, func() bool {
		return s.Len() == expected
	}, fmt.Sprintf("expected log count %d", expected))
}

type queryResponse struct {
	Results []struct {
		Seq      uint64  `json:"seq"`
		Level    string  `json:"level"`
		Producer string  `json:"producer"`
		Message  string  `json:"message"`
		Score    float64 `json:"score"`
	} `json:"results"`
	MatchCount int `json:"match_count"`
}

func postQuery(addr, text string) (int, queryResponse, error) {
	var out queryResponse
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return 0, out, err
	}
	url := "http://" + addr + "/api/query"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, out, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, out, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, out, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return resp.StatusCode, out, err
	}
	return resp.StatusCode, out, nil
}

func TestE2E_Pipeline_TCPToHTTPAndSocket(t *testing.T) {
	stack := startE2EStack(t, e2eConfig{})
	lines := []string{
		`{"message":"payment created","level":"INFO","service":"billing-api"}`,
		`{"message":"retrying webhook","level":"WARN","service":"billing-api"}`,
		`{"message":"search timeout","level":"ERROR","service":"search-api"}`,
	}

	sendTCPLines(t, stack.source.Addr(), lines)
	waitForLogCount(t, stack.store, len(lines), 8*time.Second)

	client, err := socketrpc.Dial(stack.sock)
	if err != nil {
		t.Fatalf("socket dial: %v", err)
	}
	defer client.Close()

	producers, err := client.Producers()
	if err != nil {
		t.Fatalf("Producers: %v", err)
	}
	if len(producers) != 1 || !strings.HasPrefix(producers[0], "tcp-") {
		t.Fatalf("unexpected producers: %v", producers)
	}

	opened, err := client.OpenTab("main", "", "", "")
	if err != nil {
		t.Fatalf("OpenTab: %v", err)
	}
	if len(opened.Initial) != len(lines) {
		t.Fatalf("initial backfill len=%d want=%d", len(opened.Initial), len(lines))
	}

	results, err := client.Query(opened.TabID, "timeout", nil)
	if err != nil {
		t.Fatalf("socket Query: %v", err)
	}
	found := false
	for _, r := range results {
		if strings.Contains(r.Entry.Message, "timeout") {
			found = true
		}
	}
	if !found {
		t.Fatalf("socket Query missing expected match, got %+v", results)
	}

	code, resp, err := postQuery(stack.apiAddr, "webhook")
	if err != nil {
		t.Fatalf("postQuery: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("postQuery status=%d", code)
	}
	if resp.MatchCount == 0 {
		t.Fatalf("expected at least one HTTP query match, got %+v", resp)
	}
}

func TestE2E_BurstIngest_NoLoss(t *testing.T) {
	stack := startE2EStack(t, e2eConfig{StoreCapacity: 20_000})

	const total = 12000
	lines := generateJSONBurst(total, "load-svc", "INFO")
	sendTCPLines(t, stack.source.Addr(), lines)

	waitForLogCount(t, stack.store, total, 20*time.Second)

	if stack.store.Len() != total {
		t.Fatalf("final count=%d want=%d", stack.store.Len(), total)
	}
}

func TestE2E_ConcurrentReadsDuringIngest(t *testing.T) {
	stack := startE2EStack(t, e2eConfig{StoreCapacity: 20_000})

	const total = 6000
	lines := generateJSONBurst(total, "query-svc", "INFO")

	var wg sync.WaitGroup
	errCh := make(chan error, 128)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := socketrpc.Dial(stack.sock)
			if err != nil {
				errCh <- fmt.Errorf("socket dial: %w", err)
				return
			}
			defer client.Close()
			if _, err := client.Producers(); err != nil {
				errCh <- fmt.Errorf("socket producers: %w", err)
			}
		}()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 60; j++ {
				code, _, err := postQuery(stack.apiAddr, "burst")
				if err != nil {
					errCh <- fmt.Errorf("http query error: %w", err)
					return
				}
				if code != http.StatusOK {
					errCh <- fmt.Errorf("http status=%d", code)
					return
				}
			}
		}()
	}

	sendTCPLines(t, stack.source.Addr(), lines)
	waitForLogCount(t, stack.store, total, 20*time.Second)

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent read failure: %v", err)
		}
	}
}
