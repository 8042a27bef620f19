package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedtriage/triage/internal/expansion"
	"github.com/feedtriage/triage/internal/graph"
	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/ontology"
	"github.com/feedtriage/triage/internal/query"
	"github.com/feedtriage/triage/internal/store"
	"github.com/feedtriage/triage/internal/tab"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*store.Store, *gin.Engine) {
	t.Helper()
	s := store.New(1000, 4)
	x := expansion.New(graph.Build(ontology.MustLoad()))
	engine := query.New(s, x, 4, query.DefaultAlpha, query.DefaultBeta)
	mainTab, _ := tab.NewMain(s, store.Filter{})
	t.Cleanup(func() { mainTab.Close() })

	srv := NewServer("", s, engine, mainTab)
	srv.startTime = time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/health", srv.handleHealth)
	r.POST("/api/query", srv.handleQuery)
	r.GET("/api/tabs", srv.handleTabs)

	return s, r
}

func TestHealthEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
}

func TestHealthEndpointWrongMethod(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestQueryEndpointMatchesPushedEntries(t *testing.T) {
	s, r := newTestServer(t)
	s.Push(model.LogEntry{Timestamp: time.Now(), Message: "auth service timeout detected", Producer: "p"})

	body := `{"text": "timeout"}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Results    []map[string]interface{} `json:"results"`
		MatchCount int                       `json:"match_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal query response: %v", err)
	}
	if resp.MatchCount != 1 {
		t.Fatalf("match_count = %d, want 1", resp.MatchCount)
	}
}

func TestQueryEndpointMissingTextIsBadRequest(t *testing.T) {
	_, r := newTestServer(t)

	body := `{}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("missing text status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestQueryEndpointWrongMethod(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("query GET status = %d, want 405 or 404", w.Code)
	}
}

func TestTabsEndpointReportsProducers(t *testing.T) {
	s, r := newTestServer(t)
	s.Push(model.LogEntry{Timestamp: time.Now(), Message: "a", Producer: "web"})

	req := httptest.NewRequest(http.MethodGet, "/api/tabs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("tabs status = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		Producers []string `json:"producers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal tabs: %v", err)
	}
	found := false
	for _, p := range body.Producers {
		if p == "web" {
			found = true
		}
	}
	if !found {
		t.Errorf("producers = %v, want to include \"web\"", body.Producers)
	}
}

func TestGinRecovery(t *testing.T) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("panic recovery status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
