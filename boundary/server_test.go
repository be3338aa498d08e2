package boundary

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2389-research/dialogued/dialogue"
	"github.com/2389-research/dialogued/modelclient"
	"github.com/2389-research/dialogued/proactive"
	"github.com/2389-research/dialogued/store"
	"github.com/2389-research/dialogued/tools"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryFallback) {
	t.Helper()
	mem := store.NewMemoryFallback(100, time.Hour)
	registry := tools.NewRegistry()
	invoker := tools.NewInvoker(registry, nil)
	sched := proactive.NewScheduler(mem, &modelclient.Fake{Reply: "hi"})
	orch := dialogue.New(mem, &modelclient.Fake{Reply: "hello back"}, registry, invoker, sched)
	srv := NewServer(orch, sched, registry, mem)
	return httptest.NewServer(srv), mem
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestDialogueInputHappyPath(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/dialogue/input", map[string]any{"input": "Hello", "userId": "u1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Success bool `json:"success"`
		Result  struct {
			ID        string `json:"id"`
			SessionID string `json:"sessionId"`
			Response  string `json:"response"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Result.ID == "" || body.Result.SessionID == "" {
		t.Fatalf("unexpected response body: %+v", body)
	}
}

func TestDialogueInputMissingInputIs400(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/dialogue/input", map[string]any{"userId": "u1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetUnknownSessionIs404(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/dialogue/sessions/does-not-exist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateSessionDefaultsDialogueType(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/dialogue/sessions", map[string]any{"userId": "u1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["dialogueType"] != string(store.HumanAIPrivate) {
		t.Fatalf("expected default dialogue type, got %v", body["dialogueType"])
	}
}

func TestHealthzReportsOK(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestFrequencyTriggerRequiresSessionID(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/frequency/trigger", map[string]any{"userId": "u1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
