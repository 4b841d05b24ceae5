package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/committee"
	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/judging"
	"github.com/ahrav/go-tribunal/internal/testutils"
)

func newTestServer(t *testing.T, dir *testutils.MockDirectory, judgingCfg judging.Config) *Server {
	t.Helper()
	dispatcher, err := committee.NewDispatcher(dir)
	require.NoError(t, err)
	engine, err := judging.NewEngine(dir, judgingCfg)
	require.NoError(t, err)
	return NewServer(Config{Addr: ":0"}, dispatcher, engine, dir)
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	dir := testutils.NewMockDirectory().Add("a", "", &testutils.MockBackend{})
	s := newTestServer(t, dir, judging.Config{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestBackendsListing(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("gpt", "GPT-4o", &testutils.MockBackend{}).
		Add("claude", "", &testutils.MockBackend{})
	s := newTestServer(t, dir, judging.Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/backends", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Backends []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"backends"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Backends, 2)
	assert.Equal(t, "GPT-4o", body.Backends[0].Label)
	assert.Equal(t, "claude", body.Backends[1].Label, "missing label degrades to the identifier")
}

func decodeSSEDeltas(t *testing.T, body string) []domain.TokenDelta {
	t.Helper()
	var deltas []domain.TokenDelta
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var delta domain.TokenDelta
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &delta))
		deltas = append(deltas, delta)
	}
	return deltas
}

func TestCommitteeStream(t *testing.T) {
	dir := testutils.NewMockDirectory().
		Add("a", "", &testutils.MockBackend{Fragments: []string{"hello ", "world"}}).
		Add("b", "", &testutils.MockBackend{Err: errors.New("backend down")})
	s := newTestServer(t, dir, judging.Config{})

	w := postJSON(t, s, "/api/v1/committee/stream", map[string]any{
		"prompt":      "What is Go?",
		"backend_ids": []string{"a", "b"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	deltas := decodeSSEDeltas(t, w.Body.String())

	var content string
	terminals := make(map[string]domain.TokenDelta)
	for _, d := range deltas {
		if d.Terminal() {
			_, dup := terminals[d.BackendID]
			require.False(t, dup, "backend %s emitted more than one terminal event", d.BackendID)
			terminals[d.BackendID] = d
			continue
		}
		if d.BackendID == "a" {
			content += d.Content
		}
	}

	assert.Equal(t, "hello world", content)
	require.Len(t, terminals, 2)
	assert.Empty(t, terminals["a"].Error)
	assert.Equal(t, "backend down", terminals["b"].Error)
	assert.True(t, terminals["b"].Done)
}

func TestCommitteeStreamRejectsBadRequests(t *testing.T) {
	dir := testutils.NewMockDirectory().Add("a", "", &testutils.MockBackend{})
	s := newTestServer(t, dir, judging.Config{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing prompt", body: map[string]any{"backend_ids": []string{"a"}}},
		{name: "no backends", body: map[string]any{"prompt": "p", "backend_ids": []string{}}},
		{name: "duplicate backends", body: map[string]any{"prompt": "p", "backend_ids": []string{"a", "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, s, "/api/v1/committee/stream", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestJudgeEndpointVerdict(t *testing.T) {
	judge := &testutils.MockBackend{Response: `{"winner": "b", "reasoning": "better", "scores": [{"backend_id": "a", "score": 60}, {"backend_id": "b", "score": 90}]}`}
	dir := testutils.NewMockDirectory().
		Add("judge", "", judge).
		Add("b", "Model B", &testutils.MockBackend{})
	s := newTestServer(t, dir, judging.Config{DefaultJudgeID: "judge"})

	w := postJSON(t, s, "/api/v1/judge", map[string]any{
		"prompt": "What is Go?",
		"mode":   "single",
		"responses": []map[string]any{
			{"backend_id": "a", "content": "answer a"},
			{"backend_id": "b", "content": "answer b"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Verdict domain.Verdict `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "b", body.Verdict.Winner)
	assert.Equal(t, "Model B", body.Verdict.WinnerLabel)
	require.Len(t, body.Verdict.Votes, 1)
}

func TestJudgeEndpointConsensus(t *testing.T) {
	synth := &testutils.MockBackend{Response: `{"synthesized_text": "merged", "attributions": [], "key_points": []}`}
	dir := testutils.NewMockDirectory().Add("synth", "", synth)
	s := newTestServer(t, dir, judging.Config{SynthesizerID: "synth"})

	w := postJSON(t, s, "/api/v1/judge", map[string]any{
		"prompt": "p",
		"mode":   "consensus",
		"responses": []map[string]any{
			{"backend_id": "a", "content": "answer a"},
			{"backend_id": "b", "content": "answer b"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Consensus domain.ConsensusResult `json:"consensus"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "merged", body.Consensus.Synthesis)
	assert.Len(t, body.Consensus.Attributions, 2)
}

func TestJudgeEndpointErrorStatuses(t *testing.T) {
	failing := &testutils.MockBackend{Err: errors.New("down")}
	dir := testutils.NewMockDirectory().Add("judge", "", failing)
	s := newTestServer(t, dir, judging.Config{DefaultJudgeID: "judge"})

	twoResponses := []map[string]any{
		{"backend_id": "a", "content": "answer a"},
		{"backend_id": "b", "content": "answer b"},
	}

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "malformed body",
			body:       map[string]any{"prompt": "p"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "too few usable responses",
			body: map[string]any{
				"prompt": "p", "mode": "single",
				"responses": []map[string]any{{"backend_id": "a", "content": "only one"}},
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unknown judge",
			body: map[string]any{
				"prompt": "p", "mode": "executive",
				"judge_backend_ids": []string{"ghost"},
				"responses":         twoResponses,
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "all judges failed",
			body: map[string]any{
				"prompt": "p", "mode": "single",
				"responses": twoResponses,
			},
			wantStatus: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, s, "/api/v1/judge", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestCommitteeStreamClientDisconnectReleasesBackends(t *testing.T) {
	fragments := make([]string, 200)
	for i := range fragments {
		fragments[i] = "token "
	}
	dir := testutils.NewMockDirectory().
		Add("a", "", &testutils.MockBackend{Fragments: fragments, Delay: time.Millisecond})
	s := newTestServer(t, dir, judging.Config{})

	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	body := strings.NewReader(`{"prompt": "p", "backend_ids": ["a"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/committee/stream", body).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	handlerDone := make(chan struct{})
	go func() {
		defer close(handlerDone)
		s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}()

	// Let the backend outpace the 64-slot buffer, then walk away.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after cancellation")
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 2*time.Second, 10*time.Millisecond,
		"branch goroutines should drain out after the client disconnects")
}
