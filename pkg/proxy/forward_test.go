package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ccg-hq/gateway/pkg/store"
	"ccg-hq/gateway/pkg/telemetry"
	"ccg-hq/gateway/pkg/telemetry/metrics"
)

// testEnv wires a handler onto temporary databases. Call drain before
// asserting on telemetry rows; the recorder writes asynchronously.
type testEnv struct {
	store   *store.Store
	logs    *telemetry.Store
	rec     *telemetry.Recorder
	handler *Handler
	drained bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "ccg_gateway.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	logs, err := telemetry.Open(filepath.Join(dir, "ccg_logs.db"))
	if err != nil {
		t.Fatalf("telemetry.Open() failed: %v", err)
	}
	rec := telemetry.NewRecorder(logs, telemetry.RecorderConfig{
		Buffer:       64,
		WriteTimeout: 2 * time.Second,
	})

	env := &testEnv{
		store:   st,
		logs:    logs,
		rec:     rec,
		handler: NewHandler(st, rec, metrics.New()),
	}
	t.Cleanup(func() {
		env.drain()
		logs.Close()
		st.Close()
	})
	return env
}

// drain flushes the recorder so telemetry rows become visible.
func (e *testEnv) drain() {
	if !e.drained {
		e.rec.Close()
		e.drained = true
	}
}

func (e *testEnv) addProvider(t *testing.T, in store.ProviderCreate) *store.Provider {
	t.Helper()
	p, err := e.store.CreateProvider(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateProvider() failed: %v", err)
	}
	return p
}

func (e *testEnv) setTimeouts(t *testing.T, firstByte, idle, total int64) {
	t.Helper()
	if _, err := e.store.UpdateTimeoutSettings(context.Background(), store.TimeoutSettingsUpdate{
		StreamFirstByteTimeout: &firstByte,
		StreamIdleTimeout:      &idle,
		NonStreamTimeout:       &total,
	}); err != nil {
		t.Fatalf("UpdateTimeoutSettings() failed: %v", err)
	}
}

func (e *testEnv) lastRequestLog(t *testing.T) telemetry.RequestLogSummary {
	t.Helper()
	page, err := e.logs.ListRequestLogs(context.Background(), 1, 1, "")
	if err != nil {
		t.Fatalf("ListRequestLogs() failed: %v", err)
	}
	if len(page.Items) == 0 {
		t.Fatal("no request log rows")
	}
	return page.Items[0]
}

func (e *testEnv) eventsOfType(t *testing.T, eventType string) []telemetry.SystemEvent {
	t.Helper()
	page, err := e.logs.ListSystemLogs(context.Background(), 1, 100, "", eventType, "")
	if err != nil {
		t.Fatalf("ListSystemLogs() failed: %v", err)
	}
	return page.Items
}

func doRequest(h http.Handler, method, path, userAgent, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_BufferedHappyPath(t *testing.T) {
	env := newTestEnv(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","usage":{"input_tokens":7,"output_tokens":13}}`)
	}))
	defer upstream.Close()

	env.addProvider(t, store.ProviderCreate{
		Name: "main", BaseURL: upstream.URL, APIKey: "sk-main",
	})

	w := doRequest(env.handler, http.MethodPost, "/v1/messages",
		"claude-cli/1.0", `{"model":"claude-3-5-sonnet","stream":false}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get(ProviderHeader); got != "main" {
		t.Errorf("%s = %q, want main", ProviderHeader, got)
	}
	if !strings.Contains(w.Body.String(), `"msg_1"`) {
		t.Errorf("body not relayed: %q", w.Body.String())
	}

	env.drain()
	row := env.lastRequestLog(t)
	if row.CLIType != "claude_code" || row.ProviderName != "main" {
		t.Errorf("row = %+v", row)
	}
	if row.StatusCode == nil || *row.StatusCode != 200 {
		t.Errorf("status_code = %v, want 200", row.StatusCode)
	}
	if row.InputTokens != 7 || row.OutputTokens != 13 {
		t.Errorf("tokens = %d/%d, want 7/13", row.InputTokens, row.OutputTokens)
	}
	if row.ModelID == nil || *row.ModelID != "claude-3-5-sonnet" {
		t.Errorf("model_id = %v", row.ModelID)
	}
}

func TestHandler_RewritesModelAndAuth(t *testing.T) {
	env := newTestEnv(t)

	var gotBody []byte
	var gotAuth, gotProxyAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = readAll(r)
		gotAuth = r.Header.Get("Authorization")
		gotProxyAuth = r.Header.Get("Proxy-Authorization")
		fmt.Fprint(w, `{}`)
	}))
	defer upstream.Close()

	env.addProvider(t, store.ProviderCreate{
		Name: "mapped", BaseURL: upstream.URL, APIKey: "sk-provider",
		ModelMaps: []store.ModelMapInput{
			{SourceModel: "claude-*", TargetModel: "deepseek-chat", Enabled: true},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/messages",
		strings.NewReader(`{"model":"claude-3-5-sonnet","max_tokens":5}`))
	req.Header.Set("User-Agent", "claude-cli/1.0")
	req.Header.Set("Authorization", "Bearer sk-client")
	req.Header.Set("Proxy-Authorization", "leak")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("upstream body not JSON: %v", err)
	}
	if payload["model"] != "deepseek-chat" {
		t.Errorf("upstream model = %v, want deepseek-chat", payload["model"])
	}
	if gotAuth != "Bearer sk-provider" {
		t.Errorf("Authorization = %q, want provider key", gotAuth)
	}
	if gotProxyAuth != "" {
		t.Error("hop-by-hop header leaked upstream")
	}
}

func TestHandler_GeminiURLMapping(t *testing.T) {
	env := newTestEnv(t)

	var gotPath, gotKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotKey = r.Header.Get("x-goog-api-key")
		fmt.Fprint(w, `{"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":5}}`)
	}))
	defer upstream.Close()

	env.addProvider(t, store.ProviderCreate{
		CLIType: "gemini", Name: "g", BaseURL: upstream.URL, APIKey: "goog-key",
		ModelMaps: []store.ModelMapInput{
			{SourceModel: "gemini-1.5-*", TargetModel: "gemini-2.0-flash", Enabled: true},
		},
	})

	w := doRequest(env.handler, http.MethodPost,
		"/v1beta/models/gemini-1.5-pro:generateContent?key=ignored",
		"GeminiCLI/0.1", `{"contents":[]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(gotPath, "/models/gemini-2.0-flash:generateContent") {
		t.Errorf("upstream path = %q", gotPath)
	}
	if gotKey != "goog-key" {
		t.Errorf("x-goog-api-key = %q", gotKey)
	}

	env.drain()
	row := env.lastRequestLog(t)
	if row.InputTokens != 3 || row.OutputTokens != 5 {
		t.Errorf("tokens = %d/%d, want 3/5", row.InputTokens, row.OutputTokens)
	}
}

func TestHandler_NoProvider(t *testing.T) {
	env := newTestEnv(t)

	w := doRequest(env.handler, http.MethodPost, "/v1/messages", "claude-cli/1.0", `{}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body not JSON: %v", err)
	}
	if body["error"] != "No available provider configured" {
		t.Errorf("error = %q", body["error"])
	}

	env.drain()
	row := env.lastRequestLog(t)
	if row.StatusCode != nil {
		t.Errorf("status_code = %v, want NULL", *row.StatusCode)
	}
	if row.ProviderName != "" {
		t.Errorf("provider_name = %q, want empty", row.ProviderName)
	}
	events := env.eventsOfType(t, "no_provider_available")
	if len(events) != 1 {
		t.Fatalf("no_provider_available events = %d, want 1", len(events))
	}
	if !strings.Contains(events[0].Message, "claude_code") {
		t.Errorf("event message = %q", events[0].Message)
	}
}

func TestHandler_BlacklistsAfterConsecutiveFailures(t *testing.T) {
	env := newTestEnv(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusInternalServerError)
	}))
	defer upstream.Close()

	p := env.addProvider(t, store.ProviderCreate{
		Name: "flaky", BaseURL: upstream.URL, APIKey: "k",
	})

	for i := 0; i < 3; i++ {
		w := doRequest(env.handler, http.MethodPost, "/v1/messages", "claude-cli/1.0", `{}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("request %d: status = %d, want 500 passthrough", i+1, w.Code)
		}
	}

	got, err := env.store.GetProvider(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProvider() failed: %v", err)
	}
	if got.ConsecutiveFailures != 3 {
		t.Errorf("consecutive_failures = %d, want 3", got.ConsecutiveFailures)
	}
	if got.BlacklistedUntil == nil || *got.BlacklistedUntil <= time.Now().Unix() {
		t.Fatal("provider should be blacklisted")
	}

	// With its only provider blacklisted the CLI type drains to 503.
	w := doRequest(env.handler, http.MethodPost, "/v1/messages", "claude-cli/1.0", `{}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("post-blacklist status = %d, want 503", w.Code)
	}

	env.drain()
	events := env.eventsOfType(t, "provider_blacklisted")
	if len(events) != 1 {
		t.Fatalf("provider_blacklisted events = %d, want exactly 1", len(events))
	}
	if events[0].ProviderName == nil || *events[0].ProviderName != "flaky" {
		t.Errorf("event provider = %v", events[0].ProviderName)
	}
}

func TestHandler_RecoveryEventAfterFailure(t *testing.T) {
	env := newTestEnv(t)

	fail := true
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer upstream.Close()

	env.addProvider(t, store.ProviderCreate{
		Name: "wobbly", BaseURL: upstream.URL, APIKey: "k",
	})

	doRequest(env.handler, http.MethodPost, "/v1/messages", "claude-cli/1.0", `{}`)
	fail = false
	doRequest(env.handler, http.MethodPost, "/v1/messages", "claude-cli/1.0", `{}`)

	env.drain()
	events := env.eventsOfType(t, "provider_recovered")
	if len(events) != 1 {
		t.Fatalf("provider_recovered events = %d, want 1", len(events))
	}
}

func TestHandler_StreamingRelay(t *testing.T) {
	env := newTestEnv(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":4,\"output_tokens\":0}}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"hi\"}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"usage\":{\"input_tokens\":4,\"output_tokens\":21}}\n\n")
		flusher.Flush()
	}))
	defer upstream.Close()

	env.addProvider(t, store.ProviderCreate{
		Name: "streamer", BaseURL: upstream.URL, APIKey: "k",
	})

	w := doRequest(env.handler, http.MethodPost, "/v1/messages",
		"claude-cli/1.0", `{"model":"m","stream":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get(ProviderHeader); got != "streamer" {
		t.Errorf("%s = %q", ProviderHeader, got)
	}
	if !strings.Contains(w.Body.String(), "content_block_delta") {
		t.Errorf("frames not relayed: %q", w.Body.String())
	}

	env.drain()
	row := env.lastRequestLog(t)
	if row.InputTokens != 4 || row.OutputTokens != 21 {
		t.Errorf("tokens = %d/%d, want 4/21", row.InputTokens, row.OutputTokens)
	}
	if row.StatusCode == nil || *row.StatusCode != 200 {
		t.Errorf("status_code = %v", row.StatusCode)
	}
}

func TestHandler_StreamingIdleTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.setTimeouts(t, 5, 1, 30)

	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"message_start\",\"message\":{\"usage\":{\"input_tokens\":4,\"output_tokens\":0}}}\n\n")
		flusher.Flush()
		// Stall past the idle deadline.
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(release)

	p := env.addProvider(t, store.ProviderCreate{
		Name: "staller", BaseURL: upstream.URL, APIKey: "k",
	})

	w := doRequest(env.handler, http.MethodPost, "/v1/messages",
		"claude-cli/1.0", `{"stream":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; stream errors arrive in-band after 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "event: error\ndata: {\"error\": \"Stream idle timeout\"}") {
		t.Errorf("missing synthesized error frame: %q", w.Body.String())
	}

	got, err := env.store.GetProvider(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProvider() failed: %v", err)
	}
	if got.ConsecutiveFailures != 1 {
		t.Errorf("consecutive_failures = %d, want 1 (idle timeout counts)", got.ConsecutiveFailures)
	}

	env.drain()
	row := env.lastRequestLog(t)
	if row.InputTokens != 4 {
		t.Errorf("input_tokens = %d, want 4 from the frame before the stall", row.InputTokens)
	}
}

func TestHandler_StreamingFirstByteTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.setTimeouts(t, 1, 5, 30)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	env.addProvider(t, store.ProviderCreate{
		Name: "silent", BaseURL: upstream.URL, APIKey: "k",
	})

	w := doRequest(env.handler, http.MethodPost, "/v1/messages",
		"claude-cli/1.0", `{"stream":true}`)

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	if !strings.Contains(w.Body.String(), "First byte timeout") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHandler_BufferedTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.setTimeouts(t, 5, 5, 1)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	env.addProvider(t, store.ProviderCreate{
		Name: "slow", BaseURL: upstream.URL, APIKey: "k",
	})

	w := doRequest(env.handler, http.MethodPost, "/v1/messages", "claude-cli/1.0", `{}`)

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Request timeout") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHandler_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.addProvider(t, store.ProviderCreate{Name: "p", BaseURL: "http://unused", APIKey: "k"})

	body := bytes.Repeat([]byte("x"), maxRequestBody+1)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	req.Header.Set("User-Agent", "claude-cli/1.0")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Request body too large") {
		t.Errorf("body = %q", w.Body.String())
	}

	// Rejected-at-the-door requests write no log row.
	env.drain()
	page, err := env.logs.ListRequestLogs(context.Background(), 1, 10, "")
	if err != nil {
		t.Fatalf("ListRequestLogs() failed: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("request log rows = %d, want 0", page.Total)
	}
}

func readAll(r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}
