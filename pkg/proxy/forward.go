package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ccg-hq/gateway/pkg/store"
	"ccg-hq/gateway/pkg/telemetry"
	"ccg-hq/gateway/pkg/telemetry/metrics"
)

// ProviderHeader names the serving provider on every proxied response.
const ProviderHeader = "X-CCG-Provider"

// maxRequestBody caps inbound request bodies. Larger requests are rejected
// with 400 before any upstream work.
const maxRequestBody = 10 * 1024 * 1024

// storeWriteTimeout bounds the post-request health bookkeeping writes. They
// run on a background context because the caller may already be gone.
const storeWriteTimeout = 5 * time.Second

// fallbackTimeouts is used when the timeout_settings row cannot be read.
var fallbackTimeouts = store.TimeoutSettings{
	StreamFirstByteTimeout: 60,
	StreamIdleTimeout:      30,
	NonStreamTimeout:       120,
}

// Handler is the catch-all proxy handler: it classifies the client, selects
// a provider, rewrites the request, forwards it buffered or streaming, and
// records health and telemetry for every terminated request.
type Handler struct {
	store    *store.Store
	recorder *telemetry.Recorder
	metrics  *metrics.Metrics
	client   *http.Client
	logger   *slog.Logger
}

// NewHandler creates the proxy handler. The shared HTTP client carries no
// global timeout; deadlines are layered per request mode.
func NewHandler(st *store.Store, rec *telemetry.Recorder, m *metrics.Metrics) *Handler {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Handler{
		store:    st,
		recorder: rec,
		metrics:  m,
		client:   &http.Client{Transport: transport},
		logger:   slog.Default().With("component", "proxy"),
	}
}

// ServeHTTP proxies one request end to end.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cli := DetectCLIType(r.Header)
	fullPath := r.URL.RequestURI()

	reqLog := &telemetry.RequestLog{
		CreatedAt:     start.Unix(),
		CLIType:       cli.String(),
		ClientMethod:  r.Method,
		ClientPath:    fullPath,
		ClientHeaders: strPtr(serializeHeaders(r.Header)),
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		h.logger.Error("failed to read request body", "error", err)
		writeJSONError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(body) > maxRequestBody {
		writeJSONError(w, http.StatusBadRequest, msgBodyTooLarge)
		return
	}
	reqLog.ClientBody = strPtr(truncateForLog(body))

	streaming := IsStreaming(body, r.URL.Path, cli)

	provider, err := h.store.SelectProvider(r.Context(), cli.String())
	if err != nil {
		if errors.Is(err, store.ErrNoProvider) {
			h.logger.Warn("no available provider", "cli_type", cli.String())
			h.recorder.Event("warn", "no_provider_available",
				fmt.Sprintf("No available provider for CLI type: %s", cli.String()), "", "")
			reqLog.ErrorMessage = strPtr(msgNoProvider)
		} else {
			h.logger.Error("provider selection failed", "error", err)
			reqLog.ErrorMessage = strPtr(err.Error())
		}
		writeJSONError(w, http.StatusServiceUnavailable, msgNoProvider)
		h.finish(reqLog, start, TokenUsage{})
		return
	}
	reqLog.ProviderName = provider.Name

	timeouts := h.timeouts(r.Context())

	var mapped MappingResult
	if cli == CLIGemini {
		mapped = applyURLModelMapping(provider.ModelMaps, fullPath)
		mapped.Body = body
	} else {
		mapped = applyBodyModelMapping(provider.ModelMaps, body, fullPath)
	}
	if id := mapped.ModelID(); id != "" {
		reqLog.ModelID = strPtr(id)
	}

	upstreamURL := buildUpstreamURL(provider.BaseURL, mapped.Path)
	headers := filterHeaders(r.Header)
	setAuthHeader(headers, provider.APIKey, cli)
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}

	reqLog.ForwardURL = strPtr(upstreamURL)
	reqLog.ForwardHeaders = strPtr(serializeHeaders(headers))
	reqLog.ForwardBody = strPtr(truncateForLog(mapped.Body))

	h.logger.Debug("forwarding request",
		"cli_type", cli.String(),
		"provider", provider.Name,
		"url", upstreamURL,
		"streaming", streaming,
	)

	if streaming {
		h.forwardStreaming(w, r, provider, cli, timeouts, upstreamURL, headers, mapped.Body, reqLog, start)
	} else {
		h.forwardBuffered(w, r, provider, cli, timeouts, upstreamURL, headers, mapped.Body, reqLog, start)
	}
}

// forwardBuffered executes the upstream call under a single total deadline,
// reads the whole response, and copies it to the caller verbatim. Gzip
// responses are decompressed only for logging and usage inspection.
func (h *Handler) forwardBuffered(w http.ResponseWriter, r *http.Request, provider *store.Provider, cli CLIType, timeouts store.TimeoutSettings, url string, headers http.Header, body []byte, reqLog *telemetry.RequestLog, start time.Time) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeouts.NonStreamTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, url, bytes.NewReader(body))
	if err != nil {
		h.failRequest(w, provider, reqLog, start, http.StatusBadGateway, "Upstream error: "+err.Error())
		return
	}
	req.Header = headers

	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			h.logger.Error("request timeout", "provider", provider.Name, "url", url)
			h.failRequest(w, provider, reqLog, start, http.StatusGatewayTimeout, msgRequestTimeout)
		} else {
			h.logger.Error("upstream request failed", "provider", provider.Name, "error", err)
			h.failRequest(w, provider, reqLog, start, http.StatusBadGateway, "Upstream error: "+err.Error())
		}
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.Error("failed to read response body", "provider", provider.Name, "error", err)
		h.failRequest(w, provider, reqLog, start, http.StatusBadGateway,
			"Failed to read response body: "+err.Error())
		return
	}

	inspect := maybeGunzip(respBody, resp.Header.Get("Content-Encoding"))
	var usage TokenUsage
	parseTokenUsage(inspect, cli, &usage)

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	h.recordOutcome(provider, success, reqLog.ErrorMessage)

	reqLog.StatusCode = int64Ptr(int64(resp.StatusCode))
	respHeaders := serializeHeaders(resp.Header)
	reqLog.ProviderHeaders = strPtr(respHeaders)
	reqLog.ResponseHeaders = strPtr(respHeaders)
	bodyLog := truncateForLog(inspect)
	reqLog.ProviderBody = strPtr(bodyLog)
	reqLog.ResponseBody = strPtr(bodyLog)

	copyHeaders(w.Header(), resp.Header)
	w.Header().Set(ProviderHeader, provider.Name)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)

	h.finish(reqLog, start, usage)
}

// forwardStreaming relays an SSE response chunk by chunk. The upstream call
// runs under a first-byte deadline; once headers arrive, each chunk must land
// within the idle deadline or the relay terminates with a synthesized SSE
// error frame. Chunks are flushed to the caller as they arrive.
func (h *Handler) forwardStreaming(w http.ResponseWriter, r *http.Request, provider *store.Provider, cli CLIType, timeouts store.TimeoutSettings, url string, headers http.Header, body []byte, reqLog *telemetry.RequestLog, start time.Time) {
	firstByte := time.Duration(timeouts.StreamFirstByteTimeout) * time.Second
	idle := time.Duration(timeouts.StreamIdleTimeout) * time.Second

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, url, bytes.NewReader(body))
	if err != nil {
		h.failRequest(w, provider, reqLog, start, http.StatusBadGateway, "Upstream error: "+err.Error())
		return
	}
	req.Header = headers

	h.metrics.StreamStarted(cli.String())
	defer h.metrics.StreamEnded(cli.String())

	type doResult struct {
		resp *http.Response
		err  error
	}
	headerCh := make(chan doResult, 1)
	go func() {
		resp, err := h.client.Do(req)
		headerCh <- doResult{resp, err}
	}()

	firstByteTimer := time.NewTimer(firstByte)
	defer firstByteTimer.Stop()

	var resp *http.Response
	select {
	case res := <-headerCh:
		if res.err != nil {
			h.logger.Error("upstream request failed", "provider", provider.Name, "error", res.err)
			h.failRequest(w, provider, reqLog, start, http.StatusBadGateway,
				"Upstream error: "+res.err.Error())
			return
		}
		resp = res.resp
	case <-firstByteTimer.C:
		cancel()
		go func() {
			if res := <-headerCh; res.resp != nil {
				res.resp.Body.Close()
			}
		}()
		h.logger.Error("first byte timeout", "provider", provider.Name, "url", url)
		h.failRequest(w, provider, reqLog, start, http.StatusGatewayTimeout, msgFirstByteTimeout)
		return
	}
	defer resp.Body.Close()

	contentEncoding := resp.Header.Get("Content-Encoding")
	reqLog.StatusCode = int64Ptr(int64(resp.StatusCode))
	respHeaders := serializeHeaders(resp.Header)
	reqLog.ProviderHeaders = strPtr(respHeaders)
	reqLog.ResponseHeaders = strPtr(respHeaders)

	copyHeaders(w.Header(), resp.Header)
	w.Header().Set(ProviderHeader, provider.Name)
	w.WriteHeader(resp.StatusCode)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	// The reader goroutine owns resp.Body; the loop below owns the caller.
	// done tears the reader down if the loop exits first.
	chunks := make(chan []byte, 4)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-done:
					return
				}
			}
			if err != nil {
				select {
				case readErr <- err:
				case <-done:
				}
				return
			}
		}
	}()

	var (
		usage      TokenUsage
		collector  []byte
		lineBuf    []byte
		streamErr  string
		clientGone bool
	)

	idleTimer := time.NewTimer(idle)
	defer idleTimer.Stop()

loop:
	for {
		select {
		case chunk := <-chunks:
			if _, err := w.Write(chunk); err != nil {
				cancel()
				streamErr = "Client disconnected: " + err.Error()
				clientGone = true
				break loop
			}
			if flusher != nil {
				flusher.Flush()
			}
			if room := maxLoggedBody - len(collector); room > 0 {
				if room > len(chunk) {
					room = len(chunk)
				}
				collector = append(collector, chunk[:room]...)
			}
			lineBuf = append(lineBuf, chunk...)
			lineBuf = scanSSELines(lineBuf, cli, &usage)

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(idle)

		case err := <-readErr:
			if !errors.Is(err, io.EOF) {
				h.logger.Error("stream error", "provider", provider.Name, "error", err)
				streamErr = "Stream error: " + err.Error()
			}
			break loop

		case <-idleTimer.C:
			h.logger.Warn("stream idle timeout", "provider", provider.Name)
			_, _ = io.WriteString(w, "event: error\ndata: {\"error\": \"Stream idle timeout\"}\n\n")
			if flusher != nil {
				flusher.Flush()
			}
			cancel()
			streamErr = msgIdleTimeout
			break loop

		case <-r.Context().Done():
			cancel()
			streamErr = "Client disconnected"
			clientGone = true
			break loop
		}
	}

	// A trailing partial line may still carry the final usage frame.
	if len(lineBuf) > 0 {
		parseStreamingTokenUsage(string(lineBuf), cli, &usage)
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 && len(collector) > 0 {
		reparseCollected(maybeGunzip(collector, contentEncoding), cli, &usage)
	}

	// Mid-stream errors and idle timeouts count against the provider; a
	// caller walking away does not.
	success := resp.StatusCode >= 200 && resp.StatusCode < 300 && (streamErr == "" || clientGone)
	if streamErr != "" {
		reqLog.ErrorMessage = strPtr(streamErr)
	}
	h.recordOutcome(provider, success, reqLog.ErrorMessage)

	bodyLog := truncateForLog(maybeGunzip(collector, contentEncoding))
	reqLog.ProviderBody = strPtr(bodyLog)
	reqLog.ResponseBody = strPtr(bodyLog)

	h.finish(reqLog, start, usage)
}

// failRequest records a provider failure, writes the JSON error response,
// and emits the request log. Used for terminations where no upstream bytes
// reach the caller.
func (h *Handler) failRequest(w http.ResponseWriter, provider *store.Provider, reqLog *telemetry.RequestLog, start time.Time, status int, message string) {
	reqLog.ErrorMessage = strPtr(message)
	h.recordOutcome(provider, false, reqLog.ErrorMessage)

	w.Header().Set(ProviderHeader, provider.Name)
	writeJSONError(w, status, message)
	h.finish(reqLog, start, TokenUsage{})
}

// recordOutcome updates the provider's health counters and emits transition
// events. Store failures are logged and swallowed; they never surface to the
// caller. Runs on a background context because the request's may be dead.
func (h *Handler) recordOutcome(provider *store.Provider, success bool, errorMessage *string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	if success {
		recovered, err := h.store.RecordSuccess(ctx, provider.ID)
		if err != nil {
			h.logger.Error("failed to record success", "provider", provider.Name, "error", err)
			return
		}
		if recovered {
			h.recorder.Event("info", "provider_recovered",
				fmt.Sprintf("Provider %s recovered successfully", provider.Name), provider.Name, "")
		}
		return
	}

	crossed, name, err := h.store.RecordFailure(ctx, provider.ID)
	if err != nil {
		h.logger.Error("failed to record failure", "provider", provider.Name, "error", err)
		return
	}
	if crossed {
		h.metrics.ProviderBlacklisted(name)
		details := ""
		if errorMessage != nil {
			if b, err := json.Marshal(map[string]string{"error": *errorMessage}); err == nil {
				details = string(b)
			}
		}
		h.recorder.Event("warn", "provider_blacklisted",
			fmt.Sprintf("Provider %s blacklisted due to consecutive failures", name), name, details)
	}
}

// finish stamps the elapsed time and token counts onto the log row, updates
// the metrics, and enqueues the row. Exactly one finish per request.
func (h *Handler) finish(reqLog *telemetry.RequestLog, start time.Time, usage TokenUsage) {
	elapsed := time.Since(start)
	reqLog.ElapsedMs = elapsed.Milliseconds()
	reqLog.InputTokens = usage.InputTokens
	reqLog.OutputTokens = usage.OutputTokens

	h.metrics.RecordRequest(reqLog.CLIType, reqLog.ProviderName, reqLog.StatusCode, elapsed)
	h.metrics.RecordTokens(reqLog.CLIType, reqLog.ProviderName, usage.InputTokens, usage.OutputTokens)
	h.recorder.Record(reqLog)
}

// timeouts loads the operator-configured timeouts, falling back to defaults
// when the settings row is unreadable.
func (h *Handler) timeouts(ctx context.Context) store.TimeoutSettings {
	t, err := h.store.TimeoutSettings(ctx)
	if err != nil {
		h.logger.Warn("failed to load timeout settings, using defaults", "error", err)
		return fallbackTimeouts
	}
	return t
}

// scanSSELines parses every complete line in buf for usage updates and
// returns the unterminated remainder.
func scanSSELines(buf []byte, cli CLIType, usage *TokenUsage) []byte {
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			return buf
		}
		line := strings.TrimRight(string(buf[:idx]), "\r")
		parseStreamingTokenUsage(line, cli, usage)
		buf = buf[idx+1:]
	}
}

// reparseCollected is the post-stream fallback for providers that only emit
// usage in a final JSON blob which may have straddled chunk boundaries: scan
// the collected body line by line, then as one JSON document.
func reparseCollected(body []byte, cli CLIType, usage *TokenUsage) {
	for _, line := range strings.Split(string(body), "\n") {
		parseStreamingTokenUsage(strings.TrimRight(line, "\r"), cli, usage)
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		parseTokenUsage(body, cli, usage)
	}
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		dst[name] = append([]string(nil), values...)
	}
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
