package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"ccg-hq/gateway/pkg/store"
	"ccg-hq/gateway/pkg/telemetry"
)

// API serves the operator endpoints.
type API struct {
	store    *store.Store
	logs     *telemetry.Store
	recorder *telemetry.Recorder
	host     string
	port     int
	logger   *slog.Logger
}

// New creates the operator API. host and port are reported by /api/status.
func New(st *store.Store, logs *telemetry.Store, rec *telemetry.Recorder, host string, port int) *API {
	return &API{
		store:    st,
		logs:     logs,
		recorder: rec,
		host:     host,
		port:     port,
		logger:   slog.Default().With("component", "admin"),
	}
}

// Routes returns the operator API handler.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/providers", a.listProviders)
	mux.HandleFunc("POST /api/providers", a.createProvider)
	mux.HandleFunc("POST /api/providers/reorder", a.reorderProviders)
	mux.HandleFunc("GET /api/providers/{id}", a.getProvider)
	mux.HandleFunc("PUT /api/providers/{id}", a.updateProvider)
	mux.HandleFunc("DELETE /api/providers/{id}", a.deleteProvider)
	mux.HandleFunc("POST /api/providers/{id}/reset", a.resetProvider)

	mux.HandleFunc("GET /api/settings/gateway", a.getGatewaySettings)
	mux.HandleFunc("PUT /api/settings/gateway", a.updateGatewaySettings)
	mux.HandleFunc("GET /api/settings/timeouts", a.getTimeoutSettings)
	mux.HandleFunc("PUT /api/settings/timeouts", a.updateTimeoutSettings)

	mux.HandleFunc("GET /api/logs/requests", a.listRequestLogs)
	mux.HandleFunc("DELETE /api/logs/requests", a.clearRequestLogs)
	mux.HandleFunc("GET /api/logs/requests/{id}", a.getRequestLog)
	mux.HandleFunc("GET /api/logs/system", a.listSystemLogs)
	mux.HandleFunc("DELETE /api/logs/system", a.clearSystemLogs)
	mux.HandleFunc("GET /api/stats/daily", a.dailyStats)
	mux.HandleFunc("GET /api/stats/providers", a.providerStats)
	mux.HandleFunc("GET /api/status", a.status)

	return mux
}

// status reports the gateway's listen address for the operator UI.
func (a *API) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running": true,
		"host":    a.host,
		"port":    a.port,
	})
}

// writeJSON writes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// queryInt64 parses an integer query parameter, returning fallback when the
// parameter is absent or malformed.
func queryInt64(r *http.Request, name string, fallback int64) int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
