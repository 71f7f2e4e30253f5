package admin

import (
	"errors"
	"net/http"

	"ccg-hq/gateway/pkg/telemetry"
)

// listRequestLogs returns one page of request log summaries. Query
// parameters: page (1-based), page_size (max 100), cli_type.
func (a *API) listRequestLogs(w http.ResponseWriter, r *http.Request) {
	page := queryInt64(r, "page", 1)
	pageSize := queryInt64(r, "page_size", 20)

	logs, err := a.logs.ListRequestLogs(r.Context(), page, pageSize, r.URL.Query().Get("cli_type"))
	if err != nil {
		a.logger.Error("list request logs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list request logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// getRequestLog returns the full row including body and header captures.
func (a *API) getRequestLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid log id")
		return
	}
	log, err := a.logs.GetRequestLog(r.Context(), id)
	if errors.Is(err, telemetry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "request log not found")
		return
	}
	if err != nil {
		a.logger.Error("get request log failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get request log")
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (a *API) listSystemLogs(w http.ResponseWriter, r *http.Request) {
	page := queryInt64(r, "page", 1)
	pageSize := queryInt64(r, "page_size", 20)
	q := r.URL.Query()

	logs, err := a.logs.ListSystemLogs(r.Context(), page, pageSize,
		q.Get("level"), q.Get("event_type"), q.Get("provider_name"))
	if err != nil {
		a.logger.Error("list system logs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list system logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (a *API) dailyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := a.logs.DailyStats(r.Context(), q.Get("start_date"), q.Get("end_date"), q.Get("cli_type"))
	if err != nil {
		a.logger.Error("daily stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get daily stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) providerStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stats, err := a.logs.ProviderStats(r.Context(), q.Get("start_date"), q.Get("end_date"), q.Get("cli_type"))
	if err != nil {
		a.logger.Error("provider stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get provider stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// clearRequestLogs deletes all request log rows. The usage_daily rollup is
// kept.
func (a *API) clearRequestLogs(w http.ResponseWriter, r *http.Request) {
	if err := a.logs.ClearRequestLogs(r.Context()); err != nil {
		a.logger.Error("clear request logs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear request logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) clearSystemLogs(w http.ResponseWriter, r *http.Request) {
	if err := a.logs.ClearSystemLogs(r.Context()); err != nil {
		a.logger.Error("clear system logs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear system logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
