package admin

import (
	"encoding/json"
	"net/http"

	"ccg-hq/gateway/pkg/store"
)

func (a *API) getGatewaySettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.store.GatewaySettings(r.Context())
	if err != nil {
		a.logger.Error("get gateway settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get gateway settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) updateGatewaySettings(w http.ResponseWriter, r *http.Request) {
	var in store.GatewaySettings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.store.UpdateGatewaySettings(r.Context(), in.DebugLog); err != nil {
		a.logger.Error("update gateway settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update gateway settings")
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (a *API) getTimeoutSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.store.TimeoutSettings(r.Context())
	if err != nil {
		a.logger.Error("get timeout settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get timeout settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// updateTimeoutSettings applies a partial update; absent fields keep their
// stored value. Changes take effect on the next request, streams already in
// flight keep the timeouts they started with.
func (a *API) updateTimeoutSettings(w http.ResponseWriter, r *http.Request) {
	var in store.TimeoutSettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, v := range []*int64{in.StreamFirstByteTimeout, in.StreamIdleTimeout, in.NonStreamTimeout} {
		if v != nil && *v <= 0 {
			writeError(w, http.StatusBadRequest, "timeouts must be positive")
			return
		}
	}

	merged, err := a.store.UpdateTimeoutSettings(r.Context(), in)
	if err != nil {
		a.logger.Error("update timeout settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update timeout settings")
		return
	}
	writeJSON(w, http.StatusOK, merged)
}
