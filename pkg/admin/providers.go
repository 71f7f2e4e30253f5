package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ccg-hq/gateway/pkg/store"
)

// listProviders returns all providers ordered by sort_order, optionally
// filtered by ?cli_type=.
func (a *API) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := a.store.ListProviders(r.Context(), r.URL.Query().Get("cli_type"))
	if err != nil {
		a.logger.Error("list providers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

func (a *API) getProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	p, err := a.store.GetProvider(r.Context(), id)
	if errors.Is(err, store.ErrProviderNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.logger.Error("get provider failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get provider")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) createProvider(w http.ResponseWriter, r *http.Request) {
	var in store.ProviderCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateProviderCreate(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.store.CreateProvider(r.Context(), in)
	if err != nil {
		a.logger.Error("create provider failed", "name", in.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create provider")
		return
	}

	a.recorder.Event("info", "provider_created",
		fmt.Sprintf("Provider %s created", p.Name), p.Name, "")
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) updateProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	var in store.ProviderUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Existence check up front so a no-op update on a missing id is a 404,
	// not a silent success.
	if _, err := a.store.GetProvider(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		a.logger.Error("update provider failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update provider")
		return
	}

	p, changed, err := a.store.UpdateProvider(r.Context(), id, in)
	if err != nil {
		a.logger.Error("update provider failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update provider")
		return
	}

	if changed {
		a.recorder.Event("info", "provider_updated",
			fmt.Sprintf("Provider %s updated", p.Name), p.Name, "")
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deleteProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	name, err := a.store.DeleteProvider(r.Context(), id)
	if errors.Is(err, store.ErrProviderNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.logger.Error("delete provider failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete provider")
		return
	}

	a.recorder.Event("info", "provider_deleted",
		fmt.Sprintf("Provider %s deleted", name), name, "")
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (a *API) reorderProviders(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(in.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids must not be empty")
		return
	}

	if err := a.store.ReorderProviders(r.Context(), in.IDs); err != nil {
		a.logger.Error("reorder providers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reorder providers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resetProvider clears the failure counter and blacklist. This is the only
// way a blacklist ends before its expiry.
func (a *API) resetProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return
	}
	p, err := a.store.GetProvider(r.Context(), id)
	if errors.Is(err, store.ErrProviderNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		a.logger.Error("reset provider failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset provider")
		return
	}

	if err := a.store.ResetFailures(r.Context(), id); err != nil {
		a.logger.Error("reset provider failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset provider")
		return
	}

	a.recorder.Event("info", "provider_reset",
		fmt.Sprintf("Provider %s status manually reset", p.Name), p.Name, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validateProviderCreate(in *store.ProviderCreate) error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(in.BaseURL) == "" {
		return errors.New("base_url is required")
	}
	switch in.CLIType {
	case "", "claude_code", "codex", "gemini":
	default:
		return fmt.Errorf("unknown cli_type %q", in.CLIType)
	}
	return nil
}
