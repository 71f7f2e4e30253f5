package proxy

import (
	"encoding/json"
	"net/http"
)

// Wire error messages. These are part of the gateway's contract with the CLI
// clients and must not be reworded.
const (
	msgNoProvider       = "No available provider configured"
	msgRequestTimeout   = "Request timeout"
	msgFirstByteTimeout = "First byte timeout"
	msgIdleTimeout      = "Stream idle timeout"
	msgBodyTooLarge     = "Request body too large"
)

// errorBody is the JSON error envelope for every gateway-generated error
// response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSONError replies with {"error": message} and the given status.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}
