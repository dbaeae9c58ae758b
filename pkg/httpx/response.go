package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error envelope every handler uses.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes a JSON response with the given status code. Token
// responses must never be cached, so no-store headers are always set.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error envelope with the given status code.
func WriteError(w http.ResponseWriter, code int, errCode string) {
	WriteJSON(w, code, ErrorBody{Error: errCode})
}

// NoCache sets Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
