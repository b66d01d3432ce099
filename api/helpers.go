package api

import (
	"encoding/json"
	"net/http"
)

// Error is the JSON shape of every non-2xx response this API returns.
type Error struct {
	Message string `json:"message"`
}

func (e Error) Error() string {
	return e.Message
}

// WriteError writes err as a JSON body with the given HTTP status code.
func WriteError(w http.ResponseWriter, err Error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(err)
}

// WriteJSON writes obj as a 200 OK JSON response.
func WriteJSON(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(obj)
}

// WriteSuccess writes a bodyless 204 No Content response, used by handlers
// that only need to report "this worked".
func WriteSuccess(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
