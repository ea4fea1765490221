package response

import (
	"encoding/json"
	"net/http"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// ErrorWithDetails carries the failure context (current status, required
// tier, remaining quantity) alongside the code.
func ErrorWithDetails(w http.ResponseWriter, status int, code string, message string, details map[string]any) {
	body := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	JSON(w, status, body)
}
