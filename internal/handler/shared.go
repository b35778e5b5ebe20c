package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/store"
)

// Dependencies holds the services required by the handlers.
type Dependencies struct {
	Database DatabaseClient
	Blob     BlobClient
	Queue    QueueClient
	Email    EmailClient
	// Export is an optional secondary sink for classified ledgers.
	Export store.Store
	Config engine.Config
}

// recipients returns the notification address list, or nil when USER_EMAIL is unset
// or no email client is configured.
func (d *Dependencies) recipients() []string {
	if d.Email == nil {
		return nil
	}
	userEmail := os.Getenv("USER_EMAIL")
	if userEmail == "" {
		return nil
	}
	return []string{userEmail}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
