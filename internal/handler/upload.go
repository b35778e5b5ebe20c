package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const maxUploadBytes = 10 << 20

// HandleUpload stores a source export for a configured source label.
// The form carries the file under "file" and the label under "source".
func (d *Dependencies) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		slog.Warn("upload attempt with invalid method", "method", r.Method, "path", r.URL.Path)
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Warn("failed to parse multipart form", "error", err, "max_size_mb", maxUploadBytes>>20)
		WriteError(w, http.StatusBadRequest, "File too large or invalid form")
		return
	}

	label := strings.TrimSpace(r.FormValue("source"))
	schema, ok := d.Config.Rules.Source(label)
	if !ok {
		slog.Warn("upload for unknown source", "source", label)
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown source %q", label))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("failed to get file from form", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to get file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read uploaded file", "filename", header.Filename, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	slog.Info("received file upload", "filename", header.Filename, "source", schema.Label, "size_bytes", len(content))

	timestamp := time.Now().UTC().Format("20060102-150405")
	blobName := fmt.Sprintf("uploads/%s/%s-%s", slug(schema.Label), timestamp, filepath.Base(header.Filename))

	if err := d.Blob.UploadSource(r.Context(), blobName, content, schema.Label); err != nil {
		slog.Error("failed to upload blob", "blob_name", blobName, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to upload blob: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"source":   schema.Label,
		"blobName": blobName,
	})
}

// slug turns a source label into a blob path segment.
func slug(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, label)
}
