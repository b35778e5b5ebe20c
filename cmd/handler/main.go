package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/handler"
	"github.com/rocjay1/spend-audit/internal/rules"
	"github.com/rocjay1/spend-audit/internal/services"
	"github.com/rocjay1/spend-audit/internal/store"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// loadConfig builds the engine configuration from RULES_FILE, AUDIT_AFTER and AUDIT_BEFORE.
func loadConfig() (engine.Config, error) {
	var (
		rs  *rules.RuleSet
		err error
	)
	if path := os.Getenv("RULES_FILE"); path != "" {
		rs, err = rules.LoadFile(path)
	} else {
		rs, err = rules.Default()
	}
	if err != nil {
		return engine.Config{}, err
	}

	window, err := engine.ParseWindow(os.Getenv("AUDIT_AFTER"), os.Getenv("AUDIT_BEFORE"))
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{Rules: rs, Window: window}, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded rule set", "rules_version", cfg.Rules.Version, "sources", len(cfg.Rules.Sources), "categories", len(cfg.Rules.Categories))

	// Initialize Services
	dbService, err := services.NewDatabaseService()
	if err != nil {
		slog.Error("Failed to init DatabaseService", "error", err)
		os.Exit(1)
	}

	blobService, err := services.NewBlobService()
	if err != nil {
		slog.Error("Failed to init BlobService", "error", err)
		os.Exit(1)
	}

	queueService, err := services.NewQueueService()
	if err != nil {
		slog.Error("Failed to init QueueService", "error", err)
		os.Exit(1)
	}

	deps := &handler.Dependencies{
		Database: dbService,
		Blob:     blobService,
		Queue:    queueService,
		Config:   cfg,
	}

	emailService, err := services.NewEmailService(nil)
	if err != nil {
		slog.Warn("Failed to init EmailService (continuing anyway)", "error", err)
	} else {
		deps.Email = emailService
	}

	if dsn := os.Getenv("EXPORT_STORE"); dsn != "" {
		export, err := store.Open(dsn)
		if err != nil {
			slog.Error("Failed to open export store", "error", err)
			os.Exit(1)
		}
		deps.Export = export
	}

	// Router
	mux := http.NewServeMux()

	// API Routes
	mux.HandleFunc("POST /api/upload", deps.HandleUpload)
	mux.HandleFunc("POST /api/audit", deps.HandleAudit)
	mux.HandleFunc("GET /api/runs", deps.HandleRuns)
	mux.HandleFunc("POST /api/reclassify", deps.HandleReclassify)

	// Adapter for HTTP Trigger (since enableForwardingHttpRequest is false)
	mux.HandleFunc("/HttpTrigger", deps.HandleHttpTrigger(mux))

	// Use simpler path matching for ProcessQueue to avoid method mismatch issues
	mux.HandleFunc("/ProcessQueue", deps.ProcessQueue)

	mux.HandleFunc("/NightlyTrigger", deps.HandleNightlyTrigger)

	// Catch-all handler for unmatched requests to debug what the Host is sending
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		headers := make(map[string]string)
		for k, v := range r.Header {
			headers[k] = strings.Join(v, ", ")
		}
		slog.Warn("unmatched request",
			"method", r.Method,
			"path", r.URL.Path,
			"headers", headers,
			"content_length", r.ContentLength,
		)
		http.NotFound(w, r)
	})

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "rulesVersion": cfg.Rules.Version})
	})

	// Get port from environment or default to 8080
	port := os.Getenv("FUNCTIONS_CUSTOMHANDLER_PORT")
	if port == "" {
		port = "8080"
	}

	// Wrap mux with logging middleware
	loggedMux := loggingMiddleware(mux)

	slog.Info("Starting server", "port", port)
	if err := http.ListenAndServe(":"+port, loggedMux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// maxBodyPreview bounds how much of a request body is logged. Uploads carry bank exports.
const maxBodyPreview = 256

func bodyPreview(body []byte) string {
	if len(body) <= maxBodyPreview {
		return string(body)
	}
	return string(body[:maxBodyPreview]) + "..."
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var bodyBytes []byte
		if r.Body != nil {
			bodyBytes, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		slog.Debug("incoming request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"content_type", r.Header.Get("Content-Type"),
			"content_length", r.ContentLength,
			"body_preview", bodyPreview(bodyBytes),
		)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		slog.Info("request completed", "method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}
