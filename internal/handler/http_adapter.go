package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
)

// triggerRequest is the envelope the Functions host posts for an HTTP trigger.
type triggerRequest struct {
	Data struct {
		Req struct {
			URL             string              `json:"Url"`
			Method          string              `json:"Method"`
			Query           map[string]string   `json:"Query"`
			Headers         map[string][]string `json:"Headers"`
			Params          map[string]string   `json:"Params"`
			Body            string              `json:"Body"`
			IsBase64Encoded bool                `json:"isBase64Encoded"`
		} `json:"req"`
	} `json:"Data"`
	Metadata map[string]any `json:"Metadata"`
}

type triggerResult struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// triggerResponse is the envelope the Functions host expects back.
type triggerResponse struct {
	Outputs struct {
		Res triggerResult `json:"res"`
	} `json:"Outputs"`
	Logs        []string `json:"Logs,omitempty"`
	ReturnValue any      `json:"ReturnValue,omitempty"`
}

// HandleHttpTrigger unwraps a host envelope into a plain request, serves it with
// next and wraps the recorded response.
func (d *Dependencies) HandleHttpTrigger(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			slog.Error("failed to unmarshal HTTP trigger request", "error", err)
			http.Error(w, "Failed to unmarshal request", http.StatusBadRequest)
			return
		}

		in := env.Data.Req
		req, err := http.NewRequestWithContext(r.Context(), in.Method, in.URL, envelopeBody(in.Body, in.IsBase64Encoded))
		if err != nil {
			slog.Error("failed to create internal request", "error", err)
			http.Error(w, "Failed to create internal request", http.StatusInternalServerError)
			return
		}
		for k, vs := range in.Headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		slog.Info("processing wrapped HTTP request", "method", req.Method, "path", req.URL.Path)

		recorder := httptest.NewRecorder()
		next.ServeHTTP(recorder, req)

		res := recorder.Result()
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()

		var out triggerResponse
		out.Outputs.Res = triggerResult{
			StatusCode: res.StatusCode,
			Headers:    make(map[string]string, len(res.Header)),
			Body:       string(body),
		}
		for k := range res.Header {
			out.Outputs.Res.Headers[k] = res.Header.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			slog.Error("failed to encode HTTP trigger response", "error", err)
		}
	}
}

// envelopeBody returns the request body. Some hosts send base64 without setting
// the flag, so decoding is attempted either way.
func envelopeBody(body string, flagged bool) io.Reader {
	if body == "" {
		return http.NoBody
	}
	if decoded, err := base64.StdEncoding.DecodeString(body); err == nil {
		return bytes.NewReader(decoded)
	} else if flagged {
		slog.Warn("body flagged as base64 but failed to decode", "error", err)
	}
	return bytes.NewReader([]byte(body))
}
