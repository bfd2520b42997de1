package inbound

import (
	"encoding/json"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const maxWebhookBodyBytes = 1 << 20

// NewHTTPHandler mounts the webhook endpoint. The response body is
// informational only; the processor cares about the status code.
func NewHTTPHandler(dispatcher *Dispatcher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /stripe/{marketID}/webhook", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "read request body"})
			return
		}

		headers := make(map[string]string, len(r.Header))
		for key := range r.Header {
			headers[key] = r.Header.Get(key)
		}

		result, err := dispatcher.Dispatch(r.Context(), Request{
			MarketID: r.PathValue("marketID"),
			Headers:  headers,
			Body:     body,
		})
		if err != nil {
			status := http.StatusInternalServerError
			payload := map[string]any{"error": "webhook rejected"}
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				if richErr.Code != 0 {
					status = richErr.Code
				}
				payload["code"] = richErr.TextCode
			}
			if result.StatusCode != 0 {
				status = result.StatusCode
			}
			writeJSON(w, status, payload)
			return
		}
		writeJSON(w, result.StatusCode, result.Metadata)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		payload = map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(payload)
}
