// Package response writes the JSON envelopes every API endpoint returns:
// {success, data} on success and {success:false, error} on failure.
package response

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"proposalmate/internal/apperr"
	"proposalmate/internal/lib/sl"
)

type Envelope struct {
	Success bool `json:"success"`
	Count   *int `json:"count,omitempty"`
	Data    any  `json:"data,omitempty"`
}

type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// JSON writes v as-is with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func OK(w http.ResponseWriter, r *http.Request, status int, data any) {
	JSON(w, r, status, Envelope{Success: true, Data: data})
}

// List writes a collection together with its length.
func List[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	JSON(w, r, http.StatusOK, Envelope{Success: true, Count: &n, Data: items})
}

// Empty writes {success:true, data:{}}.
func Empty(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, Envelope{Success: true, Data: struct{}{}})
}

// Error normalises err into the error envelope. Server-side failures are
// logged; client errors are not.
func Error(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
	}
	JSON(w, r, status, ErrorEnvelope{Success: false, Error: apperr.Message(err)})
}
