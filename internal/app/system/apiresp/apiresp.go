// internal/app/system/apiresp/apiresp.go
// Package apiresp writes the JSON envelopes the API answers with:
// {"data": ...} on success and {"error": "..."} on failure.
package apiresp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/app/system/inputval"
	"github.com/dalemusser/campusdesk/internal/app/system/limits"
	"go.uber.org/zap"
)

type envelope struct {
	Data   any                   `json:"data,omitempty"`
	Error  string                `json:"error,omitempty"`
	Fields []inputval.FieldError `json:"fields,omitempty"`
}

// JSON writes v as-is with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data writes {"data": v}.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, struct {
		Data any `json:"data"`
	}{v})
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, envelope{Error: msg})
}

// Status maps an error to the HTTP status the API reports for it.
//
//	validation            400
//	context, read-only    409
//	context, other        400
//	auth, forbidden       403
//	auth, other           401
//	transport             502
//	anything else         500
func Status(err error) int {
	var verr *inputval.Error
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	var be *backend.Error
	if !errors.As(err, &be) {
		return http.StatusInternalServerError
	}
	switch be.Kind {
	case backend.KindContext:
		if strings.Contains(be.Message, "read-only") {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case backend.KindAuth:
		if be.Status == http.StatusForbidden {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case backend.KindTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Fail writes err with the status from Status. Server-side failures are
// logged and reported without detail.
func Fail(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	status := Status(err)
	if status >= 500 {
		log.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Debug(op+" refused", zap.Int("status", status), zap.Error(err))
	}

	var verr *inputval.Error
	if errors.As(err, &verr) {
		JSON(w, status, envelope{Error: verr.Result.All(), Fields: verr.Result.Errors})
		return
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	Error(w, status, msg)
}

// Decode reads a JSON body of at most limits.MaxJSONBody into v.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, limits.MaxJSONBody)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return backend.ContextError("request body is empty")
		}
		return backend.ContextError("invalid JSON body: %v", err)
	}
	if dec.More() {
		return backend.ContextError("request body has trailing data")
	}
	return nil
}
