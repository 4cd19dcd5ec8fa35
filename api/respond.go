package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/leadscout/internal/apperr"
	"github.com/garnizeh/leadscout/internal/signup"
)

const maxBodyBytes = 1 << 20

var errTooManyRequests = errors.New("too many requests")

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

type detailBody struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, detailBody{Detail: msg}, status)
}

// statusOf maps an error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, signup.ErrInvalidOTP):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrBadRequest), errors.Is(err, apperr.ErrExpired):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, errTooManyRequests):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"detail": ...}. Server errors never leak their
// cause to the client; it goes to the log instead.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestID(r.Context())),
			slog.Any("err", err),
		)
		if msg == "" {
			msg = "Internal Server Error"
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, detailBody{Detail: msg, Fields: apperr.FieldsOf(err)}, status)
}

var errInvalidJSON = apperr.New(apperr.ErrBadRequest, "Invalid JSON body.")

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidJSON
	}
	return nil
}

// pathID parses a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.ErrBadRequest, "Invalid %s.", name)
	}
	return id, nil
}

// mustUser returns the caller id; routes using it sit behind AuthMiddleware.
func mustUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := UserID(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
	}
	return id, ok
}
