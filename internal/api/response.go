package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/observer/chatwave/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrAttachmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotMember),
		errors.Is(err, domain.ErrNotGroupAdmin),
		errors.Is(err, domain.ErrNotSender):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrCannotRemoveMe),
		errors.Is(err, domain.ErrGroupFull),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrAttachmentNotReady):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenRevoked):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// writeDomainError writes err with its mapped status. Internal errors get a
// generic message so storage details never reach the client.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

// pageParams reads ?limit= and ?before= (RFC 3339) from the query
func pageParams(r *http.Request) (limit int, before *time.Time, err error) {
	limit = defaultPageSize
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, perr := strconv.Atoi(l); perr == nil && parsed > 0 && parsed <= maxPageSize {
			limit = parsed
		}
	}

	if b := r.URL.Query().Get("before"); b != "" {
		t, perr := time.Parse(time.RFC3339Nano, b)
		if perr != nil {
			return 0, nil, perr
		}
		before = &t
	}
	return limit, before, nil
}

// validateBody checks a message body against the length limits.
// Empty text is allowed only when the message carries media.
func validateBody(text string, hasMedia bool) error {
	if text == "" && !hasMedia {
		return domain.ErrEmptyMessage
	}
	if len([]rune(text)) > domain.MaxMessageLength {
		return domain.ErrMessageTooLong
	}
	return nil
}
