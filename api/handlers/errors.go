package handlers

import (
	"errors"
	"net/http"

	"bgRemover/worker/export"
	"bgRemover/worker/handles"
	"bgRemover/worker/session"
	"bgRemover/worker/store"
)

// MapHTTPStatus maps pipeline errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, export.ErrNoResult):
		return http.StatusConflict
	case errors.Is(err, export.ErrEmptyArchive):
		return http.StatusConflict
	case errors.Is(err, handles.ErrRevoked):
		return http.StatusGone
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, export.ErrEmptyArchive):
		return "archive_empty"
	case errors.Is(err, export.ErrArchiveFailed):
		return "archive_failed"
	case errors.Is(err, export.ErrNoResult):
		return "no_result"
	case errors.Is(err, handles.ErrRevoked):
		return "handle_revoked"
	default:
		return ""
	}
}
