package response

import (
	"encoding/json"
	"net/http"

	"github.com/futig/interview-orchestrator/internal/entity"
)

// JSON writes data with the given status. Encoding errors are dropped since
// the status line is already sent.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error without session context, e.g. for a malformed body
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, entity.ErrorResponse{Error: http.StatusText(status), Message: message})
}

// SessionError writes an error with its machine readable code and, when
// known, the session state the client should show next to it.
func SessionError(w http.ResponseWriter, status int, message string, err error, session *entity.SessionDTO) {
	body := entity.ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      entity.ErrorCode(err),
		Retryable: entity.IsRetryable(err),
		Session:   session,
	}
	if session != nil {
		body.SessionID = session.ID
	}
	JSON(w, status, body)
}

// Success writes a 200 with the session view
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 for a newly started session
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
