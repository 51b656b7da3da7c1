package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/pkg/logger"
	"github.com/futig/interview-orchestrator/internal/pkg/response"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type Handler struct {
	usecase SessionUsecase
}

func NewHandler(usecase SessionUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// StartSession handles POST /interview-session - create a session and enter the first question
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "StartSession")

	var req entity.StartSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctxzap.Info(ctx, "starting interview session",
		zap.String("interview_id", req.InterviewID),
		zap.Bool("has_callback", req.CallbackURL != ""),
	)

	session, err := h.usecase.StartSession(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err, session)
		return
	}

	ctxzap.Info(ctx, "session started", zap.String("session_id", session.ID))
	response.Created(w, session)
}

// GetSession handles GET /interview-session/{id} - current session view
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := h.sessionContext(r, "GetSession")

	ctxzap.Debug(ctx, "fetching session")

	session, err := h.usecase.GetSession(ctx, sessionID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err, nil)
		return
	}

	response.Success(w, session)
}

// BeginQuestion handles POST /interview-session/{id}/begin - start (or re-start) recording
func (h *Handler) BeginQuestion(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := h.sessionContext(r, "BeginQuestion")

	session, err := h.usecase.BeginQuestion(ctx, sessionID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err, h.snapshot(ctx, sessionID))
		return
	}

	ctxzap.Info(ctx, "question recording started")
	response.Success(w, session)
}

// SubmitAnswer handles POST /interview-session/{id}/submit - manual submit of the current answer
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := h.sessionContext(r, "SubmitAnswer")

	var req entity.SubmitRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	session, err := h.usecase.SubmitAnswer(ctx, sessionID, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err, h.snapshot(ctx, sessionID))
		return
	}

	ctxzap.Info(ctx, "answer submitted",
		zap.String("session_status", string(session.Status)),
		zap.Int("question_index", session.CurrentQuestionIndex),
	)
	response.Success(w, session)
}

// ExitSession handles POST /interview-session/{id}/exit - leave the interview
func (h *Handler) ExitSession(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := h.sessionContext(r, "ExitSession")

	session, err := h.usecase.ExitSession(ctx, sessionID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err, nil)
		return
	}

	ctxzap.Info(ctx, "session exited")
	response.Success(w, session)
}

// SetAudio handles PUT /interview-session/{id}/audio - mute or unmute the microphone
func (h *Handler) SetAudio(w http.ResponseWriter, r *http.Request) {
	h.setTrack(w, r, "SetAudio", h.usecase.SetAudioEnabled)
}

// SetVideo handles PUT /interview-session/{id}/video - turn the camera on or off
func (h *Handler) SetVideo(w http.ResponseWriter, r *http.Request) {
	h.setTrack(w, r, "SetVideo", h.usecase.SetVideoEnabled)
}

func (h *Handler) setTrack(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	set func(ctx context.Context, sessionID string, enabled bool) (*entity.SessionDTO, error),
) {
	ctx, sessionID := h.sessionContext(r, action)

	var req entity.TrackToggleRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	session, err := set(ctx, sessionID, req.Enabled)
	if err != nil {
		h.handleUsecaseError(ctx, w, err, nil)
		return
	}

	ctxzap.Info(ctx, "track toggled", zap.Bool("enabled", req.Enabled))
	response.Success(w, session)
}

// DeleteSession handles DELETE /interview-session/{id} - tear the session down and forget it
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, sessionID := h.sessionContext(r, "DeleteSession")

	if err := h.usecase.DeleteSession(ctx, sessionID); err != nil {
		h.handleUsecaseError(ctx, w, err, nil)
		return
	}

	ctxzap.Info(ctx, "session deleted")
	response.NoContent(w)
}

func (h *Handler) sessionContext(r *http.Request, action string) (context.Context, string) {
	sessionID := chi.URLParam(r, "id")
	return logger.WithAction(logger.WithSession(r.Context(), sessionID), action), sessionID
}

// snapshot is attached to recoverable errors so the client can render the current state
func (h *Handler) snapshot(ctx context.Context, sessionID string) *entity.SessionDTO {
	session, err := h.usecase.GetSession(ctx, sessionID)
	if err != nil {
		return nil
	}
	return session
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	ctxzap.Error(ctx, message, zap.Error(err))
	response.Error(w, status, message)
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error, session *entity.SessionDTO) {
	status, message := statusFor(err)

	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message, zap.Error(err))
	}

	response.SessionError(w, status, message, err, session)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, entity.ErrInterviewNotFound):
		return http.StatusNotFound, "interview not found"
	case errors.Is(err, entity.ErrInvalidParameter), errors.Is(err, entity.ErrInvalidFormat), errors.Is(err, entity.ErrMissingField):
		return http.StatusBadRequest, "invalid parameter"
	case errors.Is(err, entity.ErrSessionTerminal):
		return http.StatusConflict, "session is over"
	case errors.Is(err, entity.ErrInvalidSessionStatus):
		return http.StatusConflict, "invalid session state"
	case errors.Is(err, entity.ErrPermissionDenied):
		return http.StatusForbidden, "media permission denied"
	case errors.Is(err, entity.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable, "media device unavailable"
	case errors.Is(err, entity.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "recording too large, record the answer again"
	case errors.Is(err, entity.ErrRecordingStart), errors.Is(err, entity.ErrRecordingFailed):
		return http.StatusUnprocessableEntity, "recording failed, record the answer again"
	case errors.Is(err, entity.ErrSubmissionFailed):
		return http.StatusBadGateway, "answer was not accepted, record the answer again"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}
