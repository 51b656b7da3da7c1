package session

import (
	"context"

	"github.com/futig/interview-orchestrator/internal/entity"
)

type SessionUsecase interface {
	StartSession(ctx context.Context, req *entity.StartSessionRequest) (*entity.SessionDTO, error)
	GetSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	BeginQuestion(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	SubmitAnswer(ctx context.Context, sessionID string, req *entity.SubmitRequest) (*entity.SessionDTO, error)
	ExitSession(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	SetAudioEnabled(ctx context.Context, sessionID string, enabled bool) (*entity.SessionDTO, error)
	SetVideoEnabled(ctx context.Context, sessionID string, enabled bool) (*entity.SessionDTO, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
