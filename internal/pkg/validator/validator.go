package validator

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/futig/interview-orchestrator/internal/entity"
)

const maxIDLength = 128

// Validator checks requests coming from the control API
type Validator struct {
	requireCallback bool
}

func New(requireCallback bool) *Validator {
	return &Validator{requireCallback: requireCallback}
}

// ValidateStartSession validates StartSessionRequest
func (v *Validator) ValidateStartSession(req *entity.StartSessionRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request body", entity.ErrMissingField)
	}

	req.InterviewID = strings.TrimSpace(req.InterviewID)
	if req.InterviewID == "" {
		return fmt.Errorf("%w: interview_id", entity.ErrMissingField)
	}
	if len(req.InterviewID) > maxIDLength || strings.ContainsAny(req.InterviewID, "/?# ") {
		return fmt.Errorf("%w: interview_id", entity.ErrInvalidFormat)
	}

	if req.CallbackURL == "" {
		if v.requireCallback {
			return fmt.Errorf("%w: callback_url", entity.ErrMissingField)
		}
		return nil
	}

	return ValidateCallbackURL(req.CallbackURL)
}

// ValidateCallbackURL accepts absolute http and https URLs only
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: callback_url: %v", entity.ErrInvalidFormat, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: callback_url scheme must be http or https", entity.ErrInvalidFormat)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: callback_url has no host", entity.ErrInvalidFormat)
	}
	return nil
}
