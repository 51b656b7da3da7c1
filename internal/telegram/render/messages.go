package render

import (
	"fmt"
	"strings"

	"github.com/futig/interview-orchestrator/internal/entity"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	MsgSessionCompleted = `✅ <b>Interview completed</b>

Session: <code>%s</code>
Interview: <code>%s</code>
%s`

	MsgSessionFailed = `❌ <b>Session failed</b>

Session: <code>%s</code>
Interview: <code>%s</code>
Code: <code>%s</code>
%s`

	MsgRetryableFailure = `🔁 <b>Session failed, candidate may start again</b>

Session: <code>%s</code>
Interview: <code>%s</code>
Code: <code>%s</code>
%s`

	MsgRecoverableError = `⚠️ <b>Candidate must retry the question</b>

Session: <code>%s</code>
Interview: <code>%s</code>
Question: %s
Code: <code>%s</code>
%s`

	MsgStateChanged = `ℹ️ Session <code>%s</code> is now <b>%s</b>
%s`
)

// Notification formats n as an HTML message for the operators chat.
func Notification(n entity.Notification) string {
	message := escape(n.Message)
	session, interview := escape(n.SessionID), escape(n.InterviewID)

	switch {
	case n.Event == entity.CallbackEventTypeCompleted:
		return fmt.Sprintf(MsgSessionCompleted, session, interview, message)
	case n.Event == entity.CallbackEventTypeError && n.Recoverable:
		return fmt.Sprintf(MsgRecoverableError, session, interview, questionNumber(n), escape(n.Code), message)
	case n.Event == entity.CallbackEventTypeError && n.Retryable:
		return fmt.Sprintf(MsgRetryableFailure, session, interview, escape(n.Code), message)
	case n.Event == entity.CallbackEventTypeError:
		return fmt.Sprintf(MsgSessionFailed, session, interview, escape(n.Code), message)
	default:
		return fmt.Sprintf(MsgStateChanged, session, strings.ToUpper(string(n.Status)), message)
	}
}

func questionNumber(n entity.Notification) string {
	if n.Session == nil || n.Session.Question == nil {
		return "-"
	}
	return fmt.Sprintf("%d of %d", n.Session.Question.Number, n.Session.TotalQuestions)
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
