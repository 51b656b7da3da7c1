package entity

// SubmissionOutcome tags a SubmissionResult
type SubmissionOutcome int

const (
	OutcomeCompleted SubmissionOutcome = iota + 1
	OutcomeNextQuestion
)

func (o SubmissionOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeNextQuestion:
		return "next_question"
	default:
		return "unknown"
	}
}

// SubmissionResult is either Completed or NextQuestion(Question).
// The zero value is invalid; use CompletedResult or NextQuestionResult.
type SubmissionResult struct {
	outcome SubmissionOutcome
	next    Question
	message string
}

func CompletedResult(message string) SubmissionResult {
	return SubmissionResult{outcome: OutcomeCompleted, message: message}
}

func NextQuestionResult(q Question) SubmissionResult {
	return SubmissionResult{outcome: OutcomeNextQuestion, next: q}
}

func (r SubmissionResult) Outcome() SubmissionOutcome {
	return r.outcome
}

func (r SubmissionResult) IsCompleted() bool {
	return r.outcome == OutcomeCompleted
}

// NextQuestion returns the question to ask next; ok is false for a Completed result.
func (r SubmissionResult) NextQuestion() (Question, bool) {
	if r.outcome != OutcomeNextQuestion {
		return Question{}, false
	}
	return r.next, true
}

// Message is the closing message sent along with a Completed result.
func (r SubmissionResult) Message() string {
	return r.message
}
