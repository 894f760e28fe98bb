package models

// OutcomeStatus classifies the result of a single node handler run.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomePaused    OutcomeStatus = "paused"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is what a node handler produces. Output is recorded on the step;
// ContextPatch is merged into the execution context before downstream edges
// are evaluated. A paused outcome carries the resume token (the step
// execution id) that continue-workflow must present.
type Outcome struct {
	Status       OutcomeStatus  `json:"status"`
	Output       map[string]any `json:"output,omitempty"`
	ContextPatch map[string]any `json:"context_patch,omitempty"`
	ResumeToken  string         `json:"resume_token,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Progress     *int           `json:"progress,omitempty"`
}

// Completed builds a successful outcome.
func Completed(output, patch map[string]any) *Outcome {
	return &Outcome{Status: OutcomeCompleted, Output: output, ContextPatch: patch}
}

// Paused builds a suspended outcome bound to the given resume token.
func Paused(token string, output map[string]any) *Outcome {
	return &Outcome{Status: OutcomePaused, ResumeToken: token, Output: output}
}

// Failed builds a failed outcome with the given message.
func Failed(message string) *Outcome {
	return &Outcome{Status: OutcomeFailed, ErrorMessage: message}
}
