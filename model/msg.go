package model

// EventRequest is an external stimulus handed to RaiseEvent.
type EventRequest struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WorkItem is one unit of externally-executed work queued for an agent.
// Params carries the resolved input of the suspended activity.
type WorkItem struct {
	Id     string         `json:"id"`
	Agent  string         `json:"agent"`
	Token  Token          `json:"token"`
	Params map[string]any `json:"params,omitempty"`
}

// CompletionRequest resumes a suspended activity. Exactly one of Result
// or Error is meaningful; a non-empty Error drives the activity to
// ACTIVITY_ERROR.
type CompletionRequest struct {
	Token  Token          `json:"token"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// PollRequest asks for pending work items of one agent queue.
type PollRequest struct {
	Agent     string `json:"agent"`
	BatchSize int    `json:"batchSize"`
}
