package model

type InstanceState string

const INSTANCE_RUNNING InstanceState = "RUNNING"
const INSTANCE_COMPLETED InstanceState = "COMPLETED"
const INSTANCE_FAILED InstanceState = "FAILED"

// Instance identifies one running execution of a process definition. Its
// state and context live in storage; completion is derived from the
// active token set becoming empty.
type Instance struct {
	ProcessId  string        `json:"processId"`
	VersionId  string        `json:"versionId"`
	InstanceId string        `json:"instanceId"`
	State      InstanceState `json:"state"`
}

// Subscription maps an external event name to one catching element of an
// active process version.
type Subscription struct {
	ProcessId string `json:"processId"`
	VersionId string `json:"versionId"`
	ElementId string `json:"elementId"`
}

// InstanceExecution is the inspection view returned by the REST surface.
type InstanceExecution struct {
	Instance     Instance       `json:"instance"`
	ActiveTokens []Token        `json:"activeTokens"`
	Context      map[string]any `json:"context,omitempty"`
}
