package model

type EventType string

const EVENT_TYPE_START EventType = "start"
const EVENT_TYPE_INTERMEDIATE EventType = "intermediate"
const EVENT_TYPE_END EventType = "end"

type TaskType string

const TASK_TYPE_SERVICE TaskType = "service"
const TASK_TYPE_RULE TaskType = "rule"
const TASK_TYPE_USER TaskType = "user"
const TASK_TYPE_SCRIPT TaskType = "script"

type GatewayKind string

const GATEWAY_EXCLUSIVE GatewayKind = "exclusive"
const GATEWAY_PARALLEL GatewayKind = "parallel"
const GATEWAY_INCLUSIVE GatewayKind = "inclusive"
const GATEWAY_EVENT_BASED GatewayKind = "eventBased"
const GATEWAY_COMPLEX GatewayKind = "complex"

// ElementAttributes is the type-specific attribute bag of a node.
type ElementAttributes struct {
	// Event is the external event name a catching element listens for or
	// a throwing element raises.
	Event string `json:"event,omitempty"`
	// Throwing marks an event element that raises Event instead of
	// waiting for it.
	Throwing bool `json:"throwing,omitempty"`
	// OutputKey is the instance context key where the element's result
	// (event payload, task output) is written.
	OutputKey string `json:"outputKey,omitempty"`
	// InputKey is the context key where an activity's prepared input is
	// written before the activity starts.
	InputKey string `json:"inputKey,omitempty"`
	// InputKeys are the context keys read when evaluating expressions
	// and transforms for this element.
	InputKeys []string `json:"inputKeys,omitempty"`
	// Transform is a template resolved against the declared inputs to
	// build an event payload or activity input.
	Transform map[string]any `json:"transform,omitempty"`
	// Expression is the rule/decision expression of a rule task.
	Expression string `json:"expression,omitempty"`
	// Timer is an ISO-8601 recurrence specification for timer events.
	Timer string `json:"timer,omitempty"`
	// Action names a registered handler called synchronously for a
	// service task.
	Action string `json:"action,omitempty"`
	// Agent names the external work queue a service task is handed to;
	// the task then suspends until completed externally.
	Agent string `json:"agent,omitempty"`
	// Default is the id of the default outgoing sequence.
	Default string `json:"default,omitempty"`
}

type Event struct {
	Id         string            `json:"id"`
	Type       EventType         `json:"type"`
	Incoming   []string          `json:"incoming,omitempty"`
	Outgoing   []string          `json:"outgoing,omitempty"`
	Attributes ElementAttributes `json:"attributes"`
}

type Task struct {
	Id         string            `json:"id"`
	Type       TaskType          `json:"type"`
	Incoming   []string          `json:"incoming,omitempty"`
	Outgoing   []string          `json:"outgoing,omitempty"`
	Attributes ElementAttributes `json:"attributes"`
}

type Sequence struct {
	Id         string            `json:"id"`
	FromId     string            `json:"fromId"`
	ToId       string            `json:"toId"`
	Attributes ElementAttributes `json:"attributes"`
}

// Condition returns the branch condition expression of the sequence, if
// any. An unconditional sequence returns the empty string.
func (s *Sequence) Condition() string {
	return s.Attributes.Expression
}

type Gateway struct {
	Id         string            `json:"id"`
	Kind       GatewayKind       `json:"kind"`
	Incoming   []string          `json:"incoming,omitempty"`
	Outgoing   []string          `json:"outgoing,omitempty"`
	Attributes ElementAttributes `json:"attributes"`
}

// ProcessDefinition is the immutable parsed graph of one process version.
type ProcessDefinition struct {
	ProcessId string     `json:"processId"`
	VersionId string     `json:"versionId"`
	Name      string     `json:"name"`
	Events    []Event    `json:"events,omitempty"`
	Tasks     []Task     `json:"tasks,omitempty"`
	Sequences []Sequence `json:"sequences,omitempty"`
	Gateways  []Gateway  `json:"gateways,omitempty"`
}
