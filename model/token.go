package model

type ElementKind string

const ELEMENT_EVENT ElementKind = "EVENT"
const ELEMENT_ACTIVITY ElementKind = "ACTIVITY"
const ELEMENT_SEQUENCE ElementKind = "SEQUENCE"
const ELEMENT_GATEWAY ElementKind = "GATEWAY"

type TokenStatus string

const EVENT_ACTIVATED TokenStatus = "EVENT_ACTIVATED"
const EVENT_READY TokenStatus = "EVENT_READY"
const EVENT_OCCURED TokenStatus = "EVENT_OCCURED"

const ACTIVITY_ACTIVATED TokenStatus = "ACTIVITY_ACTIVATED"
const ACTIVITY_READY TokenStatus = "ACTIVITY_READY"
const ACTIVITY_WAITING TokenStatus = "ACTIVITY_WAITING"
const ACTIVITY_COMPLETED TokenStatus = "ACTIVITY_COMPLETED"
const ACTIVITY_ERROR TokenStatus = "ACTIVITY_ERROR"

const SEQUENCE_ACTIVATED TokenStatus = "SEQUENCE_ACTIVATED"
const SEQUENCE_COMPLETED TokenStatus = "SEQUENCE_COMPLETED"

const GATEWAY_ACTIVATED TokenStatus = "GATEWAY_ACTIVATED"
const GATEWAY_COMPLETED TokenStatus = "GATEWAY_COMPLETED"

const PROCESS_ERROR TokenStatus = "PROCESS_ERROR"

// ERROR_CONTEXT_KEY is the reserved instance context key where external
// call failures are recorded.
const ERROR_CONTEXT_KEY = "__error"

// TokenAttributes carries transient bookkeeping attached to a token.
// LastToken is the token that produced this one; parallel joins match
// arriving branches by LastToken.ElementId. Time is set on timer tokens
// to the scheduled fire time in unix milliseconds.
type TokenAttributes struct {
	LastToken *Token `json:"lastToken,omitempty"`
	Time      int64  `json:"time,omitempty"`
	// TimerSpec is the remaining recurrence of the timer that scheduled
	// this token, used to re-arm the next occurrence.
	TimerSpec string `json:"timerSpec,omitempty"`
}

// Token is the unit of control flow: one marker positioned at one graph
// element with a lifecycle status. Tokens are immutable once emitted; a
// transition consumes a token and emits zero or more new ones.
type Token struct {
	Id         string          `json:"id"`
	ProcessId  string          `json:"processId"`
	VersionId  string          `json:"versionId"`
	InstanceId string          `json:"instanceId"`
	ElementId  string          `json:"elementId"`
	Type       ElementKind     `json:"type"`
	Status     TokenStatus     `json:"status"`
	User       string          `json:"user,omitempty"`
	OwnerId    string          `json:"ownerId,omitempty"`
	Attributes TokenAttributes `json:"attributes"`
}

// OriginElementId returns the element id of the token that produced this
// one, or the empty string for tokens without a predecessor.
func (t *Token) OriginElementId() string {
	if t.Attributes.LastToken == nil {
		return ""
	}
	return t.Attributes.LastToken.ElementId
}

// InitialStatus returns the status a freshly emitted token starts in for
// the given element kind.
func InitialStatus(kind ElementKind) TokenStatus {
	switch kind {
	case ELEMENT_EVENT:
		return EVENT_ACTIVATED
	case ELEMENT_ACTIVITY:
		return ACTIVITY_ACTIVATED
	case ELEMENT_SEQUENCE:
		return SEQUENCE_ACTIVATED
	case ELEMENT_GATEWAY:
		return GATEWAY_ACTIVATED
	}
	return ""
}
