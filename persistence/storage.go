package persistence

import (
	"fmt"
	"time"

	"github.com/procflow/procflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// ConflictError is returned by LogToken when a token in the consume set
// is no longer active, meaning a concurrent transition won the race.
type ConflictError struct {
	InstanceId string
	TokenId    string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("token %s of instance %s already consumed", e.TokenId, e.InstanceId)
}

type NotFoundError struct {
	Kind string
	Key  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// Storage persists the execution state of process instances: lifecycle,
// context, the active token log and the schedule of future tokens.
type Storage interface {
	CreateInstance(processId string, versionId string, instanceId string) error
	GetInstance(instanceId string) (*model.Instance, error)
	UpdateInstanceState(instanceId string, state model.InstanceState) error

	GetActiveTokens(instanceId string) ([]model.Token, error)
	// LogToken atomically consumes one token set and emits another for a
	// single instance. Every token in consume must still be active;
	// otherwise nothing is written and a ConflictError is returned.
	LogToken(instanceId string, consume []model.Token, emit []model.Token) error

	GetContextValue(instanceId string, key string) (any, error)
	SetContextValue(instanceId string, key string, value any) error
	GetContextValues(instanceId string, keys []string) (map[string]any, error)

	ScheduleToken(fireAt time.Time, timerSpec string, token model.Token) error
	// ReadScheduledTokens drains and returns every scheduled token whose
	// fire time is at or before the given time.
	ReadScheduledTokens(until time.Time) ([]model.Token, error)
}

// WorkQueue hands externally-executed activities to agent workers.
type WorkQueue interface {
	Enqueue(item model.WorkItem) error
	Poll(agent string, batchSize int) ([]model.WorkItem, error)
	Ack(agent string, ids []string) error
}
