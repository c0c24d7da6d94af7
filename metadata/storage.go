package metadata

import "github.com/procflow/procflow/model"

// MetadataStorage owns deployed process definitions and the event
// subscription index derived from them.
type MetadataStorage interface {
	SaveProcessDefinition(def model.ProcessDefinition) error
	GetProcessDefinition(processId string, versionId string) (*model.ProcessDefinition, error)
	DeleteProcessDefinition(processId string, versionId string) error

	RegisterSubscription(eventName string, sub model.Subscription) error
	RemoveSubscriptions(processId string, versionId string) error
	GetSubscriptions(eventName string) ([]model.Subscription, error)
}
