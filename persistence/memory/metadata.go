package memory

import (
	"fmt"
	"sync"

	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
)

var _ metadata.MetadataStorage = new(InMemoryMetadataStorage)

type InMemoryMetadataStorage struct {
	mu            sync.Mutex
	definitions   map[string]model.ProcessDefinition
	subscriptions map[string][]model.Subscription
}

func NewInMemoryMetadataStorage() *InMemoryMetadataStorage {
	return &InMemoryMetadataStorage{
		definitions:   make(map[string]model.ProcessDefinition),
		subscriptions: make(map[string][]model.Subscription),
	}
}

func definitionKey(processId string, versionId string) string {
	return fmt.Sprintf("%s:%s", processId, versionId)
}

func (s *InMemoryMetadataStorage) SaveProcessDefinition(def model.ProcessDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[definitionKey(def.ProcessId, def.VersionId)] = def
	return nil
}

func (s *InMemoryMetadataStorage) GetProcessDefinition(processId string, versionId string) (*model.ProcessDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[definitionKey(processId, versionId)]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "process definition", Key: definitionKey(processId, versionId)}
	}
	return &def, nil
}

func (s *InMemoryMetadataStorage) DeleteProcessDefinition(processId string, versionId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.definitions, definitionKey(processId, versionId))
	return nil
}

func (s *InMemoryMetadataStorage) RegisterSubscription(eventName string, sub model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[eventName] = append(s.subscriptions[eventName], sub)
	return nil
}

func (s *InMemoryMetadataStorage) RemoveSubscriptions(processId string, versionId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for eventName, subs := range s.subscriptions {
		rest := subs[:0]
		for _, sub := range subs {
			if sub.ProcessId != processId || sub.VersionId != versionId {
				rest = append(rest, sub)
			}
		}
		s.subscriptions[eventName] = rest
	}
	return nil
}

func (s *InMemoryMetadataStorage) GetSubscriptions(eventName string) ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]model.Subscription, 0, len(s.subscriptions[eventName]))
	subs = append(subs, s.subscriptions[eventName]...)
	return subs, nil
}
