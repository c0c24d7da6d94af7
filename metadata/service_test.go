package metadata

import (
	"fmt"
	"testing"

	"github.com/procflow/procflow/model"
	"github.com/stretchr/testify/require"
)

type stubStorage struct {
	defs map[string]model.ProcessDefinition
	subs map[string][]model.Subscription
	gets int
}

func newStubStorage() *stubStorage {
	return &stubStorage{
		defs: make(map[string]model.ProcessDefinition),
		subs: make(map[string][]model.Subscription),
	}
}

func (s *stubStorage) SaveProcessDefinition(def model.ProcessDefinition) error {
	s.defs[def.ProcessId+":"+def.VersionId] = def
	return nil
}

func (s *stubStorage) GetProcessDefinition(processId string, versionId string) (*model.ProcessDefinition, error) {
	s.gets++
	def, ok := s.defs[processId+":"+versionId]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return &def, nil
}

func (s *stubStorage) DeleteProcessDefinition(processId string, versionId string) error {
	delete(s.defs, processId+":"+versionId)
	return nil
}

func (s *stubStorage) RegisterSubscription(eventName string, sub model.Subscription) error {
	s.subs[eventName] = append(s.subs[eventName], sub)
	return nil
}

func (s *stubStorage) RemoveSubscriptions(processId string, versionId string) error {
	for eventName, subs := range s.subs {
		rest := subs[:0]
		for _, sub := range subs {
			if sub.ProcessId != processId || sub.VersionId != versionId {
				rest = append(rest, sub)
			}
		}
		s.subs[eventName] = rest
	}
	return nil
}

func (s *stubStorage) GetSubscriptions(eventName string) ([]model.Subscription, error) {
	return s.subs[eventName], nil
}

func TestMetadataService(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, service MetadataService, storage *stubStorage,
	){
		"deploy registers start event subscriptions": testDeploy,
		"deploy rejects invalid definitions":         testDeployInvalid,
		"get process caches the parsed graph":        testProcessCache,
		"undeploy removes version artifacts":         testUndeploy,
	} {
		t.Run(scenario, func(t *testing.T) {
			storage := newStubStorage()
			fn(t, NewMetadataService(storage), storage)
		})
	}
}

func testDeploy(t *testing.T, service MetadataService, storage *stubStorage) {
	require.NoError(t, service.Deploy(validDefinition()))

	subs, err := service.GetSubscriptions("order.created")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, model.Subscription{ProcessId: "p1", VersionId: "v1", ElementId: "start"}, subs[0])
}

func testDeployInvalid(t *testing.T, service MetadataService, storage *stubStorage) {
	def := validDefinition()
	def.Tasks[0].Outgoing = []string{"nowhere"}
	require.Error(t, service.Deploy(def))
	require.Empty(t, storage.defs)

	require.Error(t, service.Deploy(model.ProcessDefinition{ProcessId: "p1"}))
}

func testProcessCache(t *testing.T, service MetadataService, storage *stubStorage) {
	require.NoError(t, service.Deploy(validDefinition()))

	_, err := service.GetProcess("p1", "v1")
	require.NoError(t, err)
	_, err = service.GetProcess("p1", "v1")
	require.NoError(t, err)
	require.Equal(t, 1, storage.gets)
}

func testUndeploy(t *testing.T, service MetadataService, storage *stubStorage) {
	require.NoError(t, service.Deploy(validDefinition()))
	require.NoError(t, service.Undeploy("p1", "v1"))

	subs, err := service.GetSubscriptions("order.created")
	require.NoError(t, err)
	require.Empty(t, subs)

	_, err = service.GetProcess("p1", "v1")
	require.Error(t, err)
}
