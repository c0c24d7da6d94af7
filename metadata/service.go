package metadata

import (
	"fmt"

	c "github.com/patrickmn/go-cache"
	"github.com/procflow/procflow/model"
)

type MetadataService interface {
	Deploy(def model.ProcessDefinition) error
	Undeploy(processId string, versionId string) error
	GetProcess(processId string, versionId string) (*Process, error)
	GetSubscriptions(eventName string) ([]model.Subscription, error)
	GetMetadataStorage() MetadataStorage
}

type MetadataServiceImpl struct {
	storage MetadataStorage
	cache   *c.Cache
}

func NewMetadataService(storage MetadataStorage) MetadataService {
	return &MetadataServiceImpl{
		storage: storage,
		cache:   c.New(c.NoExpiration, 0),
	}
}

func processKey(processId string, versionId string) string {
	return fmt.Sprintf("%s:%s", processId, versionId)
}

// Deploy validates and stores a definition, then registers one
// subscription per catching start event of the version.
func (s *MetadataServiceImpl) Deploy(def model.ProcessDefinition) error {
	if def.ProcessId == "" || def.VersionId == "" {
		return fmt.Errorf("process definition requires processId and versionId")
	}
	process, err := NewProcess(def)
	if err != nil {
		return err
	}
	if err := s.storage.SaveProcessDefinition(def); err != nil {
		return err
	}
	for _, ev := range process.CatchingStartEvents() {
		sub := model.Subscription{
			ProcessId: def.ProcessId,
			VersionId: def.VersionId,
			ElementId: ev.Id,
		}
		if err := s.storage.RegisterSubscription(ev.Attributes.Event, sub); err != nil {
			return err
		}
	}
	s.cache.Delete(processKey(def.ProcessId, def.VersionId))
	return nil
}

func (s *MetadataServiceImpl) Undeploy(processId string, versionId string) error {
	if err := s.storage.RemoveSubscriptions(processId, versionId); err != nil {
		return err
	}
	if err := s.storage.DeleteProcessDefinition(processId, versionId); err != nil {
		return err
	}
	s.cache.Delete(processKey(processId, versionId))
	return nil
}

func (s *MetadataServiceImpl) GetProcess(processId string, versionId string) (*Process, error) {
	key := processKey(processId, versionId)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Process), nil
	}
	def, err := s.storage.GetProcessDefinition(processId, versionId)
	if err != nil {
		return nil, err
	}
	process, err := NewProcess(*def)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, process, c.NoExpiration)
	return process, nil
}

func (s *MetadataServiceImpl) GetSubscriptions(eventName string) ([]model.Subscription, error) {
	return s.storage.GetSubscriptions(eventName)
}

func (s *MetadataServiceImpl) GetMetadataStorage() MetadataStorage {
	return s.storage
}
