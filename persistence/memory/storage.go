package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

var _ persistence.Storage = new(InMemoryStorage)

type scheduledToken struct {
	fireAt time.Time
	token  model.Token
}

// InMemoryStorage keeps all execution state in process memory. It backs
// tests and single-node development setups.
type InMemoryStorage struct {
	mu        sync.Mutex
	instances map[string]*model.Instance
	tokens    map[string]map[string]model.Token
	context   map[string]map[string][]byte
	schedule  []scheduledToken
	encdec    util.EncoderDecoder[any]
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		instances: make(map[string]*model.Instance),
		tokens:    make(map[string]map[string]model.Token),
		context:   make(map[string]map[string][]byte),
		encdec:    util.NewJsonEncoderDecoder[any](),
	}
}

func (s *InMemoryStorage) CreateInstance(processId string, versionId string, instanceId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[instanceId] = &model.Instance{
		ProcessId:  processId,
		VersionId:  versionId,
		InstanceId: instanceId,
		State:      model.INSTANCE_RUNNING,
	}
	s.tokens[instanceId] = make(map[string]model.Token)
	s.context[instanceId] = make(map[string][]byte)
	return nil
}

func (s *InMemoryStorage) GetInstance(instanceId string) (*model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.instances[instanceId]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "instance", Key: instanceId}
	}
	copy := *instance
	return &copy, nil
}

func (s *InMemoryStorage) UpdateInstanceState(instanceId string, state model.InstanceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, ok := s.instances[instanceId]
	if !ok {
		return persistence.NotFoundError{Kind: "instance", Key: instanceId}
	}
	instance.State = state
	return nil
}

func (s *InMemoryStorage) GetActiveTokens(instanceId string) ([]model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make([]model.Token, 0, len(s.tokens[instanceId]))
	for _, t := range s.tokens[instanceId] {
		active = append(active, t)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Id < active[j].Id })
	return active, nil
}

func (s *InMemoryStorage) LogToken(instanceId string, consume []model.Token, emit []model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, ok := s.tokens[instanceId]
	if !ok {
		return persistence.NotFoundError{Kind: "instance", Key: instanceId}
	}
	for _, t := range consume {
		if _, ok := active[t.Id]; !ok {
			return persistence.ConflictError{InstanceId: instanceId, TokenId: t.Id}
		}
	}
	for _, t := range consume {
		delete(active, t.Id)
	}
	for _, t := range emit {
		active[t.Id] = t
	}
	return nil
}

func (s *InMemoryStorage) GetContextValue(instanceId string, key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextValue(instanceId, key)
}

func (s *InMemoryStorage) contextValue(instanceId string, key string) (any, error) {
	data, ok := s.context[instanceId][key]
	if !ok {
		return nil, nil
	}
	value, err := s.encdec.Decode(data)
	if err != nil {
		return nil, err
	}
	return *value, nil
}

func (s *InMemoryStorage) SetContextValue(instanceId string, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.context[instanceId]; !ok {
		return persistence.NotFoundError{Kind: "instance", Key: instanceId}
	}
	if value == nil {
		value = map[string]any{}
	}
	data, err := s.encdec.Encode(value)
	if err != nil {
		return err
	}
	s.context[instanceId][key] = data
	return nil
}

func (s *InMemoryStorage) GetContextValues(instanceId string, keys []string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := make(map[string]any, len(keys))
	for _, key := range keys {
		value, err := s.contextValue(instanceId, key)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}

func (s *InMemoryStorage) ScheduleToken(fireAt time.Time, timerSpec string, token model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.Attributes.TimerSpec = timerSpec
	s.schedule = append(s.schedule, scheduledToken{fireAt: fireAt, token: token})
	sort.SliceStable(s.schedule, func(i, j int) bool { return s.schedule[i].fireAt.Before(s.schedule[j].fireAt) })
	return nil
}

func (s *InMemoryStorage) ReadScheduledTokens(until time.Time) ([]model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []model.Token
	rest := s.schedule[:0]
	for _, entry := range s.schedule {
		if !entry.fireAt.After(until) {
			due = append(due, entry.token)
		} else {
			rest = append(rest, entry)
		}
	}
	s.schedule = rest
	return due, nil
}
