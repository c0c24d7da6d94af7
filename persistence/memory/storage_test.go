package memory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStorage(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, storage *InMemoryStorage,
	){
		"instance lifecycle":               testInstanceLifecycle,
		"token log consume and emit":       testTokenLog,
		"consumed token conflicts":         testTokenConflict,
		"context values round trip":        testContextValues,
		"nil context value becomes object": testNilContextValue,
		"schedule drains due tokens only":  testSchedule,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewInMemoryStorage())
		})
	}
}

func testInstanceLifecycle(t *testing.T, storage *InMemoryStorage) {
	instanceId := uuid.New().String()
	require.NoError(t, storage.CreateInstance("p1", "v1", instanceId))

	instance, err := storage.GetInstance(instanceId)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_RUNNING, instance.State)
	require.Equal(t, "p1", instance.ProcessId)

	require.NoError(t, storage.UpdateInstanceState(instanceId, model.INSTANCE_COMPLETED))
	instance, err = storage.GetInstance(instanceId)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, instance.State)

	_, err = storage.GetInstance("missing")
	require.ErrorAs(t, err, &persistence.NotFoundError{})
}

func testTokenLog(t *testing.T, storage *InMemoryStorage) {
	instanceId := uuid.New().String()
	require.NoError(t, storage.CreateInstance("p1", "v1", instanceId))

	first := model.Token{Id: "t1", InstanceId: instanceId, ElementId: "start"}
	require.NoError(t, storage.LogToken(instanceId, nil, []model.Token{first}))

	active, err := storage.GetActiveTokens(instanceId)
	require.NoError(t, err)
	require.Len(t, active, 1)

	second := model.Token{Id: "t2", InstanceId: instanceId, ElementId: "next"}
	third := model.Token{Id: "t3", InstanceId: instanceId, ElementId: "other"}
	require.NoError(t, storage.LogToken(instanceId, []model.Token{first}, []model.Token{second, third}))

	active, err = storage.GetActiveTokens(instanceId)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "t2", active[0].Id)
	require.Equal(t, "t3", active[1].Id)
}

func testTokenConflict(t *testing.T, storage *InMemoryStorage) {
	instanceId := uuid.New().String()
	require.NoError(t, storage.CreateInstance("p1", "v1", instanceId))

	token := model.Token{Id: "t1", InstanceId: instanceId, ElementId: "start"}
	require.NoError(t, storage.LogToken(instanceId, nil, []model.Token{token}))
	require.NoError(t, storage.LogToken(instanceId, []model.Token{token}, nil))

	// second consume of the same token fails and writes nothing
	emit := model.Token{Id: "t2", InstanceId: instanceId, ElementId: "next"}
	err := storage.LogToken(instanceId, []model.Token{token}, []model.Token{emit})
	require.ErrorAs(t, err, &persistence.ConflictError{})

	active, err := storage.GetActiveTokens(instanceId)
	require.NoError(t, err)
	require.Empty(t, active)
}

func testContextValues(t *testing.T, storage *InMemoryStorage) {
	instanceId := uuid.New().String()
	require.NoError(t, storage.CreateInstance("p1", "v1", instanceId))

	require.NoError(t, storage.SetContextValue(instanceId, "order", map[string]any{"total": 42.5}))
	require.NoError(t, storage.SetContextValue(instanceId, "note", "expedite"))

	value, err := storage.GetContextValue(instanceId, "order")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"total": 42.5}, value)

	values, err := storage.GetContextValues(instanceId, []string{"order", "note", "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"total": 42.5}, values["order"])
	require.Equal(t, "expedite", values["note"])
	require.Nil(t, values["missing"])
}

func testNilContextValue(t *testing.T, storage *InMemoryStorage) {
	instanceId := uuid.New().String()
	require.NoError(t, storage.CreateInstance("p1", "v1", instanceId))

	require.NoError(t, storage.SetContextValue(instanceId, "payload", nil))
	value, err := storage.GetContextValue(instanceId, "payload")
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, value)
}

func testSchedule(t *testing.T, storage *InMemoryStorage) {
	now := time.Now()
	early := model.Token{Id: "t1", ElementId: "tick"}
	late := model.Token{Id: "t2", ElementId: "tick"}
	require.NoError(t, storage.ScheduleToken(now.Add(time.Minute), "PT1M", early))
	require.NoError(t, storage.ScheduleToken(now.Add(time.Hour), "PT1H", late))

	due, err := storage.ReadScheduledTokens(now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "t1", due[0].Id)

	// drained entries are gone, the late one remains
	due, err = storage.ReadScheduledTokens(now.Add(2 * time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "t2", due[0].Id)
}
