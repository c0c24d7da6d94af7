package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/procflow/procflow/model"
	"github.com/stretchr/testify/require"
)

func parallelDefinition() model.ProcessDefinition {
	return model.ProcessDefinition{
		ProcessId: "parallel-flow",
		VersionId: "v1",
		Events: []model.Event{
			{Id: "start", Type: model.EVENT_TYPE_START, Outgoing: []string{"s0"}, Attributes: model.ElementAttributes{Event: "order.created", OutputKey: "order"}},
			{Id: "end", Type: model.EVENT_TYPE_END},
		},
		Gateways: []model.Gateway{
			{Id: "split", Kind: model.GATEWAY_PARALLEL, Incoming: []string{"s0"}, Outgoing: []string{"sa1", "sb1"}},
			{Id: "join", Kind: model.GATEWAY_PARALLEL, Incoming: []string{"sa2", "sb2"}, Outgoing: []string{"sj"}},
		},
		Tasks: []model.Task{
			{Id: "reserve", Type: model.TASK_TYPE_SERVICE, Outgoing: []string{"sa2"}},
			{Id: "notify", Type: model.TASK_TYPE_SERVICE, Outgoing: []string{"sb2"}},
		},
		Sequences: []model.Sequence{
			{Id: "s0", FromId: "start", ToId: "split"},
			{Id: "sa1", FromId: "split", ToId: "reserve"},
			{Id: "sb1", FromId: "split", ToId: "notify"},
			{Id: "sa2", FromId: "reserve", ToId: "join"},
			{Id: "sb2", FromId: "notify", ToId: "join"},
			{Id: "sj", FromId: "join", ToId: "end"},
		},
	}
}

func TestParallelGateway(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, f *fixture,
	){
		"split and join complete once":          testSplitJoin,
		"join waits for missing branch":         testJoinWaits,
		"duplicate branch arrival never counts": testJoinDuplicateEdge,
		"redundant incoming declarations":       testJoinRedundantDeclaration,
		"unsupported kind stalls the branch":    testUnsupportedGateway,
	} {
		t.Run(scenario, func(t *testing.T) {
			f := newFixture()
			require.NoError(t, f.metadata.Deploy(parallelDefinition()))
			fn(t, f)
		})
	}
}

func testSplitJoin(t *testing.T, f *fixture) {
	started, err := f.engine.RaiseEvent("order.created", map[string]any{"total": 42})
	require.NoError(t, err)
	require.Len(t, started, 1)

	instance, err := f.storage.GetInstance(started[0].InstanceId)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, instance.State)
	require.Len(t, f.completed, 1)
}

// joinToken plants an activated token at the join, recording the edge it
// arrived over, without running the rest of the flow.
func joinToken(t *testing.T, f *fixture, processId string, instanceId string, edge string) model.Token {
	token := model.Token{
		Id:         uuid.New().String(),
		ProcessId:  processId,
		VersionId:  "v1",
		InstanceId: instanceId,
		ElementId:  "join",
		Type:       model.ELEMENT_GATEWAY,
		Status:     model.GATEWAY_ACTIVATED,
		Attributes: model.TokenAttributes{LastToken: &model.Token{ElementId: edge}},
	}
	require.NoError(t, f.storage.LogToken(instanceId, nil, []model.Token{token}))
	return token
}

func testJoinWaits(t *testing.T, f *fixture) {
	instanceId := uuid.New().String()
	require.NoError(t, f.storage.CreateInstance("parallel-flow", "v1", instanceId))

	first := joinToken(t, f, "parallel-flow", instanceId, "sa2")
	require.NoError(t, f.engine.ProcessToken(first))

	// one of two branches arrived: nothing consumed, nothing emitted
	active, err := f.storage.GetActiveTokens(instanceId)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, first.Id, active[0].Id)
	require.Empty(t, f.completed)

	second := joinToken(t, f, "parallel-flow", instanceId, "sb2")
	require.NoError(t, f.engine.ProcessToken(second))

	// the last branch fired the join and the flow ran to the end
	instance, err := f.storage.GetInstance(instanceId)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, instance.State)
	require.Len(t, f.completed, 1)
}

func testJoinDuplicateEdge(t *testing.T, f *fixture) {
	instanceId := uuid.New().String()
	require.NoError(t, f.storage.CreateInstance("parallel-flow", "v1", instanceId))

	joinToken(t, f, "parallel-flow", instanceId, "sa2")
	duplicate := joinToken(t, f, "parallel-flow", instanceId, "sa2")
	require.NoError(t, f.engine.ProcessToken(duplicate))

	active, err := f.storage.GetActiveTokens(instanceId)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Empty(t, f.completed)
}

func testJoinRedundantDeclaration(t *testing.T, f *fixture) {
	def := parallelDefinition()
	def.ProcessId = "dup-flow"
	def.Gateways[1].Incoming = []string{"sa2", "sa2", "sb2"}
	require.NoError(t, f.metadata.Deploy(def))

	instanceId := uuid.New().String()
	require.NoError(t, f.storage.CreateInstance("dup-flow", "v1", instanceId))

	// one token per distinct edge completes the join despite the
	// doubled declaration
	require.NoError(t, f.engine.ProcessToken(joinToken(t, f, "dup-flow", instanceId, "sa2")))
	require.NoError(t, f.engine.ProcessToken(joinToken(t, f, "dup-flow", instanceId, "sb2")))

	instance, err := f.storage.GetInstance(instanceId)
	require.NoError(t, err)
	require.Equal(t, model.INSTANCE_COMPLETED, instance.State)
	require.Len(t, f.completed, 1)
}

func testUnsupportedGateway(t *testing.T, f *fixture) {
	def := parallelDefinition()
	def.ProcessId = "inclusive-flow"
	def.Gateways[1].Kind = model.GATEWAY_INCLUSIVE
	require.NoError(t, f.metadata.Deploy(def))

	instanceId := uuid.New().String()
	require.NoError(t, f.storage.CreateInstance("inclusive-flow", "v1", instanceId))

	token := model.Token{
		Id:         uuid.New().String(),
		ProcessId:  "inclusive-flow",
		VersionId:  "v1",
		InstanceId: instanceId,
		ElementId:  "join",
		Type:       model.ELEMENT_GATEWAY,
		Status:     model.GATEWAY_ACTIVATED,
	}
	require.NoError(t, f.storage.LogToken(instanceId, nil, []model.Token{token}))
	require.NoError(t, f.engine.ProcessToken(token))

	// the token stays active so the branch stalls instead of completing
	active, err := f.storage.GetActiveTokens(instanceId)
	require.NoError(t, err)
	require.Len(t, active, 1)

	reason, err := f.storage.GetContextValue(instanceId, model.ERROR_CONTEXT_KEY)
	require.NoError(t, err)
	require.Contains(t, reason, "inclusive")
	require.Empty(t, f.completed)
}
