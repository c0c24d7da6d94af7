package engine

import (
	"testing"
	"time"

	"github.com/procflow/procflow/model"
	"github.com/stretchr/testify/require"
)

func timerDefinition(spec string) model.ProcessDefinition {
	return model.ProcessDefinition{
		ProcessId: "report-flow",
		VersionId: "v1",
		Events: []model.Event{
			{Id: "tick", Type: model.EVENT_TYPE_START, Outgoing: []string{"s1"}, Attributes: model.ElementAttributes{Timer: spec}},
			{Id: "end", Type: model.EVENT_TYPE_END},
		},
		Tasks: []model.Task{
			{Id: "report", Type: model.TASK_TYPE_SERVICE, Outgoing: []string{"s2"}, Attributes: model.ElementAttributes{Action: "build-report"}},
		},
		Sequences: []model.Sequence{
			{Id: "s1", FromId: "tick", ToId: "report"},
			{Id: "s2", FromId: "report", ToId: "end"},
		},
	}
}

func TestTimerStartEvents(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, f *fixture,
	){
		"deploy arms the first occurrence":      testArmFirstOccurrence,
		"delivery opens an instance and rearms": testDeliverAndRearm,
		"single shot timer is not rearmed":      testSingleShotTimer,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newFixture())
		})
	}
}

func testArmFirstOccurrence(t *testing.T, f *fixture) {
	require.NoError(t, f.metadata.Deploy(timerDefinition("R/PT10M")))
	require.NoError(t, f.engine.ArmTimerStartEvents("report-flow", "v1"))

	due, err := f.storage.ReadScheduledTokens(time.Now().Add(11 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "tick", due[0].ElementId)
	require.Equal(t, model.EVENT_ACTIVATED, due[0].Status)
	require.Equal(t, "R/PT10M", due[0].Attributes.TimerSpec)
	require.NotZero(t, due[0].Attributes.Time)

	// the occurrence is in the future, not due yet
	due, err = f.storage.ReadScheduledTokens(time.Now())
	require.NoError(t, err)
	require.Empty(t, due)
}

func testDeliverAndRearm(t *testing.T, f *fixture) {
	require.NoError(t, f.metadata.Deploy(timerDefinition("R2/PT10M")))
	require.NoError(t, f.engine.ArmTimerStartEvents("report-flow", "v1"))

	var reports int
	f.engine.RegisterAction("build-report", func(params map[string]any) (map[string]any, error) {
		reports++
		return map[string]any{}, nil
	})

	due, err := f.storage.ReadScheduledTokens(time.Now().Add(11 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, f.engine.DeliverScheduled(due[0]))

	require.Equal(t, 1, reports)
	require.Len(t, f.completed, 1)

	// the next occurrence is scheduled with one repeat burned
	due, err = f.storage.ReadScheduledTokens(time.Now().Add(21 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "R1/PT10M", due[0].Attributes.TimerSpec)
	require.Empty(t, due[0].InstanceId)
}

func testSingleShotTimer(t *testing.T, f *fixture) {
	require.NoError(t, f.metadata.Deploy(timerDefinition("PT10M")))
	require.NoError(t, f.engine.ArmTimerStartEvents("report-flow", "v1"))

	f.engine.RegisterAction("build-report", func(params map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	due, err := f.storage.ReadScheduledTokens(time.Now().Add(11 * time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, f.engine.DeliverScheduled(due[0]))
	require.Len(t, f.completed, 1)

	due, err = f.storage.ReadScheduledTokens(time.Now().Add(24 * time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)
}
