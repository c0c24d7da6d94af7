package metadata

import (
	"testing"

	"github.com/procflow/procflow/model"
	"github.com/stretchr/testify/require"
)

func validDefinition() model.ProcessDefinition {
	return model.ProcessDefinition{
		ProcessId: "p1",
		VersionId: "v1",
		Events: []model.Event{
			{Id: "start", Type: model.EVENT_TYPE_START, Outgoing: []string{"s1"}, Attributes: model.ElementAttributes{Event: "order.created"}},
			{Id: "end", Type: model.EVENT_TYPE_END},
		},
		Tasks: []model.Task{
			{Id: "work", Type: model.TASK_TYPE_SERVICE, Outgoing: []string{"s2"}},
		},
		Sequences: []model.Sequence{
			{Id: "s1", FromId: "start", ToId: "work"},
			{Id: "s2", FromId: "work", ToId: "end"},
		},
	}
}

func TestNewProcess(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"valid definition indexes elements": func(t *testing.T) {
			process, err := NewProcess(validDefinition())
			require.NoError(t, err)

			ref, err := process.Element("work")
			require.NoError(t, err)
			require.Equal(t, model.ELEMENT_ACTIVITY, ref.Kind)

			succ, err := process.Successors(ref)
			require.NoError(t, err)
			require.Len(t, succ, 1)
			require.Equal(t, "s2", succ[0].Id())

			_, err = process.Element("missing")
			require.Error(t, err)
		},
		"duplicate element id is rejected": func(t *testing.T) {
			def := validDefinition()
			def.Tasks = append(def.Tasks, model.Task{Id: "start"})
			_, err := NewProcess(def)
			require.Error(t, err)
		},
		"dangling edge is rejected": func(t *testing.T) {
			def := validDefinition()
			def.Tasks[0].Outgoing = []string{"nowhere"}
			_, err := NewProcess(def)
			require.Error(t, err)
		},
		"unknown default edge is rejected": func(t *testing.T) {
			def := validDefinition()
			def.Tasks[0].Attributes.Default = "nowhere"
			_, err := NewProcess(def)
			require.Error(t, err)
		},
		"empty element id is rejected": func(t *testing.T) {
			def := validDefinition()
			def.Tasks[0].Id = ""
			_, err := NewProcess(def)
			require.Error(t, err)
		},
		"catching start events exclude throwing and timer": func(t *testing.T) {
			def := validDefinition()
			def.Events = append(def.Events,
				model.Event{Id: "notify", Type: model.EVENT_TYPE_START, Attributes: model.ElementAttributes{Event: "order.notify", Throwing: true}},
				model.Event{Id: "tick", Type: model.EVENT_TYPE_START, Attributes: model.ElementAttributes{Timer: "PT10M"}},
			)
			process, err := NewProcess(def)
			require.NoError(t, err)

			catching := process.CatchingStartEvents()
			require.Len(t, catching, 1)
			require.Equal(t, "start", catching[0].Id)
		},
	} {
		t.Run(scenario, fn)
	}
}
