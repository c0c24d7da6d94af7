package memory

import (
	"testing"

	"github.com/procflow/procflow/model"
	"github.com/stretchr/testify/require"
)

func TestInMemoryWorkQueue(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, queue *InMemoryWorkQueue,
	){
		"poll keeps items until acked": testPollAck,
		"poll respects batch size":     testPollBatch,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewInMemoryWorkQueue())
		})
	}
}

func testPollAck(t *testing.T, queue *InMemoryWorkQueue) {
	item := model.WorkItem{Id: "w1", Agent: "billing"}
	require.NoError(t, queue.Enqueue(item))

	items, err := queue.Poll("billing", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// unacked items stay queued for redelivery
	items, err = queue.Poll("billing", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, queue.Ack("billing", []string{"w1"}))
	items, err = queue.Poll("billing", 10)
	require.NoError(t, err)
	require.Empty(t, items)
}

func testPollBatch(t *testing.T, queue *InMemoryWorkQueue) {
	for _, id := range []string{"w1", "w2", "w3"} {
		require.NoError(t, queue.Enqueue(model.WorkItem{Id: id, Agent: "billing"}))
	}

	items, err := queue.Poll("billing", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = queue.Poll("shipping", 2)
	require.NoError(t, err)
	require.Empty(t, items)
}
