package memory

import (
	"sync"

	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
)

var _ persistence.WorkQueue = new(InMemoryWorkQueue)

// InMemoryWorkQueue queues work items per agent. Polled items stay
// queued until acked, matching at-least-once delivery to workers.
type InMemoryWorkQueue struct {
	mu    sync.Mutex
	items map[string][]model.WorkItem
}

func NewInMemoryWorkQueue() *InMemoryWorkQueue {
	return &InMemoryWorkQueue{
		items: make(map[string][]model.WorkItem),
	}
}

func (q *InMemoryWorkQueue) Enqueue(item model.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[item.Agent] = append(q.items[item.Agent], item)
	return nil
}

func (q *InMemoryWorkQueue) Poll(agent string, batchSize int) ([]model.WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queued := q.items[agent]
	if batchSize > len(queued) {
		batchSize = len(queued)
	}
	batch := make([]model.WorkItem, batchSize)
	copy(batch, queued[:batchSize])
	return batch, nil
}

func (q *InMemoryWorkQueue) Ack(agent string, ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	acked := make(map[string]bool, len(ids))
	for _, id := range ids {
		acked[id] = true
	}
	rest := q.items[agent][:0]
	for _, item := range q.items[agent] {
		if !acked[item.Id] {
			rest = append(rest, item)
		}
	}
	q.items[agent] = rest
	return nil
}
