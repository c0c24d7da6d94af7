package engine

import (
	"hash/fnv"
	"sync"

	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/util"
)

// Dispatcher delivers emitted tokens to ProcessToken invocations. The
// engine only requires eventual exhaustive processing; delivery may be
// recursive or queued.
type Dispatcher interface {
	Dispatch(token model.Token) error
}

// inlineDispatcher processes tokens synchronously in the caller's
// goroutine. It is the default and what tests run on.
type inlineDispatcher struct {
	engine *Engine
}

func (d *inlineDispatcher) Dispatch(token model.Token) error {
	return d.engine.ProcessToken(token)
}

// PoolDispatcher processes tokens on a bounded worker pool. Tokens are
// sharded by instance id so all tokens of one instance run on the same
// worker, serializing same-instance transitions and keeping the
// parallel-join check single-writer per instance.
type PoolDispatcher struct {
	workers []*util.Worker
}

func NewPoolDispatcher(engine *Engine, size int, capacity int, wg *sync.WaitGroup) *PoolDispatcher {
	d := &PoolDispatcher{}
	for i := 0; i < size; i++ {
		worker := util.NewWorker("token-dispatcher", wg, func(a util.Action) error {
			return engine.ProcessToken(a.(model.Token))
		}, capacity)
		d.workers = append(d.workers, worker)
	}
	return d
}

func (d *PoolDispatcher) Start() {
	for _, w := range d.workers {
		w.Start()
	}
}

func (d *PoolDispatcher) Stop() {
	for _, w := range d.workers {
		w.Stop()
	}
}

func (d *PoolDispatcher) Dispatch(token model.Token) error {
	h := fnv.New32a()
	h.Write([]byte(token.InstanceId))
	worker := d.workers[int(h.Sum32())%len(d.workers)]
	worker.Sender() <- token
	return nil
}
