package util

import (
	"sync"
	"sync/atomic"

	"github.com/procflow/procflow/logger"
	"go.uber.org/zap"
)

type Action any

// Worker drains a bounded action channel on its own goroutine, handing
// each action to the handler. Handler errors are logged, not fatal: the
// worker keeps draining.
type Worker struct {
	name       string
	stop       chan struct{}
	wg         *sync.WaitGroup
	handler    func(Action) error
	actionChan chan Action
	running    atomic.Bool
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Action) error, capacity int) *Worker {
	return &Worker{
		name:       name,
		wg:         wg,
		handler:    handler,
		actionChan: make(chan Action, capacity),
		stop:       make(chan struct{}),
	}
}

func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case action := <-w.actionChan:
				if err := w.handler(action); err != nil {
					logger.Error("error handling action", zap.String("worker", w.name), zap.Any("action", action), zap.Error(err))
				}
			case <-w.stop:
				logger.Info("stopping worker", zap.String("worker", w.name))
				w.running.Store(false)
				return
			}
		}
	}()
}

// Sender is the channel actions are submitted on; sends block once the
// channel is at capacity.
func (w *Worker) Sender() chan<- Action {
	return w.actionChan
}

func (w *Worker) Stop() {
	if !w.running.Load() {
		return
	}
	w.stop <- struct{}{}
}

func (w *Worker) IsRunning() bool {
	return w.running.Load()
}
