package executor

import (
	"sync"
	"time"

	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
	"go.uber.org/zap"
)

// ScheduledTokenExecutor drains due tokens from the schedule store and
// hands them to the engine. Timer suspension is implemented entirely by
// this redelivery; there are no in-process timers per token.
type ScheduledTokenExecutor struct {
	storage persistence.Storage
	engine  *engine.Engine
	tw      *util.TickWorker
	stop    chan struct{}
}

func NewScheduledTokenExecutor(storage persistence.Storage, eng *engine.Engine, interval time.Duration, wg *sync.WaitGroup) *ScheduledTokenExecutor {
	ex := &ScheduledTokenExecutor{
		storage: storage,
		engine:  eng,
		stop:    make(chan struct{}),
	}
	ex.tw = util.NewTickWorker("scheduled-token-executor", interval, ex.stop, ex.handle, wg)
	return ex
}

func (ex *ScheduledTokenExecutor) Start() {
	if ex.tw.IsRunning() {
		return
	}
	ex.tw.Start()
}

func (ex *ScheduledTokenExecutor) Stop() {
	if !ex.tw.IsRunning() {
		return
	}
	ex.stop <- struct{}{}
}

func (ex *ScheduledTokenExecutor) handle() {
	tokens, err := ex.storage.ReadScheduledTokens(time.Now())
	if err != nil {
		logger.Error("error reading scheduled tokens", zap.Error(err))
		return
	}
	for _, token := range tokens {
		if err := ex.engine.DeliverScheduled(token); err != nil {
			logger.Error("error delivering scheduled token", zap.String("element", token.ElementId), zap.Error(err))
		}
	}
}
