package agent

import (
	"fmt"
	"sync"

	"github.com/procflow/procflow/config"
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/eval"
	"github.com/procflow/procflow/executor"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/persistence/memory"
	redisstore "github.com/procflow/procflow/persistence/redis"
	"github.com/procflow/procflow/rest"
	"go.uber.org/zap"
)

// Agent wires storage, the engine, the dispatcher pool, executors and
// the http surface into one runnable node.
type Agent struct {
	Config            config.Config
	metadataService   metadata.MetadataService
	storage           persistence.Storage
	workQueue         persistence.WorkQueue
	engine            *engine.Engine
	dispatcher        *engine.PoolDispatcher
	scheduledExecutor *executor.ScheduledTokenExecutor
	httpServer        *rest.Server
	shutdown          bool
	shutdownLock      sync.Mutex
	wg                sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupStorage,
		a.setupEngine,
		a.setupExecutors,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		redisConf := redisstore.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			PoolSize:  a.Config.RedisConfig.PoolSize,
			Password:  a.Config.RedisConfig.Password,
		}
		a.storage = redisstore.NewRedisStorage(redisConf)
		a.workQueue = redisstore.NewRedisWorkQueue(redisConf)
		a.metadataService = metadata.NewMetadataService(redisstore.NewRedisMetadataStorage(redisConf))
	case config.STORAGE_TYPE_INMEM:
		a.storage = memory.NewInMemoryStorage()
		a.workQueue = memory.NewInMemoryWorkQueue()
		a.metadataService = metadata.NewMetadataService(memory.NewInMemoryMetadataStorage())
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupEngine() error {
	a.engine = engine.NewEngine(a.metadataService, a.storage, a.workQueue, eval.NewJsEvaluator())
	a.engine.AddCompletionListener(func(instance model.Instance) {
		logger.Info("instance completed", zap.String("process", instance.ProcessId), zap.String("instance", instance.InstanceId))
	})
	a.dispatcher = engine.NewPoolDispatcher(a.engine, a.Config.DispatcherPoolSize, a.Config.DispatcherCapacity, &a.wg)
	a.engine.SetDispatcher(a.dispatcher)
	return nil
}

func (a *Agent) setupExecutors() error {
	a.scheduledExecutor = executor.NewScheduledTokenExecutor(a.storage, a.engine, a.Config.SchedulerInterval, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.engine, a.workQueue)
	return err
}

// GetEngine exposes the engine for embedding setups that register
// action handlers before Start.
func (a *Agent) GetEngine() *engine.Engine {
	return a.engine
}

func (a *Agent) Start() error {
	a.dispatcher.Start()
	a.scheduledExecutor.Start()
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down agent")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.scheduledExecutor.Stop()
			return nil
		},
		func() error {
			a.dispatcher.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
