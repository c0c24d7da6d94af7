package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/procflow/procflow/eval"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/timer"
	"go.uber.org/zap"
)

// ActionHandler executes a directly-referenced service task action.
type ActionHandler func(params map[string]any) (map[string]any, error)

// CompletionListener is notified once when an instance completes.
type CompletionListener func(instance model.Instance)

// Engine drives the token state machine: each ProcessToken call performs
// one transition for the token's element and status, persists the
// consume/emit pair and hands emitted tokens to the dispatcher. All
// collaborators are injected; the engine keeps no mutable state of its
// own beyond registration done at wiring time.
type Engine struct {
	metadata   metadata.MetadataService
	storage    persistence.Storage
	workQueue  persistence.WorkQueue
	evaluator  eval.Evaluator
	dispatcher Dispatcher
	actions    map[string]ActionHandler
	listeners  []CompletionListener
}

func NewEngine(metadataService metadata.MetadataService, storage persistence.Storage, workQueue persistence.WorkQueue, evaluator eval.Evaluator) *Engine {
	e := &Engine{
		metadata:  metadataService,
		storage:   storage,
		workQueue: workQueue,
		evaluator: evaluator,
		actions:   make(map[string]ActionHandler),
	}
	e.dispatcher = &inlineDispatcher{engine: e}
	return e
}

// SetDispatcher replaces the default inline dispatcher. Call before any
// token is processed.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.dispatcher = d
}

// RegisterAction binds a handler to a service task action name. Call
// before any token is processed.
func (e *Engine) RegisterAction(name string, handler ActionHandler) {
	e.actions[name] = handler
}

func (e *Engine) AddCompletionListener(l CompletionListener) {
	e.listeners = append(e.listeners, l)
}

// RaiseEvent delivers an external stimulus: every subscription for the
// event name starts a new instance with the payload written to its
// context and the subscribed element's initial token emitted.
func (e *Engine) RaiseEvent(eventName string, payload map[string]any) ([]model.Instance, error) {
	subs, err := e.metadata.GetSubscriptions(eventName)
	if err != nil {
		return nil, err
	}
	var started []model.Instance
	for _, sub := range subs {
		process, err := e.metadata.GetProcess(sub.ProcessId, sub.VersionId)
		if err != nil {
			logger.Error("process definition not found for subscription", zap.String("process", sub.ProcessId), zap.String("version", sub.VersionId), zap.Error(err))
			continue
		}
		ref, err := process.Element(sub.ElementId)
		if err != nil {
			logger.Error("subscribed element not found", zap.String("element", sub.ElementId), zap.Error(err))
			continue
		}
		instance, err := e.startInstance(sub, ref, eventName, payload)
		if err != nil {
			logger.Error("error starting instance", zap.String("process", sub.ProcessId), zap.String("event", eventName), zap.Error(err))
			continue
		}
		started = append(started, *instance)
	}
	return started, nil
}

func (e *Engine) startInstance(sub model.Subscription, ref *metadata.ElementRef, eventName string, payload map[string]any) (*model.Instance, error) {
	instanceId := uuid.New().String()
	if err := e.storage.CreateInstance(sub.ProcessId, sub.VersionId, instanceId); err != nil {
		return nil, err
	}
	key := ref.Attributes().OutputKey
	if key == "" {
		key = eventName
	}
	if err := e.storage.SetContextValue(instanceId, key, payload); err != nil {
		return nil, err
	}
	token := model.Token{
		Id:         uuid.New().String(),
		ProcessId:  sub.ProcessId,
		VersionId:  sub.VersionId,
		InstanceId: instanceId,
		ElementId:  ref.Id(),
		Type:       ref.Kind,
		Status:     model.InitialStatus(ref.Kind),
	}
	if err := e.storage.LogToken(instanceId, nil, []model.Token{token}); err != nil {
		return nil, err
	}
	if err := e.dispatcher.Dispatch(token); err != nil {
		logger.Error("error dispatching start token", zap.String("instance", instanceId), zap.Error(err))
	}
	logger.Info("instance started", zap.String("process", sub.ProcessId), zap.String("instance", instanceId), zap.String("event", eventName))
	return &model.Instance{
		ProcessId:  sub.ProcessId,
		VersionId:  sub.VersionId,
		InstanceId: instanceId,
		State:      model.INSTANCE_RUNNING,
	}, nil
}

// ProcessToken performs one state transition for the token. It is safe
// under at-least-once delivery: a redelivered token fails its
// conditional consume and the call becomes a no-op.
func (e *Engine) ProcessToken(token model.Token) error {
	process, err := e.metadata.GetProcess(token.ProcessId, token.VersionId)
	if err != nil {
		return err
	}
	ref, err := process.Element(token.ElementId)
	if err != nil {
		// definition error: the token stays in the active set and can
		// be retried after a redeploy
		return err
	}
	switch token.Type {
	case model.ELEMENT_EVENT:
		return e.processEvent(process, ref, token)
	case model.ELEMENT_ACTIVITY:
		return e.processActivity(process, ref, token)
	case model.ELEMENT_SEQUENCE:
		return e.processSequence(process, ref, token)
	case model.ELEMENT_GATEWAY:
		return e.processGateway(process, ref, token)
	}
	logger.Debug("token with unknown element kind", zap.String("kind", string(token.Type)), zap.String("element", token.ElementId))
	return nil
}

// Completed resumes a suspended externally-queued activity with its
// result or error.
func (e *Engine) Completed(req model.CompletionRequest) error {
	token := req.Token
	if token.Status != model.ACTIVITY_WAITING {
		return fmt.Errorf("token %s is not a suspended activity", token.Id)
	}
	process, err := e.metadata.GetProcess(token.ProcessId, token.VersionId)
	if err != nil {
		return err
	}
	ref, err := process.Element(token.ElementId)
	if err != nil {
		return err
	}
	status := model.ACTIVITY_COMPLETED
	if req.Error != "" {
		status = model.ACTIVITY_ERROR
	}
	// consume the waiting marker before touching context: a redelivered
	// completion conflicts here and must not overwrite the first result
	next := e.statusToken(token, status)
	if err := e.storage.LogToken(token.InstanceId, []model.Token{token}, []model.Token{next}); err != nil {
		var conflict persistence.ConflictError
		if errors.As(err, &conflict) {
			logger.Debug("stale completion, activity already resumed", zap.String("token", token.Id), zap.String("element", token.ElementId))
			return nil
		}
		return err
	}
	if req.Error != "" {
		e.recordError(token.InstanceId, errors.New(req.Error))
	} else if err := e.storage.SetContextValue(token.InstanceId, outputKey(ref), req.Result); err != nil {
		return err
	}
	return e.dispatcher.Dispatch(next)
}

// FailInstance marks an instance failed. Failure is never derived from
// error tokens automatically; this is the explicit external action.
func (e *Engine) FailInstance(instanceId string) error {
	if err := e.storage.UpdateInstanceState(instanceId, model.INSTANCE_FAILED); err != nil {
		return err
	}
	logger.Info("instance failed", zap.String("instance", instanceId))
	return nil
}

// GetExecution returns the inspection view of an instance.
func (e *Engine) GetExecution(instanceId string) (*model.InstanceExecution, error) {
	instance, err := e.storage.GetInstance(instanceId)
	if err != nil {
		return nil, err
	}
	tokens, err := e.storage.GetActiveTokens(instanceId)
	if err != nil {
		return nil, err
	}
	return &model.InstanceExecution{
		Instance:     *instance,
		ActiveTokens: tokens,
	}, nil
}

// DeliverScheduled dispatches a token whose fire time has arrived. A
// scheduled token without an instance is a timer start occurrence and
// opens a new instance first.
func (e *Engine) DeliverScheduled(token model.Token) error {
	if token.InstanceId == "" {
		instanceId := uuid.New().String()
		if err := e.storage.CreateInstance(token.ProcessId, token.VersionId, instanceId); err != nil {
			return err
		}
		token.InstanceId = instanceId
		if token.Id == "" {
			token.Id = uuid.New().String()
		}
		if err := e.storage.LogToken(instanceId, nil, []model.Token{token}); err != nil {
			return err
		}
		logger.Info("timer instance started", zap.String("process", token.ProcessId), zap.String("instance", instanceId))
	}
	return e.dispatcher.Dispatch(token)
}

// ArmTimerStartEvents schedules the first occurrence of every timer
// start event of a process version. Called once after deploy.
func (e *Engine) ArmTimerStartEvents(processId string, versionId string) error {
	process, err := e.metadata.GetProcess(processId, versionId)
	if err != nil {
		return err
	}
	def := process.Definition()
	for i := range def.Events {
		ev := &def.Events[i]
		if ev.Type != model.EVENT_TYPE_START || ev.Attributes.Timer == "" {
			continue
		}
		spec, err := timer.ParseSpec(ev.Attributes.Timer)
		if err != nil {
			return err
		}
		fireAt, err := spec.Next(time.Now())
		if err != nil {
			return err
		}
		token := model.Token{
			ProcessId: processId,
			VersionId: versionId,
			ElementId: ev.Id,
			Type:      model.ELEMENT_EVENT,
			Status:    model.EVENT_ACTIVATED,
			Attributes: model.TokenAttributes{
				Time:      fireAt.UnixMilli(),
				TimerSpec: spec.String(),
			},
		}
		if err := e.storage.ScheduleToken(fireAt, spec.String(), token); err != nil {
			return err
		}
		logger.Info("timer start event armed", zap.String("process", processId), zap.String("element", ev.Id), zap.Time("fireAt", fireAt))
	}
	return nil
}

// statusToken derives the follow-up token of a same-element status move.
func (e *Engine) statusToken(current model.Token, status model.TokenStatus) model.Token {
	next := current
	next.Id = uuid.New().String()
	next.Status = status
	return next
}

// transition consumes the current token, emits its successors in one
// atomic log operation and dispatches them. A conflict means another
// delivery of the same token already ran; the call becomes a no-op.
func (e *Engine) transition(current model.Token, emit ...model.Token) error {
	err := e.storage.LogToken(current.InstanceId, []model.Token{current}, emit)
	if err != nil {
		var conflict persistence.ConflictError
		if errors.As(err, &conflict) {
			logger.Debug("stale token, transition already applied", zap.String("token", current.Id), zap.String("element", current.ElementId))
			return nil
		}
		return err
	}
	for _, t := range emit {
		if err := e.dispatcher.Dispatch(t); err != nil {
			logger.Error("error dispatching token", zap.String("token", t.Id), zap.String("element", t.ElementId), zap.Error(err))
		}
	}
	return nil
}

// recordError stores an external-call failure under the reserved error
// key of the instance context.
func (e *Engine) recordError(instanceId string, cause error) {
	if err := e.storage.SetContextValue(instanceId, model.ERROR_CONTEXT_KEY, cause.Error()); err != nil {
		logger.Error("error recording failure reason", zap.String("instance", instanceId), zap.Error(err))
	}
}

func outputKey(ref *metadata.ElementRef) string {
	if key := ref.Attributes().OutputKey; key != "" {
		return key
	}
	return ref.Id()
}
