package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/procflow/procflow/eval"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"go.uber.org/zap"
)

func (e *Engine) processActivity(process *metadata.Process, ref *metadata.ElementRef, token model.Token) error {
	switch token.Status {
	case model.ACTIVITY_ACTIVATED:
		return e.prepareActivity(ref, token)
	case model.ACTIVITY_READY:
		return e.startActivity(ref, token)
	case model.ACTIVITY_COMPLETED:
		return e.activateNext(process, ref, token)
	case model.ACTIVITY_WAITING:
		// waiting marker: consumed only by the external completion
		logger.Debug("activity waiting for external completion", zap.String("element", token.ElementId), zap.String("instance", token.InstanceId))
		return nil
	case model.ACTIVITY_ERROR:
		// terminal for this branch: no retry, no activateNext
		logger.Debug("activity branch stalled on error", zap.String("element", token.ElementId), zap.String("instance", token.InstanceId))
		return nil
	}
	logger.Debug("activity token with unhandled status", zap.String("element", token.ElementId), zap.String("status", string(token.Status)))
	return nil
}

// prepareActivity evaluates the input preparation transform, if any, and
// writes the result under the activity's input key.
func (e *Engine) prepareActivity(ref *metadata.ElementRef, token model.Token) error {
	attrs := ref.Attributes()
	if attrs.Transform != nil {
		inputs, err := e.storage.GetContextValues(token.InstanceId, attrs.InputKeys)
		if err != nil {
			e.recordError(token.InstanceId, err)
			return e.transition(token, e.statusToken(token, model.PROCESS_ERROR))
		}
		prepared := eval.ResolveTransform(inputs, attrs.Transform)
		key := attrs.InputKey
		if key == "" {
			key = ref.Id()
		}
		if err := e.storage.SetContextValue(token.InstanceId, key, prepared); err != nil {
			e.recordError(token.InstanceId, err)
			return e.transition(token, e.statusToken(token, model.PROCESS_ERROR))
		}
	}
	return e.transition(token, e.statusToken(token, model.ACTIVITY_READY))
}

func (e *Engine) startActivity(ref *metadata.ElementRef, token model.Token) error {
	attrs := ref.Attributes()
	switch ref.Task.Type {
	case model.TASK_TYPE_SERVICE:
		if attrs.Action != "" {
			return e.callAction(ref, token)
		}
		if attrs.Agent != "" {
			return e.suspendActivity(ref, token)
		}
		return e.transition(token, e.statusToken(token, model.ACTIVITY_COMPLETED))
	case model.TASK_TYPE_RULE:
		return e.evaluateRule(ref, token)
	}
	// user tasks and remaining subtypes pass through
	return e.transition(token, e.statusToken(token, model.ACTIVITY_COMPLETED))
}

func (e *Engine) callAction(ref *metadata.ElementRef, token model.Token) error {
	attrs := ref.Attributes()
	handler, ok := e.actions[attrs.Action]
	if !ok {
		err := fmt.Errorf("action %s is not registered", attrs.Action)
		e.recordError(token.InstanceId, err)
		logger.Error("action not registered", zap.String("action", attrs.Action), zap.String("instance", token.InstanceId))
		return e.transition(token, e.statusToken(token, model.ACTIVITY_ERROR))
	}
	inputs, err := e.storage.GetContextValues(token.InstanceId, attrs.InputKeys)
	if err != nil {
		e.recordError(token.InstanceId, err)
		return e.transition(token, e.statusToken(token, model.ACTIVITY_ERROR))
	}
	result, err := handler(inputs)
	if err != nil {
		e.recordError(token.InstanceId, err)
		logger.Error("action failed", zap.String("action", attrs.Action), zap.String("instance", token.InstanceId), zap.Error(err))
		return e.transition(token, e.statusToken(token, model.ACTIVITY_ERROR))
	}
	if err := e.storage.SetContextValue(token.InstanceId, outputKey(ref), result); err != nil {
		e.recordError(token.InstanceId, err)
		return e.transition(token, e.statusToken(token, model.ACTIVITY_ERROR))
	}
	return e.transition(token, e.statusToken(token, model.ACTIVITY_COMPLETED))
}

// suspendActivity hands the task to an agent queue: the ready token is
// exchanged for a persisted waiting marker, then the work item is
// enqueued carrying that marker. No successor is emitted until the
// external completion arrives. A redelivered ready token fails the
// consume and must not enqueue a second work item.
func (e *Engine) suspendActivity(ref *metadata.ElementRef, token model.Token) error {
	attrs := ref.Attributes()
	waiting := e.statusToken(token, model.ACTIVITY_WAITING)
	if err := e.storage.LogToken(token.InstanceId, []model.Token{token}, []model.Token{waiting}); err != nil {
		var conflict persistence.ConflictError
		if errors.As(err, &conflict) {
			logger.Debug("stale token, activity already suspended", zap.String("token", token.Id), zap.String("element", token.ElementId))
			return nil
		}
		return err
	}
	params, err := e.storage.GetContextValues(token.InstanceId, attrs.InputKeys)
	if err != nil {
		logger.Error("error resolving work item params", zap.String("instance", token.InstanceId), zap.Error(err))
		params = map[string]any{}
	}
	item := model.WorkItem{
		Id:     uuid.New().String(),
		Agent:  attrs.Agent,
		Token:  waiting,
		Params: params,
	}
	if err := e.workQueue.Enqueue(item); err != nil {
		logger.Error("error enqueueing work item", zap.String("agent", attrs.Agent), zap.String("instance", token.InstanceId), zap.Error(err))
		return err
	}
	logger.Info("activity suspended", zap.String("element", ref.Id()), zap.String("agent", attrs.Agent), zap.String("instance", token.InstanceId))
	return nil
}

func (e *Engine) evaluateRule(ref *metadata.ElementRef, token model.Token) error {
	attrs := ref.Attributes()
	inputs, err := e.storage.GetContextValues(token.InstanceId, attrs.InputKeys)
	if err != nil {
		e.recordError(token.InstanceId, err)
		return e.transition(token, e.statusToken(token, model.ACTIVITY_ERROR))
	}
	value, err := e.evaluator.Evaluate(attrs.Expression, inputs)
	if err != nil {
		e.recordError(token.InstanceId, err)
		logger.Error("rule evaluation failed", zap.String("element", ref.Id()), zap.String("instance", token.InstanceId), zap.Error(err))
		return e.transition(token, e.statusToken(token, model.ACTIVITY_ERROR))
	}
	if err := e.storage.SetContextValue(token.InstanceId, outputKey(ref), value); err != nil {
		e.recordError(token.InstanceId, err)
		return e.transition(token, e.statusToken(token, model.ACTIVITY_ERROR))
	}
	return e.transition(token, e.statusToken(token, model.ACTIVITY_COMPLETED))
}
