package engine

import (
	"errors"

	"github.com/google/uuid"
	"github.com/procflow/procflow/eval"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"go.uber.org/zap"
)

// activateNext resolves the successors of the current element, evaluates
// edge conditions, emits tokens for the selected successors and runs the
// completion check when nothing is emitted.
func (e *Engine) activateNext(process *metadata.Process, ref *metadata.ElementRef, current model.Token) error {
	successors, err := process.Successors(ref)
	if err != nil {
		return err
	}
	valid, dflt := e.classifySuccessors(ref, current, successors)

	selected := valid
	if len(selected) == 0 && dflt != nil {
		selected = []*metadata.ElementRef{dflt}
	}
	if singlePath(ref, successors) && len(selected) > 1 {
		selected = selected[:1]
	}

	emit := make([]model.Token, 0, len(selected))
	for _, succ := range selected {
		emit = append(emit, successorToken(current, succ))
	}
	if err := e.storage.LogToken(current.InstanceId, []model.Token{current}, emit); err != nil {
		var conflict persistence.ConflictError
		if errors.As(err, &conflict) {
			logger.Debug("stale token, successors already activated", zap.String("token", current.Id), zap.String("element", current.ElementId))
			return nil
		}
		return err
	}
	for _, t := range emit {
		if err := e.dispatcher.Dispatch(t); err != nil {
			logger.Error("error dispatching token", zap.String("token", t.Id), zap.String("element", t.ElementId), zap.Error(err))
		}
	}
	if len(emit) == 0 {
		return e.checkCompletion(current)
	}
	return nil
}

// classifySuccessors splits successors into valid candidates and the
// declared default. Conditions live on outgoing sequences and are only
// evaluated for activity and gateway elements.
func (e *Engine) classifySuccessors(ref *metadata.ElementRef, current model.Token, successors []*metadata.ElementRef) ([]*metadata.ElementRef, *metadata.ElementRef) {
	attrs := ref.Attributes()
	var valid []*metadata.ElementRef
	var dflt *metadata.ElementRef
	for _, succ := range successors {
		if succ.Id() == attrs.Default {
			dflt = succ
			continue
		}
		cond := edgeCondition(ref, succ)
		if cond == "" {
			valid = append(valid, succ)
			continue
		}
		inputs, err := e.storage.GetContextValues(current.InstanceId, succ.Attributes().InputKeys)
		if err != nil {
			logger.Error("error reading condition inputs", zap.String("edge", succ.Id()), zap.String("instance", current.InstanceId), zap.Error(err))
			continue
		}
		value, err := e.evaluator.Evaluate(cond, inputs)
		if err != nil {
			logger.Error("error evaluating edge condition", zap.String("edge", succ.Id()), zap.String("instance", current.InstanceId), zap.Error(err))
			continue
		}
		if eval.AsBool(value) {
			valid = append(valid, succ)
		}
	}
	return valid, dflt
}

func edgeCondition(ref *metadata.ElementRef, succ *metadata.ElementRef) string {
	if ref.Kind != model.ELEMENT_ACTIVITY && ref.Kind != model.ELEMENT_GATEWAY {
		return ""
	}
	if succ.Kind != model.ELEMENT_SEQUENCE {
		return ""
	}
	return succ.Sequence.Condition()
}

// singlePath reports whether the element picks exactly one outgoing
// path: exclusive gateways always, activities once any outgoing edge
// carries a condition.
func singlePath(ref *metadata.ElementRef, successors []*metadata.ElementRef) bool {
	switch ref.Kind {
	case model.ELEMENT_GATEWAY:
		return ref.Gateway.Kind == model.GATEWAY_EXCLUSIVE
	case model.ELEMENT_ACTIVITY:
		for _, succ := range successors {
			if edgeCondition(ref, succ) != "" {
				return true
			}
		}
	}
	return false
}

// successorToken builds the initial token of a successor element. The
// current token rides along as lastToken for join matching, with its own
// ancestry stripped to keep tokens flat.
func successorToken(current model.Token, succ *metadata.ElementRef) model.Token {
	last := current
	last.Attributes.LastToken = nil
	return model.Token{
		Id:         uuid.New().String(),
		ProcessId:  current.ProcessId,
		VersionId:  current.VersionId,
		InstanceId: current.InstanceId,
		ElementId:  succ.Id(),
		Type:       succ.Kind,
		Status:     model.InitialStatus(succ.Kind),
		User:       current.User,
		OwnerId:    current.OwnerId,
		Attributes: model.TokenAttributes{LastToken: &last},
	}
}

// checkCompletion marks the instance completed once its active token set
// is empty and notifies the registered listeners.
func (e *Engine) checkCompletion(current model.Token) error {
	active, err := e.storage.GetActiveTokens(current.InstanceId)
	if err != nil {
		return err
	}
	if len(active) != 0 {
		return nil
	}
	if err := e.storage.UpdateInstanceState(current.InstanceId, model.INSTANCE_COMPLETED); err != nil {
		return err
	}
	logger.Info("flow.instance.completed", zap.String("process", current.ProcessId), zap.String("instance", current.InstanceId))
	instance := model.Instance{
		ProcessId:  current.ProcessId,
		VersionId:  current.VersionId,
		InstanceId: current.InstanceId,
		State:      model.INSTANCE_COMPLETED,
	}
	for _, listener := range e.listeners {
		listener(instance)
	}
	return nil
}
