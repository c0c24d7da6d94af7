package engine

import (
	"time"

	"github.com/procflow/procflow/eval"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/timer"
	"go.uber.org/zap"
)

func (e *Engine) processEvent(process *metadata.Process, ref *metadata.ElementRef, token model.Token) error {
	switch token.Status {
	case model.EVENT_ACTIVATED:
		// reserved for start-condition evaluation
		return e.transition(token, e.statusToken(token, model.EVENT_READY))
	case model.EVENT_READY:
		return e.eventReady(ref, token)
	case model.EVENT_OCCURED:
		return e.activateNext(process, ref, token)
	}
	logger.Debug("event token with unhandled status", zap.String("element", token.ElementId), zap.String("status", string(token.Status)))
	return nil
}

func (e *Engine) eventReady(ref *metadata.ElementRef, token model.Token) error {
	attrs := ref.Attributes()
	if attrs.Throwing && attrs.Event != "" {
		if err := e.throwEvent(attrs, token); err != nil {
			e.recordError(token.InstanceId, err)
			logger.Error("error throwing event", zap.String("event", attrs.Event), zap.String("instance", token.InstanceId), zap.Error(err))
			return e.transition(token, e.statusToken(token, model.PROCESS_ERROR))
		}
	}
	if attrs.Timer != "" && token.Attributes.Time != 0 {
		// re-arming is independent of this token's progression
		e.rearmTimer(ref, token)
	}
	return e.transition(token, e.statusToken(token, model.EVENT_OCCURED))
}

func (e *Engine) throwEvent(attrs model.ElementAttributes, token model.Token) error {
	payload := map[string]any{}
	if attrs.Transform != nil {
		inputs, err := e.storage.GetContextValues(token.InstanceId, attrs.InputKeys)
		if err != nil {
			return err
		}
		payload = eval.ResolveTransform(inputs, attrs.Transform)
	}
	_, err := e.RaiseEvent(attrs.Event, payload)
	return err
}

func (e *Engine) rearmTimer(ref *metadata.ElementRef, token model.Token) {
	specStr := token.Attributes.TimerSpec
	if specStr == "" {
		specStr = ref.Attributes().Timer
	}
	spec, err := timer.ParseSpec(specStr)
	if err != nil {
		logger.Error("invalid timer spec", zap.String("element", ref.Id()), zap.String("spec", specStr), zap.Error(err))
		return
	}
	next, ok := spec.Rearm()
	if !ok {
		return
	}
	fireAt, err := next.Next(time.UnixMilli(token.Attributes.Time))
	if err != nil {
		logger.Error("error computing next timer occurrence", zap.String("element", ref.Id()), zap.Error(err))
		return
	}
	scheduled := model.Token{
		ProcessId: token.ProcessId,
		VersionId: token.VersionId,
		ElementId: token.ElementId,
		Type:      model.ELEMENT_EVENT,
		Status:    model.EVENT_ACTIVATED,
		Attributes: model.TokenAttributes{
			Time:      fireAt.UnixMilli(),
			TimerSpec: next.String(),
		},
	}
	if err := e.storage.ScheduleToken(fireAt, next.String(), scheduled); err != nil {
		logger.Error("error scheduling next timer occurrence", zap.String("element", ref.Id()), zap.Error(err))
		return
	}
	logger.Debug("timer re-armed", zap.String("element", ref.Id()), zap.Time("fireAt", fireAt))
}
