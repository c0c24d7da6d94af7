package engine

import (
	"errors"
	"fmt"

	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
	"go.uber.org/zap"
)

func (e *Engine) processGateway(process *metadata.Process, ref *metadata.ElementRef, token model.Token) error {
	switch token.Status {
	case model.GATEWAY_ACTIVATED:
		switch ref.Gateway.Kind {
		case model.GATEWAY_EXCLUSIVE:
			return e.transition(token, e.statusToken(token, model.GATEWAY_COMPLETED))
		case model.GATEWAY_PARALLEL:
			return e.joinParallel(ref, token)
		default:
			// inclusive, event-based and complex activation is not
			// implemented; the token is left in the active set so the
			// branch stalls observably instead of guessing semantics
			err := fmt.Errorf("gateway kind %s not implemented", ref.Gateway.Kind)
			e.recordError(token.InstanceId, err)
			logger.Error("unsupported gateway kind", zap.String("element", ref.Id()), zap.String("kind", string(ref.Gateway.Kind)), zap.String("instance", token.InstanceId))
			return nil
		}
	case model.GATEWAY_COMPLETED:
		return e.activateNext(process, ref, token)
	}
	logger.Debug("gateway token with unhandled status", zap.String("element", token.ElementId), zap.String("status", string(token.Status)))
	return nil
}

// joinParallel synchronizes the incoming branches of a parallel gateway.
// The triggering token is already persisted in the active set before this
// check runs (write-before-check), so it counts as one of the waiting
// tokens. Completion consumes exactly one waiting token per incoming
// edge and emits exactly one completed token; duplicate arrivals on the
// same edge never count twice and stay behind as surplus.
func (e *Engine) joinParallel(ref *metadata.ElementRef, token model.Token) error {
	// a definition may redundantly declare an edge twice; one waiting
	// token per distinct edge is what completion needs
	incoming := util.Distinct(ref.Gateway.Incoming)
	if len(incoming) <= 1 {
		return e.transition(token, e.statusToken(token, model.GATEWAY_COMPLETED))
	}
	active, err := e.storage.GetActiveTokens(token.InstanceId)
	if err != nil {
		return err
	}
	byEdge := make(map[string]model.Token)
	for _, t := range active {
		if t.ElementId != ref.Id() || t.Status != model.GATEWAY_ACTIVATED {
			continue
		}
		edge := t.OriginElementId()
		if _, ok := byEdge[edge]; !ok {
			byEdge[edge] = t
		}
	}
	arrived := make([]string, 0, len(byEdge))
	for edge := range byEdge {
		arrived = append(arrived, edge)
	}
	if !util.ContainsAll(arrived, incoming) {
		logger.Debug("join waiting for remaining branches", zap.String("element", ref.Id()), zap.String("instance", token.InstanceId), zap.Int("arrived", len(byEdge)), zap.Int("expected", len(incoming)))
		return nil
	}
	consume := make([]model.Token, 0, len(incoming))
	for _, edge := range incoming {
		consume = append(consume, byEdge[edge])
	}
	completed := e.statusToken(token, model.GATEWAY_COMPLETED)
	if err := e.storage.LogToken(token.InstanceId, consume, []model.Token{completed}); err != nil {
		var conflict persistence.ConflictError
		if errors.As(err, &conflict) {
			// a concurrent branch completed the join first
			logger.Debug("join already completed by concurrent branch", zap.String("element", ref.Id()), zap.String("instance", token.InstanceId))
			return nil
		}
		return err
	}
	logger.Info("parallel join completed", zap.String("element", ref.Id()), zap.String("instance", token.InstanceId), zap.Int("branches", len(incoming)))
	if err := e.dispatcher.Dispatch(completed); err != nil {
		logger.Error("error dispatching join token", zap.String("token", completed.Id), zap.Error(err))
	}
	return nil
}
