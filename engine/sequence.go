package engine

import (
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
)

func (e *Engine) processSequence(process *metadata.Process, ref *metadata.ElementRef, token model.Token) error {
	switch token.Status {
	case model.SEQUENCE_ACTIVATED:
		return e.transition(token, e.statusToken(token, model.SEQUENCE_COMPLETED))
	case model.SEQUENCE_COMPLETED:
		return e.activateNext(process, ref, token)
	}
	logger.Debug("sequence token with unhandled status", zap.String("element", token.ElementId), zap.String("status", string(token.Status)))
	return nil
}
