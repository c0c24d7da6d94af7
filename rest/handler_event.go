package rest

import (
	"encoding/json"
	"net/http"

	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleRaiseEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "event name is required")
		return
	}
	instances, err := s.engine.RaiseEvent(req.Name, req.Payload)
	if err != nil {
		logger.Error("error raising event", zap.String("event", req.Name), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error raising event")
		return
	}
	respondOK(w, map[string]any{"instances": instances})
}
