package rest

import (
	"encoding/json"
	"net/http"

	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandlePollWork(w http.ResponseWriter, r *http.Request) {
	var req model.PollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.Agent == "" {
		respondWithError(w, http.StatusBadRequest, "agent is required")
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 1
	}
	items, err := s.workQueue.Poll(req.Agent, req.BatchSize)
	if err != nil {
		logger.Error("error polling work items", zap.String("agent", req.Agent), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error polling work items")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandleCompleteWork resumes the suspended activity referenced by a work
// item and acks the item off the agent queue.
func (s *Server) HandleCompleteWork(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Item   model.WorkItem `json:"item"`
		Result map[string]any `json:"result,omitempty"`
		Error  string         `json:"error,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	item := req.Item
	completion := model.CompletionRequest{
		Token:  item.Token,
		Result: req.Result,
		Error:  req.Error,
	}
	if err := s.engine.Completed(completion); err != nil {
		logger.Error("error completing work item", zap.String("item", item.Id), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error completing work item")
		return
	}
	if err := s.workQueue.Ack(item.Agent, []string{item.Id}); err != nil {
		logger.Error("error acking work item", zap.String("item", item.Id), zap.Error(err))
	}
	respondOKWithoutBody(w)
}
