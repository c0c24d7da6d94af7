package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/procflow/procflow/logger"
	"go.uber.org/zap"
)

func (s *Server) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	execution, err := s.engine.GetExecution(vars["id"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "instance not found")
		return
	}
	respondWithJSON(w, http.StatusOK, execution)
}

func (s *Server) HandleFailInstance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.engine.FailInstance(vars["id"]); err != nil {
		logger.Error("error failing instance", zap.String("instance", vars["id"]), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error failing instance")
		return
	}
	respondOKWithoutBody(w)
}
