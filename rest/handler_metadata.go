package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleDeployProcess(w http.ResponseWriter, r *http.Request) {
	var def model.ProcessDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if err := s.metadataService.Deploy(def); err != nil {
		logger.Error("error deploying process", zap.String("process", def.ProcessId), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.ArmTimerStartEvents(def.ProcessId, def.VersionId); err != nil {
		logger.Error("error arming timer start events", zap.String("process", def.ProcessId), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleGetProcess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	process, err := s.metadataService.GetProcess(vars["processId"], vars["versionId"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "process definition not found")
		return
	}
	respondWithJSON(w, http.StatusOK, process.Definition())
}

func (s *Server) HandleUndeployProcess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.metadataService.Undeploy(vars["processId"], vars["versionId"]); err != nil {
		logger.Error("error undeploying process", zap.String("process", vars["processId"]), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "error undeploying process")
		return
	}
	respondOKWithoutBody(w)
}
