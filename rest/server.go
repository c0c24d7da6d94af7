package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/persistence"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	metadataService metadata.MetadataService
	engine          *engine.Engine
	workQueue       persistence.WorkQueue
}

func NewServer(httpPort int, metadataService metadata.MetadataService, eng *engine.Engine, workQueue persistence.WorkQueue) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		metadataService: metadataService,
		engine:          eng,
		workQueue:       workQueue,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/metadata/process", s.HandleDeployProcess).Methods(http.MethodPost)
	router.HandleFunc("/metadata/process/{processId}/{versionId}", s.HandleGetProcess).Methods(http.MethodGet)
	router.HandleFunc("/metadata/process/{processId}/{versionId}", s.HandleUndeployProcess).Methods(http.MethodDelete)

	router.HandleFunc("/event", s.HandleRaiseEvent).Methods(http.MethodPost)

	router.HandleFunc("/instance/{id}", s.HandleGetInstance).Methods(http.MethodGet)
	router.HandleFunc("/instance/{id}/fail", s.HandleFailInstance).Methods(http.MethodPost)

	router.HandleFunc("/work/poll", s.HandlePollWork).Methods(http.MethodPost)
	router.HandleFunc("/work/complete", s.HandleCompleteWork).Methods(http.MethodPost)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
