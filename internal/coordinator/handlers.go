package coordinator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// errorBody is the fixed error shape of spec.md §4.3.
type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Status: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleIssueJob handles GET /job?batchSize=N.
func (s *Server) handleIssueJob(w http.ResponseWriter, r *http.Request) {
	batchSize := int64(1)
	if raw := r.URL.Query().Get("batchSize"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "batchSize must be a positive integer")
			return
		}
		batchSize = n
	}

	job, err := s.engine.IssueJob(batchSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func pathJobID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// handleUpdateJob handles PUT /job/{id} — a heartbeat.
func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathJobID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if !s.engine.UpdateJob(id) {
		writeError(w, http.StatusBadRequest, "job is not running")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleFinishJob handles POST /job/{id}.
func (s *Server) handleFinishJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathJobID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	finished, err := s.engine.FinishJob(id)
	if err != nil {
		s.logger.Error("checkpoint write failed after finishJob", zap.Error(err))
	}
	if !finished {
		writeError(w, http.StatusBadRequest, "job is not running")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleCancelJob handles DELETE /job/{id}.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathJobID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	cancelled, err := s.engine.CancelJob(id)
	if err != nil {
		s.logger.Error("checkpoint write failed after cancelJob", zap.Error(err))
	}
	if !cancelled {
		writeError(w, http.StatusBadRequest, "job is not running")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleAcceptResults handles POST /results with a JSON array body.
func (s *Server) handleAcceptResults(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil || string(bytes.TrimSpace(raw)) == "null" {
		writeError(w, http.StatusBadRequest, "body must be a JSON array")
		return
	}
	var results []json.RawMessage
	if err := json.Unmarshal(raw, &results); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array")
		return
	}
	if err := s.engine.AcceptResults(results); err != nil {
		s.logger.Error("checkpoint write failed after acceptResults", zap.Error(err))
	}
	w.WriteHeader(http.StatusOK)
}

// handleStatus handles GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// handleJobConfig handles GET /configuration/job.
func (s *Server) handleJobConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Timing())
}

// handleJobsByState handles GET /status/jobs/{running|pending|failed|completed}.
func (s *Server) handleJobsByState(w http.ResponseWriter, r *http.Request) {
	switch r.PathValue("state") {
	case "running":
		writeJSON(w, http.StatusOK, s.engine.RunningJobs())
	case "pending":
		writeJSON(w, http.StatusOK, s.engine.PendingJobs())
	case "failed":
		writeJSON(w, http.StatusOK, s.engine.FailedJobs())
	case "completed":
		writeJSON(w, http.StatusOK, s.engine.CompletedJobs())
	default:
		writeError(w, http.StatusNotFound, "unknown job state")
	}
}

// handleResults handles GET /status/results.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Results())
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
