package devserver

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxProgressBody = 1 << 20

var emptyProgress = json.RawMessage(`{"modules":{},"complete_training":false}`)

type progressEnvelope struct {
	TrainingProgress json.RawMessage `json:"training_progress"`
}

// GET /api/training-progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	learner := learnerFrom(r.Context())
	doc, _, err := s.learners.Load(r.Context(), learner)
	if err != nil {
		s.log.Error("load progress", zap.String("learner", learner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load progress")
		return
	}
	if doc == nil {
		doc = emptyProgress
	}
	writeJSON(w, http.StatusOK, progressEnvelope{TrainingProgress: doc})
}

// POST /api/training-progress  {"training_progress": {...}}
func (s *Server) handlePostProgress(w http.ResponseWriter, r *http.Request) {
	learner := learnerFrom(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProgressBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	var env progressEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if len(env.TrainingProgress) == 0 || string(env.TrainingProgress) == "null" {
		writeError(w, http.StatusBadRequest, "training_progress is required")
		return
	}
	var probe struct {
		Modules map[string]json.RawMessage `json:"modules"`
	}
	if err := json.Unmarshal(env.TrainingProgress, &probe); err != nil || probe.Modules == nil {
		writeError(w, http.StatusBadRequest, "training_progress.modules must be an object")
		return
	}

	if err := s.learners.Save(r.Context(), learner, env.TrainingProgress, s.now()); err != nil {
		s.log.Error("save progress", zap.String("learner", learner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save progress")
		return
	}
	s.log.Debug("progress saved", zap.String("learner", learner), zap.Int("modules", len(probe.Modules)))
	writeJSON(w, http.StatusOK, env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
