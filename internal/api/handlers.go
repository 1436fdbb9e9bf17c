package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

func (s *Server) handleValidateSources(w http.ResponseWriter, r *http.Request) {
	var files models.InputFiles
	if !s.decode(w, r, &files) {
		return
	}
	if err := files.Validate(); err != nil {
		s.writeError(w, r, lib.ErrValidation(err.Error()))
		return
	}

	outcome, err := s.ingestion.ValidateSources(r.Context(), files)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleNewLayer(w http.ResponseWriter, r *http.Request) {
	var req models.NewLayerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, lib.ErrValidation(err.Error()))
		return
	}

	resp, err := s.ingestion.NewLayer(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateLayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := models.ValidateID("catalog id", id); err != nil {
		s.writeError(w, r, lib.ErrValidation(err.Error()))
		return
	}

	var req models.UpdateLayerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, lib.ErrValidation(err.Error()))
		return
	}

	resp, err := s.ingestion.UpdateLayer(r.Context(), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := models.ValidateID("job id", jobID); err != nil {
		s.writeError(w, r, lib.ErrValidation(err.Error()))
		return
	}

	if err := s.ingestion.RetryJob(r.Context(), jobID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// decode reads a JSON body, rejecting unknown fields. It answers the
// request itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, lib.ErrValidation(fmt.Sprintf("invalid request body: %v", err)))
		return false
	}
	return true
}
