// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/vidlens/internal/auth"
	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/orchestrator"
	"github.com/ManuGH/vidlens/internal/runstore"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	logger := log.WithContext(r.Context(), s.logger)

	if !auth.AuthorizeRequest(r, s.cfg.VerifyToken) {
		logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("trigger token rejected")
		writeStatus(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var req orchestrator.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTriggerBody))
	if err := dec.Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.VideoName = strings.TrimSpace(req.VideoName)
	req.RecordID = strings.TrimSpace(req.RecordID)

	logger.Info().
		Str(log.FieldVideoName, req.VideoName).
		Str(log.FieldRecordID, req.RecordID).
		Msg("analysis trigger received")

	// A blank video name is still accepted; the run reports the failure to the record.
	ack, err := s.submitter.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrClosed) || errors.Is(err, orchestrator.ErrQueueFull) {
			logger.Warn().Err(err).Msg("analysis trigger not admitted")
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logger.Error().Err(err).Msg("analysis trigger failed")
		writeStatus(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, AnalyzeResponse{
		StatusCode: Status{Code: http.StatusOK, Message: ack.Message},
		RunID:      ack.RunID,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.runs.Get(r.Context(), id)
	if errors.Is(err, runstore.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).Str(log.FieldRunID, id).Msg("run lookup failed")
		writeServiceUnavailable(w, errors.New("run ledger unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
	}

	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}
