package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/cuemby/failwatch/pkg/feed"
	"github.com/cuemby/failwatch/pkg/metrics"
	"github.com/cuemby/failwatch/pkg/types"
)

// Metric labels for requests outside the envelope
const (
	commandPromote = "PROMOTE"
	commandIngest  = "INGEST"
)

// hostsRequest is the body of prune requests
type hostsRequest struct {
	Hosts []string `json:"hosts"`
}

// domainsRequest is the body of submit and promote requests
type domainsRequest struct {
	Domains []string `json:"domains"`
}

// IngestResult answers POST /api/v1/events
type IngestResult struct {
	Accepted int `json:"accepted"`
	Captured int `json:"captured"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.respondWithError(w, "UNKNOWN", http.StatusBadRequest, err.Error())
		return
	}

	cmd, err := DecodeCommand(body)
	if err != nil {
		s.respondWithError(w, "UNKNOWN", http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.commands.Execute(r.Context(), cmd)
	if err != nil {
		s.respondWithError(w, string(cmd.Type), statusFor(err), err.Error())
		return
	}
	s.respondWithJSON(w, string(cmd.Type), http.StatusOK, result)
}

func (s *Server) handleListHosts(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, string(types.CommandGetFailedHosts), http.StatusOK, s.commands.ListHosts())
}

func (s *Server) handleClearHosts(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, string(types.CommandClearFailedHosts), http.StatusOK, s.commands.ClearHosts(r.Context()))
}

func (s *Server) handlePruneHosts(w http.ResponseWriter, r *http.Request) {
	command := string(types.CommandPruneFailedHosts)

	var req hostsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, command, http.StatusBadRequest, err.Error())
		return
	}
	s.respondWithJSON(w, command, http.StatusOK, s.commands.PruneHosts(r.Context(), req.Hosts))
}

func (s *Server) handleAddToProxy(w http.ResponseWriter, r *http.Request) {
	command := string(types.CommandAddToProxy)

	var req domainsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, command, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.commands.AddToProxy(r.Context(), req.Domains)
	if err != nil {
		s.respondWithError(w, command, statusFor(err), err.Error())
		return
	}
	s.respondWithJSON(w, command, http.StatusOK, results)
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req domainsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondWithError(w, commandPromote, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.commands.Promote(r.Context(), req.Domains)
	if err != nil {
		s.respondWithError(w, commandPromote, statusFor(err), err.Error())
		return
	}
	s.respondWithJSON(w, commandPromote, http.StatusOK, result)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.sink == nil {
		s.respondWithError(w, commandIngest, http.StatusServiceUnavailable, "ingest disabled")
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		s.respondWithError(w, commandIngest, http.StatusBadRequest, err.Error())
		return
	}

	evs, err := feed.Decode(body)
	if err != nil {
		s.respondWithError(w, commandIngest, http.StatusBadRequest, err.Error())
		return
	}

	captured := s.sink.HandleBatch(r.Context(), evs)
	s.respondWithJSON(w, commandIngest, http.StatusAccepted, IngestResult{
		Accepted: len(evs),
		Captured: captured,
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("malformed request: %w", err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNothingSelected), errors.Is(err, ErrUnknownCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondWithJSON(w http.ResponseWriter, command string, status int, payload interface{}) {
	metrics.APIRequestsTotal.WithLabelValues(command, strconv.Itoa(status)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn().Err(err).Str("command", command).Msg("failed to write response")
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, command string, status int, message string) {
	s.respondWithJSON(w, command, status, types.ErrorResult{OK: false, Error: message})
}
