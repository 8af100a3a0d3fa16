package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

type setAttackModeRequest struct {
	AttackMode *string `json:"attack_mode"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type attackModeResponse struct {
	AttackMode string   `json:"attack_mode"`
	Available  []string `json:"available"`
}

func (s *Server) handleSetAttackMode(w http.ResponseWriter, r *http.Request) {
	var req setAttackModeRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	name := domain.DefaultCategory.String()
	if req.AttackMode != nil {
		name = *req.AttackMode
	}

	c, err := s.svc.SetAttackMode(name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "attack mode set to " + c.String()})
}

func (s *Server) handleAttackMode(w http.ResponseWriter, r *http.Request) {
	all := domain.AllCategories()
	available := make([]string, len(all))
	for i, c := range all {
		available[i] = c.String()
	}
	writeJSON(w, r, http.StatusOK, attackModeResponse{
		AttackMode: s.svc.AttackMode().String(),
		Available:  available,
	})
}

func (s *Server) handleStreamData(w http.ResponseWriter, r *http.Request) {
	row, err := s.svc.StreamRow()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, row)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var row domain.FeatureRow
	if err := s.decode(w, r, &row); err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	if row == nil {
		writeError(w, r, http.StatusInternalServerError, "request body must be a JSON object")
		return
	}

	pred, err := s.svc.Predict(r.Context(), row)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Str("kind", domain.ErrorKind(err)).Msg("Prediction rejected")
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, pred)
}

// decode reads exactly one JSON value. Numbers are kept as json.Number so
// integer features survive unchanged.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return fmt.Errorf("malformed JSON: %w", err)
		}
	}
	if dec.More() {
		return errors.New("malformed JSON: trailing data after object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}
