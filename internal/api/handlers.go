package api

import (
	"context"
	"errors"
	"net/http"

	"autoshutdown/internal/commands"
	"autoshutdown/internal/types"
)

// EnableRequest is the body of the */enabled endpoints.
type EnableRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// TimeRequest is the body of PUT /v1/timer and PUT /v1/delay. Value uses the
// H:M:S or H-M-S form.
type TimeRequest struct {
	Value string `json:"value" validate:"required,max=32"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Commands.Status(r.Context())
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: st})
}

func (s *Server) handleEnableTimer(w http.ResponseWriter, r *http.Request) {
	s.handleEnable(w, r, s.Commands.EnableTimer)
}

func (s *Server) handleEnableDelay(w http.ResponseWriter, r *http.Request) {
	s.handleEnable(w, r, s.Commands.EnableDelay)
}

func (s *Server) handleSetTimer(w http.ResponseWriter, r *http.Request) {
	s.handleSet(w, r, s.Commands.SetTimer)
}

func (s *Server) handleSetDelay(w http.ResponseWriter, r *http.Request) {
	s.handleSet(w, r, s.Commands.SetDelay)
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request, cmd func(context.Context, bool) (commands.Result, error)) {
	var req EnableRequest
	if err := s.decode(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	res, err := cmd(r.Context(), *req.Enabled)
	s.writeResult(w, r, res, err)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request, cmd func(context.Context, string) (commands.Result, error)) {
	var req TimeRequest
	if err := s.decode(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	res, err := cmd(r.Context(), req.Value)
	s.writeResult(w, r, res, err)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := DecodeJSON(w, r, dst); err != nil {
		return err
	}
	return s.Validator.ValidateStruct(dst)
}

// writeResult renders a command outcome. A persistence failure is reported
// as an error, with the confirmation attached so the client knows the change
// is live but not durable.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res commands.Result, err error) {
	if err == nil {
		JSON(w, r, http.StatusOK, APIResponse{Data: res})
		return
	}

	var appErr *types.AppError
	if types.IsPersistenceError(err) && errors.As(err, &appErr) {
		err = appErr.WithDetails(map[string]any{
			"applied": true,
			"result":  res.Message,
		})
	}
	Error(w, r, err)
}
