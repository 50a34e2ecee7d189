package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/becomeliminal/nim-memory-gateway/core"
	"github.com/becomeliminal/nim-memory-gateway/tools"
)

// errorBody is the JSON body of a failed request.
type errorBody struct {
	core.ErrorResponse
	Fields ValidationErrors `json:"fields,omitempty"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req core.AddRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.cfg.Gateway.Add(r.Context(), req.Repo, *req.Text)
	recordOperation("http", "add", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, core.AddResponse{Status: core.StatusOK})
}

func (s *Server) handleSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req core.SystemPromptRequest
	if !s.decode(w, r, &req) {
		return
	}

	memoryContext, err := s.cfg.Gateway.SystemPrompt(r.Context(), req.Repo, *req.Conversation)
	recordOperation("http", "system_prompt", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, core.SystemPromptResponse{MemoryContext: memoryContext})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "anthropic" {
		writeJSON(w, http.StatusOK, s.cfg.Tools.AnthropicTools())
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Tools.Definitions())
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	input, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
		return
	}

	name := r.PathValue("name")
	result, err := s.cfg.Tools.Execute(r.Context(), name, &tools.Params{
		Input:     input,
		RequestID: r.Header.Get("X-Request-Id"),
	})
	if errors.Is(err, tools.ErrUnknownTool) {
		writeJSON(w, http.StatusNotFound, errorBody{ErrorResponse: core.ErrorResponse{Error: err.Error()}})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": core.StatusOK})
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{ErrorResponse: core.ErrorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}})
			return false
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{ErrorResponse: core.ErrorResponse{
			Error: fmt.Sprintf("invalid JSON body: %v", err),
		}})
		return false
	}

	if err := validateRequest(dst); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{
				ErrorResponse: core.ErrorResponse{Error: err.Error()},
				Fields:        verrs,
			})
			return false
		}
		writeError(w, err)
		return false
	}
	return true
}

// statusFor maps a gateway error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEngineUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] Request failed (%d): %v", status, err)
	}
	writeJSON(w, status, errorBody{ErrorResponse: core.ErrorResponse{Error: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to write response: %v", err)
	}
}
