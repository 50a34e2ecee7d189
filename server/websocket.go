package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/becomeliminal/nim-memory-gateway/core"
)

// WebSocket frame types.
const (
	FrameAdd           = "add"
	FrameSystemPrompt  = "system_prompt"
	FrameAck           = "ack"
	FrameMemoryContext = "memory_context"
	FrameError         = "error"
)

// wsRequest is an inbound frame.
type wsRequest struct {
	Type         string  `json:"type"`
	ID           string  `json:"id,omitempty"`
	Repo         string  `json:"repo"`
	Text         *string `json:"text,omitempty"`
	Conversation *string `json:"conversation,omitempty"`
}

// wsResponse is an outbound frame. Replies carry the request's ID.
type wsResponse struct {
	Type          string  `json:"type"`
	ID            string  `json:"id"`
	Status        string  `json:"status,omitempty"`
	MemoryContext *string `json:"memory_context,omitempty"`
	Error         string  `json:"error,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	conn.SetReadLimit(s.cfg.MaxBodyBytes)
	log.Printf("[WS] Client connected from %s", r.RemoteAddr)

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}

		resp := s.handleFrame(ctx, data)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[WS] Write error: %v", err)
			return
		}
	}
}

// handleFrame processes one frame. Failures become error frames.
func (s *Server) handleFrame(ctx context.Context, data []byte) wsResponse {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return wsResponse{Type: FrameError, ID: uuid.NewString(), Error: fmt.Sprintf("invalid frame: %v", err)}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	switch req.Type {
	case FrameAdd:
		add := core.AddRequest{Repo: req.Repo, Text: req.Text}
		if err := validateRequest(add); err != nil {
			return errorFrame(req.ID, err)
		}
		err := s.cfg.Gateway.Add(ctx, add.Repo, *add.Text)
		recordOperation("websocket", "add", err)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		return wsResponse{Type: FrameAck, ID: req.ID, Status: core.StatusOK}

	case FrameSystemPrompt:
		sp := core.SystemPromptRequest{Repo: req.Repo, Conversation: req.Conversation}
		if err := validateRequest(sp); err != nil {
			return errorFrame(req.ID, err)
		}
		memoryContext, err := s.cfg.Gateway.SystemPrompt(ctx, sp.Repo, *sp.Conversation)
		recordOperation("websocket", "system_prompt", err)
		if err != nil {
			return errorFrame(req.ID, err)
		}
		return wsResponse{Type: FrameMemoryContext, ID: req.ID, MemoryContext: &memoryContext}

	default:
		return errorFrame(req.ID, fmt.Errorf("%w: unknown frame type %q", core.ErrInvalidRequest, req.Type))
	}
}

func errorFrame(id string, err error) wsResponse {
	var verrs ValidationErrors
	if !errors.As(err, &verrs) && statusFor(err) >= http.StatusInternalServerError {
		log.Printf("[WS] Frame %s failed: %v", id, err)
	}
	return wsResponse{Type: FrameError, ID: id, Error: err.Error()}
}
