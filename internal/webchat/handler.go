// Package webchat is the customer-facing HTTP surface the embeddable widget
// talks to: send a message, leave contact details, poll for operator
// replies and reload the transcript.
package webchat

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/chatdesk/internal/chat"
	"github.com/wolfman30/chatdesk/internal/transcript"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

//go:embed widget.js
var defaultWidgetJS []byte

const maxBodyBytes = 16 << 10

// ChatService is the subset of chat.Service the widget endpoints need.
type ChatService interface {
	SubmitMessage(ctx context.Context, operatorID, sessionID, text string) (*chat.SubmitResult, error)
	SubmitContact(ctx context.Context, operatorID, sessionID, email, phone string) (*chat.ContactResult, error)
	Poll(ctx context.Context, operatorID, sessionID string, lastSeen int) (*chat.PollResult, error)
	History(ctx context.Context, operatorID, sessionID string) ([]transcript.Message, error)
}

// Handler serves the widget API.
type Handler struct {
	chat     ChatService
	logger   *logging.Logger
	widgetJS []byte
}

// MessageResponse is returned from POST /chat/message.
type MessageResponse struct {
	SessionID      string     `json:"session_id"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Reply          string     `json:"reply,omitempty"`
	Escalation     chat.Flags `json:"escalation"`
}

// HistoryMessage is a simplified message for history and poll responses.
type HistoryMessage struct {
	Seq       int    `json:"seq"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler. A nil widgetJS serves the bundled
// widget.
func NewHandler(svc ChatService, widgetJS []byte, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if len(widgetJS) == 0 {
		widgetJS = defaultWidgetJS
	}
	return &Handler{chat: svc, logger: logger, widgetJS: widgetJS}
}

// Routes mounts the widget endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/message", h.HandleMessage)
	r.Post("/contact", h.HandleContact)
	r.Get("/poll", h.HandlePoll)
	r.Get("/history", h.HandleHistory)
	r.Get("/widget.js", h.HandleWidgetJS)
	return r
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return hex.EncodeToString(b)
}

// HandleMessage accepts one customer message and returns the reply inline.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorID string `json:"operator_id"`
		SessionID  string `json:"session_id"`
		Text       string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = generateSessionID()
	}

	res, err := h.chat.SubmitMessage(r.Context(), req.OperatorID, req.SessionID, req.Text)
	if err != nil {
		h.writeServiceError(w, err, "webchat: submit message failed")
		return
	}

	out := MessageResponse{
		SessionID:  res.SessionID,
		Reply:      res.Reply,
		Escalation: res.Flags,
	}
	if res.ConversationID != uuid.Nil {
		out.ConversationID = res.ConversationID.String()
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleContact records the contact form.
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorID string `json:"operator_id"`
		SessionID  string `json:"session_id"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
	}
	if !decode(w, r, &req) {
		return
	}

	res, err := h.chat.SubmitContact(r.Context(), req.OperatorID, req.SessionID, req.Email, req.Phone)
	if err != nil {
		h.writeServiceError(w, err, "webchat: submit contact failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"reply":      res.Reply,
		"escalation": res.Flags,
	})
}

// HandlePoll returns operator messages the widget has not shown yet.
func (h *Handler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	last := 0
	if raw := strings.TrimSpace(q.Get("last")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "last must be an integer")
			return
		}
		last = n
	}

	res, err := h.chat.Poll(r.Context(), q.Get("operator"), q.Get("session"), last)
	if err != nil {
		h.writeServiceError(w, err, "webchat: poll failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":     toHistory(res.Messages),
		"total_count":  res.TotalCount,
		"human_joined": res.HumanJoined,
	})
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	msgs, err := h.chat.History(r.Context(), q.Get("operator"), q.Get("session"))
	if err != nil {
		h.writeServiceError(w, err, "webchat: failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":    toHistory(msgs),
		"total_count": len(msgs),
	})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

func toHistory(msgs []transcript.Message) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{
			Seq:       m.Seq,
			Role:      string(m.Role),
			Text:      m.Content,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, chat.ErrOperatorNotFound):
		writeError(w, http.StatusNotFound, "service not found")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusServiceUnavailable, chat.UnavailableReply)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
