// Package dashboard is the operator-facing HTTP API: conversation lists,
// transcripts, operator replies, status changes and exports.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/chatdesk/internal/chat"
	"github.com/wolfman30/chatdesk/internal/http/middleware"
	"github.com/wolfman30/chatdesk/internal/transcript"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

const maxBodyBytes = 16 << 10

// ChatService is the subset of chat.Service the dashboard uses.
type ChatService interface {
	Conversation(ctx context.Context, conversationID uuid.UUID) (*transcript.Conversation, error)
	ListConversations(ctx context.Context, operatorID string, filter transcript.ListFilter) ([]transcript.Conversation, error)
	Transcript(ctx context.Context, conversationID uuid.UUID) (*transcript.Conversation, []transcript.Message, error)
	SendOperatorMessage(ctx context.Context, conversationID uuid.UUID, text string) (*transcript.Message, error)
	SetStatus(ctx context.Context, conversationID uuid.UUID, status transcript.Status) error
}

// Handler serves dashboard routes. Authentication is applied by the router;
// operator-scoped tokens are narrowed to their own operator here.
type Handler struct {
	chat   ChatService
	logger *logging.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(svc ChatService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{chat: svc, logger: logger}
}

// ConversationListItem is one row of the conversation list.
type ConversationListItem struct {
	ID             string  `json:"id"`
	OperatorID     string  `json:"operator_id"`
	Status         string  `json:"status"`
	AgentRequested bool    `json:"agent_requested"`
	HandoffState   string  `json:"handoff_state"`
	Channel        string  `json:"channel,omitempty"`
	CustomerEmail  string  `json:"customer_email,omitempty"`
	CustomerPhone  string  `json:"customer_phone,omitempty"`
	MessageCount   int     `json:"message_count"`
	StartedAt      string  `json:"started_at"`
	LastMessageAt  string  `json:"last_message_at"`
	LastOperatorAt *string `json:"last_operator_message_at,omitempty"`
}

// MessageResponse represents a message in a conversation.
type MessageResponse struct {
	ID        string `json:"id"`
	Seq       int    `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Routes returns the dashboard routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/operators/{operatorID}/conversations", h.ListConversations)
	r.Route("/conversations/{conversationID}", func(r chi.Router) {
		r.Use(h.conversationAccess)
		r.Get("/messages", h.GetMessages)
		r.Post("/messages", h.SendMessage)
		r.Put("/status", h.UpdateStatus)
		r.Get("/export.xlsx", h.ExportXLSX)
	})
	return r
}

// ListConversations returns an operator's conversations, newest first.
// GET /dashboard/operators/{operatorID}/conversations?status=&limit=
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	operatorID := chi.URLParam(r, "operatorID")
	if !allowed(r, operatorID) {
		writeError(w, http.StatusForbidden, "forbidden", "token is scoped to another operator")
		return
	}
	filter := transcript.ListFilter{Status: transcript.Status(strings.TrimSpace(r.URL.Query().Get("status")))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	convs, err := h.chat.ListConversations(r.Context(), operatorID, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	items := make([]ConversationListItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, toListItem(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": items,
		"total":         len(items),
	})
}

// GetMessages returns the full transcript of a conversation.
// GET /dashboard/conversations/{conversationID}/messages
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	conv, msgs, err := h.chat.Transcript(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": toListItem(*conv),
		"messages":     out,
	})
}

// SendMessage posts an operator reply into the conversation.
// POST /dashboard/conversations/{conversationID}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.chat.SendOperatorMessage(r.Context(), id, req.Text)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("dashboard: operator message sent", "conversation_id", id, "seq", msg.Seq)
	writeJSON(w, http.StatusCreated, toMessage(*msg))
}

// UpdateStatus changes the conversation status.
// PUT /dashboard/conversations/{conversationID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	status := transcript.Status(strings.TrimSpace(req.Status))
	if err := h.chat.SetStatus(r.Context(), id, status); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("dashboard: status updated", "conversation_id", id, "status", status)
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": string(status)})
}

// conversationAccess rejects conversation routes for conversations outside
// the caller's operator scope. Unknown ids are reported as not found.
func (h *Handler) conversationAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := conversationID(w, r)
		if !ok {
			return
		}
		if _, scoped := middleware.AdminClaimsFromContext(r.Context()); scoped {
			conv, err := h.chat.Conversation(r.Context(), id)
			if err != nil {
				h.writeServiceError(w, err)
				return
			}
			if !allowed(r, conv.OperatorID) {
				writeError(w, http.StatusNotFound, "conversation not found", "")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func allowed(r *http.Request, operatorID string) bool {
	claims, ok := middleware.AdminClaimsFromContext(r.Context())
	return !ok || claims.CanAccess(operatorID)
}

func toListItem(c transcript.Conversation) ConversationListItem {
	item := ConversationListItem{
		ID:             c.ID.String(),
		OperatorID:     c.OperatorID,
		Status:         string(c.Status),
		AgentRequested: c.AgentRequested,
		HandoffState:   string(c.Handoff.State),
		Channel:        string(c.Handoff.Channel),
		CustomerEmail:  c.Contact.Email,
		CustomerPhone:  c.Contact.Phone,
		MessageCount:   c.MessageCount,
		StartedAt:      c.StartedAt.UTC().Format(time.RFC3339),
		LastMessageAt:  c.LastMessageAt.UTC().Format(time.RFC3339),
	}
	if item.HandoffState == "" {
		item.HandoffState = "none"
	}
	if c.LastOperatorMessageAt != nil {
		ts := c.LastOperatorMessageAt.UTC().Format(time.RFC3339)
		item.LastOperatorAt = &ts
	}
	return item
}

func toMessage(m transcript.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID.String(),
		Seq:       m.Seq,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation failed", verr.Error())
	case errors.Is(err, transcript.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "conversation not found", "")
	case errors.Is(err, transcript.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid status", err.Error())
	default:
		h.logger.Error("dashboard: request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	body := map[string]string{"error": msg}
	if detail != "" {
		body["detail"] = detail
	}
	writeJSON(w, status, body)
}
