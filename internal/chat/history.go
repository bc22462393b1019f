package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/wolfman30/chatdesk/internal/responder"
	"github.com/wolfman30/chatdesk/internal/session"
	"github.com/wolfman30/chatdesk/internal/transcript"
)

// History returns the full transcript of a customer session so the widget
// can redraw after a page reload. Unknown sessions return no messages.
func (s *Service) History(ctx context.Context, operatorID, sessionID string) ([]transcript.Message, error) {
	operatorID, sessionID, err := validateIDs(operatorID, sessionID)
	if err != nil {
		return nil, err
	}
	conv, err := s.transcripts.GetConversationBySession(ctx, transcript.SessionKey(operatorID, sessionID))
	if errors.Is(err, transcript.ErrConversationNotFound) {
		return []transcript.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.transcripts.ListMessages(ctx, conv.ID)
}

// loadHistory returns the cached turns for key, rebuilding them from the
// transcript on a miss. Cache errors fall back to the transcript too.
func (s *Service) loadHistory(ctx context.Context, key string, conversationID uuid.UUID) []session.Turn {
	turns, ok, err := s.cache.History(ctx, key)
	if err != nil {
		s.logger.Warn("chat: session cache read failed", "error", err, "session_key", key)
	}
	if ok && err == nil {
		return turns
	}

	msgs, err := s.transcripts.ListMessages(ctx, conversationID)
	if err != nil {
		s.logger.Warn("chat: history rebuild failed", "error", err, "conversation_id", conversationID)
		return nil
	}
	turns = turnsFromTranscript(msgs, s.history)
	if err := s.cache.Seed(ctx, key, turns); err != nil {
		s.logger.Warn("chat: session cache seed failed", "error", err, "session_key", key)
	}
	return turns
}

// cacheAppend extends a warm cache entry. A cold session is left alone and
// rebuilt from the transcript on its next customer message.
func (s *Service) cacheAppend(ctx context.Context, key string, turn session.Turn) {
	if err := s.cache.Append(ctx, key, turn); err != nil {
		s.logger.Warn("chat: session cache append failed", "error", err, "session_key", key)
	}
}

// turnsFromTranscript maps stored messages onto completion roles, keeping
// the last limit turns. System messages are not part of the prompt.
func turnsFromTranscript(msgs []transcript.Message, limit int) []session.Turn {
	turns := make([]session.Turn, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case transcript.RoleCustomer:
			turns = append(turns, session.Turn{Role: responder.ChatRoleUser, Content: m.Content})
		case transcript.RoleAssistant, transcript.RoleOperator:
			turns = append(turns, session.Turn{Role: responder.ChatRoleAssistant, Content: m.Content})
		}
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns
}
