package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/chatdesk/internal/archive"
	"github.com/wolfman30/chatdesk/internal/handoff"
	"github.com/wolfman30/chatdesk/internal/responder"
	"github.com/wolfman30/chatdesk/internal/session"
	"github.com/wolfman30/chatdesk/internal/transcript"
)

// PollResult is a point-in-time view of operator-side messages.
type PollResult struct {
	Messages    []transcript.Message `json:"messages"`
	TotalCount  int                  `json:"total_count"`
	HumanJoined bool                 `json:"human_joined"`
}

// Poll returns operator and system messages at index lastSeen or later,
// plus the total message count the client should resume from. It never
// blocks on the session lock.
func (s *Service) Poll(ctx context.Context, operatorID, sessionID string, lastSeen int) (*PollResult, error) {
	operatorID, sessionID, err := validateIDs(operatorID, sessionID)
	if err != nil {
		return nil, err
	}
	if lastSeen < 0 {
		return nil, invalid("last_seen", "must not be negative")
	}

	conv, err := s.transcripts.GetConversationBySession(ctx, transcript.SessionKey(operatorID, sessionID))
	if errors.Is(err, transcript.ErrConversationNotFound) {
		return &PollResult{Messages: []transcript.Message{}}, nil
	}
	if err != nil {
		return nil, err
	}
	msgs, err := s.transcripts.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	out := &PollResult{
		Messages:    []transcript.Message{},
		TotalCount:  len(msgs),
		HumanJoined: conv.Handoff.State == handoff.StateHumanJoined,
	}
	for i := lastSeen; i < len(msgs); i++ {
		if msgs[i].Role == transcript.RoleOperator || msgs[i].Role == transcript.RoleSystem {
			out.Messages = append(out.Messages, msgs[i])
		}
	}
	return out, nil
}

// SendOperatorMessage appends an operator reply. The first one injects the
// joined system message and moves a new conversation to in_progress.
func (s *Service) SendOperatorMessage(ctx context.Context, conversationID uuid.UUID, text string) (*transcript.Message, error) {
	ctx, span := tracer.Start(ctx, "chat.send_operator_message")
	defer span.End()

	text, err := validateText(text)
	if err != nil {
		return nil, err
	}
	conv, err := s.transcripts.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conv.SessionKey)
	defer unlock()

	// Reload under the lock so a concurrent customer message is not lost.
	conv, err = s.transcripts.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.config(ctx, conv.OperatorID)
	if err != nil && !errors.Is(err, ErrOperatorNotFound) {
		return nil, err
	}
	out := handoff.Transition(conv.Handoff, contactOf(conv), handoff.OperatorJoined(), handoff.PolicyFor(cfg))
	s.apply(ctx, cfg, conv, out, "")

	if conv.Status == transcript.StatusNew {
		if err := s.transcripts.SetStatus(ctx, conv.ID, transcript.StatusInProgress); err != nil {
			return nil, fmt.Errorf("chat: set status: %w", err)
		}
	}

	msg, err := s.transcripts.AppendMessage(ctx, conv.ID, transcript.RoleOperator, text)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.cacheAppend(ctx, conv.SessionKey, session.Turn{Role: responder.ChatRoleAssistant, Content: text})
	s.logger.Info("operator message sent", "conversation_id", conv.ID, "operator_id", conv.OperatorID)
	return msg, nil
}

// SetStatus changes a conversation's status. Leaving resolved resets the
// handoff; entering resolved archives the transcript when configured.
func (s *Service) SetStatus(ctx context.Context, conversationID uuid.UUID, status transcript.Status) error {
	if !status.Valid() {
		return invalid("status", "must be one of new, in_progress, resolved, on_hold")
	}
	conv, err := s.transcripts.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(conv.SessionKey)
	defer unlock()

	conv, err = s.transcripts.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	prev := conv.Status
	if prev == status {
		return nil
	}

	if prev == transcript.StatusResolved {
		out := handoff.Transition(conv.Handoff, contactOf(conv), handoff.Reopened(), handoff.Policy{})
		s.apply(ctx, nil, conv, out, "")
	}
	if err := s.transcripts.SetStatus(ctx, conv.ID, status); err != nil {
		return err
	}
	if status == transcript.StatusResolved {
		conv.Status = status
		s.archive(ctx, conv)
		if err := s.cache.Delete(ctx, conv.SessionKey); err != nil {
			s.logger.Warn("chat: session cache delete failed", "error", err, "session_key", conv.SessionKey)
		}
	}
	s.logger.Info("conversation status changed", "conversation_id", conv.ID, "from", prev, "to", status)
	return nil
}

func (s *Service) archive(ctx context.Context, conv *transcript.Conversation) {
	if s.archiver == nil {
		return
	}
	msgs, err := s.transcripts.ListMessages(ctx, conv.ID)
	if err != nil {
		s.logger.Error("chat: archive skipped, list messages failed", "error", err, "conversation_id", conv.ID)
		return
	}
	record := archive.Record{
		ConversationID: conv.ID.String(),
		OperatorID:     conv.OperatorID,
		SessionID:      conv.SessionKey,
		Status:         string(conv.Status),
		HandoffState:   string(conv.Handoff.State),
		AgentRequested: conv.AgentRequested,
		EmailHash:      archive.HashContact(conv.Contact.Email),
		PhoneHash:      archive.HashContact(conv.Contact.Phone),
		StartedAt:      conv.StartedAt,
		ArchivedAt:     s.now(),
		Messages:       make([]archive.Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		record.Messages = append(record.Messages, archive.Message{Seq: m.Seq, Role: string(m.Role), Content: m.Content, Timestamp: m.CreatedAt})
	}
	if _, err := s.archiver.ArchiveConversation(ctx, record); err != nil {
		s.logger.Error("chat: archive failed", "error", err, "conversation_id", conv.ID)
	}
}

// ListConversations returns an operator's conversations, newest activity first.
func (s *Service) ListConversations(ctx context.Context, operatorID string, filter transcript.ListFilter) ([]transcript.Conversation, error) {
	if err := validateID("operator_id", operatorID); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "must be one of new, in_progress, resolved, on_hold")
	}
	return s.transcripts.ListConversations(ctx, operatorID, filter)
}

// Conversation returns a conversation without its messages.
func (s *Service) Conversation(ctx context.Context, conversationID uuid.UUID) (*transcript.Conversation, error) {
	return s.transcripts.GetConversation(ctx, conversationID)
}

// Transcript returns a conversation and all of its messages in order.
func (s *Service) Transcript(ctx context.Context, conversationID uuid.UUID) (*transcript.Conversation, []transcript.Message, error) {
	conv, err := s.transcripts.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.transcripts.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}
