package chat

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/chatdesk/internal/handoff"
	"github.com/wolfman30/chatdesk/internal/messaging"
	"github.com/wolfman30/chatdesk/internal/transcript"
)

// ContactResult is the outcome of a contact form submission.
type ContactResult struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Reply          string    `json:"reply,omitempty"`
	Flags          Flags     `json:"flags"`
}

// SubmitContact records contact details from the widget form. At least one
// of email and phone is required; both are validated before anything is
// written.
func (s *Service) SubmitContact(ctx context.Context, operatorID, sessionID, email, phone string) (*ContactResult, error) {
	ctx, span := tracer.Start(ctx, "chat.submit_contact")
	defer span.End()

	operatorID, sessionID, err := validateIDs(operatorID, sessionID)
	if err != nil {
		return nil, err
	}
	email, phone, err = validateContact(email, phone)
	if err != nil {
		return nil, err
	}

	cfg, err := s.config(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	key := transcript.SessionKey(operatorID, sessionID)
	unlock := s.locks.Lock(key)
	defer unlock()

	conv, err := s.transcripts.GetOrCreateConversation(ctx, operatorID, key)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := handoff.Transition(conv.Handoff, contactOf(conv), handoff.ContactSubmitted(email, phone), handoff.PolicyFor(cfg))
	reply := s.apply(ctx, cfg, conv, out, "")
	if reply != "" {
		if _, err := s.transcripts.AppendMessage(ctx, conv.ID, transcript.RoleAssistant, reply); err != nil {
			s.logger.Error("chat: persist contact reply failed", "error", err, "conversation_id", conv.ID)
		}
	}

	return &ContactResult{
		ConversationID: conv.ID,
		Reply:          reply,
		Flags: Flags{
			AgentRequested: conv.AgentRequested,
			StartPolling:   out.StartPolling,
			HumanJoined:    conv.Handoff.State == handoff.StateHumanJoined,
			Channel:        conv.Handoff.Channel,
			State:          conv.Handoff.State,
		},
	}, nil
}

func validateContact(email, phone string) (string, string, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return "", "", invalid("contact", "email or phone is required")
	}
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
			return "", "", invalid("email", "is not a valid address")
		}
		email = strings.ToLower(email)
	}
	if phone != "" {
		normalized := messaging.NormalizeE164(phone)
		if !messaging.ValidE164(normalized) {
			return "", "", invalid("phone", "is not a valid phone number")
		}
		phone = normalized
	}
	return email, phone, nil
}
