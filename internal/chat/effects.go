package chat

import (
	"context"
	"errors"

	"github.com/wolfman30/chatdesk/internal/handoff"
	"github.com/wolfman30/chatdesk/internal/messaging"
	"github.com/wolfman30/chatdesk/internal/notify"
	"github.com/wolfman30/chatdesk/internal/operator"
	"github.com/wolfman30/chatdesk/internal/transcript"
)

// apply executes out's effects in order, persists the next handoff snapshot
// and returns the customer-facing reply. Transport failures are logged and
// never change the state that was decided.
func (s *Service) apply(ctx context.Context, cfg *operator.Config, conv *transcript.Conversation, out handoff.Outcome, lastText string) string {
	smsFailed := false

	for _, eff := range out.Effects {
		switch eff.Kind {
		case handoff.EffectMarkAgentRequested:
			if err := s.transcripts.MarkAgentRequested(ctx, conv.SessionKey); err != nil {
				s.logger.Error("chat: mark agent requested failed", "error", err, "conversation_id", conv.ID)
			}
			conv.AgentRequested = true

		case handoff.EffectPersistContact:
			update := contactUpdate(eff.Contact)
			if update.Empty() {
				continue
			}
			if err := s.transcripts.UpdateContact(ctx, conv.SessionKey, update); err != nil {
				s.logger.Error("chat: persist contact failed", "error", err, "conversation_id", conv.ID)
			}
			mergeContact(&conv.Contact, eff.Contact)

		case handoff.EffectSendWelcomeSMS:
			ok := s.sendWelcome(ctx, cfg, eff.To)
			s.metrics.ObserveNotification("sms", ok)
			smsFailed = smsFailed || !ok

		case handoff.EffectNotifyOperator:
			s.notifyOperator(ctx, cfg, conv, eff, lastText)

		case handoff.EffectInjectSystemMessage:
			if _, err := s.transcripts.AppendMessage(ctx, conv.ID, transcript.RoleSystem, eff.Text); err != nil {
				s.logger.Error("chat: inject system message failed", "error", err, "conversation_id", conv.ID)
			}
		}
	}

	if out.Next != conv.Handoff {
		if err := s.transcripts.SaveHandoff(ctx, conv.ID, out.Next); err != nil {
			s.logger.Error("chat: save handoff failed", "error", err, "conversation_id", conv.ID)
		}
		s.metrics.ObserveHandoff(stateName(conv.Handoff.State), stateName(out.Next.State))
		conv.Handoff = out.Next
	}

	if out.Suppress {
		return ""
	}
	if smsFailed && out.SMSFailedReply != "" {
		return out.SMSFailedReply
	}
	return out.Reply
}

func (s *Service) sendWelcome(ctx context.Context, cfg *operator.Config, to string) bool {
	if s.sms == nil {
		s.logger.Warn("chat: sms sender not configured", "operator_id", cfg.ID)
		return false
	}
	res, err := s.sms.Send(ctx, to, messaging.WelcomeSMS(cfg.DisplayName(), cfg.TeamLabel()))
	if err != nil || !res.OK {
		s.logger.Error("chat: welcome sms failed", "error", err, "operator_id", cfg.ID)
		return false
	}
	s.logger.Info("chat: welcome sms sent", "operator_id", cfg.ID, "provider_id", res.ProviderID)
	return true
}

func (s *Service) notifyOperator(ctx context.Context, cfg *operator.Config, conv *transcript.Conversation, eff handoff.Effect, lastText string) {
	if s.notifier == nil {
		s.logger.Warn("chat: notifier not configured", "operator_id", cfg.ID)
		return
	}
	notice := notify.HandoffNotice{
		OperatorID:     cfg.ID,
		BusinessName:   cfg.DisplayName(),
		AlertEmail:     cfg.AlertEmail,
		ConversationID: conv.ID.String(),
		SessionID:      conv.SessionKey,
		Channel:        string(eff.Channel),
		CustomerEmail:  eff.Contact.Email,
		CustomerPhone:  eff.Contact.Phone,
		LastMessage:    lastText,
		RequestedAt:    s.now(),
	}
	err := s.notifier.NotifyHandoff(ctx, notice)
	switch {
	case errors.Is(err, notify.ErrNoRecipient):
		s.logger.Info("chat: handoff notice skipped, no alert email", "operator_id", cfg.ID)
		return
	case err != nil:
		s.logger.Error("chat: handoff notification failed", "error", err, "operator_id", cfg.ID, "conversation_id", conv.ID)
	}
	s.metrics.ObserveNotification("email", err == nil)
}

func contactUpdate(c handoff.Contact) transcript.ContactUpdate {
	var u transcript.ContactUpdate
	if c.Email != "" {
		u.Email = &c.Email
	}
	if c.Phone != "" {
		u.Phone = &c.Phone
	}
	if c.SMSNumber != "" {
		u.SMSNumber = &c.SMSNumber
	}
	return u
}

func mergeContact(dst *transcript.Contact, c handoff.Contact) {
	if c.Email != "" {
		dst.Email = c.Email
	}
	if c.Phone != "" {
		dst.Phone = c.Phone
	}
	if c.SMSNumber != "" {
		dst.SMSNumber = c.SMSNumber
	}
}

func stateName(st handoff.State) string {
	if st == "" {
		return string(handoff.StateNone)
	}
	return string(st)
}
