// Package messaging sends SMS on behalf of an operator.
package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

// SMSResult is the provider's acceptance of a message.
type SMSResult struct {
	OK         bool
	ProviderID string
}

// SMSSender delivers a single text message.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (SMSResult, error)
}

// WelcomeSMS is the first text a customer receives after choosing SMS.
func WelcomeSMS(businessName, team string) string {
	if businessName == "" {
		businessName = "us"
	}
	if team == "" {
		team = "our team"
	}
	return fmt.Sprintf("Hi! This is %s. You asked to continue your chat by text, and %s will reply here shortly. Reply STOP to opt out.", businessName, team)
}

// StubSender records messages instead of sending them.
type StubSender struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []StubSMS
}

// StubSMS is one recorded message.
type StubSMS struct {
	To   string
	Body string
}

// NewStubSender creates a logging-only SMS sender.
func NewStubSender(logger *logging.Logger) *StubSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSender{logger: logger}
}

func (s *StubSender) Send(_ context.Context, to, body string) (SMSResult, error) {
	s.mu.Lock()
	s.sent = append(s.sent, StubSMS{To: to, Body: body})
	s.mu.Unlock()
	id := "stub-" + uuid.NewString()
	s.logger.Info("stub sms recorded", "to", to, "provider_id", id)
	return SMSResult{OK: true, ProviderID: id}, nil
}

// Sent returns a copy of recorded messages.
func (s *StubSender) Sent() []StubSMS {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StubSMS, len(s.sent))
	copy(out, s.sent)
	return out
}
