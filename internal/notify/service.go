package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/chatdesk/pkg/logging"
)

// ErrNoRecipient is returned when a notice has no alert address.
var ErrNoRecipient = errors.New("notify: alert email is not configured")

// Notifier delivers handoff notices to operators.
type Notifier interface {
	NotifyHandoff(ctx context.Context, notice HandoffNotice) error
}

// InlineNotifier sends the email on the caller's goroutine.
type InlineNotifier struct {
	email  EmailSender
	logger *logging.Logger
}

// NewInlineNotifier wraps an EmailSender.
func NewInlineNotifier(email EmailSender, logger *logging.Logger) *InlineNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &InlineNotifier{email: email, logger: logger}
}

func (n *InlineNotifier) NotifyHandoff(ctx context.Context, notice HandoffNotice) error {
	if strings.TrimSpace(notice.AlertEmail) == "" {
		return ErrNoRecipient
	}
	if n.email == nil {
		return errors.New("notify: email sender not configured")
	}
	if err := n.email.Send(ctx, notice.Email()); err != nil {
		n.logger.Error("notify: handoff email failed", "error", err, "operator_id", notice.OperatorID, "conversation_id", notice.ConversationID)
		return err
	}
	n.logger.Info("notify: handoff email sent", "operator_id", notice.OperatorID, "conversation_id", notice.ConversationID)
	return nil
}

// QueueNotifier enqueues notices for a Worker to deliver.
type QueueNotifier struct {
	queue  queueClient
	logger *logging.Logger
}

// NewQueueNotifier publishes onto queue.
func NewQueueNotifier(queue queueClient, logger *logging.Logger) *QueueNotifier {
	if queue == nil {
		panic("notify: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueNotifier{queue: queue, logger: logger}
}

func (n *QueueNotifier) NotifyHandoff(ctx context.Context, notice HandoffNotice) error {
	if strings.TrimSpace(notice.AlertEmail) == "" {
		return ErrNoRecipient
	}
	body, err := json.Marshal(queuePayload{ID: uuid.NewString(), Notice: notice})
	if err != nil {
		return fmt.Errorf("notify: encode notice: %w", err)
	}
	if err := n.queue.Send(ctx, string(body)); err != nil {
		return err
	}
	n.logger.Debug("notify: handoff notice queued", "operator_id", notice.OperatorID, "conversation_id", notice.ConversationID)
	return nil
}

var (
	_ Notifier = (*InlineNotifier)(nil)
	_ Notifier = (*QueueNotifier)(nil)
)
