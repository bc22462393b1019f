// Package chat runs the customer and operator conversation flows: it
// classifies each message, drives the handoff machine and keeps the
// transcript and session cache in step.
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/chatdesk/internal/archive"
	"github.com/wolfman30/chatdesk/internal/handoff"
	"github.com/wolfman30/chatdesk/internal/intent"
	"github.com/wolfman30/chatdesk/internal/messaging"
	"github.com/wolfman30/chatdesk/internal/notify"
	"github.com/wolfman30/chatdesk/internal/observability/metrics"
	"github.com/wolfman30/chatdesk/internal/operator"
	"github.com/wolfman30/chatdesk/internal/responder"
	"github.com/wolfman30/chatdesk/internal/session"
	"github.com/wolfman30/chatdesk/internal/transcript"
	"github.com/wolfman30/chatdesk/internal/weather"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

var tracer = otel.Tracer("chatdesk.internal.chat")

const (
	// MaxMessageLength caps customer and operator message text, in runes.
	MaxMessageLength = 2000
	maxIDLength      = 128
	defaultHistory   = 20
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Replier produces free-form assistant replies.
type Replier interface {
	Reply(ctx context.Context, cfg *operator.Config, history []responder.ChatMessage) responder.Result
}

// Archiver stores resolved conversations.
type Archiver interface {
	ArchiveConversation(ctx context.Context, record archive.Record) (string, error)
}

// Deps are the collaborators a Service needs. Operators, Transcripts and
// Cache are required; the rest degrade to canned replies when nil.
type Deps struct {
	Operators    operator.Store
	Transcripts  transcript.Store
	Cache        session.Cache
	Classifier   intent.Classifier
	Replier      Replier
	Weather      weather.Client
	SMS          messaging.SMSSender
	Notifier     notify.Notifier
	Archiver     Archiver
	Metrics      *metrics.ChatMetrics
	Logger       *logging.Logger
	HistoryLimit int
	Now          func() time.Time
}

// Service is the conversation orchestrator.
type Service struct {
	operators   operator.Store
	transcripts transcript.Store
	cache       session.Cache
	classifier  intent.Classifier
	replier     Replier
	weather     weather.Client
	sms         messaging.SMSSender
	notifier    notify.Notifier
	archiver    Archiver
	metrics     *metrics.ChatMetrics
	logger      *logging.Logger
	locks       *session.Locker
	history     int
	now         func() time.Time
}

// New validates deps and builds a Service.
func New(d Deps) (*Service, error) {
	if d.Operators == nil {
		return nil, errors.New("chat: operator store is required")
	}
	if d.Transcripts == nil {
		return nil, errors.New("chat: transcript store is required")
	}
	if d.Cache == nil {
		return nil, errors.New("chat: session cache is required")
	}
	if d.Classifier == nil {
		d.Classifier = intent.NewKeywordClassifier(nil)
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = defaultHistory
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		operators:   d.Operators,
		transcripts: d.Transcripts,
		cache:       d.Cache,
		classifier:  d.Classifier,
		replier:     d.Replier,
		weather:     d.Weather,
		sms:         d.SMS,
		notifier:    d.Notifier,
		archiver:    d.Archiver,
		metrics:     d.Metrics,
		logger:      d.Logger,
		locks:       session.NewLocker(),
		history:     d.HistoryLimit,
		now:         d.Now,
	}, nil
}

// Flags tell the widget how to behave after a reply.
type Flags struct {
	AgentRequested bool            `json:"agent_requested"`
	StartPolling   bool            `json:"start_polling"`
	HumanJoined    bool            `json:"human_joined"`
	Channel        handoff.Channel `json:"channel,omitempty"`
	State          handoff.State   `json:"handoff_state"`
}

// SubmitResult is the outcome of one customer message. Reply is empty when
// the message was stored without a bot response.
type SubmitResult struct {
	SessionID      string        `json:"session_id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	Reply          string        `json:"reply,omitempty"`
	Branch         intent.Branch `json:"branch,omitempty"`
	Flags          Flags         `json:"flags"`
}

// SubmitMessage handles one inbound customer message end to end. Store
// failures produce UnavailableReply instead of an error; only validation
// and unknown operators are returned as errors.
func (s *Service) SubmitMessage(ctx context.Context, operatorID, sessionID, text string) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "chat.submit_message")
	defer span.End()

	operatorID, sessionID, err := validateIDs(operatorID, sessionID)
	if err != nil {
		return nil, err
	}
	text, err = validateText(text)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("chatdesk.operator_id", operatorID))

	cfg, err := s.config(ctx, operatorID)
	if err != nil {
		if errors.Is(err, ErrOperatorNotFound) {
			return nil, err
		}
		return s.unavailable(sessionID, err), nil
	}

	key := transcript.SessionKey(operatorID, sessionID)
	unlock := s.locks.Lock(key)
	defer unlock()

	conv, err := s.transcripts.GetOrCreateConversation(ctx, operatorID, key)
	if err != nil {
		span.RecordError(err)
		return s.unavailable(sessionID, err), nil
	}
	turns := s.loadHistory(ctx, key, conv.ID)

	if _, err := s.transcripts.AppendMessage(ctx, conv.ID, transcript.RoleCustomer, text); err != nil {
		span.RecordError(err)
		return s.unavailable(sessionID, err), nil
	}
	turns = append(turns, session.Turn{Role: responder.ChatRoleUser, Content: text})
	s.cacheAppend(ctx, key, session.Turn{Role: responder.ChatRoleUser, Content: text})

	branch := s.classifier.Classify(intent.Input{Text: text, Config: cfg, HandoffActive: conv.Handoff.Active()})
	s.metrics.ObserveMessage(string(branch))
	span.SetAttributes(attribute.String("chatdesk.branch", string(branch)))

	result := &SubmitResult{SessionID: sessionID, ConversationID: conv.ID, Branch: branch}
	snap := conv.Handoff

	var reply string
	switch branch {
	case intent.BranchEscalation, intent.BranchEscalationFollowUp:
		ev := handoff.AgentRequested(text)
		if branch == intent.BranchEscalationFollowUp {
			ev = handoff.CustomerMessage(text, s.classifier.AgentSignal(text, cfg))
		}
		out := handoff.Transition(conv.Handoff, contactOf(conv), ev, handoff.PolicyFor(cfg))
		reply = s.apply(ctx, cfg, conv, out, text)
		snap = out.Next
		result.Flags.StartPolling = out.StartPolling
	case intent.BranchWaiver:
		reply = waiverReply(cfg)
	case intent.BranchPricing:
		reply = pricingReply(cfg)
	case intent.BranchBooking:
		reply = bookingReply(cfg)
	case intent.BranchWeather:
		reply = s.weatherReply(ctx, cfg)
	default:
		reply = s.freeform(ctx, cfg, turns)
	}

	if reply != "" {
		if _, err := s.transcripts.AppendMessage(ctx, conv.ID, transcript.RoleAssistant, reply); err != nil {
			s.logger.Error("chat: persist assistant reply failed", "error", err, "conversation_id", conv.ID)
		} else {
			s.cacheAppend(ctx, key, session.Turn{Role: responder.ChatRoleAssistant, Content: reply})
		}
	}

	result.Reply = reply
	result.Flags.AgentRequested = conv.AgentRequested
	result.Flags.State = snap.State
	result.Flags.Channel = snap.Channel
	result.Flags.HumanJoined = snap.State == handoff.StateHumanJoined
	if result.Flags.HumanJoined {
		result.Flags.StartPolling = true
	}
	s.logger.Info("chat message handled",
		"operator_id", operatorID,
		"conversation_id", conv.ID,
		"branch", branch,
		"handoff_state", snap.State,
	)
	return result, nil
}

func (s *Service) unavailable(sessionID string, err error) *SubmitResult {
	s.logger.Error("chat: store failure", "error", err)
	return &SubmitResult{SessionID: sessionID, Reply: UnavailableReply, Flags: Flags{State: handoff.StateNone}}
}

func (s *Service) config(ctx context.Context, operatorID string) (*operator.Config, error) {
	cfg, err := s.operators.Get(ctx, operatorID)
	if err != nil {
		if errors.Is(err, operator.ErrNotFound) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("chat: load operator config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func (s *Service) weatherReply(ctx context.Context, cfg *operator.Config) string {
	if s.weather == nil || strings.TrimSpace(cfg.Weather.Location) == "" {
		return weather.DeflectionReply(cfg.TeamLabel())
	}
	snap, err := s.weather.Lookup(ctx, cfg.Weather.Location)
	if err != nil {
		s.logger.Warn("chat: weather lookup failed", "error", err, "operator_id", cfg.ID)
		return weather.DeflectionReply(cfg.TeamLabel())
	}
	return weather.FormatReply(snap, cfg.DisplayName())
}

func (s *Service) freeform(ctx context.Context, cfg *operator.Config, turns []session.Turn) string {
	if s.replier == nil {
		return responder.FallbackReply
	}
	history := make([]responder.ChatMessage, 0, len(turns))
	for _, t := range turns {
		history = append(history, responder.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return s.replier.Reply(ctx, cfg, history).Text
}

func contactOf(conv *transcript.Conversation) handoff.Contact {
	return handoff.Contact{
		Email:     conv.Contact.Email,
		Phone:     conv.Contact.Phone,
		SMSNumber: conv.Contact.SMSNumber,
	}
}

func validateIDs(operatorID, sessionID string) (string, string, error) {
	operatorID = strings.TrimSpace(operatorID)
	sessionID = strings.TrimSpace(sessionID)
	if err := validateID("operator_id", operatorID); err != nil {
		return "", "", err
	}
	if err := validateID("session_id", sessionID); err != nil {
		return "", "", err
	}
	return operatorID, sessionID, nil
}

func validateID(field, value string) error {
	switch {
	case value == "":
		return invalid(field, "is required")
	case len(value) > maxIDLength:
		return invalid(field, "must be at most %d characters", maxIDLength)
	case !idPattern.MatchString(value):
		return invalid(field, "may only contain letters, digits, '-' and '_'")
	}
	return nil
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("message", "is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", invalid("message", "must be at most %d characters", MaxMessageLength)
	}
	return text, nil
}
