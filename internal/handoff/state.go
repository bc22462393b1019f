// Package handoff is the escalation state machine for a single conversation.
// Transition is pure: callers persist the returned snapshot and execute the
// returned effects themselves.
package handoff

import (
	"strings"

	"github.com/wolfman30/chatdesk/internal/operator"
)

// State is the escalation phase of a conversation.
type State string

const (
	StateNone                  State = "none"
	StateEscalationRequested   State = "escalation_requested"
	StateAwaitingContactChoice State = "awaiting_contact_choice"
	StateContactCaptured       State = "contact_captured"
	StateHumanJoined           State = "human_joined"
)

// Channel is how the customer expects a human to reach them.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Snapshot is the persisted handoff state for one conversation.
type Snapshot struct {
	State               State   `json:"state"`
	Channel             Channel `json:"channel,omitempty"`
	NoticeShown         bool    `json:"notice_shown,omitempty"`
	JoinAckSent         bool    `json:"join_ack_sent,omitempty"`
	NotifiedFingerprint string  `json:"notified_fingerprint,omitempty"`
}

// Active reports whether escalation has begun. Once active, the assistant
// never generates a fresh reply for the conversation.
func (s Snapshot) Active() bool {
	return s.State != "" && s.State != StateNone
}

func (s Snapshot) normalized() Snapshot {
	if s.State == "" {
		s.State = StateNone
	}
	return s
}

// Contact is the customer contact information known for a conversation.
type Contact struct {
	Email     string
	Phone     string
	SMSNumber string
}

// Known reports whether any way of reaching the customer is on file.
func (c Contact) Known() bool {
	return c.Email != "" || c.Phone != ""
}

// Policy is the slice of operator configuration the machine depends on.
type Policy struct {
	AlertPreference operator.AlertPreference
	SMSMode         operator.SMSMode
	TeamLabel       string
	BusinessName    string
}

// PolicyFor derives a Policy from operator configuration.
func PolicyFor(cfg *operator.Config) Policy {
	if cfg == nil {
		return Policy{AlertPreference: operator.AlertEmail, SMSMode: operator.SMSOff, TeamLabel: "our team", BusinessName: "our business"}
	}
	p := Policy{
		AlertPreference: cfg.AlertPreference,
		SMSMode:         cfg.SMSMode,
		TeamLabel:       cfg.TeamLabel(),
		BusinessName:    cfg.DisplayName(),
	}
	if p.AlertPreference == "" {
		p.AlertPreference = operator.AlertEmail
	}
	if p.SMSMode == "" {
		p.SMSMode = operator.SMSOff
	}
	return p
}

// EventKind enumerates the inputs the machine reacts to.
type EventKind int

const (
	EventAgentRequested EventKind = iota + 1
	EventCustomerMessage
	EventContactSubmitted
	EventOperatorJoined
	EventReopened
)

// Event is one input to Transition.
type Event struct {
	Kind        EventKind
	Text        string
	AgentSignal bool
	Email       string
	Phone       string
}

// AgentRequested is a customer message that asked for a human.
func AgentRequested(text string) Event {
	return Event{Kind: EventAgentRequested, Text: text, AgentSignal: true}
}

// CustomerMessage is any other customer message.
func CustomerMessage(text string, agentSignal bool) Event {
	return Event{Kind: EventCustomerMessage, Text: text, AgentSignal: agentSignal}
}

// ContactSubmitted is a structured contact form submission.
func ContactSubmitted(email, phone string) Event {
	return Event{Kind: EventContactSubmitted, Email: email, Phone: phone}
}

// OperatorJoined fires on an operator-authored message.
func OperatorJoined() Event { return Event{Kind: EventOperatorJoined} }

// Reopened fires when the conversation leaves the resolved status.
func Reopened() Event { return Event{Kind: EventReopened} }

// EffectKind enumerates side effects the caller must execute, in order.
type EffectKind int

const (
	EffectMarkAgentRequested EffectKind = iota + 1
	EffectPersistContact
	EffectSendWelcomeSMS
	EffectNotifyOperator
	EffectInjectSystemMessage
)

func (k EffectKind) String() string {
	switch k {
	case EffectMarkAgentRequested:
		return "mark_agent_requested"
	case EffectPersistContact:
		return "persist_contact"
	case EffectSendWelcomeSMS:
		return "send_welcome_sms"
	case EffectNotifyOperator:
		return "notify_operator"
	case EffectInjectSystemMessage:
		return "inject_system_message"
	default:
		return "unknown"
	}
}

// Effect is one side effect. Only the fields relevant to Kind are set:
// PersistContact uses Contact (non-empty fields change), SendWelcomeSMS uses
// To, NotifyOperator uses Contact and Channel, InjectSystemMessage uses Text.
type Effect struct {
	Kind    EffectKind
	Contact Contact
	Channel Channel
	To      string
	Text    string
}

// Outcome is the result of one transition.
type Outcome struct {
	Next    Snapshot
	Effects []Effect

	// Reply is the customer-facing text. SMSFailedReply replaces it when a
	// SendWelcomeSMS effect fails.
	Reply          string
	SMSFailedReply string

	// Suppress means no reply at all is sent or persisted.
	Suppress     bool
	StartPolling bool
}

// Has reports whether the outcome contains an effect of kind k.
func (o Outcome) Has(k EffectKind) bool {
	for _, e := range o.Effects {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Fingerprint identifies the contact details a notification was sent for.
func Fingerprint(c Contact, ch Channel) string {
	return strings.ToLower(c.Email) + "|" + c.Phone + "|" + string(ch)
}
