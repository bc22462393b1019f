// Package intent decides which handling branch applies to a customer message.
package intent

import "github.com/wolfman30/chatdesk/internal/operator"

// Branch is the handling path for one inbound message.
type Branch string

const (
	BranchEscalationFollowUp Branch = "escalation_followup"
	BranchEscalation         Branch = "escalation"
	BranchWaiver             Branch = "waiver"
	BranchPricing            Branch = "pricing"
	BranchBooking            Branch = "booking"
	BranchWeather            Branch = "weather"
	BranchFreeform           Branch = "freeform"
)

// Input is everything the classifier looks at.
type Input struct {
	Text          string
	Config        *operator.Config
	HandoffActive bool
}

// Classifier picks exactly one branch per message.
type Classifier interface {
	Classify(in Input) Branch
	AgentSignal(text string, cfg *operator.Config) bool
}

// KeywordClassifier matches keyword sets in a fixed precedence order.
type KeywordClassifier struct {
	kw *Keywords
}

// NewKeywordClassifier uses kw, or the embedded defaults when nil.
func NewKeywordClassifier(kw *Keywords) *KeywordClassifier {
	if kw == nil {
		kw = DefaultKeywords()
	}
	return &KeywordClassifier{kw: kw}
}

// Classify returns the first matching branch:
// active handoff, agent request, waiver, pricing (with a booking link),
// booking (with a booking link), weather (when enabled), then free-form.
func (c *KeywordClassifier) Classify(in Input) Branch {
	if in.HandoffActive {
		return BranchEscalationFollowUp
	}
	msg := newMessage(in.Text)
	cfg := in.Config
	if cfg == nil {
		cfg = &operator.Config{}
	}

	switch {
	case c.agentSignal(msg, cfg):
		return BranchEscalation
	case msg.matches(c.kw.Waiver):
		return BranchWaiver
	case cfg.BookingLink != "" && msg.matches(c.kw.Pricing):
		return BranchPricing
	case cfg.BookingLink != "" && msg.matches(c.kw.Booking):
		return BranchBooking
	case cfg.Weather.Enabled && msg.matches(c.kw.Weather):
		return BranchWeather
	default:
		return BranchFreeform
	}
}

// AgentSignal reports whether text asks for a human. The operator's custom
// triggers are merged with the defaults on every call.
func (c *KeywordClassifier) AgentSignal(text string, cfg *operator.Config) bool {
	return c.agentSignal(newMessage(text), cfg)
}

func (c *KeywordClassifier) agentSignal(msg message, cfg *operator.Config) bool {
	if msg.matches(c.kw.Agent) {
		return true
	}
	if custom := cfg.TriggerWords(); len(custom) > 0 && msg.matches(normalizeSet(custom)) {
		return true
	}
	return compoundSignal(msg)
}

func compoundSignal(msg message) bool {
	if msg.has("phone") && msg.has("call") && msg.count <= 12 {
		return true
	}
	if msg.has("real") && msg.has("person") {
		return true
	}
	for _, phrase := range []string{"call me", "text me", "contact me"} {
		if msg.matches([]string{phrase}) {
			return true
		}
	}
	return false
}
