// Package operator holds the per-business configuration that drives the chat
// assistant: business facts, tone, escalation triggers and alert routing.
package operator

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no configuration exists for an operator id.
	ErrNotFound = errors.New("operator: not found")

	// ErrInvalidConfig wraps schema validation failures on Put.
	ErrInvalidConfig = errors.New("operator: invalid config")
)

// Tone controls the register of generated replies.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
)

// ResponseLength selects the completion token budget tier.
type ResponseLength string

const (
	LengthShort    ResponseLength = "short"
	LengthModerate ResponseLength = "moderate"
	LengthDetailed ResponseLength = "detailed"
)

// AlertPreference decides how an escalation reaches a human.
type AlertPreference string

const (
	AlertEmail     AlertPreference = "email"
	AlertDashboard AlertPreference = "dashboard"
	AlertNone      AlertPreference = "none"
)

// SMSMode controls whether customers are offered a text-message channel.
type SMSMode string

const (
	SMSOff    SMSMode = "off"
	SMSHybrid SMSMode = "hybrid"
	SMSFirst  SMSMode = "sms_first"
)

// BusinessFacts is the operator-supplied knowledge the assistant may use.
type BusinessFacts struct {
	Services string   `json:"services,omitempty"`
	Pricing  string   `json:"pricing,omitempty"`
	Hours    string   `json:"hours,omitempty"`
	Location string   `json:"location,omitempty"`
	Other    []string `json:"other,omitempty"`
}

// WeatherSettings enables live weather answers for outdoor businesses.
type WeatherSettings struct {
	Enabled  bool   `json:"enabled"`
	Location string `json:"location,omitempty"`
}

// Config is the full behavior blob for one operator. It is replaced whole
// on every Put.
type Config struct {
	ID           string        `json:"id"`
	BusinessName string        `json:"business_name"`
	TeamName     string        `json:"team_name,omitempty"`
	Greeting     string        `json:"greeting,omitempty"`
	Facts        BusinessFacts `json:"facts"`

	Tone             Tone           `json:"tone,omitempty"`
	ResponseLength   ResponseLength `json:"response_length,omitempty"`
	DontAnswerTopics []string       `json:"dont_answer_topics,omitempty"`
	DeflectionPhrase string         `json:"deflection_phrase,omitempty"`

	// EscalationTriggers is a comma separated list of extra words that
	// count as a request for a human.
	EscalationTriggers string          `json:"escalation_triggers,omitempty"`
	AlertPreference    AlertPreference `json:"alert_preference,omitempty"`
	AlertEmail         string          `json:"alert_email,omitempty"`
	SMSMode            SMSMode         `json:"sms_mode,omitempty"`

	WaiverLink  string          `json:"waiver_link,omitempty"`
	BookingLink string          `json:"booking_link,omitempty"`
	Weather     WeatherSettings `json:"weather"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Normalize fills defaults for empty enum fields and trims free text.
func (c *Config) Normalize() {
	c.BusinessName = strings.TrimSpace(c.BusinessName)
	c.TeamName = strings.TrimSpace(c.TeamName)
	c.AlertEmail = strings.TrimSpace(c.AlertEmail)
	c.WaiverLink = strings.TrimSpace(c.WaiverLink)
	c.BookingLink = strings.TrimSpace(c.BookingLink)
	c.Tone = Tone(strings.ToLower(strings.TrimSpace(string(c.Tone))))
	c.ResponseLength = ResponseLength(strings.ToLower(strings.TrimSpace(string(c.ResponseLength))))
	c.AlertPreference = AlertPreference(strings.ToLower(strings.TrimSpace(string(c.AlertPreference))))
	c.SMSMode = SMSMode(strings.ToLower(strings.TrimSpace(string(c.SMSMode))))

	if c.Tone == "" {
		c.Tone = ToneFriendly
	}
	if c.ResponseLength == "" {
		c.ResponseLength = LengthModerate
	}
	if c.AlertPreference == "" {
		c.AlertPreference = AlertEmail
	}
	if c.SMSMode == "" {
		c.SMSMode = SMSOff
	}
}

// TriggerWords returns the operator's custom escalation words, comma split,
// trimmed, case folded and de-duplicated.
func (c *Config) TriggerWords() []string {
	if c == nil || strings.TrimSpace(c.EscalationTriggers) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var words []string
	for _, part := range strings.Split(c.EscalationTriggers, ",") {
		word := strings.ToLower(strings.TrimSpace(part))
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words
}

// TeamLabel is how replies refer to the humans behind the business.
func (c *Config) TeamLabel() string {
	if c == nil {
		return "our team"
	}
	if c.TeamName != "" {
		return c.TeamName
	}
	if c.BusinessName != "" {
		return "the " + c.BusinessName + " team"
	}
	return "our team"
}

// DisplayName returns the business name or a neutral fallback.
func (c *Config) DisplayName() string {
	if c == nil || c.BusinessName == "" {
		return "our business"
	}
	return c.BusinessName
}

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a short opaque operator token.
func NewID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	}
	return strings.ToLower(idEncoding.EncodeToString(b))[:10]
}
