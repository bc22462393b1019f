package operator

import (
	"errors"
	"regexp"
	"testing"
)

func TestTriggerWordsSplitsAndDedupes(t *testing.T) {
	cfg := &Config{EscalationTriggers: " Refund, manager ,,REFUND, speak to owner "}
	got := cfg.TriggerWords()
	want := []string{"refund", "manager", "speak to owner"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestTriggerWordsEmpty(t *testing.T) {
	var nilCfg *Config
	if words := nilCfg.TriggerWords(); words != nil {
		t.Fatalf("expected nil for nil config, got %v", words)
	}
	if words := (&Config{EscalationTriggers: "  "}).TriggerWords(); words != nil {
		t.Fatalf("expected nil for blank triggers, got %v", words)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := &Config{BusinessName: "  Kayak Co ", Tone: " Casual"}
	cfg.Normalize()
	if cfg.BusinessName != "Kayak Co" {
		t.Fatalf("expected trimmed name, got %q", cfg.BusinessName)
	}
	if cfg.Tone != ToneCasual {
		t.Fatalf("expected casual tone, got %q", cfg.Tone)
	}
	if cfg.ResponseLength != LengthModerate {
		t.Fatalf("expected moderate length, got %q", cfg.ResponseLength)
	}
	if cfg.AlertPreference != AlertEmail {
		t.Fatalf("expected email alert default, got %q", cfg.AlertPreference)
	}
	if cfg.SMSMode != SMSOff {
		t.Fatalf("expected sms off default, got %q", cfg.SMSMode)
	}
}

func TestTeamLabel(t *testing.T) {
	cases := []struct {
		cfg  *Config
		want string
	}{
		{nil, "our team"},
		{&Config{}, "our team"},
		{&Config{BusinessName: "Kayak Co"}, "the Kayak Co team"},
		{&Config{BusinessName: "Kayak Co", TeamName: "the guides"}, "the guides"},
	}
	for _, tc := range cases {
		if got := tc.cfg.TeamLabel(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestNewIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z2-7]{10}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := NewID()
		if !pattern.MatchString(id) {
			t.Fatalf("unexpected id format %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidateRejectsBadEnums(t *testing.T) {
	cfg := &Config{ID: "op1", BusinessName: "Kayak Co"}
	cfg.Normalize()
	cfg.Tone = "sarcastic"
	err := Validate(cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsMissingBusinessName(t *testing.T) {
	cfg := &Config{ID: "op1"}
	cfg.Normalize()
	if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsMalformedAlertEmail(t *testing.T) {
	cfg := &Config{ID: "op1", BusinessName: "Kayak Co", AlertEmail: "not-an-email"}
	cfg.Normalize()
	if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateAcceptsFullConfig(t *testing.T) {
	cfg := &Config{
		ID:               "op1",
		BusinessName:     "Kayak Co",
		Facts:            BusinessFacts{Services: "Guided tours", Pricing: "$40/hour", Other: []string{"Life jackets included"}},
		DontAnswerTopics: []string{"medical advice"},
		AlertEmail:       "owner@kayak.example",
		SMSMode:          SMSHybrid,
		Weather:          WeatherSettings{Enabled: true, Location: "Austin,US"},
	}
	cfg.Normalize()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
