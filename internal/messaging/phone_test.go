package messaging

import (
	"strings"
	"testing"
)

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"(555) 123-4567":   "+15551234567",
		"555.123.4567":     "+15551234567",
		"1 555 123 4567":   "+15551234567",
		"+15551234567":     "+15551234567",
		"+44 20 7946 0958": "+442079460958",
		"no digits":        "",
	}
	for in, want := range cases {
		if got := NormalizeE164(in); got != want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidE164(t *testing.T) {
	if !ValidE164("+15551234567") {
		t.Fatal("expected valid number")
	}
	for _, bad := range []string{"15551234567", "+123", "+1555abc4567", ""} {
		if ValidE164(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
}

func TestWelcomeSMSMentionsBusiness(t *testing.T) {
	body := WelcomeSMS("Kayak Co", "the guides")
	if !strings.Contains(body, "Kayak Co") || !strings.Contains(body, "the guides") {
		t.Fatalf("unexpected welcome body %q", body)
	}
}
