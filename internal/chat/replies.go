package chat

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/chatdesk/internal/operator"
)

// UnavailableReply is returned when the transcript or config store fails.
const UnavailableReply = "Sorry, chat is temporarily unavailable. Please try again in a few minutes."

func waiverReply(cfg *operator.Config) string {
	if cfg.WaiverLink == "" {
		return fmt.Sprintf("%s can help you with any forms or waivers. Would you like me to connect you with them?", capitalize(cfg.TeamLabel()))
	}
	return fmt.Sprintf("You can complete the waiver online here: %s", cfg.WaiverLink)
}

func pricingReply(cfg *operator.Config) string {
	if p := strings.TrimSpace(cfg.Facts.Pricing); p != "" {
		return fmt.Sprintf("%s You can see current options and book here: %s", p+punct(p), cfg.BookingLink)
	}
	return fmt.Sprintf("Pricing depends on what you book. You can see current options and rates here: %s", cfg.BookingLink)
}

func bookingReply(cfg *operator.Config) string {
	return fmt.Sprintf("You can book online here: %s", cfg.BookingLink)
}

func punct(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return ""
	}
	return "."
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
