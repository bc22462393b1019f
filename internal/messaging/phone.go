package messaging

import "strings"

// NormalizeE164 converts a phone number to E.164. Ten-digit numbers are
// treated as North American and receive a +1 prefix.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	switch {
	case digits == "":
		return ""
	case len(digits) == 10 && !strings.HasPrefix(value, "+"):
		return "+1" + digits
	default:
		return "+" + digits
	}
}

// ValidE164 reports whether value is a plausible E.164 number.
func ValidE164(value string) bool {
	if !strings.HasPrefix(value, "+") {
		return false
	}
	digits := value[1:]
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	return sanitizePhone(digits) == digits
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
