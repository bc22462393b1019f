package handoff

import (
	"regexp"
	"strings"

	"github.com/wolfman30/chatdesk/internal/messaging"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)

	smsChoiceWords  = []string{"text", "sms", "texting", "txt"}
	chatChoiceWords = []string{"chat here", "stay in chat", "stay here", "keep chatting", "chat"}
)

// Extracted is the contact information found in free text.
type Extracted struct {
	Email  string
	Phone  string
	Choice Channel
}

// Empty reports whether nothing was found.
func (e Extracted) Empty() bool {
	return e.Email == "" && e.Phone == "" && e.Choice == ""
}

// ExtractContact pulls an email address, a phone number (as E.164) and an
// explicit channel choice out of a customer message.
func ExtractContact(text string) Extracted {
	var out Extracted
	if m := emailPattern.FindString(text); m != "" {
		out.Email = strings.ToLower(strings.TrimRight(m, "."))
	}
	// Strip the email first so digits inside it are not read as a phone.
	rest := emailPattern.ReplaceAllString(text, " ")
	if m := phonePattern.FindString(rest); m != "" {
		out.Phone = messaging.NormalizeE164(m)
	}
	out.Choice = channelChoice(rest)
	return out
}

func channelChoice(text string) Channel {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
	for _, w := range words {
		for _, choice := range smsChoiceWords {
			if w == choice {
				return ChannelSMS
			}
		}
	}
	for _, phrase := range chatChoiceWords {
		if strings.Contains(phrase, " ") {
			if strings.Contains(lower, phrase) {
				return ChannelChat
			}
			continue
		}
		for _, w := range words {
			if w == phrase {
				return ChannelChat
			}
		}
	}
	return ""
}
