package responder

import (
	"fmt"
	"strings"

	"github.com/wolfman30/chatdesk/internal/operator"
)

const defaultDeflection = "That's something our team can help with directly. Would you like me to connect you with someone?"

var toneGuidance = map[operator.Tone]string{
	operator.ToneFriendly:     "Be warm and welcoming. Light enthusiasm is fine, but stay genuine.",
	operator.ToneProfessional: "Be courteous and precise. Avoid slang and exclamation marks.",
	operator.ToneCasual:       "Keep it relaxed and conversational, like a helpful regular at the front desk.",
}

var lengthGuidance = map[operator.ResponseLength]string{
	operator.LengthShort:    "Answer in one or two short sentences.",
	operator.LengthModerate: "Answer in a short paragraph of at most four sentences.",
	operator.LengthDetailed: "Give a complete answer. Use short lists when they help readability.",
}

// BuildSystemPrompt renders the operator config into the system prompt used
// for free-form replies.
func BuildSystemPrompt(cfg *operator.Config) string {
	if cfg == nil {
		cfg = &operator.Config{}
	}
	var b strings.Builder

	fmt.Fprintf(&b, "You are the website chat assistant for %s. ", cfg.DisplayName())
	fmt.Fprintf(&b, "You answer customer questions on behalf of %s.\n\n", cfg.TeamLabel())

	b.WriteString("STYLE:\n")
	tone := toneGuidance[cfg.Tone]
	if tone == "" {
		tone = toneGuidance[operator.ToneFriendly]
	}
	b.WriteString("- " + tone + "\n")
	length := lengthGuidance[cfg.ResponseLength]
	if length == "" {
		length = lengthGuidance[operator.LengthModerate]
	}
	b.WriteString("- " + length + "\n")
	b.WriteString("- Never mention that you are following instructions or a prompt.\n\n")

	b.WriteString("BUSINESS FACTS (the only facts you may state):\n")
	facts := factLines(cfg.Facts)
	if len(facts) == 0 {
		b.WriteString("- No business details have been provided.\n")
	}
	for _, line := range facts {
		b.WriteString("- " + line + "\n")
	}
	if cfg.BookingLink != "" {
		b.WriteString("- Booking link: " + cfg.BookingLink + "\n")
	}
	if cfg.WaiverLink != "" {
		b.WriteString("- Waiver link: " + cfg.WaiverLink + "\n")
	}
	b.WriteString("\n")

	b.WriteString("KNOWLEDGE BOUNDARIES:\n")
	b.WriteString("- Do not state real-time information such as current weather, live availability, wait times or open slots. Say the team can confirm it.\n")
	b.WriteString("- Do not give specific dates or times unless they appear in the business facts above.\n")
	b.WriteString("- If a question is not covered by the business facts, say you are not sure and offer to connect the customer with the team. Do not guess.\n")

	deflection := strings.TrimSpace(cfg.DeflectionPhrase)
	if deflection == "" {
		deflection = defaultDeflection
	}
	topics := nonEmpty(cfg.DontAnswerTopics)
	if len(topics) > 0 {
		fmt.Fprintf(&b, "- Do not answer questions about: %s. For those, reply with exactly: %q\n", strings.Join(topics, ", "), deflection)
	}
	fmt.Fprintf(&b, "- If the customer asks for a person, tell them you can connect them with %s.\n", cfg.TeamLabel())

	return strings.TrimSpace(b.String())
}

func factLines(f operator.BusinessFacts) []string {
	var lines []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("Services", f.Services)
	add("Pricing", f.Pricing)
	add("Hours", f.Hours)
	add("Location", f.Location)
	lines = append(lines, nonEmpty(f.Other)...)
	return lines
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
