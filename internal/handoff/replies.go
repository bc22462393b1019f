package handoff

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// SystemJoinedMessage is injected once when an operator first replies.
const SystemJoinedMessage = "A team member has joined the conversation."

func selfServiceReply(p Policy) string {
	return fmt.Sprintf("I'm not able to connect you with a person through this chat, but I'm happy to help with questions about %s. What would you like to know?", p.BusinessName)
}

func dashboardReply(p Policy) string {
	return fmt.Sprintf("I've let %s know you'd like to talk with a person. Someone will reply right here in this chat, so please keep this window open.", p.TeamLabel)
}

func choiceReply(p Policy) string {
	return fmt.Sprintf("I can get %s involved. Would you like to keep chatting here, or have us text you? Reply \"chat here\" or \"text\".", p.TeamLabel)
}

func choiceRepromptReply(p Policy) string {
	return fmt.Sprintf("Just let me know how %s should reach you: reply \"chat here\" to stay in this window, or \"text\" to get a text message.", p.TeamLabel)
}

func askNumberReply(p Policy) string {
	return fmt.Sprintf("I can have %s text you. What's the best mobile number to reach you?", p.TeamLabel)
}

func askContactReply(p Policy) string {
	return fmt.Sprintf("I'd be happy to connect you with %s. What's the best email address or phone number to reach you?", p.TeamLabel)
}

func smsSentReply(p Policy, phone string) string {
	return fmt.Sprintf("I just sent a text to %s. %s will continue the conversation there.", phone, capitalize(p.TeamLabel))
}

func smsFailedReply(p Policy, phone string) string {
	return fmt.Sprintf("I couldn't send a text just now, but I've saved %s and %s will reach out shortly.", phone, p.TeamLabel)
}

func contactSavedReply(p Policy, contact string) string {
	return fmt.Sprintf("Thanks! I've saved %s and let %s know. They'll be in touch soon.", contact, p.TeamLabel)
}

func contactUpdatedReply(p Policy) string {
	return fmt.Sprintf("Thanks, I've updated your contact details and passed them along to %s.", p.TeamLabel)
}

func stayInChatReply(p Policy) string {
	return fmt.Sprintf("Great, let's keep chatting here. I've let %s know, and they'll reply in this window.", p.TeamLabel)
}

func alreadyNotifiedReply(p Policy) string {
	return fmt.Sprintf("Thanks for your patience. I've already let %s know, and they'll respond shortly.", p.TeamLabel)
}

func joinedAckReply(p Policy) string {
	return fmt.Sprintf("Thanks! %s will respond shortly.", capitalize(p.TeamLabel))
}

func contactFormReply(p Policy) string {
	return fmt.Sprintf("Thanks, %s will reach out soon.", p.TeamLabel)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
