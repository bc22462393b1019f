package notify

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// HandoffNotice describes one escalation that an operator should act on.
type HandoffNotice struct {
	OperatorID     string    `json:"operator_id"`
	BusinessName   string    `json:"business_name"`
	AlertEmail     string    `json:"alert_email"`
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	Channel        string    `json:"channel"`
	CustomerEmail  string    `json:"customer_email,omitempty"`
	CustomerPhone  string    `json:"customer_phone,omitempty"`
	LastMessage    string    `json:"last_message,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}

// Email renders the notice as a message addressed to the operator.
func (n HandoffNotice) Email() EmailMessage {
	business := strings.TrimSpace(n.BusinessName)
	if business == "" {
		business = "your website"
	}
	subject := fmt.Sprintf("Customer wants to talk to a person - %s", business)

	rows := n.rows()
	var body strings.Builder
	fmt.Fprintf(&body, "A customer on %s asked to speak with someone.\n\n", business)
	for _, r := range rows {
		fmt.Fprintf(&body, "%s: %s\n", r[0], r[1])
	}
	body.WriteString("\nReply from the dashboard to join the conversation.")

	var h strings.Builder
	h.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&h, `<h2 style="color: #2563eb;">Customer wants to talk to a person</h2><p>A customer on <strong>%s</strong> asked to speak with someone.</p>`, html.EscapeString(business))
	h.WriteString(`<table style="border-collapse: collapse; margin: 20px 0;">`)
	for _, r := range rows {
		fmt.Fprintf(&h, `<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			html.EscapeString(r[0]), html.EscapeString(r[1]))
	}
	h.WriteString(`</table><p style="color: #6b7280; font-size: 12px;">Reply from the dashboard to join the conversation.</p></div>`)

	return EmailMessage{
		To:      n.AlertEmail,
		Subject: subject,
		Body:    body.String(),
		HTML:    h.String(),
	}
}

func (n HandoffNotice) rows() [][2]string {
	var rows [][2]string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			rows = append(rows, [2]string{label, v})
		}
	}
	add("Preferred channel", channelLabel(n.Channel))
	add("Email", n.CustomerEmail)
	add("Phone", n.CustomerPhone)
	add("Last message", n.LastMessage)
	add("Conversation", n.ConversationID)
	if !n.RequestedAt.IsZero() {
		add("Requested", n.RequestedAt.UTC().Format("January 2, 2006 at 3:04 PM MST"))
	}
	return rows
}

func channelLabel(channel string) string {
	switch channel {
	case "sms":
		return "Text message"
	case "email":
		return "Email"
	case "chat":
		return "Website chat"
	default:
		return channel
	}
}
