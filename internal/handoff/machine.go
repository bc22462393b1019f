package handoff

import "github.com/wolfman30/chatdesk/internal/operator"

// Transition applies one event to a conversation's handoff state. It performs
// no I/O; contact is what the transcript currently has on file.
func Transition(snap Snapshot, contact Contact, ev Event, p Policy) Outcome {
	snap = snap.normalized()

	switch ev.Kind {
	case EventOperatorJoined:
		return operatorJoined(snap)
	case EventReopened:
		return Outcome{Next: Snapshot{State: StateNone}, Suppress: true}
	case EventContactSubmitted:
		return contactSubmitted(snap, contact, Extracted{Email: ev.Email, Phone: ev.Phone}, p)
	}

	extracted := ExtractContact(ev.Text)

	switch snap.State {
	case StateNone:
		if ev.Kind == EventAgentRequested || ev.AgentSignal {
			return escalate(snap, contact, extracted, p)
		}
		return Outcome{Next: snap}
	case StateAwaitingContactChoice:
		return awaitingChoice(snap, contact, extracted, p)
	case StateEscalationRequested, StateContactCaptured:
		return followUp(snap, contact, extracted, p)
	case StateHumanJoined:
		return humanJoined(snap, contact, extracted, p)
	}
	return Outcome{Next: snap}
}

func escalate(snap Snapshot, contact Contact, found Extracted, p Policy) Outcome {
	if p.AlertPreference == operator.AlertNone {
		return Outcome{Next: snap, Reply: selfServiceReply(p)}
	}

	out := Outcome{}
	out.add(Effect{Kind: EffectMarkAgentRequested})
	contact = out.persist(contact, found)
	next := snap
	next.NoticeShown = true

	switch {
	case p.AlertPreference == operator.AlertDashboard:
		next.State = StateEscalationRequested
		next.Channel = ChannelChat
		out.StartPolling = true
		out.Reply = dashboardReply(p)
		if contact.Known() {
			next = out.notify(next, contact)
		}

	case p.SMSMode == operator.SMSHybrid:
		next.State = StateAwaitingContactChoice
		out.Reply = choiceReply(p)

	case p.SMSMode == operator.SMSFirst:
		next.Channel = ChannelSMS
		if contact.Phone == "" {
			next.State = StateEscalationRequested
			out.Reply = askNumberReply(p)
			break
		}
		next.State = StateContactCaptured
		next = out.textCustomer(next, contact, p)

	default:
		next.Channel = ChannelEmail
		if !contact.Known() {
			next.State = StateEscalationRequested
			out.Reply = askContactReply(p)
			break
		}
		next.State = StateContactCaptured
		next = out.notify(next, contact)
		out.Reply = contactSavedReply(p, describe(contact))
	}

	out.Next = next
	return out
}

func awaitingChoice(snap Snapshot, contact Contact, found Extracted, p Policy) Outcome {
	out := Outcome{}
	next := snap

	switch {
	case found.Email != "":
		contact = out.persist(contact, Extracted{Email: found.Email})
		next.State = StateContactCaptured
		next.Channel = ChannelEmail
		next = out.notify(next, contact)
		out.Reply = contactSavedReply(p, found.Email)

	case found.Phone != "":
		contact = out.persist(contact, Extracted{Phone: found.Phone})
		next.State = StateContactCaptured
		next.Channel = ChannelSMS
		next = out.textCustomer(next, contact, p)

	case found.Choice == ChannelSMS:
		next.Channel = ChannelSMS
		if contact.Phone == "" {
			next.State = StateEscalationRequested
			out.Reply = askNumberReply(p)
			break
		}
		next.State = StateContactCaptured
		next = out.textCustomer(next, contact, p)

	case found.Choice == ChannelChat:
		next.State = StateContactCaptured
		next.Channel = ChannelChat
		next = out.notify(next, contact)
		out.StartPolling = true
		out.Reply = stayInChatReply(p)

	default:
		out.Reply = choiceRepromptReply(p)
	}

	out.Next = next
	return out
}

func followUp(snap Snapshot, contact Contact, found Extracted, p Policy) Outcome {
	out := Outcome{StartPolling: snap.Channel == ChannelChat}
	next := snap

	changed := (found.Email != "" && found.Email != contact.Email) ||
		(found.Phone != "" && found.Phone != contact.Phone)
	if changed {
		contact = out.persist(contact, Extracted{Email: found.Email, Phone: found.Phone})
		if next.Channel == "" {
			next.Channel = ChannelEmail
		}
		waitingForNumber := next.State == StateEscalationRequested && next.Channel == ChannelSMS
		next.State = StateContactCaptured
		if waitingForNumber && found.Phone != "" {
			out.Next = out.textCustomer(next, contact, p)
			return out
		}
		wasNotified := next.NotifiedFingerprint != ""
		next = out.notify(next, contact)
		switch {
		case !out.Has(EffectNotifyOperator):
			out.Reply = alreadyNotifiedReply(p)
		case wasNotified:
			out.Reply = contactUpdatedReply(p)
		default:
			out.Reply = contactSavedReply(p, describe(contact))
		}
		out.Next = next
		return out
	}

	if next.State == StateEscalationRequested && next.Channel != ChannelChat && needsContact(contact, next.Channel) {
		if next.Channel == ChannelSMS {
			out.Reply = askNumberReply(p)
		} else {
			out.Reply = askContactReply(p)
		}
		out.Next = next
		return out
	}

	out.Reply = alreadyNotifiedReply(p)
	out.Next = next
	return out
}

// humanJoined never notifies: messages are kept for the operator, with a
// single acknowledgment after the join.
func humanJoined(snap Snapshot, contact Contact, found Extracted, p Policy) Outcome {
	out := Outcome{StartPolling: true}
	var update Extracted
	if found.Email != contact.Email {
		update.Email = found.Email
	}
	if found.Phone != contact.Phone {
		update.Phone = found.Phone
	}
	out.persist(contact, update)
	next := snap
	if snap.JoinAckSent {
		out.Suppress = true
	} else {
		next.JoinAckSent = true
		out.Reply = joinedAckReply(p)
	}
	out.Next = next
	return out
}

func contactSubmitted(snap Snapshot, contact Contact, found Extracted, p Policy) Outcome {
	out := Outcome{Suppress: true}
	contact = out.persist(contact, found)
	next := snap
	if snap.State == StateNone || snap.State == StateHumanJoined {
		out.Next = next
		return out
	}
	if next.Channel == "" {
		next.Channel = ChannelEmail
	}
	next.State = StateContactCaptured
	next = out.notify(next, contact)
	out.Suppress = false
	out.Reply = contactFormReply(p)
	out.StartPolling = next.Channel == ChannelChat
	out.Next = next
	return out
}

func operatorJoined(snap Snapshot) Outcome {
	if snap.State == StateHumanJoined {
		return Outcome{Next: snap, Suppress: true}
	}
	next := snap
	next.State = StateHumanJoined
	next.JoinAckSent = false
	out := Outcome{Suppress: true, StartPolling: true}
	out.add(Effect{Kind: EffectInjectSystemMessage, Text: SystemJoinedMessage})
	out.Next = next
	return out
}

func (o *Outcome) add(e Effect) {
	o.Effects = append(o.Effects, e)
}

// persist records newly found contact fields and returns the merged contact.
func (o *Outcome) persist(contact Contact, found Extracted) Contact {
	update := Contact{Email: found.Email, Phone: found.Phone}
	if update.Email == "" && update.Phone == "" {
		return contact
	}
	if update.Email != "" {
		contact.Email = update.Email
	}
	if update.Phone != "" {
		contact.Phone = update.Phone
	}
	o.add(Effect{Kind: EffectPersistContact, Contact: update})
	return contact
}

// notify emits a notification when the contact fingerprint has changed.
func (o *Outcome) notify(next Snapshot, contact Contact) Snapshot {
	if !contact.Known() && next.Channel != ChannelChat {
		return next
	}
	fp := Fingerprint(contact, next.Channel)
	if fp == next.NotifiedFingerprint {
		return next
	}
	next.NotifiedFingerprint = fp
	o.add(Effect{Kind: EffectNotifyOperator, Contact: contact, Channel: next.Channel})
	return next
}

// textCustomer records the SMS number, sends the welcome text and notifies.
func (o *Outcome) textCustomer(next Snapshot, contact Contact, p Policy) Snapshot {
	o.add(Effect{Kind: EffectPersistContact, Contact: Contact{SMSNumber: contact.Phone}})
	o.add(Effect{Kind: EffectSendWelcomeSMS, To: contact.Phone})
	contact.SMSNumber = contact.Phone
	next = o.notify(next, contact)
	o.Reply = smsSentReply(p, contact.Phone)
	o.SMSFailedReply = smsFailedReply(p, contact.Phone)
	return next
}

func needsContact(c Contact, ch Channel) bool {
	if ch == ChannelSMS {
		return c.Phone == ""
	}
	return !c.Known()
}

func describe(c Contact) string {
	switch {
	case c.Email != "" && c.Phone != "":
		return c.Email + " and " + c.Phone
	case c.Email != "":
		return c.Email
	default:
		return c.Phone
	}
}
