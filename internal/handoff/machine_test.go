package handoff

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/wolfman30/chatdesk/internal/operator"
)

func policy(pref operator.AlertPreference, mode operator.SMSMode) Policy {
	return Policy{AlertPreference: pref, SMSMode: mode, TeamLabel: "the Kayak Co team", BusinessName: "Kayak Co"}
}

func countEffects(o Outcome, k EffectKind) int {
	n := 0
	for _, e := range o.Effects {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func TestAlertNoneStaysSelfService(t *testing.T) {
	out := Transition(Snapshot{}, Contact{Email: "a@b.co"}, AgentRequested("I want to speak to a human"), policy(operator.AlertNone, operator.SMSOff))
	if out.Next.State != StateNone {
		t.Fatalf("expected state none, got %s", out.Next.State)
	}
	if len(out.Effects) != 0 {
		t.Fatalf("expected no effects, got %v", out.Effects)
	}
	if out.Reply == "" || out.StartPolling {
		t.Fatalf("expected self-service reply without polling: %+v", out)
	}
}

func TestDashboardEscalationStartsPolling(t *testing.T) {
	out := Transition(Snapshot{}, Contact{}, AgentRequested("talk to a manager"), policy(operator.AlertDashboard, operator.SMSOff))
	if out.Next.State != StateEscalationRequested || out.Next.Channel != ChannelChat {
		t.Fatalf("unexpected next snapshot %+v", out.Next)
	}
	if !out.StartPolling {
		t.Fatal("expected polling to start")
	}
	if !out.Has(EffectMarkAgentRequested) {
		t.Fatal("expected agent requested mark")
	}
	if out.Has(EffectNotifyOperator) {
		t.Fatal("no notification expected without contact info")
	}
}

func TestDashboardEscalationNotifiesWhenContactKnown(t *testing.T) {
	out := Transition(Snapshot{}, Contact{Email: "a@b.co"}, AgentRequested("human please"), policy(operator.AlertDashboard, operator.SMSOff))
	if countEffects(out, EffectNotifyOperator) != 1 {
		t.Fatalf("expected one notification, got %v", out.Effects)
	}
}

func TestEmailEscalationAsksForContact(t *testing.T) {
	out := Transition(Snapshot{}, Contact{}, AgentRequested("agent"), policy(operator.AlertEmail, operator.SMSOff))
	if out.Next.State != StateEscalationRequested {
		t.Fatalf("expected escalation requested, got %s", out.Next.State)
	}
	if out.Has(EffectNotifyOperator) {
		t.Fatal("notification must wait for contact info")
	}
	if !strings.Contains(out.Reply, "email") {
		t.Fatalf("expected contact prompt, got %q", out.Reply)
	}
}

func TestEmailEscalationWithKnownContactNotifiesOnce(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSOff)
	contact := Contact{Email: "a@b.co"}
	first := Transition(Snapshot{}, contact, AgentRequested("agent"), p)
	if first.Next.State != StateContactCaptured || countEffects(first, EffectNotifyOperator) != 1 {
		t.Fatalf("unexpected first outcome %+v", first)
	}
	second := Transition(first.Next, contact, CustomerMessage("agent", true), p)
	if second.Has(EffectNotifyOperator) {
		t.Fatal("repeat request must not notify again")
	}
	if !strings.Contains(second.Reply, "already") {
		t.Fatalf("expected already-notified reply, got %q", second.Reply)
	}
}

func TestEscalationCapturesEmailFromFollowUp(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSOff)
	first := Transition(Snapshot{}, Contact{}, AgentRequested("agent"), p)
	second := Transition(first.Next, Contact{}, CustomerMessage("sure, it's Jo@Example.com", false), p)
	if second.Next.State != StateContactCaptured {
		t.Fatalf("expected contact captured, got %s", second.Next.State)
	}
	if countEffects(second, EffectNotifyOperator) != 1 {
		t.Fatalf("expected notification, got %v", second.Effects)
	}
	if second.Effects[0].Kind != EffectPersistContact || second.Effects[0].Contact.Email != "jo@example.com" {
		t.Fatalf("expected email persisted first, got %+v", second.Effects[0])
	}
}

func TestContactChangeNotifiesAgain(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSOff)
	contact := Contact{Email: "a@b.co", Phone: "+15551234567"}
	first := Transition(Snapshot{}, contact, AgentRequested("agent"), p)
	second := Transition(first.Next, contact, CustomerMessage("actually use new@b.co", false), p)
	if countEffects(second, EffectNotifyOperator) != 1 {
		t.Fatalf("expected renotification after contact change, got %v", second.Effects)
	}
	persist := second.Effects[0]
	if persist.Contact.Phone != "" {
		t.Fatalf("phone must not be touched by an email update: %+v", persist)
	}
	third := Transition(second.Next, Contact{Email: "new@b.co", Phone: contact.Phone}, CustomerMessage("new@b.co", false), p)
	if third.Has(EffectNotifyOperator) {
		t.Fatal("same contact must not notify again")
	}
}

func TestHybridOffersChoice(t *testing.T) {
	out := Transition(Snapshot{}, Contact{}, AgentRequested("human"), policy(operator.AlertEmail, operator.SMSHybrid))
	if out.Next.State != StateAwaitingContactChoice {
		t.Fatalf("expected awaiting choice, got %s", out.Next.State)
	}
	if !strings.Contains(out.Reply, "chat here") {
		t.Fatalf("expected choice prompt, got %q", out.Reply)
	}
}

func TestHybridTextWithKnownPhone(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSHybrid)
	contact := Contact{Phone: "+15551234567"}
	first := Transition(Snapshot{}, contact, AgentRequested("human"), p)
	out := Transition(first.Next, contact, CustomerMessage("text", false), p)

	if out.Next.State != StateContactCaptured || out.Next.Channel != ChannelSMS {
		t.Fatalf("unexpected snapshot %+v", out.Next)
	}
	if countEffects(out, EffectSendWelcomeSMS) != 1 {
		t.Fatalf("expected a welcome sms, got %v", out.Effects)
	}
	for _, e := range out.Effects {
		if e.Kind == EffectSendWelcomeSMS && e.To != "+15551234567" {
			t.Fatalf("sms sent to wrong number %q", e.To)
		}
	}
	if !strings.Contains(out.Reply, "+15551234567") {
		t.Fatalf("reply should reference the number, got %q", out.Reply)
	}
	if strings.Contains(out.Reply, "What's the best mobile number") {
		t.Fatal("must not ask for a new number")
	}
	if out.SMSFailedReply == "" {
		t.Fatal("expected a degraded reply for sms failure")
	}
}

func TestHybridTextWithoutPhoneAsksForNumber(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSHybrid)
	first := Transition(Snapshot{}, Contact{}, AgentRequested("human"), p)
	second := Transition(first.Next, Contact{}, CustomerMessage("text me", false), p)
	if second.Next.State != StateEscalationRequested || second.Next.Channel != ChannelSMS {
		t.Fatalf("unexpected snapshot %+v", second.Next)
	}
	third := Transition(second.Next, Contact{}, CustomerMessage("555-123-4567", false), p)
	if third.Next.State != StateContactCaptured || countEffects(third, EffectSendWelcomeSMS) != 1 {
		t.Fatalf("expected sms after number arrives: %+v", third)
	}
}

func TestHybridChatHere(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSHybrid)
	first := Transition(Snapshot{}, Contact{}, AgentRequested("human"), p)
	out := Transition(first.Next, Contact{}, CustomerMessage("chat here please", false), p)
	if out.Next.Channel != ChannelChat || !out.StartPolling {
		t.Fatalf("expected chat channel with polling: %+v", out)
	}
	if countEffects(out, EffectNotifyOperator) != 1 {
		t.Fatal("operator should hear about a chat handoff")
	}
}

func TestHybridUnclearChoiceReprompts(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSHybrid)
	first := Transition(Snapshot{}, Contact{}, AgentRequested("human"), p)
	out := Transition(first.Next, Contact{}, CustomerMessage("hmm not sure", false), p)
	if out.Next.State != StateAwaitingContactChoice || len(out.Effects) != 0 {
		t.Fatalf("expected reprompt without effects: %+v", out)
	}
}

func TestSMSFirstWithPhone(t *testing.T) {
	out := Transition(Snapshot{}, Contact{Phone: "+15551234567"}, AgentRequested("human"), policy(operator.AlertEmail, operator.SMSFirst))
	if out.Next.State != StateContactCaptured || countEffects(out, EffectSendWelcomeSMS) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestOperatorJoinedOnce(t *testing.T) {
	first := Transition(Snapshot{State: StateContactCaptured}, Contact{}, OperatorJoined(), policy(operator.AlertEmail, operator.SMSOff))
	if first.Next.State != StateHumanJoined || countEffects(first, EffectInjectSystemMessage) != 1 {
		t.Fatalf("unexpected join outcome %+v", first)
	}
	second := Transition(first.Next, Contact{}, OperatorJoined(), policy(operator.AlertEmail, operator.SMSOff))
	if len(second.Effects) != 0 {
		t.Fatalf("repeat join must be a no-op, got %v", second.Effects)
	}
}

func TestHumanJoinedAcksOnceThenSuppresses(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSOff)
	snap := Snapshot{State: StateHumanJoined}
	first := Transition(snap, Contact{}, CustomerMessage("hello?", false), p)
	if first.Suppress || first.Reply == "" {
		t.Fatalf("expected one acknowledgment: %+v", first)
	}
	second := Transition(first.Next, Contact{}, CustomerMessage("agent please", true), p)
	if !second.Suppress || second.Reply != "" {
		t.Fatalf("expected suppression: %+v", second)
	}
	if second.Has(EffectNotifyOperator) {
		t.Fatal("no notification after a human joined")
	}
}

func TestHumanJoinedPersistsContactSilently(t *testing.T) {
	out := Transition(Snapshot{State: StateHumanJoined, JoinAckSent: true}, Contact{}, CustomerMessage("my email is x@y.io", false), policy(operator.AlertEmail, operator.SMSOff))
	if !out.Suppress || !out.Has(EffectPersistContact) || out.Has(EffectNotifyOperator) {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestReopenedResets(t *testing.T) {
	out := Transition(Snapshot{State: StateHumanJoined, JoinAckSent: true, NotifiedFingerprint: "x"}, Contact{}, Reopened(), Policy{})
	if out.Next.Active() || out.Next.NotifiedFingerprint != "" {
		t.Fatalf("expected reset snapshot, got %+v", out.Next)
	}
}

func TestContactSubmittedDuringEscalation(t *testing.T) {
	p := policy(operator.AlertEmail, operator.SMSOff)
	out := Transition(Snapshot{State: StateEscalationRequested, Channel: ChannelEmail}, Contact{}, ContactSubmitted("a@b.co", ""), p)
	if out.Next.State != StateContactCaptured || countEffects(out, EffectNotifyOperator) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestContactSubmittedBeforeEscalationOnlyPersists(t *testing.T) {
	out := Transition(Snapshot{}, Contact{}, ContactSubmitted("a@b.co", "+15551234567"), policy(operator.AlertEmail, operator.SMSOff))
	if out.Next.Active() || out.Has(EffectNotifyOperator) || !out.Has(EffectPersistContact) {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestNonEscalationMessageInNoneIsIgnored(t *testing.T) {
	out := Transition(Snapshot{}, Contact{}, CustomerMessage("what are your hours", false), policy(operator.AlertEmail, operator.SMSOff))
	if out.Next.Active() || len(out.Effects) != 0 || out.Reply != "" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestJoinedAckCapitalizesMultibyteTeam(t *testing.T) {
	p := policy(operator.AlertDashboard, operator.SMSOff)
	p.TeamLabel = "équipe Kayak"
	got := joinedAckReply(p)
	if !utf8.ValidString(got) || !strings.Contains(got, "Équipe Kayak") {
		t.Fatalf("unexpected ack %q", got)
	}
	if capitalize("") != "" || capitalize("Already") != "Already" {
		t.Fatal("capitalize should leave empty and capitalized text alone")
	}
}
